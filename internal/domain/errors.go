package domain

import "errors"

// Typed operation failures. Every precondition violation is detected before
// any state mutation and surfaced as one of these; a failed operation leaves
// all persisted records unchanged.
var (
	ErrAlreadyInitialized    = errors.New("vault already initialized for asset")
	ErrVaultNotInitialized   = errors.New("vault not initialized for asset")
	ErrInvalidFeeRate        = errors.New("fee rate exceeds 10000 bps")
	ErrInvalidPoolSet        = errors.New("invalid pool set")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrInsufficientLiquidity = errors.New("insufficient vault liquidity")
	ErrFeeAccrualTooSoon     = errors.New("fee accrual interval not elapsed")
	ErrInvalidWeights        = errors.New("invalid pool weights")
	ErrUnauthorized          = errors.New("caller is not the vault admin")
	ErrPositionNotFound      = errors.New("user position not found")
)
