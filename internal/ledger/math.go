// Package ledger implements the fixed-point share/asset arithmetic for the
// vault accounting engine. All conversions widen to 128 bits before
// dividing, so intermediate products never overflow, and all rounding
// favors the vault: deposits mint floor shares, withdrawals burn ceiling
// shares, redemptions pay floor assets.
package ledger

import (
	"errors"
	"math/bits"

	"github.com/shopspring/decimal"
)

// ErrOverflow indicates that a widened intermediate result does not fit
// back into 64 bits.
var ErrOverflow = errors.New("arithmetic overflow")

// mulDiv computes floor(a * b / den) with a 128-bit intermediate.
func mulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		// Callers guard this structurally (bootstrap branch); treated as
		// overflow rather than panicking per the no-generic-faults policy.
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, nil
}

// mulDivCeil computes ceil(a * b / den) with a 128-bit intermediate.
func mulDivCeil(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, ErrOverflow
	}
	q, r := bits.Div64(hi, lo, den)
	if r > 0 {
		if q == ^uint64(0) {
			return 0, ErrOverflow
		}
		q++
	}
	return q, nil
}

// SharesForDeposit converts a deposit amount to minted shares at the current
// ratio, rounding down. The first depositor receives shares 1:1.
func SharesForDeposit(amount, totalShares, totalAssets uint64) (uint64, error) {
	if totalShares == 0 {
		return amount, nil
	}
	return mulDiv(amount, totalShares, totalAssets)
}

// SharesForWithdraw converts a requested withdrawal amount to the share cost
// at the current ratio, rounding up so truncation never pays out more value
// than the burned shares represent.
func SharesForWithdraw(amount, totalShares, totalAssets uint64) (uint64, error) {
	if totalShares == 0 {
		return amount, nil
	}
	return mulDivCeil(amount, totalShares, totalAssets)
}

// AssetsForShares converts a share count to its current asset value,
// rounding down.
func AssetsForShares(shares, totalShares, totalAssets uint64) (uint64, error) {
	if totalShares == 0 {
		return 0, nil
	}
	return mulDiv(shares, totalAssets, totalShares)
}

// AddChecked returns a+b or ErrOverflow.
func AddChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// SharePrice returns assets-per-share as a decimal for reporting. Never
// feeds back into accounting state. Returns 1 for an empty vault
// (bootstrap ratio).
func SharePrice(totalShares, totalAssets uint64) decimal.Decimal {
	if totalShares == 0 {
		return decimal.New(1, 0)
	}
	return decimal.NewFromUint64(totalAssets).
		Div(decimal.NewFromUint64(totalShares))
}
