// Package custody models the boundary to the host ledger: deterministic
// account addressing and the atomic transfer primitive the accounting
// engine brackets its mutations with. The real byte-level derivation scheme
// lives outside this service; accounts here are injective keyed handles.
package custody

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Seeds for the keyed account derivation, one per record role.
const (
	configSeed   = "vault_config"
	vaultSeed    = "vault"
	positionSeed = "user_position"
	userSeed     = "user"
)

// ErrInsufficientFunds indicates the source account cannot cover a transfer.
var ErrInsufficientFunds = errors.New("insufficient custody balance")

// derive hashes the seed parts into a stable hex handle. Parts are length-
// prefixed so distinct part lists can never collide.
func derive(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte{byte(len(p))})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigAccount returns the account handle for an asset's vault config.
func ConfigAccount(assetID string) string {
	return derive(configSeed, assetID)
}

// VaultAccount returns the custody account handle holding an asset's
// pooled balance.
func VaultAccount(assetID string) string {
	return derive(vaultSeed, assetID)
}

// PositionAccount returns the account handle for a (asset, user) position
// record.
func PositionAccount(assetID, owner string) string {
	return derive(positionSeed, assetID, owner)
}

// UserAccount returns the external asset account handle for a user.
func UserAccount(assetID, owner string) string {
	return derive(userSeed, assetID, owner)
}

// Ledger is the custody transfer primitive consumed by the accounting
// engine. Implementations must make Transfer atomic with the vault state
// mutation it brackets; the Postgres implementation runs inside the same
// transaction.
type Ledger interface {
	Balance(ctx context.Context, account string) (uint64, error)
	Transfer(ctx context.Context, from, to string, amount uint64) error
}
