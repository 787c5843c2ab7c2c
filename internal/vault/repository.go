package vault

import (
	"context"

	"github.com/nqdhocai/ovira/internal/custody"
	"github.com/nqdhocai/ovira/internal/domain"
)

// Tx is the transactional view the accounting engine mutates state
// through. Every operation runs against exactly one Tx; either all of its
// writes commit or none do. The embedded custody.Ledger shares the same
// transaction boundary, making transfers atomic with the bookkeeping they
// bracket.
type Tx interface {
	custody.Ledger

	// Config returns the vault config for the asset, or
	// domain.ErrVaultNotInitialized.
	Config(ctx context.Context, assetID string) (domain.VaultConfig, error)
	// CreateConfig inserts a new config, or domain.ErrAlreadyInitialized
	// when one exists for the asset.
	CreateConfig(ctx context.Context, cfg domain.VaultConfig) error

	// Vault loads the vault row without locking, for read-only paths.
	Vault(ctx context.Context, assetID string) (domain.Vault, error)
	// VaultForUpdate loads the vault row with an exclusive lock held until
	// the transaction ends. Operations on the same asset serialize here;
	// different assets proceed independently.
	VaultForUpdate(ctx context.Context, assetID string) (domain.Vault, error)
	CreateVault(ctx context.Context, v domain.Vault) error
	SaveVault(ctx context.Context, v domain.Vault) error

	// Position returns the (asset, owner) position, or
	// domain.ErrPositionNotFound.
	Position(ctx context.Context, assetID, owner string) (domain.UserPosition, error)
	// SavePosition upserts a position record.
	SavePosition(ctx context.Context, p domain.UserPosition) error
	Positions(ctx context.Context, assetID string) ([]domain.UserPosition, error)

	Pools(ctx context.Context, assetID string) ([]domain.Pool, error)
	CreatePools(ctx context.Context, pools []domain.Pool) error
	SavePoolWeights(ctx context.Context, assetID string, weights map[string]uint32) error

	AppendEvent(ctx context.Context, e domain.Event) error
}

// Repository provides transaction scoping over the persistent vault state.
type Repository interface {
	// InTx runs fn inside a single atomic transaction. A non-nil error
	// from fn rolls everything back and is returned unchanged.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ManagedAssets lists the asset IDs with an initialized vault.
	ManagedAssets(ctx context.Context) ([]string, error)

	// Events lists the most recent ledger events for an asset, newest
	// first.
	Events(ctx context.Context, assetID string, limit int) ([]domain.Event, error)
}
