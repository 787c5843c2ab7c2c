package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nqdhocai/ovira/internal/custody"
	"github.com/nqdhocai/ovira/internal/domain"
)

// PgRepository implements Repository with PostgreSQL. All vault state,
// the pool registry, the event log, and the custody balances live in one
// database, so InTx gives every operation a genuine all-or-nothing
// boundary around both its bookkeeping and its custody transfer.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL vault repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgtx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer pgtx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (r *PgRepository) ManagedAssets(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT asset_id FROM vault_configs ORDER BY asset_id`)
	if err != nil {
		return nil, fmt.Errorf("listing managed assets: %w", err)
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *PgRepository) Events(ctx context.Context, assetID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, asset_id, kind, actor, amount, shares, created_at
		 FROM vault_events
		 WHERE asset_id = $1
		 ORDER BY id DESC
		 LIMIT $2`, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.AssetID, &e.Kind, &e.Actor, &e.Amount, &e.Shares, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreditCustody credits an external account outside any vault operation.
// This is the settlement hook the on-ramp uses to fund user accounts.
func (r *PgRepository) CreditCustody(ctx context.Context, account string, amount uint64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO custody_balances (account, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET balance = custody_balances.balance + $2`,
		account, int64(amount))
	if err != nil {
		return fmt.Errorf("crediting custody account: %w", err)
	}
	return nil
}

// pgTx implements Tx over a single pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) Config(ctx context.Context, assetID string) (domain.VaultConfig, error) {
	var cfg domain.VaultConfig
	err := t.tx.QueryRow(ctx,
		`SELECT asset_id, admin, performance_fee_bps, management_fee_bps, created_at
		 FROM vault_configs WHERE asset_id = $1`, assetID).
		Scan(&cfg.AssetID, &cfg.Admin, &cfg.PerformanceFeeBps, &cfg.ManagementFeeBps, &cfg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VaultConfig{}, domain.ErrVaultNotInitialized
		}
		return domain.VaultConfig{}, fmt.Errorf("getting vault config: %w", err)
	}
	return cfg, nil
}

func (t *pgTx) CreateConfig(ctx context.Context, cfg domain.VaultConfig) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO vault_configs (asset_id, admin, performance_fee_bps, management_fee_bps, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		cfg.AssetID, cfg.Admin, cfg.PerformanceFeeBps, cfg.ManagementFeeBps, cfg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyInitialized
		}
		return fmt.Errorf("creating vault config: %w", err)
	}
	return nil
}

const vaultColumns = `asset_id, total_shares, total_assets, high_water_mark, last_accrual_at, custody_account`

func (t *pgTx) scanVault(row pgx.Row) (domain.Vault, error) {
	var v domain.Vault
	var shares, assets, hwm int64
	err := row.Scan(&v.AssetID, &shares, &assets, &hwm, &v.LastAccrualAt, &v.CustodyAccount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vault{}, domain.ErrVaultNotInitialized
		}
		return domain.Vault{}, fmt.Errorf("getting vault: %w", err)
	}
	v.TotalShares = uint64(shares)
	v.TotalAssets = uint64(assets)
	v.HighWaterMark = uint64(hwm)
	return v, nil
}

func (t *pgTx) Vault(ctx context.Context, assetID string) (domain.Vault, error) {
	return t.scanVault(t.tx.QueryRow(ctx,
		`SELECT `+vaultColumns+` FROM vaults WHERE asset_id = $1`, assetID))
}

func (t *pgTx) VaultForUpdate(ctx context.Context, assetID string) (domain.Vault, error) {
	return t.scanVault(t.tx.QueryRow(ctx,
		`SELECT `+vaultColumns+` FROM vaults WHERE asset_id = $1 FOR UPDATE`, assetID))
}

func (t *pgTx) CreateVault(ctx context.Context, v domain.Vault) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO vaults (asset_id, total_shares, total_assets, high_water_mark, last_accrual_at, custody_account)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		v.AssetID, int64(v.TotalShares), int64(v.TotalAssets), int64(v.HighWaterMark), v.LastAccrualAt, v.CustodyAccount)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	// The custody account opens with the vault.
	_, err = t.tx.Exec(ctx,
		`INSERT INTO custody_balances (account, balance) VALUES ($1, 0)
		 ON CONFLICT (account) DO NOTHING`, v.CustodyAccount)
	if err != nil {
		return fmt.Errorf("opening custody account: %w", err)
	}
	return nil
}

func (t *pgTx) SaveVault(ctx context.Context, v domain.Vault) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE vaults
		 SET total_shares = $2, total_assets = $3, high_water_mark = $4, last_accrual_at = $5
		 WHERE asset_id = $1`,
		v.AssetID, int64(v.TotalShares), int64(v.TotalAssets), int64(v.HighWaterMark), v.LastAccrualAt)
	if err != nil {
		return fmt.Errorf("saving vault: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVaultNotInitialized
	}
	return nil
}

func (t *pgTx) Position(ctx context.Context, assetID, owner string) (domain.UserPosition, error) {
	var p domain.UserPosition
	var shares, deposited int64
	err := t.tx.QueryRow(ctx,
		`SELECT asset_id, owner, shares, deposited_total, updated_at
		 FROM user_positions WHERE asset_id = $1 AND owner = $2`, assetID, owner).
		Scan(&p.AssetID, &p.Owner, &shares, &deposited, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserPosition{}, domain.ErrPositionNotFound
		}
		return domain.UserPosition{}, fmt.Errorf("getting position: %w", err)
	}
	p.Shares = uint64(shares)
	p.DepositedTotal = uint64(deposited)
	return p, nil
}

func (t *pgTx) SavePosition(ctx context.Context, p domain.UserPosition) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO user_positions (asset_id, owner, shares, deposited_total, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (asset_id, owner)
		 DO UPDATE SET shares = $3, deposited_total = $4, updated_at = $5`,
		p.AssetID, p.Owner, int64(p.Shares), int64(p.DepositedTotal), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving position: %w", err)
	}
	return nil
}

func (t *pgTx) Positions(ctx context.Context, assetID string) ([]domain.UserPosition, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT asset_id, owner, shares, deposited_total, updated_at
		 FROM user_positions WHERE asset_id = $1 ORDER BY owner`, assetID)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.UserPosition
	for rows.Next() {
		var p domain.UserPosition
		var shares, deposited int64
		if err := rows.Scan(&p.AssetID, &p.Owner, &shares, &deposited, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		p.Shares = uint64(shares)
		p.DepositedTotal = uint64(deposited)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (t *pgTx) Pools(ctx context.Context, assetID string) ([]domain.Pool, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT asset_id, name, allocation_bps, position
		 FROM vault_pools WHERE asset_id = $1 ORDER BY position`, assetID)
	if err != nil {
		return nil, fmt.Errorf("listing pools: %w", err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		var p domain.Pool
		if err := rows.Scan(&p.AssetID, &p.Name, &p.AllocationBps, &p.Position); err != nil {
			return nil, fmt.Errorf("scanning pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (t *pgTx) CreatePools(ctx context.Context, pools []domain.Pool) error {
	for _, p := range pools {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO vault_pools (asset_id, name, allocation_bps, position)
			 VALUES ($1, $2, $3, $4)`,
			p.AssetID, p.Name, p.AllocationBps, p.Position)
		if err != nil {
			return fmt.Errorf("creating pool %s: %w", p.Name, err)
		}
	}
	return nil
}

func (t *pgTx) SavePoolWeights(ctx context.Context, assetID string, weights map[string]uint32) error {
	for name, bps := range weights {
		tag, err := t.tx.Exec(ctx,
			`UPDATE vault_pools SET allocation_bps = $3 WHERE asset_id = $1 AND name = $2`,
			assetID, name, bps)
		if err != nil {
			return fmt.Errorf("saving weight for pool %s: %w", name, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInvalidWeights
		}
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e domain.Event) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO vault_events (asset_id, kind, actor, amount, shares, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.AssetID, e.Kind, e.Actor, int64(e.Amount), int64(e.Shares), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

func (t *pgTx) Balance(ctx context.Context, account string) (uint64, error) {
	var bal int64
	err := t.tx.QueryRow(ctx,
		`SELECT balance FROM custody_balances WHERE account = $1`, account).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting custody balance: %w", err)
	}
	return uint64(bal), nil
}

func (t *pgTx) Transfer(ctx context.Context, from, to string, amount uint64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE custody_balances SET balance = balance - $2
		 WHERE account = $1 AND balance >= $2`, from, int64(amount))
	if err != nil {
		return fmt.Errorf("debiting %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		return custody.ErrInsufficientFunds
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO custody_balances (account, balance) VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET balance = custody_balances.balance + $2`,
		to, int64(amount))
	if err != nil {
		return fmt.Errorf("crediting %s: %w", to, err)
	}
	return nil
}
