package vault

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/nqdhocai/ovira/internal/custody"
	"github.com/nqdhocai/ovira/internal/domain"
)

// memRepo is an in-memory Repository with copy-on-write transactions:
// fn mutates a deep copy and the copy only replaces the live state when fn
// succeeds, which mirrors the rollback behavior of the Postgres
// implementation closely enough to test atomicity.
type memRepo struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	configs     map[string]domain.VaultConfig
	vaults      map[string]domain.Vault
	positions   map[string]map[string]domain.UserPosition
	pools       map[string][]domain.Pool
	events      []domain.Event
	balances    map[string]uint64
	nextEventID int64
}

func newMemRepo() *memRepo {
	return &memRepo{state: memState{
		configs:     map[string]domain.VaultConfig{},
		vaults:      map[string]domain.Vault{},
		positions:   map[string]map[string]domain.UserPosition{},
		pools:       map[string][]domain.Pool{},
		balances:    map[string]uint64{},
		nextEventID: 1,
	}}
}

func (s memState) clone() memState {
	c := memState{
		configs:     maps.Clone(s.configs),
		vaults:      maps.Clone(s.vaults),
		positions:   map[string]map[string]domain.UserPosition{},
		pools:       map[string][]domain.Pool{},
		events:      slices.Clone(s.events),
		balances:    maps.Clone(s.balances),
		nextEventID: s.nextEventID,
	}
	for k, v := range s.positions {
		c.positions[k] = maps.Clone(v)
	}
	for k, v := range s.pools {
		c.pools[k] = slices.Clone(v)
	}
	return c
}

func (r *memRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	work := r.state.clone()
	if err := fn(ctx, &memTx{s: &work}); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memRepo) ManagedAssets(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.state.configs)), nil
}

func (r *memRepo) Events(ctx context.Context, assetID string, limit int) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Event
	for i := len(r.state.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.state.events[i].AssetID == assetID {
			out = append(out, r.state.events[i])
		}
	}
	return out, nil
}

// credit funds an external custody account, standing in for the on-ramp.
func (r *memRepo) credit(account string, amount uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.balances[account] += amount
}

// snapshot returns a deep copy of the whole state for before/after
// equality checks.
func (r *memRepo) snapshot() memState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

type memTx struct {
	s *memState
}

var _ Tx = (*memTx)(nil)

func (t *memTx) Config(_ context.Context, assetID string) (domain.VaultConfig, error) {
	cfg, ok := t.s.configs[assetID]
	if !ok {
		return domain.VaultConfig{}, domain.ErrVaultNotInitialized
	}
	return cfg, nil
}

func (t *memTx) CreateConfig(_ context.Context, cfg domain.VaultConfig) error {
	if _, ok := t.s.configs[cfg.AssetID]; ok {
		return domain.ErrAlreadyInitialized
	}
	t.s.configs[cfg.AssetID] = cfg
	return nil
}

func (t *memTx) Vault(_ context.Context, assetID string) (domain.Vault, error) {
	v, ok := t.s.vaults[assetID]
	if !ok {
		return domain.Vault{}, domain.ErrVaultNotInitialized
	}
	return v, nil
}

func (t *memTx) VaultForUpdate(ctx context.Context, assetID string) (domain.Vault, error) {
	return t.Vault(ctx, assetID)
}

func (t *memTx) CreateVault(_ context.Context, v domain.Vault) error {
	t.s.vaults[v.AssetID] = v
	if _, ok := t.s.balances[v.CustodyAccount]; !ok {
		t.s.balances[v.CustodyAccount] = 0
	}
	return nil
}

func (t *memTx) SaveVault(_ context.Context, v domain.Vault) error {
	if _, ok := t.s.vaults[v.AssetID]; !ok {
		return domain.ErrVaultNotInitialized
	}
	t.s.vaults[v.AssetID] = v
	return nil
}

func (t *memTx) Position(_ context.Context, assetID, owner string) (domain.UserPosition, error) {
	p, ok := t.s.positions[assetID][owner]
	if !ok {
		return domain.UserPosition{}, domain.ErrPositionNotFound
	}
	return p, nil
}

func (t *memTx) SavePosition(_ context.Context, p domain.UserPosition) error {
	if t.s.positions[p.AssetID] == nil {
		t.s.positions[p.AssetID] = map[string]domain.UserPosition{}
	}
	t.s.positions[p.AssetID][p.Owner] = p
	return nil
}

func (t *memTx) Positions(_ context.Context, assetID string) ([]domain.UserPosition, error) {
	var out []domain.UserPosition
	for _, owner := range slices.Sorted(maps.Keys(t.s.positions[assetID])) {
		out = append(out, t.s.positions[assetID][owner])
	}
	return out, nil
}

func (t *memTx) Pools(_ context.Context, assetID string) ([]domain.Pool, error) {
	return slices.Clone(t.s.pools[assetID]), nil
}

func (t *memTx) CreatePools(_ context.Context, pools []domain.Pool) error {
	for _, p := range pools {
		t.s.pools[p.AssetID] = append(t.s.pools[p.AssetID], p)
	}
	return nil
}

func (t *memTx) SavePoolWeights(_ context.Context, assetID string, weights map[string]uint32) error {
	pools := t.s.pools[assetID]
	for i := range pools {
		if bps, ok := weights[pools[i].Name]; ok {
			pools[i].AllocationBps = bps
		}
	}
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, e domain.Event) error {
	e.ID = t.s.nextEventID
	t.s.nextEventID++
	t.s.events = append(t.s.events, e)
	return nil
}

func (t *memTx) Balance(_ context.Context, account string) (uint64, error) {
	return t.s.balances[account], nil
}

func (t *memTx) Transfer(_ context.Context, from, to string, amount uint64) error {
	if t.s.balances[from] < amount {
		return custody.ErrInsufficientFunds
	}
	t.s.balances[from] -= amount
	t.s.balances[to] += amount
	return nil
}
