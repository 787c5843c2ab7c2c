package domain

import "time"

// MaxBps is the denominator for basis-point rates: 10000 bps = 100%.
const MaxBps = 10000

// MaxPools bounds the number of allocation pools a vault may declare.
const MaxPools = 10

// VaultConfig holds the per-asset configuration. One record per managed
// asset; immutable except through admin operations.
type VaultConfig struct {
	AssetID           string    `json:"assetId"`
	Admin             string    `json:"admin"`
	PerformanceFeeBps uint32    `json:"performanceFeeBps"`
	ManagementFeeBps  uint32    `json:"managementFeeBps"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Vault is the per-asset aggregate accounting state. TotalAssets mirrors
// the custody balance at the end of every operation.
type Vault struct {
	AssetID        string    `json:"assetId"`
	TotalShares    uint64    `json:"totalShares"`
	TotalAssets    uint64    `json:"totalAssets"`
	HighWaterMark  uint64    `json:"highWaterMark"`
	LastAccrualAt  time.Time `json:"lastAccrualAt"`
	CustodyAccount string    `json:"custodyAccount"`
}

// UserPosition records one user's share holding in one vault. Created
// lazily on first deposit, never deleted; a position with zero shares is
// simply dormant.
type UserPosition struct {
	AssetID        string    `json:"assetId"`
	Owner          string    `json:"owner"`
	Shares         uint64    `json:"shares"`
	DepositedTotal uint64    `json:"depositedTotal"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Pool is a named allocation target. Membership is fixed at Initialize;
// rebalancing changes AllocationBps only. Capital deployment against these
// weights happens outside the accounting core.
type Pool struct {
	AssetID       string `json:"assetId"`
	Name          string `json:"name"`
	AllocationBps uint32 `json:"allocationBps"`
	Position      int    `json:"position"`
}

// EventKind classifies vault ledger events.
type EventKind string

const (
	EventInitialize EventKind = "initialize"
	EventDeposit    EventKind = "deposit"
	EventWithdraw   EventKind = "withdraw"
	EventAccrueFees EventKind = "accrue_fees"
	EventRebalance  EventKind = "rebalance"
)

// Event is one entry in the per-vault transaction log, recorded atomically
// with the operation it describes.
type Event struct {
	ID        int64     `json:"id"`
	AssetID   string    `json:"assetId"`
	Kind      EventKind `json:"kind"`
	Actor     string    `json:"actor"`
	Amount    uint64    `json:"amount"`
	Shares    uint64    `json:"shares"`
	CreatedAt time.Time `json:"createdAt"`
}

// VaultState is the caller-facing readback returned by mutating operations:
// the aggregate state plus the caller's position after the change.
type VaultState struct {
	Config   VaultConfig   `json:"config"`
	Vault    Vault         `json:"vault"`
	Pools    []Pool        `json:"pools"`
	Position *UserPosition `json:"position,omitempty"`
}
