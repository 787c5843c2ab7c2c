// Package vault implements the pooled vault accounting engine: the state
// machine governing how deposits, withdrawals, fee accrual, and pool
// rebalancing mutate the per-asset records while preserving solvency and
// proportional-claim invariants.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nqdhocai/ovira/internal/custody"
	"github.com/nqdhocai/ovira/internal/domain"
	"github.com/nqdhocai/ovira/internal/ledger"
)

// Service executes the vault accounting operations. Every operation is a
// single atomic transaction: preconditions are validated before any write,
// and a typed failure leaves persisted state untouched.
type Service struct {
	repo            Repository
	accrualInterval time.Duration
	now             func() time.Time
}

// NewService creates the accounting engine. accrualInterval is the minimum
// time between fee accruals for one vault.
func NewService(repo Repository, accrualInterval time.Duration) *Service {
	return &Service{
		repo:            repo,
		accrualInterval: accrualInterval,
		now:             time.Now,
	}
}

// Initialize creates the VaultConfig and Vault records for an asset and
// opens its custody account. The caller becomes the vault admin. Exactly
// one initialization may succeed per asset.
func (s *Service) Initialize(ctx context.Context, caller, assetID string, performanceFeeBps, managementFeeBps uint32, pools []string) (domain.VaultState, error) {
	if err := domain.ValidateFeeRate(performanceFeeBps); err != nil {
		return domain.VaultState{}, err
	}
	if err := domain.ValidateFeeRate(managementFeeBps); err != nil {
		return domain.VaultState{}, err
	}
	if err := domain.ValidatePoolSet(pools); err != nil {
		return domain.VaultState{}, err
	}

	now := s.now().UTC()
	cfg := domain.VaultConfig{
		AssetID:           assetID,
		Admin:             caller,
		PerformanceFeeBps: performanceFeeBps,
		ManagementFeeBps:  managementFeeBps,
		CreatedAt:         now,
	}
	v := domain.Vault{
		AssetID:        assetID,
		LastAccrualAt:  now,
		CustodyAccount: custody.VaultAccount(assetID),
	}

	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateConfig(ctx, cfg); err != nil {
			return err
		}
		if err := tx.CreateVault(ctx, v); err != nil {
			return err
		}
		poolRecords := make([]domain.Pool, len(pools))
		for i, name := range pools {
			poolRecords[i] = domain.Pool{AssetID: assetID, Name: name, Position: i}
		}
		if err := tx.CreatePools(ctx, poolRecords); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, domain.Event{
			AssetID: assetID, Kind: domain.EventInitialize, Actor: caller, CreatedAt: now,
		})
	})
	if err != nil {
		return domain.VaultState{}, err
	}

	slog.Info("vault initialized", "asset", assetID, "admin", caller, "pools", len(pools))
	return s.State(ctx, assetID)
}

// Deposit moves amount from the caller's external asset account into vault
// custody and mints shares at the pre-deposit ratio, rounding down. The
// caller's position is created on first deposit.
func (s *Service) Deposit(ctx context.Context, caller, assetID string, amount uint64) (domain.VaultState, error) {
	if amount == 0 {
		return domain.VaultState{}, domain.ErrInvalidAmount
	}

	now := s.now().UTC()
	var state domain.VaultState
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cfg, err := tx.Config(ctx, assetID)
		if err != nil {
			return err
		}
		v, err := tx.VaultForUpdate(ctx, assetID)
		if err != nil {
			return err
		}

		// Share math uses the pre-mutation totals.
		minted, err := ledger.SharesForDeposit(amount, v.TotalShares, v.TotalAssets)
		if err != nil {
			return err
		}
		newAssets, err := ledger.AddChecked(v.TotalAssets, amount)
		if err != nil {
			return err
		}
		newShares, err := ledger.AddChecked(v.TotalShares, minted)
		if err != nil {
			return err
		}

		if err := tx.Transfer(ctx, custody.UserAccount(assetID, caller), v.CustodyAccount, amount); err != nil {
			return err
		}

		pos, err := tx.Position(ctx, assetID, caller)
		if err != nil {
			if !errors.Is(err, domain.ErrPositionNotFound) {
				return err
			}
			pos = domain.UserPosition{AssetID: assetID, Owner: caller}
		}
		pos.Shares += minted
		pos.DepositedTotal += amount
		pos.UpdatedAt = now

		v.TotalAssets = newAssets
		v.TotalShares = newShares
		// Contributed capital is not performance; raise the mark with it.
		v.HighWaterMark += amount

		if err := tx.SaveVault(ctx, v); err != nil {
			return err
		}
		if err := tx.SavePosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, domain.Event{
			AssetID: assetID, Kind: domain.EventDeposit, Actor: caller,
			Amount: amount, Shares: minted, CreatedAt: now,
		}); err != nil {
			return err
		}
		state, err = s.readState(ctx, tx, cfg, v, caller)
		if err != nil {
			return err
		}
		return s.checkSolvency(ctx, tx, v)
	})
	if err != nil {
		return domain.VaultState{}, err
	}
	return state, nil
}

// Withdraw burns the share cost of amount (rounded up) and pays amount out
// of vault custody to the caller. When the withdrawal burns the vault's
// final shares, residual truncation dust is swept to the withdrawer so an
// empty vault never holds dangling value.
func (s *Service) Withdraw(ctx context.Context, caller, assetID string, amount uint64) (domain.VaultState, error) {
	if amount == 0 {
		return domain.VaultState{}, domain.ErrInvalidAmount
	}

	now := s.now().UTC()
	var state domain.VaultState
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cfg, err := tx.Config(ctx, assetID)
		if err != nil {
			return err
		}
		v, err := tx.VaultForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		pos, err := tx.Position(ctx, assetID, caller)
		if err != nil {
			if errors.Is(err, domain.ErrPositionNotFound) {
				return domain.ErrInsufficientShares
			}
			return err
		}

		if amount > v.TotalAssets {
			return domain.ErrInsufficientLiquidity
		}
		required, err := ledger.SharesForWithdraw(amount, v.TotalShares, v.TotalAssets)
		if err != nil {
			return err
		}
		if required > pos.Shares {
			return domain.ErrInsufficientShares
		}

		payout := amount
		if required == v.TotalShares && payout < v.TotalAssets {
			// Last shares out take the rounding remainder with them.
			payout = v.TotalAssets
		}

		pos.Shares -= required
		pos.UpdatedAt = now
		v.TotalShares -= required
		v.TotalAssets -= payout
		if payout >= v.HighWaterMark {
			v.HighWaterMark = 0
		} else {
			v.HighWaterMark -= payout
		}

		if err := tx.Transfer(ctx, v.CustodyAccount, custody.UserAccount(assetID, caller), payout); err != nil {
			return err
		}

		if err := tx.SaveVault(ctx, v); err != nil {
			return err
		}
		if err := tx.SavePosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, domain.Event{
			AssetID: assetID, Kind: domain.EventWithdraw, Actor: caller,
			Amount: payout, Shares: required, CreatedAt: now,
		}); err != nil {
			return err
		}
		state, err = s.readState(ctx, tx, cfg, v, caller)
		if err != nil {
			return err
		}
		return s.checkSolvency(ctx, tx, v)
	})
	if err != nil {
		return domain.VaultState{}, err
	}
	return state, nil
}

// AccrueFees realizes the management and performance fees by minting shares
// to the admin's position, diluting other holders without touching vault
// liquidity. Admin-only; rejected while the minimum accrual interval has
// not elapsed.
func (s *Service) AccrueFees(ctx context.Context, caller, assetID string) (domain.VaultState, error) {
	now := s.now().UTC()
	var state domain.VaultState
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cfg, err := tx.Config(ctx, assetID)
		if err != nil {
			return err
		}
		if caller != cfg.Admin {
			return domain.ErrUnauthorized
		}
		v, err := tx.VaultForUpdate(ctx, assetID)
		if err != nil {
			return err
		}

		elapsed := now.Sub(v.LastAccrualAt)
		if elapsed < s.accrualInterval {
			return domain.ErrFeeAccrualTooSoon
		}

		mgmt, err := ledger.ManagementFee(v.TotalAssets, cfg.ManagementFeeBps, elapsed)
		if err != nil {
			return err
		}
		perf, err := ledger.PerformanceFee(v.TotalAssets, v.HighWaterMark, cfg.PerformanceFeeBps)
		if err != nil {
			return err
		}
		fee, err := ledger.AddChecked(mgmt, perf)
		if err != nil {
			return err
		}
		if fee >= v.TotalAssets && fee > 0 {
			// A fee can never consume the whole vault; cap below totals so
			// the dilution mint stays finite.
			fee = v.TotalAssets - 1
		}

		var minted uint64
		if fee > 0 {
			minted, err = ledger.FeeShares(fee, v.TotalShares, v.TotalAssets)
			if err != nil {
				return err
			}
		}

		if minted > 0 {
			adminPos, err := tx.Position(ctx, assetID, cfg.Admin)
			if err != nil {
				if !errors.Is(err, domain.ErrPositionNotFound) {
					return err
				}
				adminPos = domain.UserPosition{AssetID: assetID, Owner: cfg.Admin}
			}
			adminPos.Shares += minted
			adminPos.UpdatedAt = now
			if err := tx.SavePosition(ctx, adminPos); err != nil {
				return err
			}
			v.TotalShares += minted
		}

		if v.TotalAssets > v.HighWaterMark {
			v.HighWaterMark = v.TotalAssets
		}
		v.LastAccrualAt = now

		if err := tx.SaveVault(ctx, v); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, domain.Event{
			AssetID: assetID, Kind: domain.EventAccrueFees, Actor: caller,
			Amount: fee, Shares: minted, CreatedAt: now,
		}); err != nil {
			return err
		}
		state, err = s.readState(ctx, tx, cfg, v, caller)
		if err != nil {
			return err
		}
		return s.checkSolvency(ctx, tx, v)
	})
	if err != nil {
		return domain.VaultState{}, err
	}
	slog.Info("fees accrued", "asset", assetID, "total_shares", state.Vault.TotalShares)
	return state, nil
}

// RebalancePools updates the target allocation weights for the asset's
// registered pools. Weights must cover exactly the registered pool names
// and sum to 10000 bps. Vault accounting totals are untouched; capital
// deployment against the new targets happens outside the engine.
func (s *Service) RebalancePools(ctx context.Context, caller, assetID string, weights map[string]uint32) (domain.VaultState, error) {
	now := s.now().UTC()
	var state domain.VaultState
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cfg, err := tx.Config(ctx, assetID)
		if err != nil {
			return err
		}
		if caller != cfg.Admin {
			return domain.ErrUnauthorized
		}
		v, err := tx.VaultForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		pools, err := tx.Pools(ctx, assetID)
		if err != nil {
			return err
		}
		if err := domain.ValidateWeights(pools, weights); err != nil {
			return err
		}
		if err := tx.SavePoolWeights(ctx, assetID, weights); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, domain.Event{
			AssetID: assetID, Kind: domain.EventRebalance, Actor: caller, CreatedAt: now,
		}); err != nil {
			return err
		}
		state, err = s.readState(ctx, tx, cfg, v, caller)
		return err
	})
	if err != nil {
		return domain.VaultState{}, err
	}
	return state, nil
}

// State returns the current aggregate state for an asset.
func (s *Service) State(ctx context.Context, assetID string) (domain.VaultState, error) {
	var state domain.VaultState
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cfg, err := tx.Config(ctx, assetID)
		if err != nil {
			return err
		}
		v, err := tx.Vault(ctx, assetID)
		if err != nil {
			return err
		}
		state, err = s.readState(ctx, tx, cfg, v, "")
		return err
	})
	return state, err
}

// Position returns one user's position in an asset's vault.
func (s *Service) Position(ctx context.Context, assetID, owner string) (domain.UserPosition, error) {
	var pos domain.UserPosition
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Config(ctx, assetID); err != nil {
			return err
		}
		var err error
		pos, err = tx.Position(ctx, assetID, owner)
		return err
	})
	return pos, err
}

// Positions returns all positions for an asset's vault.
func (s *Service) Positions(ctx context.Context, assetID string) ([]domain.UserPosition, error) {
	var positions []domain.UserPosition
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Config(ctx, assetID); err != nil {
			return err
		}
		var err error
		positions, err = tx.Positions(ctx, assetID)
		return err
	})
	return positions, err
}

// Events returns the recent transaction log for an asset, newest first.
func (s *Service) Events(ctx context.Context, assetID string, limit int) ([]domain.Event, error) {
	return s.repo.Events(ctx, assetID, limit)
}

// ManagedAssets lists assets with an initialized vault.
func (s *Service) ManagedAssets(ctx context.Context) ([]string, error) {
	return s.repo.ManagedAssets(ctx)
}

func (s *Service) readState(ctx context.Context, tx Tx, cfg domain.VaultConfig, v domain.Vault, caller string) (domain.VaultState, error) {
	pools, err := tx.Pools(ctx, v.AssetID)
	if err != nil {
		return domain.VaultState{}, err
	}
	state := domain.VaultState{Config: cfg, Vault: v, Pools: pools}
	if caller != "" {
		pos, err := tx.Position(ctx, v.AssetID, caller)
		if err == nil {
			state.Position = &pos
		} else if !errors.Is(err, domain.ErrPositionNotFound) {
			return domain.VaultState{}, err
		}
	}
	return state, nil
}

// checkSolvency asserts the end-of-operation invariants: tracked totals
// mirror the custody balance, shares and assets are zero together, and the
// share sum over positions equals the vault total. A violation aborts the
// transaction.
func (s *Service) checkSolvency(ctx context.Context, tx Tx, v domain.Vault) error {
	bal, err := tx.Balance(ctx, v.CustodyAccount)
	if err != nil {
		return err
	}
	if bal != v.TotalAssets {
		return fmt.Errorf("custody drift on %s: tracked %d, held %d", v.AssetID, v.TotalAssets, bal)
	}
	if (v.TotalShares == 0) != (v.TotalAssets == 0) {
		return fmt.Errorf("dangling value on %s: shares %d, assets %d", v.AssetID, v.TotalShares, v.TotalAssets)
	}
	positions, err := tx.Positions(ctx, v.AssetID)
	if err != nil {
		return err
	}
	var sum uint64
	for _, p := range positions {
		sum += p.Shares
	}
	if sum != v.TotalShares {
		return fmt.Errorf("share conservation broken on %s: positions %d, vault %d", v.AssetID, sum, v.TotalShares)
	}
	return nil
}
