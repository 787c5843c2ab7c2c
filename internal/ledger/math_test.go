package ledger

import (
	"errors"
	"math"
	"testing"
)

func TestSharesForDeposit(t *testing.T) {
	tests := []struct {
		name        string
		amount      uint64
		totalShares uint64
		totalAssets uint64
		want        uint64
		wantErr     bool
	}{
		{"bootstrap 1:1", 10, 0, 0, 10, false},
		{"bootstrap large", 1_000_000, 0, 0, 1_000_000, false},
		{"ratio unchanged", 10, 10, 10, 10, false},
		{"share price 2", 10, 50, 100, 5, false},
		{"share price 0.5", 10, 100, 50, 20, false},
		{"floors down", 3, 10, 30, 1, false},
		{"zero amount", 0, 10, 10, 0, false},
		{"huge values widen", math.MaxUint64 / 2, 2, math.MaxUint64, 0, false},
		{"overflow", math.MaxUint64, math.MaxUint64, 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SharesForDeposit(tt.amount, tt.totalShares, tt.totalAssets)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SharesForDeposit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrOverflow) {
					t.Fatalf("SharesForDeposit() error = %v, want ErrOverflow", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("SharesForDeposit(%d, %d, %d) = %d, want %d",
					tt.amount, tt.totalShares, tt.totalAssets, got, tt.want)
			}
		})
	}
}

func TestSharesForWithdrawRoundsUp(t *testing.T) {
	tests := []struct {
		name        string
		amount      uint64
		totalShares uint64
		totalAssets uint64
		want        uint64
	}{
		{"exact", 10, 20, 20, 10},
		{"rounds up", 3, 10, 30, 1},    // 3*10/30 = 1 exact
		{"rounds up frac", 5, 10, 30, 2}, // 5*10/30 = 1.67 -> 2
		{"share price below one", 7, 100, 50, 14},
		{"one unit costs a share", 1, 10, 30, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SharesForWithdraw(tt.amount, tt.totalShares, tt.totalAssets)
			if err != nil {
				t.Fatalf("SharesForWithdraw() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SharesForWithdraw(%d, %d, %d) = %d, want %d",
					tt.amount, tt.totalShares, tt.totalAssets, got, tt.want)
			}
		})
	}
}

func TestWithdrawNeverCheaperThanDeposit(t *testing.T) {
	// For any state, the share cost of withdrawing an amount must be at
	// least the shares a deposit of that amount would mint.
	cases := []struct{ amount, ts, ta uint64 }{
		{1, 3, 7}, {5, 3, 7}, {10, 10, 10}, {99, 7, 13}, {1000, 333, 997},
	}
	for _, c := range cases {
		mint, err := SharesForDeposit(c.amount, c.ts, c.ta)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		burn, err := SharesForWithdraw(c.amount, c.ts, c.ta)
		if err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if burn < mint {
			t.Errorf("amount=%d ts=%d ta=%d: burn %d < mint %d", c.amount, c.ts, c.ta, burn, mint)
		}
	}
}

func TestAssetsForShares(t *testing.T) {
	tests := []struct {
		name        string
		shares      uint64
		totalShares uint64
		totalAssets uint64
		want        uint64
	}{
		{"empty vault", 5, 0, 0, 0},
		{"one to one", 10, 20, 20, 10},
		{"floors down", 1, 3, 10, 3},
		{"full redemption", 20, 20, 37, 37},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssetsForShares(tt.shares, tt.totalShares, tt.totalAssets)
			if err != nil {
				t.Fatalf("AssetsForShares() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AssetsForShares(%d, %d, %d) = %d, want %d",
					tt.shares, tt.totalShares, tt.totalAssets, got, tt.want)
			}
		})
	}
}

func TestRoundTripNeverCreatesValue(t *testing.T) {
	// Deposit amount, then redeem the minted shares: payout <= amount, and
	// the shortfall is bounded by one rounding unit of share value.
	cases := []struct{ amount, ts, ta uint64 }{
		{10, 0, 0}, {10, 10, 10}, {7, 13, 29}, {1000, 333, 998}, {1, 5, 9},
	}
	for _, c := range cases {
		minted, err := SharesForDeposit(c.amount, c.ts, c.ta)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		tsAfter, taAfter := c.ts+minted, c.ta+c.amount
		payout, err := AssetsForShares(minted, tsAfter, taAfter)
		if err != nil {
			t.Fatalf("redeem: %v", err)
		}
		if payout > c.amount {
			t.Errorf("amount=%d ts=%d ta=%d: round trip pays %d > %d", c.amount, c.ts, c.ta, payout, c.amount)
		}
	}
}

func TestAddChecked(t *testing.T) {
	if got, err := AddChecked(1, 2); err != nil || got != 3 {
		t.Errorf("AddChecked(1, 2) = %d, %v", got, err)
	}
	if _, err := AddChecked(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("AddChecked(max, 1) error = %v, want ErrOverflow", err)
	}
	if got, err := AddChecked(math.MaxUint64, 0); err != nil || got != math.MaxUint64 {
		t.Errorf("AddChecked(max, 0) = %d, %v", got, err)
	}
}

func TestSharePrice(t *testing.T) {
	if p := SharePrice(0, 0); p.String() != "1" {
		t.Errorf("SharePrice(0, 0) = %s, want 1", p)
	}
	if p := SharePrice(10, 20); p.String() != "2" {
		t.Errorf("SharePrice(10, 20) = %s, want 2", p)
	}
	if p := SharePrice(20, 10); p.String() != "0.5" {
		t.Errorf("SharePrice(20, 10) = %s, want 0.5", p)
	}
}
