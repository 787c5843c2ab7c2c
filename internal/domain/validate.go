package domain

import (
	"fmt"

	"github.com/samber/lo"
)

// ValidateFeeRate checks that a basis-point rate is within [0, 10000].
func ValidateFeeRate(bps uint32) error {
	if bps > MaxBps {
		return fmt.Errorf("%w: %d", ErrInvalidFeeRate, bps)
	}
	return nil
}

// ValidatePoolSet checks that a pool name list is non-empty, bounded, and
// free of duplicates and blank names.
func ValidatePoolSet(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPoolSet)
	}
	if len(names) > MaxPools {
		return fmt.Errorf("%w: %d pools exceeds limit of %d", ErrInvalidPoolSet, len(names), MaxPools)
	}
	if lo.SomeBy(names, func(n string) bool { return n == "" }) {
		return fmt.Errorf("%w: blank pool name", ErrInvalidPoolSet)
	}
	if len(lo.Uniq(names)) != len(names) {
		return fmt.Errorf("%w: duplicate pool name", ErrInvalidPoolSet)
	}
	return nil
}

// ValidateWeights checks that weights cover exactly the registered pools and
// sum to 10000 bps.
func ValidateWeights(pools []Pool, weights map[string]uint32) error {
	if len(weights) != len(pools) {
		return fmt.Errorf("%w: got %d weights for %d pools", ErrInvalidWeights, len(weights), len(pools))
	}

	var sum uint64
	for _, p := range pools {
		w, ok := weights[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing weight for pool %q", ErrInvalidWeights, p.Name)
		}
		sum += uint64(w)
	}
	// len check above guarantees no unknown names remain once every
	// registered pool matched.
	if sum != MaxBps {
		return fmt.Errorf("%w: weights sum to %d, want %d", ErrInvalidWeights, sum, MaxBps)
	}
	return nil
}
