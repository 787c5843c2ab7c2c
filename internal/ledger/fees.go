package ledger

import (
	"math/bits"
	"time"
)

const (
	bpsDenominator = 10000
	secondsPerYear = 365 * 24 * 60 * 60
)

// ManagementFee computes the pro-rated management fee in asset units:
// totalAssets * bps/10000 * elapsed/year, floored. Negative or zero elapsed
// yields zero.
func ManagementFee(totalAssets uint64, bps uint32, elapsed time.Duration) (uint64, error) {
	secs := int64(elapsed / time.Second)
	if secs <= 0 || bps == 0 || totalAssets == 0 {
		return 0, nil
	}

	// totalAssets * bps fits 128 bits; divide by the year denominator in
	// two steps to keep the second multiplier small.
	annual, err := mulDiv(totalAssets, uint64(bps), bpsDenominator)
	if err != nil {
		return 0, err
	}
	return mulDiv(annual, uint64(secs), secondsPerYear)
}

// PerformanceFee computes bps/10000 of the profit above the high-water
// mark, floored. Zero when total value has not exceeded the mark.
func PerformanceFee(totalAssets, highWaterMark uint64, bps uint32) (uint64, error) {
	if bps == 0 || totalAssets <= highWaterMark {
		return 0, nil
	}
	return mulDiv(totalAssets-highWaterMark, uint64(bps), bpsDenominator)
}

// FeeShares computes the shares to mint so that the minted stake is worth
// feeAssets at the post-mint share price:
//
//	minted = feeAssets * totalShares / (totalAssets - feeAssets)
//
// Minting dilutes existing holders by exactly the fee; total assets are
// untouched, preserving liquidity. feeAssets must be < totalAssets.
func FeeShares(feeAssets, totalShares, totalAssets uint64) (uint64, error) {
	if feeAssets == 0 {
		return 0, nil
	}
	if feeAssets >= totalAssets {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(feeAssets, totalShares)
	den := totalAssets - feeAssets
	if hi >= den {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, nil
}
