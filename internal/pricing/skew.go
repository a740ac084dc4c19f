// Package pricing derives discrete quote ladders from a two-pool pricing curve skewed by inventory.
package pricing

import "math"

// MinScaling floors the side factors so the curve exponents stay finite at full exposure.
const MinScaling = 0.2

// Skew holds the curve elasticity applied on each side of the book.
// Values below 1 widen the bid ladder and tighten the ask ladder; values above 1 do the opposite.
type Skew struct {
	Bid float64
	Ask float64
}

// ScalingFactor maps an exposure ratio to 1-|ratio|, clipped to [0,1].
func ScalingFactor(openVolumeRatio float64) float64 {
	s := 1 - math.Abs(openVolumeRatio)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// SideFactors turns an exposure ratio into per-side elasticities.
// A long book (ratio > 0) gets factors below 1, pulling asks toward mid and pushing bids away;
// a short book gets the reciprocal. Zero exposure yields {1, 1}.
func SideFactors(openVolumeRatio float64) Skew {
	s := math.Max(ScalingFactor(openVolumeRatio), MinScaling)
	if openVolumeRatio < 0 {
		s = 1 / s
	}
	return Skew{Bid: s, Ask: s}
}

// OpenVolumeRatio expresses exposure as a fraction of the base-unit pool it is measured against, clipped to [-1,1].
func OpenVolumeRatio(exposure, pool float64) float64 {
	if pool <= 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, exposure/pool))
}
