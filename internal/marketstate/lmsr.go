// Package marketstate converts accepted venue prices into the canonical
// market model: outcome probabilities, LMSR share quantities for binary
// events, and bucketed odds history.
package marketstate

import "math"

// Share quantities follow the LMSR relation p = 1/(1+e^{-(qYes-qNo)/b}),
// inverted here as q = b·ln(p/(1-p)). The inversion blows up at the
// boundaries, so prices at or past these bounds map to q = 0.
const (
	qPriceFloor = 0.01
	qPriceCeil  = 0.99
)

// SharesFromPrice returns the LMSR share quantity implied by price p at
// liquidity b: q = b·ln(p/(1-p)). Prices outside (0.01, 0.99) return 0 to
// avoid the ±Inf singularity at the boundary.
func SharesFromPrice(b, p float64) float64 {
	if p <= qPriceFloor || p >= qPriceCeil {
		return 0
	}
	return b * math.Log(p/(1-p))
}

// ImpliedProbability returns the YES probability implied by the share
// quantities at liquidity b: 1/(1+e^{-(qYes-qNo)/b}).
func ImpliedProbability(b, qYes, qNo float64) float64 {
	if b <= 0 {
		return 0.5
	}
	return 1 / (1 + math.Exp(-(qYes-qNo)/b))
}

// Clamp01 clamps a price into [0, 1].
func Clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
