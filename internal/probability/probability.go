// Package probability scores price levels by their chance of trading under a log-normal price process.
package probability

import "math"

// Model holds the drift, volatility and horizon of the risk model.
type Model struct {
	Mu    float64
	Sigma float64
	Tau   float64
}

// Bounds is the closed price range outside of which a level never trades.
type Bounds struct {
	Lower float64
	Upper float64
}

// CDF is the log-normal cumulative distribution of the price at the horizon, anchored at bestPrice.
func (m Model) CDF(bestPrice, x float64) float64 {
	mean := math.Log(bestPrice) + (m.Mu-0.5*m.Sigma*m.Sigma)*m.Tau
	stdev := m.Sigma * math.Sqrt(m.Tau)
	return 0.5 * math.Erfc(-(math.Log(x)-mean)/(math.Sqrt2*stdev))
}

// Buy returns the probability that a bid at price trades before the horizon.
func (m Model) Buy(bestBid, price float64, b Bounds) float64 {
	if price < b.Lower || price > b.Upper {
		return 0
	}
	lo, hi := m.CDF(bestBid, b.Lower), m.CDF(bestBid, b.Upper)
	return clamp01((m.CDF(bestBid, price) - lo) / (hi - lo))
}

// Sell returns the probability that an offer at price trades before the horizon.
func (m Model) Sell(bestAsk, price float64, b Bounds) float64 {
	if price < b.Lower || price > b.Upper {
		return 0
	}
	lo, hi := m.CDF(bestAsk, b.Lower), m.CDF(bestAsk, b.Upper)
	return clamp01((hi - m.CDF(bestAsk, price)) / (hi - lo))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
