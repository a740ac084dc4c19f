package pricing

import "math"

const (
	sizeGrowth = 1.1
	maxSteps   = 10000
)

// Step is one price level of a ladder, in decimal price and base-unit size.
type Step struct {
	Price float64
	Size  float64
}

// Params describes the virtual pools a ladder is walked over.
// BidPool is in collateral units, AskPool in base units; BidPool/AskPool is the starting price.
type Params struct {
	Scaling     float64
	BidPool     float64
	AskPool     float64
	QuoteRange  float64
	OrderCount  int
	InitialSize float64
}

func (p Params) initialSize() float64 {
	if p.InitialSize > 0 {
		return p.InitialSize
	}
	return 1
}

// WalkBids trades the curve downward in geometrically growing sizes until the price leaves
// the quote range, returning one step per hypothetical trade in descending price order.
func WalkBids(p Params) []Step {
	bidPool, askPool := p.BidPool, p.AskPool
	price := bidPool / askPool
	floor := price * (1 - p.QuoteRange)
	askSize := p.initialSize()

	var steps []Step
	for len(steps) < maxSteps && price >= floor {
		bidSize := bidPool * (math.Pow(1+askSize/askPool, 1/p.Scaling) - 1)
		if bidSize >= bidPool {
			break
		}
		steps = append(steps, Step{Price: price, Size: askSize})
		bidPool -= bidSize
		askPool += askSize
		price = bidPool / askPool
		askSize *= sizeGrowth
	}
	return steps
}

// WalkAsks trades the curve upward until the price leaves the quote range,
// returning one step per hypothetical trade in ascending price order.
func WalkAsks(p Params) []Step {
	bidPool, askPool := p.BidPool, p.AskPool
	price := bidPool / askPool
	ceiling := price * (1 + p.QuoteRange)
	bidSize := p.initialSize() * price

	var steps []Step
	for len(steps) < maxSteps && price <= ceiling {
		askSize := askPool * (math.Pow(1+bidSize/bidPool, p.Scaling) - 1)
		if askSize >= askPool {
			break
		}
		steps = append(steps, Step{Price: price, Size: askSize})
		bidPool += bidSize
		askPool -= askSize
		price = bidPool / askPool
		bidSize *= sizeGrowth
	}
	return steps
}

// Aggregate folds an ordered ladder into orderCount contiguous partitions whose lengths differ by at most
// one, the longer ones first. Each partition becomes one step at its outermost price carrying the
// partition's total size. Ladders no longer than orderCount are returned unchanged.
func Aggregate(steps []Step, orderCount int) []Step {
	if orderCount <= 0 {
		return nil
	}
	if len(steps) <= orderCount {
		out := make([]Step, len(steps))
		copy(out, steps)
		return out
	}
	base, extra := len(steps)/orderCount, len(steps)%orderCount
	out := make([]Step, 0, orderCount)
	start := 0
	for i := 0; i < orderCount; i++ {
		end := start + base
		if i < extra {
			end++
		}
		var size float64
		for _, s := range steps[start:end] {
			size += s.Size
		}
		out = append(out, Step{Price: steps[end-1].Price, Size: size})
		start = end
	}
	return out
}

// BidLadder walks the bid side and aggregates it to p.OrderCount levels.
func BidLadder(p Params) []Step { return Aggregate(WalkBids(p), p.OrderCount) }

// AskLadder walks the ask side and aggregates it to p.OrderCount levels.
func AskLadder(p Params) []Step { return Aggregate(WalkAsks(p), p.OrderCount) }
