package strategy

import (
	"fmt"
	"strings"
)

const (
	// KindLiquidity sizes and submits the liquidity commitment.
	KindLiquidity = "liquidity"
	// KindQuote maintains resting quotes.
	KindQuote = "quote"
)

// Kinds lists every planner type Build understands.
var Kinds = []string{KindLiquidity, KindQuote}

// Build returns the planner implementation matching kind.
func Build(kind string, deps Deps) (Planner, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindLiquidity, "lp", "commitment":
		return NewLiquidityPlanner(deps), nil
	case KindQuote, "quotes":
		return NewQuotePlanner(deps), nil
	default:
		return nil, fmt.Errorf("unknown planner kind %q", kind)
	}
}
