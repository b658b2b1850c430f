// Package execution provides the paper order engine: pricing policy,
// single-working-order lifecycle and post-trade analytics. It never
// touches a real exchange.
package execution

import (
	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Policy holds the pure pricing and reprice/cancel-trigger rules,
// parameterized by aggressiveness mode and side.
type Policy struct {
	cfg types.ExecutionConfig
}

// NewPolicy returns a policy for the given execution config.
func NewPolicy(cfg types.ExecutionConfig) Policy {
	return Policy{cfg: cfg}
}

// TargetPrice is the limit price for a fresh or repriced order.
// PASSIVE_ONLY rests on our own side of the book; LIMIT_OK (and any
// future mode) prices at the crossing side.
func (p Policy) TargetPrice(side types.Side, mode types.Aggressiveness, bid, ask decimal.Decimal) decimal.Decimal {
	if mode == types.AggrPassiveOnly {
		if side == types.SideBuy {
			return bid
		}
		return ask
	}
	if side == types.SideBuy {
		return ask
	}
	return bid
}

// ShouldReprice reports whether the order price no longer matches the
// recomputed target. Exact comparison, no tolerance band.
func (p Policy) ShouldReprice(side types.Side, mode types.Aggressiveness, current, bid, ask decimal.Decimal) bool {
	if !p.cfg.RepriceOnBestChange {
		return false
	}
	return !p.TargetPrice(side, mode, bid, ask).Equal(current)
}

// ShouldCancelOnCross reports whether the market moved adversely
// through the order: the ask dropped below a BUY order's price, or the
// bid rose above a SELL order's price. Such orders are stale and risk
// adverse selection.
func (p Policy) ShouldCancelOnCross(side types.Side, current, bid, ask decimal.Decimal) bool {
	if !p.cfg.CancelOnCross {
		return false
	}
	if side == types.SideBuy {
		return ask.LessThan(current)
	}
	return bid.GreaterThan(current)
}
