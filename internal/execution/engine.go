package execution

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActionSink receives the append-only execution audit trail.
type ActionSink interface {
	RecordAction(a types.ExecAction)
	RecordOrder(o types.OrderRecord)
	RecordFill(f types.Fill)
}

// OrderEngine is the single-working-order lifecycle state machine.
// Book-top ticks drive expiry, fills, stale-cross cancels and bounded
// repricing; periodic decisions drive cancels and placement. The two
// paths run on different goroutines (feed and evaluator), so every
// entry point serializes on the engine mutex.
type OrderEngine struct {
	logger  *zap.Logger
	cfg     types.ExecutionConfig
	policy  Policy
	metrics *Metrics
	sink    ActionSink

	mu           sync.Mutex
	order        *WorkingOrder
	repriceCount int
	nextSide     types.Side

	bid, ask decimal.Decimal
	lastMid  decimal.Decimal
	haveBook bool
}

// NewOrderEngine creates an engine. metrics and sink may be nil.
func NewOrderEngine(logger *zap.Logger, cfg types.ExecutionConfig, metrics *Metrics, sink ActionSink) *OrderEngine {
	return &OrderEngine{
		logger:   logger.Named("order-engine"),
		cfg:      cfg,
		policy:   NewPolicy(cfg),
		metrics:  metrics,
		sink:     sink,
		nextSide: types.SideBuy,
	}
}

// Working returns a copy of the current working order, if any.
func (e *OrderEngine) Working() (WorkingOrder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.order == nil {
		return WorkingOrder{}, false
	}
	return *e.order, true
}

// OnBookTop consumes a best-bid/ask tick. Order of checks: TTL expiry,
// fill, adverse-cross cancel, reprice.
func (e *OrderEngine) OnBookTop(now int64, bid, ask decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bid, e.ask = bid, ask
	e.lastMid = bid.Add(ask).Div(decimal.NewFromInt(2))
	e.haveBook = true

	if e.metrics != nil {
		e.metrics.OnMidUpdate(now, e.lastMid)
	}

	if e.order == nil {
		return
	}

	if e.order.Age(now) >= e.order.TimeInForceMs {
		e.expire(now, "ttl_expired")
		return
	}

	if e.fillable(now, bid, ask) {
		e.fill(now, bid, ask, "bbo_cross")
		return
	}

	if e.policy.ShouldCancelOnCross(e.order.Side, e.order.Price, bid, ask) {
		e.cancel(now, "stale_cross")
		return
	}

	if e.policy.ShouldReprice(e.order.Side, e.order.Mode, e.order.Price, bid, ask) {
		e.reprice(now, e.policy.TargetPrice(e.order.Side, e.order.Mode, bid, ask), "best_price_changed")
	}
}

// OnDecision consumes a periodic trading decision. A disallowing
// decision cancels any live order; an allowing one may cancel a
// mismatched order and places a fresh order when none remains.
func (e *OrderEngine) OnDecision(now int64, dec types.Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !dec.Allowed || dec.MaxAggressiveness == types.AggrNoTrade || dec.RiskBudget <= 0 {
		if e.order != nil {
			e.cancel(now, "decision_disallow")
		}
		return
	}

	// Pricing an order without a known book top is a safe no-op.
	if !e.haveBook {
		return
	}

	if e.order != nil {
		if e.order.Mode != dec.MaxAggressiveness {
			e.cancel(now, "aggr_changed")
		} else if math.Abs(e.order.Budget-dec.RiskBudget) >= 0.25 {
			e.cancel(now, "budget_changed")
		}
	}

	if e.order == nil {
		// Deterministic side alternation; a sampling convention, not
		// a directional signal.
		side := e.nextSide
		e.nextSide = side.Opposite()

		scale := decimal.NewFromFloat(clamp(dec.RiskBudget, 0.2, 1.0))
		qty := e.cfg.BaseQuantity.Mul(scale)
		px := e.policy.TargetPrice(side, dec.MaxAggressiveness, e.bid, e.ask)
		e.place(now, side, px, qty, dec.MaxAggressiveness, dec.RiskBudget)
	}
}

func (e *OrderEngine) place(now int64, side types.Side, px, qty decimal.Decimal, mode types.Aggressiveness, budget float64) {
	e.order = &WorkingOrder{
		ID:            uuid.NewString(),
		PlacedAt:      now,
		Side:          side,
		Price:         px,
		Quantity:      qty,
		TimeInForceMs: e.cfg.TimeInForceMs,
		Mode:          mode,
		Budget:        budget,
		Status:        types.OrderStatusLive,
	}
	e.repriceCount = 0

	e.audit(now, types.ActionPlace, e.order.ID, side, nil, &px, qty, "new_order", nil)
	if e.sink != nil {
		e.sink.RecordOrder(types.OrderRecord{
			ID:            e.order.ID,
			Time:          now,
			Side:          side,
			Price:         px,
			Quantity:      qty,
			TimeInForceMs: e.order.TimeInForceMs,
			Mode:          mode,
			Budget:        budget,
		})
	}
	if e.metrics != nil {
		e.metrics.OnPlace()
	}
	e.logger.Debug("placed order",
		zap.String("orderId", e.order.ID),
		zap.String("side", string(side)),
		zap.String("price", px.String()),
		zap.String("qty", qty.String()),
		zap.String("mode", string(mode)),
	)
}

func (e *OrderEngine) cancel(now int64, reason string) {
	if e.order == nil {
		return
	}
	o := e.order
	o.Status = types.OrderStatusCanceled
	e.audit(now, types.ActionCancel, o.ID, o.Side, &o.Price, nil, o.Quantity, reason, nil)
	e.order = nil
	if e.metrics != nil {
		e.metrics.OnCancel()
	}
}

func (e *OrderEngine) expire(now int64, reason string) {
	if e.order == nil {
		return
	}
	o := e.order
	o.Status = types.OrderStatusExpired
	e.audit(now, types.ActionExpire, o.ID, o.Side, &o.Price, nil, o.Quantity, reason, nil)
	e.order = nil
}

func (e *OrderEngine) reprice(now int64, newPx decimal.Decimal, reason string) {
	if e.order == nil {
		return
	}
	e.repriceCount++
	if e.repriceCount > e.cfg.MaxRepricesPerOrder {
		// Convert runaway chasing into a forced cancel.
		e.cancel(now, "too_many_reprices")
		return
	}
	o := e.order
	old := o.Price
	o.Price = newPx
	e.audit(now, types.ActionReprice, o.ID, o.Side, &old, &newPx, o.Quantity, reason, nil)
}

func (e *OrderEngine) fill(now int64, bid, ask decimal.Decimal, reason string) {
	o := e.order
	fillPx := ask
	if o.Side == types.SideSell {
		fillPx = bid
	}
	mid := e.lastMid

	// Signed slippage vs mid in bps: positive means paying through mid.
	var slip float64
	if mid.IsPositive() {
		diff := fillPx.Sub(mid)
		if o.Side == types.SideSell {
			diff = mid.Sub(fillPx)
		}
		slip = diff.Div(mid).InexactFloat64() * 10_000
	}

	wait := now - o.PlacedAt

	e.audit(now, types.ActionFill, o.ID, o.Side, &o.Price, &fillPx, o.Quantity, reason, map[string]any{
		"waitMs":      wait,
		"slippageBps": slip,
	})
	if e.sink != nil {
		e.sink.RecordFill(types.Fill{
			OrderID:     o.ID,
			OrderTime:   o.PlacedAt,
			FillTime:    now,
			Side:        o.Side,
			OrderPrice:  o.Price,
			FillPrice:   fillPx,
			Quantity:    o.Quantity,
			WaitMs:      wait,
			SlippageBps: slip,
		})
	}

	o.Status = types.OrderStatusFilled
	e.order = nil

	if e.metrics != nil {
		e.metrics.OnFill(now, fillPx, mid, wait)
	}
}

// fillable applies the paper fill model: a minimum matching latency
// must have elapsed and the market must cross the order price. The
// crossing test is currently identical for PASSIVE_ONLY and LIMIT_OK,
// even though passive orders are meant to model deeper maker-style
// queue friction.
func (e *OrderEngine) fillable(now int64, bid, ask decimal.Decimal) bool {
	o := e.order
	if o.Age(now) < e.cfg.MinFillLatencyMs {
		return false
	}
	if o.Side == types.SideBuy {
		return ask.LessThanOrEqual(o.Price)
	}
	return bid.GreaterThanOrEqual(o.Price)
}

func (e *OrderEngine) audit(now int64, action types.OrderAction, id string, side types.Side,
	oldPx, newPx *decimal.Decimal, qty decimal.Decimal, reason string, extra map[string]any) {
	if e.sink == nil {
		return
	}
	e.sink.RecordAction(types.ExecAction{
		Time:     now,
		Action:   action,
		OrderID:  id,
		Side:     side,
		OldPrice: oldPx,
		NewPrice: newPx,
		Quantity: qty,
		Reason:   reason,
		Extra:    extra,
	})
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
