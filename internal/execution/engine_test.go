package execution_test

import (
	"math"
	"sync"
	"testing"

	"github.com/quantdesk/sentinel-backend/internal/execution"
	"github.com/quantdesk/sentinel-backend/pkg/types"
	"go.uber.org/zap"
)

type captureSink struct {
	actions []types.ExecAction
	orders  []types.OrderRecord
	fills   []types.Fill
}

func (s *captureSink) RecordAction(a types.ExecAction) { s.actions = append(s.actions, a) }
func (s *captureSink) RecordOrder(o types.OrderRecord) { s.orders = append(s.orders, o) }
func (s *captureSink) RecordFill(f types.Fill)         { s.fills = append(s.fills, f) }

func (s *captureSink) actionsOf(kind types.OrderAction) []types.ExecAction {
	var out []types.ExecAction
	for _, a := range s.actions {
		if a.Action == kind {
			out = append(out, a)
		}
	}
	return out
}

func newEngine(t *testing.T, cfg types.ExecutionConfig) (*execution.OrderEngine, *execution.Metrics, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	metrics := execution.NewMetrics(cfg.MarkoutHorizonMs)
	return execution.NewOrderEngine(zap.NewNop(), cfg, metrics, sink), metrics, sink
}

func allow(mode types.Aggressiveness, budget float64) types.Decision {
	return types.Decision{Allowed: true, MaxAggressiveness: mode, RiskBudget: budget}
}

func TestNoBookIsNoOp(t *testing.T) {
	e, _, sink := newEngine(t, policyConfig())

	e.OnDecision(1000, allow(types.AggrLimitOK, 1.0))

	if _, ok := e.Working(); ok {
		t.Fatal("must not place without a known book top")
	}
	if len(sink.actions) != 0 {
		t.Fatalf("expected no actions, got %d", len(sink.actions))
	}
}

func TestLimitOKBuyFillsAfterMinLatency(t *testing.T) {
	e, metrics, sink := newEngine(t, policyConfig())

	e.OnBookTop(1000, d("100"), d("101"))
	e.OnDecision(1000, allow(types.AggrLimitOK, 1.0))

	wo, ok := e.Working()
	if !ok {
		t.Fatal("expected a working order")
	}
	if wo.Side != types.SideBuy || !wo.Price.Equal(d("101")) {
		t.Fatalf("expected BUY at ask 101, got %s at %s", wo.Side, wo.Price)
	}
	if !wo.Quantity.Equal(d("0.001")) {
		t.Fatalf("budget 1.0 must keep base quantity, got %s", wo.Quantity)
	}

	// Too young to fill even though the market crosses.
	e.OnBookTop(1100, d("100"), d("101"))
	if _, ok := e.Working(); !ok {
		t.Fatal("order must survive a tick before the minimum fill latency")
	}

	e.OnBookTop(1200, d("100"), d("101"))
	if _, ok := e.Working(); ok {
		t.Fatal("order must be cleared after the fill")
	}

	fills := sink.actionsOf(types.ActionFill)
	if len(fills) != 1 {
		t.Fatalf("expected exactly one FILL action, got %d", len(fills))
	}
	if len(sink.fills) != 1 {
		t.Fatalf("expected one fill record, got %d", len(sink.fills))
	}
	f := sink.fills[0]
	if !f.FillPrice.Equal(d("101")) || f.WaitMs != 200 {
		t.Fatalf("unexpected fill %+v", f)
	}
	// Paying ask against mid 100.5: (101-100.5)/100.5 in bps.
	wantSlip := 0.5 / 100.5 * 10_000
	if math.Abs(f.SlippageBps-wantSlip) > 1e-9 {
		t.Fatalf("expected slippage %.4f bps, got %.4f", wantSlip, f.SlippageBps)
	}

	if got := metrics.Snapshot(); got.Filled != 1 || got.Placed != 1 {
		t.Fatalf("metrics must reflect the fill, got %+v", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	e, _, sink := newEngine(t, policyConfig())

	e.OnBookTop(1000, d("100"), d("101"))
	e.OnDecision(1000, allow(types.AggrPassiveOnly, 0.5))

	e.OnBookTop(11_000, d("100"), d("101"))

	if _, ok := e.Working(); ok {
		t.Fatal("order must expire at its time in force")
	}
	exps := sink.actionsOf(types.ActionExpire)
	if len(exps) != 1 || exps[0].Reason != "ttl_expired" {
		t.Fatalf("expected one ttl_expired EXPIRE, got %+v", exps)
	}
}

func TestRepriceCapForcesCancel(t *testing.T) {
	e, _, sink := newEngine(t, policyConfig())

	// Passive BUY rests at the bid; the ask stays far away so the
	// order can neither fill nor cross-cancel.
	e.OnBookTop(1000, d("99"), d("101"))
	e.OnDecision(1000, allow(types.AggrPassiveOnly, 0.5))

	bids := []string{"98.9", "98.8", "98.7", "98.6", "98.5", "98.4"}
	for i, b := range bids {
		e.OnBookTop(int64(1010+i*10), d(b), d("101"))
	}

	reps := sink.actionsOf(types.ActionReprice)
	if len(reps) != 5 {
		t.Fatalf("expected exactly five REPRICE actions, got %d", len(reps))
	}
	if !reps[4].NewPrice.Equal(d("98.5")) {
		t.Fatalf("fifth reprice must land at 98.5, got %s", reps[4].NewPrice)
	}

	cancels := sink.actionsOf(types.ActionCancel)
	if len(cancels) != 1 || cancels[0].Reason != "too_many_reprices" {
		t.Fatalf("sixth trigger must cancel with too_many_reprices, got %+v", cancels)
	}
	if _, ok := e.Working(); ok {
		t.Fatal("order must be gone after the forced cancel")
	}
}

func TestDisallowCancelsWorkingOrder(t *testing.T) {
	e, _, sink := newEngine(t, policyConfig())

	e.OnBookTop(1000, d("100"), d("101"))
	e.OnDecision(1000, allow(types.AggrPassiveOnly, 0.5))

	e.OnDecision(2000, types.Decision{Allowed: false, MaxAggressiveness: types.AggrNoTrade})

	cancels := sink.actionsOf(types.ActionCancel)
	if len(cancels) != 1 || cancels[0].Reason != "decision_disallow" {
		t.Fatalf("expected one decision_disallow CANCEL, got %+v", cancels)
	}
	if _, ok := e.Working(); ok {
		t.Fatal("order must be cancelled on a disallowing decision")
	}
}

func TestAggressivenessChangeReplacesOrder(t *testing.T) {
	e, _, sink := newEngine(t, policyConfig())

	e.OnBookTop(1000, d("100"), d("101"))
	e.OnDecision(1000, allow(types.AggrPassiveOnly, 0.5))
	e.OnDecision(2000, allow(types.AggrLimitOK, 0.5))

	cancels := sink.actionsOf(types.ActionCancel)
	if len(cancels) != 1 || cancels[0].Reason != "aggr_changed" {
		t.Fatalf("expected aggr_changed CANCEL, got %+v", cancels)
	}
	wo, ok := e.Working()
	if !ok || wo.Mode != types.AggrLimitOK {
		t.Fatalf("expected a fresh LIMIT_OK order, got %+v ok=%v", wo, ok)
	}
	if wo.Side != types.SideSell {
		t.Fatalf("replacement must take the alternated side, got %s", wo.Side)
	}
}

func TestBudgetChangeThreshold(t *testing.T) {
	e, _, sink := newEngine(t, policyConfig())

	e.OnBookTop(1000, d("100"), d("101"))
	e.OnDecision(1000, allow(types.AggrPassiveOnly, 1.0))

	// 0.2 below threshold: order survives with its original budget.
	e.OnDecision(2000, allow(types.AggrPassiveOnly, 0.8))
	if len(sink.actionsOf(types.ActionCancel)) != 0 {
		t.Fatal("budget drift below 0.25 must not cancel")
	}
	wo, _ := e.Working()
	if wo.Budget != 1.0 {
		t.Fatalf("surviving order keeps its budget, got %v", wo.Budget)
	}

	// 0.55 away from the original 1.0: cancel and replace.
	e.OnDecision(3000, allow(types.AggrPassiveOnly, 0.45))
	cancels := sink.actionsOf(types.ActionCancel)
	if len(cancels) != 1 || cancels[0].Reason != "budget_changed" {
		t.Fatalf("expected budget_changed CANCEL, got %+v", cancels)
	}
	wo, ok := e.Working()
	if !ok || wo.Budget != 0.45 {
		t.Fatalf("expected replacement with budget 0.45, got %+v ok=%v", wo, ok)
	}
}

func TestBudgetScalesQuantityWithFloor(t *testing.T) {
	e, _, _ := newEngine(t, policyConfig())

	e.OnBookTop(1000, d("100"), d("101"))
	e.OnDecision(1000, allow(types.AggrPassiveOnly, 0.05))

	wo, ok := e.Working()
	if !ok {
		t.Fatal("expected a working order")
	}
	// Budget clamps to 0.2 before scaling the base quantity.
	if !wo.Quantity.Equal(d("0.0002")) {
		t.Fatalf("expected floor-scaled quantity 0.0002, got %s", wo.Quantity)
	}
}

func TestSidesAlternate(t *testing.T) {
	e, _, _ := newEngine(t, policyConfig())

	e.OnBookTop(1000, d("100"), d("101"))

	var sides []types.Side
	for i := 0; i < 4; i++ {
		now := int64(1000 + i*1000)
		e.OnDecision(now, allow(types.AggrPassiveOnly, 0.5))
		wo, ok := e.Working()
		if !ok {
			t.Fatalf("tick %d: expected a working order", i)
		}
		sides = append(sides, wo.Side)
		e.OnDecision(now, types.Decision{Allowed: false, MaxAggressiveness: types.AggrNoTrade})
	}

	want := []types.Side{types.SideBuy, types.SideSell, types.SideBuy, types.SideSell}
	for i := range want {
		if sides[i] != want[i] {
			t.Fatalf("placement %d: expected %s, got %s", i, want[i], sides[i])
		}
	}
}

// TestConcurrentTicksAndDecisions drives the book-top path and the
// decision path from separate goroutines, as the feed consumer and the
// evaluator do in production. Run with -race; afterwards the audit
// trail must still balance: every placement ends in exactly one
// terminal action or survives as the working order.
func TestConcurrentTicksAndDecisions(t *testing.T) {
	e, _, sink := newEngine(t, policyConfig())

	const iters = 2000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < iters; i++ {
			now := int64(1000 + i)
			if i%2 == 0 {
				e.OnBookTop(now, d("100"), d("101"))
			} else {
				e.OnBookTop(now, d("99.5"), d("100.5"))
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iters; i++ {
			now := int64(1000 + i)
			if i%3 == 0 {
				e.OnDecision(now, types.Decision{Allowed: false, MaxAggressiveness: types.AggrNoTrade})
			} else {
				e.OnDecision(now, allow(types.AggrPassiveOnly, 0.5))
			}
			e.Working()
		}
	}()
	wg.Wait()

	var placed, terminal int
	for _, a := range sink.actions {
		switch a.Action {
		case types.ActionPlace:
			placed++
		case types.ActionCancel, types.ActionFill, types.ActionExpire:
			terminal++
		}
	}
	working := 0
	if _, ok := e.Working(); ok {
		working = 1
	}
	if placed != terminal+working {
		t.Fatalf("audit trail out of balance: %d placed, %d terminal, %d working", placed, terminal, working)
	}
	if len(sink.orders) != placed {
		t.Fatalf("expected %d order records for %d placements", len(sink.orders), placed)
	}
}

func TestStaleCrossCancelsBuy(t *testing.T) {
	e, _, sink := newEngine(t, policyConfig())

	e.OnBookTop(1000, d("100"), d("101"))
	e.OnDecision(1000, allow(types.AggrLimitOK, 1.0))

	// Ask collapses below the resting BUY price before the order is
	// old enough to fill.
	e.OnBookTop(1050, d("99"), d("100.5"))

	cancels := sink.actionsOf(types.ActionCancel)
	if len(cancels) != 1 || cancels[0].Reason != "stale_cross" {
		t.Fatalf("expected stale_cross CANCEL, got %+v", cancels)
	}
}
