// Package orchestrator wires the market-safety cascade together: feed
// events update MarketState and drive the order engine's book-top
// path, while a fixed-cadence evaluator runs regime classification,
// the permission state machine, health scoring and the decision
// combiner, then feeds the result to the order engine.
//
// All in-process state (MarketState, permission, working order)
// belongs to the orchestrator and survives feed reconnects.
package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantdesk/sentinel-backend/internal/decision"
	"github.com/quantdesk/sentinel-backend/internal/execution"
	"github.com/quantdesk/sentinel-backend/internal/guard"
	"github.com/quantdesk/sentinel-backend/internal/health"
	"github.com/quantdesk/sentinel-backend/internal/marketstate"
	"github.com/quantdesk/sentinel-backend/internal/permission"
	"github.com/quantdesk/sentinel-backend/internal/regime"
	"github.com/quantdesk/sentinel-backend/internal/telemetry"
	"github.com/quantdesk/sentinel-backend/pkg/types"
	"go.uber.org/zap"
)

const guardAlertCooldownMs = 3000

// RecordSink is the persistence collaborator interface the
// orchestrator writes through. All methods must be non-blocking.
type RecordSink interface {
	RecordTrade(ev types.TradeEvent)
	RecordBookTop(ev types.BookTopEvent)
	RecordRegime(rec types.RegimeRecord)
	RecordAlert(a types.Alert)
	RecordOrder(o types.OrderRecord)
	RecordAction(a types.ExecAction)
	RecordFill(f types.Fill)
	RecordStats(now int64, s types.ExecutionStats)
}

// Status is the externally visible snapshot of the last evaluation.
type Status struct {
	Time            int64                   `json:"time"`
	Symbol          string                  `json:"symbol"`
	Regime          types.Regime            `json:"regime"`
	Metrics         types.MetricsSnapshot   `json:"metrics"`
	Book            *marketstate.BookTop    `json:"book,omitempty"`
	PermissionState types.PermissionState   `json:"permissionState"`
	PermissionSince int64                   `json:"permissionSince"`
	CanTrade        bool                    `json:"canTrade"`
	Health          types.HealthResult      `json:"health"`
	Decision        types.Decision          `json:"decision"`
	Execution       types.ExecutionStats    `json:"execution"`
	WorkingOrder    *execution.WorkingOrder `json:"workingOrder,omitempty"`
}

// Orchestrator is the per-instrument control plane.
type Orchestrator struct {
	logger *zap.Logger
	cfg    *types.Config

	market      *marketstate.MarketState
	perm        *permission.Engine
	orders      *execution.OrderEngine
	execMetrics *execution.Metrics
	guard       *guard.Guard
	sink        RecordSink
	tel         *telemetry.Metrics

	// Operator kill switch, independent of the permission state
	// machine. Off means no new orders and cancel the working one.
	tradingEnabled atomic.Bool

	mu         sync.RWMutex
	lastStatus Status
}

// actionSink fans order-engine records out to persistence and
// telemetry.
type actionSink struct {
	sink RecordSink
	tel  *telemetry.Metrics
}

func (s actionSink) RecordAction(a types.ExecAction) {
	s.sink.RecordAction(a)
	if s.tel != nil {
		s.tel.OrderActions.WithLabelValues(string(a.Action)).Inc()
	}
}

func (s actionSink) RecordOrder(o types.OrderRecord) { s.sink.RecordOrder(o) }
func (s actionSink) RecordFill(f types.Fill)         { s.sink.RecordFill(f) }

// New builds the full cascade for one instrument. tel may be nil.
func New(logger *zap.Logger, cfg *types.Config, sink RecordSink, tel *telemetry.Metrics) *Orchestrator {
	execMetrics := execution.NewMetrics(cfg.Execution.MarkoutHorizonMs)
	o := &Orchestrator{
		logger:      logger.Named("orchestrator"),
		cfg:         cfg,
		market:      marketstate.New(),
		perm:        permission.New(logger, cfg.Permission, sink),
		orders:      execution.NewOrderEngine(logger, cfg.Execution, execMetrics, actionSink{sink: sink, tel: tel}),
		execMetrics: execMetrics,
		guard:       guard.New(logger, sink, guardAlertCooldownMs),
		sink:        sink,
		tel:         tel,
	}
	o.tradingEnabled.Store(true)
	return o
}

// SetTradingEnabled flips the operator kill switch. The working order,
// if any, is cancelled on the next evaluation when disabled.
func (o *Orchestrator) SetTradingEnabled(enabled bool) {
	o.tradingEnabled.Store(enabled)
	o.logger.Info("trading enabled flag changed", zap.Bool("enabled", enabled))
}

// TradingEnabled reports the operator kill switch.
func (o *Orchestrator) TradingEnabled() bool { return o.tradingEnabled.Load() }

// OnTrade is the feed-consumer trade callback.
func (o *Orchestrator) OnTrade(ev types.TradeEvent) {
	o.market.RecordTrade(ev)
	o.sink.RecordTrade(ev)
	if o.tel != nil {
		o.tel.FeedEvents.WithLabelValues("trade").Inc()
	}

	if float64(ev.LatencyMs) > o.cfg.Regime.LatencyUnstableMs {
		extra := map[string]any{
			"latencyMs": ev.LatencyMs,
			"price":     ev.Price.String(),
		}
		if spread, ok := o.market.Spread(); ok {
			extra["spread"] = spread.String()
		}
		if mid, ok := o.market.Mid(); ok {
			extra["mid"] = mid.String()
		}
		o.guard.Alert(ev.ReceiptTime, "WARN", "LAT_SPIKE", "trade latency spike", extra)
	}
}

// OnBookTop is the feed-consumer book-top callback. It updates the
// shared market state and then drives the order engine's tick path
// directly, independent of the evaluator cadence.
func (o *Orchestrator) OnBookTop(ev types.BookTopEvent) {
	o.market.UpdateBookTop(ev)
	o.sink.RecordBookTop(ev)
	if o.tel != nil {
		o.tel.FeedEvents.WithLabelValues("bbo").Inc()
	}
	o.orders.OnBookTop(ev.ReceiptTime, ev.BidPrice, ev.AskPrice)
}

// Run drives the evaluator at the configured cadence until ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.EvaluateEvery)
	defer ticker.Stop()

	o.logger.Info("evaluator started",
		zap.Duration("every", o.cfg.EvaluateEvery),
		zap.String("symbol", o.cfg.Symbol),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.Evaluate(time.Now().UnixMilli())
		}
	}
}

// Evaluate runs one full evaluation pass: snapshot under the market
// lock, then classify, update permission, score health, combine, and
// drive the order engine — all on the captured snapshot, lock-free.
func (o *Orchestrator) Evaluate(now int64) Status {
	snap := o.market.Snapshot(now)

	reg := regime.Classify(snap, o.cfg.Regime)
	o.perm.Update(now, reg, snap)
	h := health.Score(snap, o.cfg.Health)
	dec := decision.Combine(o.perm.State(), o.tradingEnabled.Load(), h)

	o.sink.RecordRegime(types.RegimeRecord{
		Time:            now,
		Regime:          reg,
		Metrics:         snap,
		PermissionState: o.perm.State(),
		CanTrade:        o.perm.CanTrade(),
		Health:          h,
		Decision:        dec,
	})

	o.orders.OnDecision(now, dec)

	stats := o.execMetrics.Snapshot()
	o.sink.RecordStats(now, stats)

	status := Status{
		Time:            now,
		Symbol:          o.cfg.Symbol,
		Regime:          reg,
		Metrics:         snap,
		PermissionState: o.perm.State(),
		PermissionSince: o.perm.StateSince(),
		CanTrade:        o.perm.CanTrade(),
		Health:          h,
		Decision:        dec,
		Execution:       stats,
	}
	if book, ok := o.market.Book(); ok {
		status.Book = &book
	}
	if wo, ok := o.orders.Working(); ok {
		status.WorkingOrder = &wo
	}

	o.mu.Lock()
	o.lastStatus = status
	o.mu.Unlock()

	if o.tel != nil {
		o.tel.Evaluations.Inc()
		o.tel.Decisions.WithLabelValues(strconv.FormatBool(dec.Allowed)).Inc()
		o.tel.HealthScore.Set(float64(h.Score))
		o.tel.SetPermissionState(o.perm.State())
		o.tel.SetRegime(reg)
	}

	o.logger.Info("evaluation",
		zap.String("regime", string(reg)),
		zap.String("permission", string(o.perm.State())),
		zap.Bool("canTrade", o.perm.CanTrade()),
		zap.Int("health", h.Score),
		zap.String("healthMode", string(h.Mode)),
		zap.Bool("allowed", dec.Allowed),
		zap.String("aggr", string(dec.MaxAggressiveness)),
		zap.Float64("budget", dec.RiskBudget),
		zap.String("reason", dec.Reason),
	)

	return status
}

// Status returns the last evaluation snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastStatus
}
