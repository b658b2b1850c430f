// Package permission implements the trading-permission state machine.
//
// The engine never places orders. It maintains persistence timers over
// regime and spread conditions and exposes only the current state,
// CanTrade, and transition records.
//
// States: ALLOW -> BLOCKED -> COOLDOWN -> PROBATION -> ALLOW
package permission

import (
	"fmt"

	"github.com/quantdesk/sentinel-backend/pkg/types"
	"go.uber.org/zap"
)

// AlertSink receives permission transition and reset records.
type AlertSink interface {
	RecordAlert(a types.Alert)
}

// Engine drives trading permission from periodic regime/metric updates.
// It is driven from a single evaluator goroutine and persists for the
// process lifetime; feed reconnects never reset it.
type Engine struct {
	logger *zap.Logger
	cfg    types.PermissionConfig
	sink   AlertSink

	state      types.PermissionState
	stateSince int64

	unstableSince  int64
	unstableActive bool
	wideSince      int64
	wideActive     bool
	latencySpikes  int
}

// New returns an engine in the ALLOW state.
func New(logger *zap.Logger, cfg types.PermissionConfig, sink AlertSink) *Engine {
	return &Engine{
		logger: logger.Named("permission"),
		cfg:    cfg,
		sink:   sink,
		state:  types.PermissionAllow,
	}
}

// State returns the current permission state.
func (e *Engine) State() types.PermissionState { return e.state }

// StateSince returns when the current state was entered, in unix ms.
func (e *Engine) StateSince() int64 { return e.stateSince }

// CanTrade reports whether trading is permitted at all.
func (e *Engine) CanTrade() bool { return e.state == types.PermissionAllow }

// Update advances persistence timers and drives state transitions.
// Called once per evaluation tick with the frozen metric snapshot.
func (e *Engine) Update(now int64, regime types.Regime, snap types.MetricsSnapshot) {
	// Persistence clocks run regardless of state.
	if regime == types.RegimeUnstable {
		if !e.unstableActive {
			e.unstableSince = now
			e.unstableActive = true
		}
	} else {
		e.unstableActive = false
	}

	wide := snap.Spread != nil && *snap.Spread > e.cfg.SpreadUnstable
	if wide {
		if !e.wideActive {
			e.wideSince = now
			e.wideActive = true
		}
	} else {
		e.wideActive = false
	}

	if snap.LatencyP95 != nil && *snap.LatencyP95 > e.cfg.LatencySpikeMs {
		e.latencySpikes++
	} else {
		e.latencySpikes = 0
	}

	latencySpike := e.latencySpikes >= e.cfg.LatencySpikeConsec
	unstablePersist := e.unstableActive && now-e.unstableSince >= e.cfg.UnstablePersistMs
	widePersist := e.wideActive && now-e.wideSince >= e.cfg.WideSpreadPersistMs

	shouldBlock := unstablePersist || widePersist || latencySpike

	blockReason := func() string {
		switch {
		case latencySpike:
			return "latency_spike"
		case unstablePersist:
			return "unstable_persist"
		default:
			return "wide_spread_persist"
		}
	}

	ctx := map[string]any{"regime": string(regime)}
	if snap.Spread != nil {
		ctx["spread"] = *snap.Spread
	}
	if snap.LatencyP95 != nil {
		ctx["latP95"] = *snap.LatencyP95
	}

	switch e.state {
	case types.PermissionAllow:
		if shouldBlock {
			e.setState(now, types.PermissionBlocked, blockReason(), ctx)
		}

	case types.PermissionBlocked:
		// Enter cooldown on the very next tick, no dwell.
		e.setState(now, types.PermissionCooldown, "enter cooldown after block", ctx)

	case types.PermissionCooldown:
		if now-e.stateSince >= e.cfg.CooldownMs {
			e.setState(now, types.PermissionProbation, "cooldown complete", ctx)
		}

	case types.PermissionProbation:
		safe := regime == types.RegimeNormal || regime == types.RegimeFast
		switch {
		case safe && !shouldBlock:
			if now-e.stateSince >= e.cfg.ProbationMs {
				e.setState(now, types.PermissionAllow, "probation passed", ctx)
			}
		case shouldBlock:
			e.setState(now, types.PermissionBlocked, "probation failed: "+blockReason(), ctx)
		default:
			// Regime is neither safe nor blocking (e.g. UNKNOWN):
			// stay in probation but restart the dwell clock.
			e.stateSince = now
			e.emit(now, "PROBATION_RESET", fmt.Sprintf("reset probation due to regime=%s", regime), ctx)
		}

	default:
		e.setState(now, types.PermissionBlocked, "unknown state -> safe block", map[string]any{"state": string(e.state)})
	}
}

func (e *Engine) setState(now int64, next types.PermissionState, reason string, extra map[string]any) {
	if next == e.state {
		return
	}
	old := e.state
	e.state = next
	e.stateSince = now
	e.emit(now, "PERMISSION_TRANSITION", fmt.Sprintf("%s -> %s | %s", old, next, reason), extra)
}

func (e *Engine) emit(now int64, code, msg string, extra map[string]any) {
	e.logger.Info(msg,
		zap.String("code", code),
		zap.String("state", string(e.state)),
		zap.Any("extra", extra),
	)
	if e.sink != nil {
		e.sink.RecordAlert(types.Alert{
			Time:    now,
			Level:   "INFO",
			Code:    code,
			Message: msg,
			Extra:   extra,
		})
	}
}
