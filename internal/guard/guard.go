// Package guard raises operational alerts when the market or the
// system looks unhealthy. It never places or cancels orders.
package guard

import (
	"sync"

	"github.com/quantdesk/sentinel-backend/pkg/types"
	"go.uber.org/zap"
)

// AlertSink receives guard alerts.
type AlertSink interface {
	RecordAlert(a types.Alert)
}

// Guard rate-limits alerts with a simple cooldown so a burst of bad
// ticks produces one record, not thousands.
type Guard struct {
	logger     *zap.Logger
	sink       AlertSink
	cooldownMs int64

	mu        sync.Mutex
	fired     bool
	lastAlert int64
}

// New creates a guard. sink may be nil.
func New(logger *zap.Logger, sink AlertSink, cooldownMs int64) *Guard {
	return &Guard{
		logger:     logger.Named("guard"),
		sink:       sink,
		cooldownMs: cooldownMs,
	}
}

// Alert emits an alert unless one fired within the cooldown window.
func (g *Guard) Alert(now int64, level, code, msg string, extra map[string]any) {
	g.mu.Lock()
	if g.fired && now-g.lastAlert < g.cooldownMs {
		g.mu.Unlock()
		return
	}
	g.fired = true
	g.lastAlert = now
	g.mu.Unlock()

	g.logger.Warn(msg, zap.String("code", code), zap.Any("extra", extra))
	if g.sink != nil {
		g.sink.RecordAlert(types.Alert{
			Time:    now,
			Level:   level,
			Code:    code,
			Message: msg,
			Extra:   extra,
		})
	}
}
