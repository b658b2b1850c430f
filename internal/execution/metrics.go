package execution

import (
	"math"
	"sync"

	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
)

type pendingMarkout struct {
	fillTime  int64
	fillPrice decimal.Decimal
}

// Metrics is the post-trade analytics recorder. It observes order
// events and mid updates but never influences trading. Snapshot may be
// read from other goroutines, so state is mutex-guarded.
type Metrics struct {
	mu sync.Mutex

	placed   int
	filled   int
	canceled int

	waitTimes []int64
	slippages []float64

	pending  []pendingMarkout
	markouts []float64

	horizonMs int64
}

// NewMetrics creates a recorder with the given markout horizon.
func NewMetrics(markoutHorizonMs int64) *Metrics {
	return &Metrics{horizonMs: markoutHorizonMs}
}

// OnPlace counts a placement.
func (m *Metrics) OnPlace() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed++
}

// OnCancel counts a cancel.
func (m *Metrics) OnCancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled++
}

// OnFill records wait time and slippage vs mid, and schedules a
// delayed markout sample for the fill.
func (m *Metrics) OnFill(now int64, fillPx, mid decimal.Decimal, waitMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.filled++
	m.waitTimes = append(m.waitTimes, waitMs)

	if mid.IsPositive() {
		slip := math.Abs(fillPx.Sub(mid).Div(mid).InexactFloat64()) * 10_000
		m.slippages = append(m.slippages, slip)
	}

	m.pending = append(m.pending, pendingMarkout{fillTime: now, fillPrice: fillPx})
}

// OnMidUpdate matures pending markouts, oldest first, once their age
// reaches the horizon. Markout is the drift of mid vs fill price in
// bps at maturation, a directional adverse-selection estimate.
func (m *Metrics) OnMidUpdate(now int64, mid decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.pending) > 0 {
		p := m.pending[0]
		if now-p.fillTime < m.horizonMs {
			break
		}
		bps := mid.Sub(p.fillPrice).Div(p.fillPrice).InexactFloat64() * 10_000
		m.markouts = append(m.markouts, bps)
		m.pending = m.pending[1:]
	}
}

// Snapshot returns point-in-time aggregates. Rates are 0 when nothing
// was placed; means are 0 for empty collections.
func (m *Metrics) Snapshot() types.ExecutionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := types.ExecutionStats{
		Placed:          m.placed,
		Filled:          m.filled,
		Canceled:        m.canceled,
		PendingMarkouts: len(m.pending),
	}
	if m.placed > 0 {
		stats.FillRate = round3(float64(m.filled) / float64(m.placed))
		stats.CancelRate = round3(float64(m.canceled) / float64(m.placed))
	}
	if len(m.waitTimes) > 0 {
		var sum int64
		for _, w := range m.waitTimes {
			sum += w
		}
		stats.AvgWaitMs = sum / int64(len(m.waitTimes))
	}
	stats.AvgSlippageBps = round2(mean(m.slippages))
	stats.AvgMarkoutBps = round2(mean(m.markouts))
	return stats
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
