// Package marketstate maintains the rolling per-instrument market view:
// best bid/ask plus a trailing window of recent trades, with derived
// spread, mid, trade-intensity, latency and price-move queries.
package marketstate

import (
	"sort"
	"sync"

	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// WindowMs is the trailing trade window length.
const WindowMs int64 = 10_000

// BookTop is the most recent best bid/ask.
type BookTop struct {
	BidPrice    decimal.Decimal `json:"bidPrice"`
	BidSize     decimal.Decimal `json:"bidSize"`
	AskPrice    decimal.Decimal `json:"askPrice"`
	AskSize     decimal.Decimal `json:"askSize"`
	ReceiptTime int64           `json:"receiptTime"`
}

// MarketState is shared between the feed consumer and the evaluator.
// All access is serialized by a single mutex; snapshot reads capture
// everything in one critical section so downstream classification runs
// lock-free.
type MarketState struct {
	mu sync.Mutex

	book    BookTop
	hasBook bool

	trades   []types.TradeEvent
	windowMs int64
}

// New returns an empty MarketState with the standard trailing window.
func New() *MarketState {
	return &MarketState{windowMs: WindowMs}
}

// RecordTrade appends a trade and prunes the window against its
// receipt time. Trades are assumed to arrive in receipt order.
func (m *MarketState) RecordTrade(ev types.TradeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, ev)
	m.pruneLocked(ev.ReceiptTime)
}

// UpdateBookTop replaces the best bid/ask.
func (m *MarketState) UpdateBookTop(ev types.BookTopEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.book = BookTop{
		BidPrice:    ev.BidPrice,
		BidSize:     ev.BidSize,
		AskPrice:    ev.AskPrice,
		AskSize:     ev.AskSize,
		ReceiptTime: ev.ReceiptTime,
	}
	m.hasBook = true
}

func (m *MarketState) pruneLocked(now int64) {
	i := 0
	for i < len(m.trades) && now-m.trades[i].ReceiptTime > m.windowMs {
		i++
	}
	if i > 0 {
		m.trades = m.trades[i:]
	}
}

// Book returns the latest book top, if any update has been seen.
func (m *MarketState) Book() (BookTop, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book, m.hasBook
}

// Spread returns ask minus bid.
func (m *MarketState) Spread() (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasBook {
		return decimal.Decimal{}, false
	}
	return m.book.AskPrice.Sub(m.book.BidPrice), true
}

// Mid returns the bid/ask midpoint.
func (m *MarketState) Mid() (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasBook {
		return decimal.Decimal{}, false
	}
	return m.book.BidPrice.Add(m.book.AskPrice).Div(decimal.NewFromInt(2)), true
}

// TradesInWindow returns the trade count in the trailing window
// relative to now.
func (m *MarketState) TradesInWindow(now int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)
	return len(m.trades)
}

// LatencyP95 returns the 95th-percentile receipt latency of trades in
// the window, or false when the window is empty.
func (m *MarketState) LatencyP95(now int64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)
	return m.latencyP95Locked()
}

func (m *MarketState) latencyP95Locked() (float64, bool) {
	if len(m.trades) == 0 {
		return 0, false
	}
	lats := make([]int64, len(m.trades))
	for i, tr := range m.trades {
		lats[i] = tr.LatencyMs
	}
	sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })
	idx := int(0.95 * float64(len(lats)-1))
	return float64(lats[idx]), true
}

// MidDelta returns the price of the latest trade in the window minus
// the earliest, a simple short-horizon move proxy. False when fewer
// than two trades remain.
func (m *MarketState) MidDelta(now int64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)
	return m.midDeltaLocked()
}

func (m *MarketState) midDeltaLocked() (float64, bool) {
	if len(m.trades) < 2 {
		return 0, false
	}
	first := m.trades[0].Price
	last := m.trades[len(m.trades)-1].Price
	return last.Sub(first).InexactFloat64(), true
}

// Snapshot prunes against now and captures the full metric view in one
// critical section. The caller runs classification on the returned
// value without holding the lock.
func (m *MarketState) Snapshot(now int64) types.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)

	var snap types.MetricsSnapshot
	if m.hasBook {
		s := m.book.AskPrice.Sub(m.book.BidPrice).InexactFloat64()
		snap.Spread = &s
	}
	snap.TradesInWindow = len(m.trades)
	if p95, ok := m.latencyP95Locked(); ok {
		snap.LatencyP95 = &p95
	}
	if d, ok := m.midDeltaLocked(); ok {
		snap.MidDelta = &d
	}
	return snap
}
