// Package recorder persists one append-only CSV record per event into
// a symbol-scoped directory. Writes are fire-and-forget: callers
// enqueue onto a buffered channel drained by a single writer
// goroutine, and a full queue drops the record rather than ever
// blocking the feed or decision path.
package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const queueSize = 4096

var headers = map[string][]string{
	"trades.csv":       {"exch_ts", "recv_ts", "latency_ms", "price", "qty", "is_buyer_maker"},
	"bbo.csv":          {"recv_ts", "bid_px", "bid_sz", "ask_px", "ask_sz", "spread", "mid"},
	"regime.csv":       {"ts_ms", "regime", "spread", "trades_10s", "lat_p95", "mid_delta_10s", "perm_state", "can_trade", "health", "health_mode", "max_aggr", "final_allowed", "final_aggr", "risk_budget", "decision_reason"},
	"alerts.csv":       {"ts_ms", "level", "code", "msg", "extra"},
	"orders.csv":       {"id", "ts_ms", "side", "px", "qty", "tif_ms", "mode", "budget"},
	"actions.csv":      {"ts_ms", "action", "order_id", "side", "px_old", "px_new", "qty", "reason", "extra"},
	"fills.csv":        {"order_id", "order_ts_ms", "fill_ts_ms", "side", "order_px", "fill_px", "qty", "wait_ms", "slippage_bps_vs_mid"},
	"exec_metrics.csv": {"ts_ms", "placed", "filled", "canceled", "fill_rate", "cancel_rate", "avg_wait_ms", "avg_slippage_bps", "avg_markout_bps", "pending_markouts"},
}

type row struct {
	file   string
	fields []string
}

// Recorder is the append-only record sink.
type Recorder struct {
	logger *zap.Logger
	dir    string

	ch   chan row
	done chan struct{}

	mu      sync.Mutex
	writers map[string]*csv.Writer
	files   []*os.File

	dropped atomic.Int64
}

// New creates the symbol directory and starts the writer goroutine.
func New(logger *zap.Logger, dataDir, symbol string) (*Recorder, error) {
	dir := filepath.Join(dataDir, "symbol="+strings.ToLower(symbol))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	r := &Recorder{
		logger:  logger.Named("recorder"),
		dir:     dir,
		ch:      make(chan row, queueSize),
		done:    make(chan struct{}),
		writers: make(map[string]*csv.Writer),
	}
	go r.run()
	return r, nil
}

// Dir returns the symbol-scoped output directory.
func (r *Recorder) Dir() string { return r.dir }

// Close drains pending records and closes all files.
func (r *Recorder) Close() error {
	close(r.ch)
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, w := range r.writers {
		w.Flush()
	}
	for _, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.ch {
		w, err := r.writer(rec.file)
		if err != nil {
			r.logger.Error("open record file", zap.String("file", rec.file), zap.Error(err))
			continue
		}
		if err := w.Write(rec.fields); err != nil {
			r.logger.Error("write record", zap.String("file", rec.file), zap.Error(err))
			continue
		}
		w.Flush()
	}
}

func (r *Recorder) writer(name string) (*csv.Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.writers[name]; ok {
		return w, nil
	}

	path := filepath.Join(r.dir, name)
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		if err := w.Write(headers[name]); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
	}
	r.writers[name] = w
	r.files = append(r.files, f)
	return w, nil
}

func (r *Recorder) enqueue(file string, fields []string) {
	select {
	case r.ch <- row{file: file, fields: fields}:
	default:
		// The sink must never backpressure the feed path.
		if n := r.dropped.Add(1); n%1000 == 1 {
			r.logger.Warn("record queue full, dropping", zap.String("file", file), zap.Int64("dropped", n))
		}
	}
}

// RecordTrade appends a trade record.
func (r *Recorder) RecordTrade(ev types.TradeEvent) {
	r.enqueue("trades.csv", []string{
		formatInt(ev.ExchangeTime),
		formatInt(ev.ReceiptTime),
		formatInt(ev.LatencyMs),
		ev.Price.String(),
		ev.Quantity.String(),
		formatBool(ev.IsBuyerMaker),
	})
}

// RecordBookTop appends a book-top record.
func (r *Recorder) RecordBookTop(ev types.BookTopEvent) {
	spread := ev.AskPrice.Sub(ev.BidPrice)
	mid := ev.BidPrice.Add(ev.AskPrice).Div(two)
	r.enqueue("bbo.csv", []string{
		formatInt(ev.ReceiptTime),
		ev.BidPrice.String(),
		ev.BidSize.String(),
		ev.AskPrice.String(),
		ev.AskSize.String(),
		spread.String(),
		mid.String(),
	})
}

// RecordRegime appends the per-evaluation regime/decision record.
func (r *Recorder) RecordRegime(rec types.RegimeRecord) {
	r.enqueue("regime.csv", []string{
		formatInt(rec.Time),
		string(rec.Regime),
		formatOptFloat(rec.Metrics.Spread),
		strconv.Itoa(rec.Metrics.TradesInWindow),
		formatOptFloat(rec.Metrics.LatencyP95),
		formatOptFloat(rec.Metrics.MidDelta),
		string(rec.PermissionState),
		formatBool(rec.CanTrade),
		strconv.Itoa(rec.Health.Score),
		string(rec.Health.Mode),
		string(rec.Health.MaxAggressiveness),
		formatBool(rec.Decision.Allowed),
		string(rec.Decision.MaxAggressiveness),
		formatFloat(rec.Decision.RiskBudget),
		rec.Decision.Reason,
	})
}

// RecordAlert appends a permission-transition or guard alert record.
func (r *Recorder) RecordAlert(a types.Alert) {
	r.enqueue("alerts.csv", []string{
		formatInt(a.Time),
		a.Level,
		a.Code,
		a.Message,
		formatExtra(a.Extra),
	})
}

// RecordOrder appends an order-placement record.
func (r *Recorder) RecordOrder(o types.OrderRecord) {
	r.enqueue("orders.csv", []string{
		o.ID,
		formatInt(o.Time),
		string(o.Side),
		o.Price.String(),
		o.Quantity.String(),
		formatInt(o.TimeInForceMs),
		string(o.Mode),
		formatFloat(o.Budget),
	})
}

// RecordAction appends an order-lifecycle audit record.
func (r *Recorder) RecordAction(a types.ExecAction) {
	oldPx, newPx := "", ""
	if a.OldPrice != nil {
		oldPx = a.OldPrice.String()
	}
	if a.NewPrice != nil {
		newPx = a.NewPrice.String()
	}
	r.enqueue("actions.csv", []string{
		formatInt(a.Time),
		string(a.Action),
		a.OrderID,
		string(a.Side),
		oldPx,
		newPx,
		a.Quantity.String(),
		a.Reason,
		formatExtra(a.Extra),
	})
}

// RecordFill appends a fill record.
func (r *Recorder) RecordFill(f types.Fill) {
	r.enqueue("fills.csv", []string{
		f.OrderID,
		formatInt(f.OrderTime),
		formatInt(f.FillTime),
		string(f.Side),
		f.OrderPrice.String(),
		f.FillPrice.String(),
		f.Quantity.String(),
		formatInt(f.WaitMs),
		formatFloat(f.SlippageBps),
	})
}

// RecordStats appends a periodic execution-metrics snapshot.
func (r *Recorder) RecordStats(now int64, s types.ExecutionStats) {
	r.enqueue("exec_metrics.csv", []string{
		formatInt(now),
		strconv.Itoa(s.Placed),
		strconv.Itoa(s.Filled),
		strconv.Itoa(s.Canceled),
		formatFloat(s.FillRate),
		formatFloat(s.CancelRate),
		formatInt(s.AvgWaitMs),
		formatFloat(s.AvgSlippageBps),
		formatFloat(s.AvgMarkoutBps),
		strconv.Itoa(s.PendingMarkouts),
	})
}

var two = decimal.NewFromInt(2)

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatExtra(extra map[string]any) string {
	if len(extra) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", extra)
}
