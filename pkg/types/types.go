// Package types provides shared type definitions for the sentinel backend.
package types

import (
	"github.com/shopspring/decimal"
)

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Regime classifies current market conditions
type Regime string

const (
	RegimeNormal   Regime = "NORMAL"
	RegimeFast     Regime = "FAST"
	RegimeUnstable Regime = "UNSTABLE"
	RegimeUnknown  Regime = "UNKNOWN"
)

// PermissionState is the trading-permission state machine state
type PermissionState string

const (
	PermissionAllow     PermissionState = "ALLOW"
	PermissionBlocked   PermissionState = "BLOCKED"
	PermissionCooldown  PermissionState = "COOLDOWN"
	PermissionProbation PermissionState = "PROBATION"
)

// HealthMode is the coarse execution-health classification
type HealthMode string

const (
	HealthGreen  HealthMode = "GREEN"
	HealthYellow HealthMode = "YELLOW"
	HealthRed    HealthMode = "RED"
)

// Aggressiveness is the maximum allowed execution aggressiveness tier
type Aggressiveness string

const (
	AggrNoTrade     Aggressiveness = "NO_TRADE"
	AggrPassiveOnly Aggressiveness = "PASSIVE_ONLY"
	AggrLimitOK     Aggressiveness = "LIMIT_OK"
)

// OrderStatus represents the working-order lifecycle state
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusLive     OrderStatus = "LIVE"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusExpired  OrderStatus = "EXPIRED"
)

// Terminal reports whether the status is final.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired:
		return true
	}
	return false
}

// OrderAction labels an order-lifecycle transition in the audit trail
type OrderAction string

const (
	ActionPlace   OrderAction = "PLACE"
	ActionCancel  OrderAction = "CANCEL"
	ActionReprice OrderAction = "REPRICE"
	ActionFill    OrderAction = "FILL"
	ActionExpire  OrderAction = "EXPIRE"
)

// TradeEvent is a single trade from the feed.
// Times are unix milliseconds; LatencyMs is receipt minus exchange time.
type TradeEvent struct {
	ExchangeTime int64           `json:"exchangeTime"`
	ReceiptTime  int64           `json:"receiptTime"`
	LatencyMs    int64           `json:"latencyMs"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	IsBuyerMaker bool            `json:"isBuyerMaker"`
}

// BookTopEvent is a best-bid/ask update from the feed.
type BookTopEvent struct {
	ReceiptTime int64           `json:"receiptTime"`
	BidPrice    decimal.Decimal `json:"bidPrice"`
	BidSize     decimal.Decimal `json:"bidSize"`
	AskPrice    decimal.Decimal `json:"askPrice"`
	AskSize     decimal.Decimal `json:"askSize"`
}

// MetricsSnapshot is the per-evaluation derived view of the market window.
// Nil pointers mean the input is unavailable and must not trigger any rule.
type MetricsSnapshot struct {
	Spread         *float64 `json:"spread"`
	TradesInWindow int      `json:"tradesInWindow"`
	LatencyP95     *float64 `json:"latencyP95"`
	MidDelta       *float64 `json:"midDelta"`
}

// ComponentScores holds the per-input health sub-scores.
type ComponentScores struct {
	Spread  int  `json:"spread"`
	Latency int  `json:"latency"`
	Flow    int  `json:"flow"`
	Move    int  `json:"move"`
	HardRed bool `json:"hardRed"`
}

// HealthResult is the output of the health scorer.
type HealthResult struct {
	Score             int             `json:"score"`
	Mode              HealthMode      `json:"mode"`
	MaxAggressiveness Aggressiveness  `json:"maxAggressiveness"`
	Detail            ComponentScores `json:"detail"`
}

// Decision is the final merged trading decision for one evaluation.
type Decision struct {
	Allowed           bool           `json:"allowed"`
	MaxAggressiveness Aggressiveness `json:"maxAggressiveness"`
	RiskBudget        float64        `json:"riskBudget"`
	Reason            string         `json:"reason"`
}

// Alert is an append-only operational alert record (permission
// transitions, latency spikes, guard warnings).
type Alert struct {
	Time    int64          `json:"time"`
	Level   string         `json:"level"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// ExecAction is one immutable order-lifecycle audit record.
type ExecAction struct {
	Time     int64            `json:"time"`
	Action   OrderAction      `json:"action"`
	OrderID  string           `json:"orderId"`
	Side     Side             `json:"side"`
	OldPrice *decimal.Decimal `json:"oldPrice,omitempty"`
	NewPrice *decimal.Decimal `json:"newPrice,omitempty"`
	Quantity decimal.Decimal  `json:"quantity"`
	Reason   string           `json:"reason"`
	Extra    map[string]any   `json:"extra,omitempty"`
}

// OrderRecord describes an order at placement time.
type OrderRecord struct {
	ID            string          `json:"id"`
	Time          int64           `json:"time"`
	Side          Side            `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	TimeInForceMs int64           `json:"timeInForceMs"`
	Mode          Aggressiveness  `json:"mode"`
	Budget        float64         `json:"budget"`
}

// Fill is the structured record emitted for every simulated fill.
type Fill struct {
	OrderID     string          `json:"orderId"`
	OrderTime   int64           `json:"orderTime"`
	FillTime    int64           `json:"fillTime"`
	Side        Side            `json:"side"`
	OrderPrice  decimal.Decimal `json:"orderPrice"`
	FillPrice   decimal.Decimal `json:"fillPrice"`
	Quantity    decimal.Decimal `json:"quantity"`
	WaitMs      int64           `json:"waitMs"`
	SlippageBps float64         `json:"slippageBps"`
}

// RegimeRecord is the per-evaluation regime/decision record.
type RegimeRecord struct {
	Time            int64           `json:"time"`
	Regime          Regime          `json:"regime"`
	Metrics         MetricsSnapshot `json:"metrics"`
	PermissionState PermissionState `json:"permissionState"`
	CanTrade        bool            `json:"canTrade"`
	Health          HealthResult    `json:"health"`
	Decision        Decision        `json:"decision"`
}

// ExecutionStats is a point-in-time execution analytics snapshot.
type ExecutionStats struct {
	Placed          int     `json:"placed"`
	Filled          int     `json:"filled"`
	Canceled        int     `json:"canceled"`
	FillRate        float64 `json:"fillRate"`
	CancelRate      float64 `json:"cancelRate"`
	AvgWaitMs       int64   `json:"avgWaitMs"`
	AvgSlippageBps  float64 `json:"avgSlippageBps"`
	AvgMarkoutBps   float64 `json:"avgMarkoutBps"`
	PendingMarkouts int     `json:"pendingMarkouts"`
}
