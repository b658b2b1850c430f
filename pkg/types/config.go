// Package types provides configuration types for the sentinel backend.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeedConfig configures the market-data stream consumer.
type FeedConfig struct {
	WSBase        string        `json:"wsBase"`
	ReconnectWait time.Duration `json:"reconnectWait"`
}

// RegimeConfig holds the regime-classifier thresholds.
type RegimeConfig struct {
	SpreadUnstable    float64 `json:"spreadUnstable"`
	LatencyUnstableMs float64 `json:"latencyUnstableMs"`
	FastTradesPer10s  int     `json:"fastTradesPer10s"`
	FastMidDelta      float64 `json:"fastMidDelta"`
}

// PermissionConfig holds the permission state machine parameters.
type PermissionConfig struct {
	UnstablePersistMs   int64   `json:"unstablePersistMs"`
	WideSpreadPersistMs int64   `json:"wideSpreadPersistMs"`
	LatencySpikeMs      float64 `json:"latencySpikeMs"`
	LatencySpikeConsec  int     `json:"latencySpikeConsec"`
	CooldownMs          int64   `json:"cooldownMs"`
	ProbationMs         int64   `json:"probationMs"`
	SpreadUnstable      float64 `json:"spreadUnstable"`
}

// HealthConfig holds hard thresholds, scoring anchors and hard-red
// sensitivity ratios for the health scorer.
type HealthConfig struct {
	SpreadUnstable    float64 `json:"spreadUnstable"`
	LatencyUnstableMs float64 `json:"latencyUnstableMs"`

	SpreadGood     float64 `json:"spreadGood"`
	LatencyGoodMs  float64 `json:"latencyGoodMs"`
	TradesGood     int     `json:"tradesGood"`
	MidDeltaGood   float64 `json:"midDeltaGood"`

	HardRedSpreadRatio  float64 `json:"hardRedSpreadRatio"`
	HardRedLatencyRatio float64 `json:"hardRedLatencyRatio"`
	HardRedMidMultiple  float64 `json:"hardRedMidMultiple"`
}

// ExecutionConfig holds order-engine and policy parameters.
type ExecutionConfig struct {
	TimeInForceMs       int64           `json:"timeInForceMs"`
	BaseQuantity        decimal.Decimal `json:"baseQuantity"`
	MinFillLatencyMs    int64           `json:"minFillLatencyMs"`
	MaxRepricesPerOrder int             `json:"maxRepricesPerOrder"`
	MarkoutHorizonMs    int64           `json:"markoutHorizonMs"`
	RepriceOnBestChange bool            `json:"repriceOnBestChange"`
	CancelOnCross       bool            `json:"cancelOnCross"`
}

// ServerConfig configures the operator HTTP server.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Config is the full configuration surface.
type Config struct {
	Symbol        string        `json:"symbol"`
	DataDir       string        `json:"dataDir"`
	EvaluateEvery time.Duration `json:"evaluateEvery"`

	Feed       FeedConfig       `json:"feed"`
	Regime     RegimeConfig     `json:"regime"`
	Permission PermissionConfig `json:"permission"`
	Health     HealthConfig     `json:"health"`
	Execution  ExecutionConfig  `json:"execution"`
	Server     ServerConfig     `json:"server"`
}
