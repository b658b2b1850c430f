// Package regime classifies market conditions from a metric snapshot.
package regime

import (
	"math"

	"github.com/quantdesk/sentinel-backend/pkg/types"
)

// Classify maps a frozen metric snapshot to a regime.
//
// Precedence is UNSTABLE > FAST > NORMAL:
//
//	UNSTABLE: spread too wide or latency p95 too high
//	FAST:     high trade intensity or sufficient mid move in the window
//	NORMAL:   otherwise
//
// Missing inputs never trigger a condition. The snapshot is captured
// once per evaluation so all branches see the same values.
func Classify(snap types.MetricsSnapshot, cfg types.RegimeConfig) types.Regime {
	if snap.Spread != nil && *snap.Spread > cfg.SpreadUnstable {
		return types.RegimeUnstable
	}
	if snap.LatencyP95 != nil && *snap.LatencyP95 > cfg.LatencyUnstableMs {
		return types.RegimeUnstable
	}

	if snap.TradesInWindow >= cfg.FastTradesPer10s {
		return types.RegimeFast
	}
	if snap.MidDelta != nil && math.Abs(*snap.MidDelta) >= cfg.FastMidDelta {
		return types.RegimeFast
	}

	return types.RegimeNormal
}
