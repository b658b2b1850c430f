// Package health computes the composite execution-health score.
package health

import (
	"math"

	"github.com/quantdesk/sentinel-backend/pkg/types"
)

// Score computes the health result from a metric snapshot.
//
// A hard-red gate is checked first and overrides the score entirely:
// it fires when spread or latency approach the instability threshold,
// or the mid move is a large multiple of the good anchor. Otherwise
// four component scores are interpolated against their anchors and
// combined with fixed weights. A low score alone never yields RED;
// only the hard gate does.
func Score(snap types.MetricsSnapshot, cfg types.HealthConfig) types.HealthResult {
	hardRed := false

	if snap.Spread != nil && cfg.SpreadUnstable > 0 {
		if *snap.Spread >= cfg.SpreadUnstable*cfg.HardRedSpreadRatio {
			hardRed = true
		}
	}
	if snap.LatencyP95 != nil && cfg.LatencyUnstableMs > 0 {
		if *snap.LatencyP95 >= cfg.LatencyUnstableMs*cfg.HardRedLatencyRatio {
			hardRed = true
		}
	}
	if snap.MidDelta != nil && cfg.MidDeltaGood > 0 {
		if math.Abs(*snap.MidDelta) >= cfg.MidDeltaGood*cfg.HardRedMidMultiple {
			hardRed = true
		}
	}

	// Component scores, each 0-100. Missing inputs fall back to fixed
	// neutral defaults instead of triggering anything.
	var sSpread float64
	if snap.Spread == nil {
		sSpread = 50
	} else if *snap.Spread >= cfg.SpreadUnstable {
		sSpread = 5
	} else {
		ratio := *snap.Spread / math.Max(cfg.SpreadGood, 1e-9)
		sSpread = clamp(100-25*(ratio-1), 10, 100)
	}

	var sLatency float64
	if snap.LatencyP95 == nil {
		sLatency = 60
	} else if *snap.LatencyP95 >= cfg.LatencyUnstableMs {
		sLatency = 5
	} else {
		ratio := *snap.LatencyP95 / math.Max(cfg.LatencyGoodMs, 1)
		sLatency = clamp(100-35*(ratio-1), 10, 100)
	}

	// Low flow is penalized, high flow is not.
	var sFlow float64
	if snap.TradesInWindow <= 0 {
		sFlow = 30
	} else if snap.TradesInWindow >= cfg.TradesGood {
		sFlow = 100
	} else {
		ratio := float64(snap.TradesInWindow) / math.Max(float64(cfg.TradesGood), 1)
		sFlow = clamp(40+60*ratio, 10, 100)
	}

	var sMove float64
	if snap.MidDelta == nil {
		sMove = 70
	} else {
		dev := math.Abs(*snap.MidDelta) / math.Max(cfg.MidDeltaGood, 1e-9)
		sMove = clamp(100-60*(dev-1), 10, 100)
	}

	// Spread and latency dominate the composite.
	composite := 0.35*sSpread + 0.35*sLatency + 0.15*sFlow + 0.15*sMove
	score := int(math.Round(clamp(composite, 0, 100)))

	var mode types.HealthMode
	var maxAggr types.Aggressiveness
	switch {
	case hardRed:
		mode = types.HealthRed
		maxAggr = types.AggrNoTrade
	case score >= 75:
		mode = types.HealthGreen
		maxAggr = types.AggrLimitOK
	default:
		// Conservative default for both mid and low scores; score
		// noise must not produce RED.
		mode = types.HealthYellow
		maxAggr = types.AggrPassiveOnly
	}

	return types.HealthResult{
		Score:             score,
		Mode:              mode,
		MaxAggressiveness: maxAggr,
		Detail: types.ComponentScores{
			Spread:  int(math.Round(sSpread)),
			Latency: int(math.Round(sLatency)),
			Flow:    int(math.Round(sFlow)),
			Move:    int(math.Round(sMove)),
			HardRed: hardRed,
		},
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
