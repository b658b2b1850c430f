// Package decision merges permission state and health into the single
// final trading decision. Permission overrides everything.
package decision

import (
	"fmt"
	"math"

	"github.com/quantdesk/sentinel-backend/pkg/types"
)

// Combine produces the final decision for one evaluation.
func Combine(state types.PermissionState, canTrade bool, health types.HealthResult) types.Decision {
	// 1) Permission hard override. canTrade is the external operator
	// switch, separate from the permission state machine.
	if !canTrade || state == types.PermissionBlocked || state == types.PermissionCooldown {
		reason := fmt.Sprintf("permission=%s", state)
		if !canTrade {
			reason = "trading disabled"
		}
		return types.Decision{
			Allowed:           false,
			MaxAggressiveness: types.AggrNoTrade,
			RiskBudget:        0,
			Reason:            reason,
		}
	}

	// 2) Probation trades, but conservatively: never above PASSIVE_ONLY
	// and with a fixed small budget, regardless of health.
	if state == types.PermissionProbation {
		maxAggr := types.AggrPassiveOnly
		budget := 0.25
		if health.MaxAggressiveness == types.AggrNoTrade {
			maxAggr = types.AggrNoTrade
			budget = 0
		}
		return types.Decision{
			Allowed:           maxAggr != types.AggrNoTrade,
			MaxAggressiveness: maxAggr,
			RiskBudget:        budget,
			Reason:            fmt.Sprintf("probation + health=%s", health.Mode),
		}
	}

	// 3) ALLOW: health sets aggressiveness and budget.
	if health.MaxAggressiveness == types.AggrNoTrade || health.Mode == types.HealthRed {
		return types.Decision{
			Allowed:           false,
			MaxAggressiveness: types.AggrNoTrade,
			RiskBudget:        0,
			Reason:            "health=RED",
		}
	}

	if health.Mode == types.HealthYellow {
		// 50 -> 0.25, 75 -> 0.55
		b := 0.25 + (clamp(float64(health.Score), 50, 75)-50)*(0.30/25)
		return types.Decision{
			Allowed:           true,
			MaxAggressiveness: types.AggrPassiveOnly,
			RiskBudget:        round3(b),
			Reason:            fmt.Sprintf("health=YELLOW score=%d", health.Score),
		}
	}

	// GREEN: 75 -> 0.60, 95 -> 1.00
	b := 0.60 + (clamp(float64(health.Score), 75, 95)-75)*(0.40/20)
	return types.Decision{
		Allowed:           true,
		MaxAggressiveness: types.AggrLimitOK,
		RiskBudget:        round3(b),
		Reason:            fmt.Sprintf("health=GREEN score=%d", health.Score),
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

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
