// Package execution_test provides tests for the execution policy.
package execution_test

import (
	"testing"

	"github.com/quantdesk/sentinel-backend/internal/execution"
	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func policyConfig() types.ExecutionConfig {
	return types.ExecutionConfig{
		TimeInForceMs:       10_000,
		BaseQuantity:        decimal.RequireFromString("0.001"),
		MinFillLatencyMs:    200,
		MaxRepricesPerOrder: 5,
		MarkoutHorizonMs:    5000,
		RepriceOnBestChange: true,
		CancelOnCross:       true,
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTargetPricePassiveRestsOnOwnSide(t *testing.T) {
	p := execution.NewPolicy(policyConfig())
	bid, ask := d("99.5"), d("100.5")

	if px := p.TargetPrice(types.SideBuy, types.AggrPassiveOnly, bid, ask); !px.Equal(bid) {
		t.Fatalf("passive BUY must rest at bid, got %s", px)
	}
	if px := p.TargetPrice(types.SideSell, types.AggrPassiveOnly, bid, ask); !px.Equal(ask) {
		t.Fatalf("passive SELL must rest at ask, got %s", px)
	}
}

func TestTargetPriceLimitOKPricesCrossingSide(t *testing.T) {
	p := execution.NewPolicy(policyConfig())
	bid, ask := d("99.5"), d("100.5")

	if px := p.TargetPrice(types.SideBuy, types.AggrLimitOK, bid, ask); !px.Equal(ask) {
		t.Fatalf("LIMIT_OK BUY must price at ask, got %s", px)
	}
	if px := p.TargetPrice(types.SideSell, types.AggrLimitOK, bid, ask); !px.Equal(bid) {
		t.Fatalf("LIMIT_OK SELL must price at bid, got %s", px)
	}
}

func TestShouldRepriceExactEquality(t *testing.T) {
	p := execution.NewPolicy(policyConfig())
	bid, ask := d("99.5"), d("100.5")

	if p.ShouldReprice(types.SideBuy, types.AggrPassiveOnly, bid, bid, ask) {
		t.Fatal("order already at target must not reprice")
	}
	// Different representation of an equal value is still equal.
	if p.ShouldReprice(types.SideBuy, types.AggrPassiveOnly, d("99.50"), bid, ask) {
		t.Fatal("decimal equality must ignore trailing zeros")
	}
	if !p.ShouldReprice(types.SideBuy, types.AggrPassiveOnly, d("99.4"), bid, ask) {
		t.Fatal("any price mismatch must trigger a reprice")
	}
}

func TestShouldRepriceDisabled(t *testing.T) {
	cfg := policyConfig()
	cfg.RepriceOnBestChange = false
	p := execution.NewPolicy(cfg)

	if p.ShouldReprice(types.SideBuy, types.AggrPassiveOnly, d("1"), d("99.5"), d("100.5")) {
		t.Fatal("reprices must be off when disabled")
	}
}

func TestShouldCancelOnCross(t *testing.T) {
	p := execution.NewPolicy(policyConfig())

	// Ask dropped below the BUY price: stale.
	if !p.ShouldCancelOnCross(types.SideBuy, d("100"), d("98"), d("99.9")) {
		t.Fatal("BUY must cancel when ask drops below order price")
	}
	if p.ShouldCancelOnCross(types.SideBuy, d("100"), d("98"), d("100")) {
		t.Fatal("ask equal to BUY price is a fill case, not a cross cancel")
	}

	// Bid rose above the SELL price: stale.
	if !p.ShouldCancelOnCross(types.SideSell, d("100"), d("100.1"), d("101")) {
		t.Fatal("SELL must cancel when bid rises above order price")
	}
	if p.ShouldCancelOnCross(types.SideSell, d("100"), d("100"), d("101")) {
		t.Fatal("bid equal to SELL price is a fill case, not a cross cancel")
	}
}

func TestShouldCancelOnCrossDisabled(t *testing.T) {
	cfg := policyConfig()
	cfg.CancelOnCross = false
	p := execution.NewPolicy(cfg)

	if p.ShouldCancelOnCross(types.SideBuy, d("100"), d("98"), d("99")) {
		t.Fatal("cross cancels must be off when disabled")
	}
}
