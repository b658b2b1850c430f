// Package config loads the sentinel configuration surface.
// Every knob has a default; overrides come from an optional config file
// and SENTINEL_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Load reads configuration from the given file path (optional, may be
// empty) merged over built-in defaults and environment variables.
func Load(path string) (*types.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	baseQty, err := decimal.NewFromString(v.GetString("execution.base_quantity"))
	if err != nil {
		return nil, fmt.Errorf("parse execution.base_quantity: %w", err)
	}

	cfg := &types.Config{
		Symbol:        v.GetString("symbol"),
		DataDir:       v.GetString("data_dir"),
		EvaluateEvery: v.GetDuration("evaluate_every"),
		Feed: types.FeedConfig{
			WSBase:        v.GetString("feed.ws_base"),
			ReconnectWait: v.GetDuration("feed.reconnect_wait"),
		},
		Regime: types.RegimeConfig{
			SpreadUnstable:    v.GetFloat64("regime.spread_unstable"),
			LatencyUnstableMs: v.GetFloat64("regime.latency_unstable_ms"),
			FastTradesPer10s:  v.GetInt("regime.fast_trades_per_10s"),
			FastMidDelta:      v.GetFloat64("regime.fast_mid_delta"),
		},
		Permission: types.PermissionConfig{
			UnstablePersistMs:   v.GetInt64("permission.unstable_persist_ms"),
			WideSpreadPersistMs: v.GetInt64("permission.wide_spread_persist_ms"),
			LatencySpikeMs:      v.GetFloat64("permission.latency_spike_ms"),
			LatencySpikeConsec:  v.GetInt("permission.latency_spike_consec"),
			CooldownMs:          v.GetInt64("permission.cooldown_ms"),
			ProbationMs:         v.GetInt64("permission.probation_ms"),
			SpreadUnstable:      v.GetFloat64("regime.spread_unstable"),
		},
		Health: types.HealthConfig{
			SpreadUnstable:      v.GetFloat64("regime.spread_unstable"),
			LatencyUnstableMs:   v.GetFloat64("regime.latency_unstable_ms"),
			SpreadGood:          v.GetFloat64("health.spread_good"),
			LatencyGoodMs:       v.GetFloat64("health.latency_good_ms"),
			TradesGood:          v.GetInt("health.trades_good"),
			MidDeltaGood:        v.GetFloat64("health.mid_delta_good"),
			HardRedSpreadRatio:  v.GetFloat64("health.hard_red_spread_ratio"),
			HardRedLatencyRatio: v.GetFloat64("health.hard_red_latency_ratio"),
			HardRedMidMultiple:  v.GetFloat64("health.hard_red_mid_multiple"),
		},
		Execution: types.ExecutionConfig{
			TimeInForceMs:       v.GetInt64("execution.time_in_force_ms"),
			BaseQuantity:        baseQty,
			MinFillLatencyMs:    v.GetInt64("execution.min_fill_latency_ms"),
			MaxRepricesPerOrder: v.GetInt("execution.max_reprices_per_order"),
			MarkoutHorizonMs:    v.GetInt64("execution.markout_horizon_ms"),
			RepriceOnBestChange: v.GetBool("execution.reprice_on_best_change"),
			CancelOnCross:       v.GetBool("execution.cancel_on_cross"),
		},
		Server: types.ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
	}

	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol must not be empty")
	}
	if cfg.EvaluateEvery <= 0 {
		return nil, fmt.Errorf("evaluate_every must be positive")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbol", "ethbtc")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("evaluate_every", 10*time.Second)

	v.SetDefault("feed.ws_base", "wss://stream.binance.com:9443/stream")
	v.SetDefault("feed.reconnect_wait", 3*time.Second)

	v.SetDefault("regime.spread_unstable", 0.5)
	v.SetDefault("regime.latency_unstable_ms", 2500)
	v.SetDefault("regime.fast_trades_per_10s", 120)
	v.SetDefault("regime.fast_mid_delta", 0.00005)

	v.SetDefault("permission.unstable_persist_ms", 3000)
	v.SetDefault("permission.wide_spread_persist_ms", 1500)
	v.SetDefault("permission.latency_spike_ms", 2500)
	v.SetDefault("permission.latency_spike_consec", 2)
	v.SetDefault("permission.cooldown_ms", 60_000)
	v.SetDefault("permission.probation_ms", 30_000)

	v.SetDefault("health.spread_good", 0.03)
	v.SetDefault("health.latency_good_ms", 800)
	v.SetDefault("health.trades_good", 1200)
	v.SetDefault("health.mid_delta_good", 25.0)
	v.SetDefault("health.hard_red_spread_ratio", 0.9)
	v.SetDefault("health.hard_red_latency_ratio", 0.9)
	v.SetDefault("health.hard_red_mid_multiple", 3.0)

	v.SetDefault("execution.time_in_force_ms", 10_000)
	v.SetDefault("execution.base_quantity", "0.001")
	v.SetDefault("execution.min_fill_latency_ms", 200)
	v.SetDefault("execution.max_reprices_per_order", 5)
	v.SetDefault("execution.markout_horizon_ms", 5000)
	v.SetDefault("execution.reprice_on_best_change", true)
	v.SetDefault("execution.cancel_on_cross", true)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
}
