// Package main provides the entry point for the sentinel: a
// real-time market-safety and paper-execution control plane for a
// single instrument. It consumes a live trade/book-top stream, runs
// the regime/permission/health decision cascade on a fixed cadence,
// and drives a single simulated working order — no real exchange is
// ever touched.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantdesk/sentinel-backend/internal/api"
	"github.com/quantdesk/sentinel-backend/internal/config"
	"github.com/quantdesk/sentinel-backend/internal/feed"
	"github.com/quantdesk/sentinel-backend/internal/orchestrator"
	"github.com/quantdesk/sentinel-backend/internal/recorder"
	"github.com/quantdesk/sentinel-backend/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path")
	symbol := flag.String("symbol", "", "Instrument symbol override")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}

	logger.Info("Starting sentinel",
		zap.String("symbol", cfg.Symbol),
		zap.String("dataDir", cfg.DataDir),
		zap.Duration("evaluateEvery", cfg.EvaluateEvery),
		zap.Float64("spreadUnstable", cfg.Regime.SpreadUnstable),
		zap.Float64("latencyUnstableMs", cfg.Regime.LatencyUnstableMs),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec, err := recorder.New(logger, cfg.DataDir, cfg.Symbol)
	if err != nil {
		logger.Fatal("Failed to initialize recorder", zap.Error(err))
	}

	tel := telemetry.New()
	control := orchestrator.New(logger, cfg, rec, tel)
	consumer := feed.NewConsumer(logger, cfg.Feed, cfg.Symbol, control)
	server := api.NewServer(logger, cfg.Server, control, tel)

	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Feed consumer error", zap.Error(err))
		}
	}()

	go func() {
		if err := control.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Evaluator error", zap.Error(err))
		}
	}()

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	if err := rec.Close(); err != nil {
		logger.Error("Error closing recorder", zap.Error(err))
	}

	logger.Info("Sentinel stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
