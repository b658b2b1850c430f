// Package api provides the operator HTTP surface: health probe,
// last-evaluation status, Prometheus metrics, and the trading kill
// switch.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/quantdesk/sentinel-backend/internal/orchestrator"
	"github.com/quantdesk/sentinel-backend/internal/telemetry"
	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the operator HTTP server.
type Server struct {
	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	control    *orchestrator.Orchestrator
}

// NewServer creates the server and its routes. tel may be nil to
// disable the metrics endpoint.
func NewServer(logger *zap.Logger, config types.ServerConfig, control *orchestrator.Orchestrator, tel *telemetry.Metrics) *Server {
	s := &Server{
		logger:  logger.Named("api"),
		config:  config,
		router:  mux.NewRouter(),
		control: control,
	}

	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/trading", s.handleSetTrading).Methods("POST")
	if tel != nil {
		s.router.Handle("/metrics", tel.Handler()).Methods("GET")
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.control.Status())
}

// handleSetTrading flips the operator kill switch.
func (s *Server) handleSetTrading(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.control.SetTradingEnabled(req.Enabled)
	s.writeJSON(w, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}
