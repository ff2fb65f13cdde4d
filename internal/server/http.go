// Package server exposes the read-only query API over HTTP, plus the
// operational endpoints (/healthz, /readyz, /metrics).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"CTFIndexer/internal/observability"
	"CTFIndexer/internal/query"
)

// Config holds HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Server is the HTTP query API server.
type Server struct {
	httpServer *http.Server
	queries    *query.QueryService
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	logger     zerolog.Logger
	cfg        Config
}

func New(cfg Config, queries *query.QueryService, health *observability.HealthChecker, metrics *observability.Metrics) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	s := &Server{
		queries: queries,
		health:  health,
		metrics: metrics,
		logger:  observability.NewLogger("server"),
		cfg:     cfg,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats", s.handleGlobalStats)
	mux.HandleFunc("GET /api/stats/daily", s.handleDailyStats)
	mux.HandleFunc("GET /api/markets", s.handleListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", s.handleGetMarket)
	mux.HandleFunc("GET /api/markets/{id}/trades", s.handleMarketTrades)
	mux.HandleFunc("GET /api/markets/{id}/participants", s.handleMarketParticipants)
	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("GET /api/users/{address}", s.handleGetUser)
	mux.HandleFunc("GET /api/users/{address}/positions", s.handleUserPositions)
	mux.HandleFunc("GET /api/users/{address}/trades", s.handleUserTrades)
	mux.HandleFunc("GET /api/tokens/{id}", s.handleGetToken)
	mux.HandleFunc("GET /api/integrity", s.handleIntegrity)

	mux.HandleFunc("GET /healthz", s.health.LivenessHandler)
	mux.HandleFunc("GET /readyz", s.health.ReadinessHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info().Int("port", s.cfg.Port).Msg("query API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- handlers ---

func (s *Server) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "stats", func(ctx context.Context) (interface{}, error) {
		return s.queries.GetGlobalStats(ctx)
	})
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	from := queryInt64(r, "from", 0)
	to := queryInt64(r, "to", time.Now().Unix())
	s.respond(w, r, "stats_daily", func(ctx context.Context) (interface{}, error) {
		return s.queries.GetDailyStats(ctx, from, to)
	})
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r, "limit", 50))
	before := queryInt64Ptr(r, "before")
	resolvedOnly := r.URL.Query().Get("resolved") == "true"
	s.respond(w, r, "markets_list", func(ctx context.Context) (interface{}, error) {
		return s.queries.ListMarkets(ctx, limit, before, resolvedOnly)
	})
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(r.PathValue("id"))
	s.respondMaybe(w, r, "market_get", func(ctx context.Context) (interface{}, bool, error) {
		m, err := s.queries.GetMarket(ctx, id)
		return m, m != nil, err
	})
}

func (s *Server) handleMarketTrades(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(r.PathValue("id"))
	limit := clampLimit(queryInt(r, "limit", 100))
	before := queryInt64Ptr(r, "before")
	s.respond(w, r, "market_trades", func(ctx context.Context) (interface{}, error) {
		return s.queries.ListTrades(ctx, id, "", limit, before)
	})
}

func (s *Server) handleMarketParticipants(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(r.PathValue("id"))
	limit := clampLimit(queryInt(r, "limit", 50))
	s.respond(w, r, "market_participants", func(ctx context.Context) (interface{}, error) {
		return s.queries.GetMarketParticipants(ctx, id, limit)
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r, "limit", 50))
	s.respond(w, r, "users_list", func(ctx context.Context) (interface{}, error) {
		return s.queries.ListUsers(ctx, limit)
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(r.PathValue("address"))
	s.respondMaybe(w, r, "user_get", func(ctx context.Context) (interface{}, bool, error) {
		u, err := s.queries.GetUser(ctx, address)
		return u, u != nil, err
	})
}

func (s *Server) handleUserPositions(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(r.PathValue("address"))
	s.respond(w, r, "user_positions", func(ctx context.Context) (interface{}, error) {
		return s.queries.GetUserPositions(ctx, address)
	})
}

func (s *Server) handleUserTrades(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(r.PathValue("address"))
	limit := clampLimit(queryInt(r, "limit", 100))
	before := queryInt64Ptr(r, "before")
	s.respond(w, r, "user_trades", func(ctx context.Context) (interface{}, error) {
		return s.queries.ListTrades(ctx, "", address, limit, before)
	})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.respondMaybe(w, r, "token_get", func(ctx context.Context) (interface{}, bool, error) {
		t, err := s.queries.GetToken(ctx, id)
		return t, t != nil, err
	})
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "integrity", func(ctx context.Context) (interface{}, error) {
		return s.queries.VerifyIntegrity(ctx)
	})
}

// --- response plumbing ---

func (s *Server) respond(w http.ResponseWriter, r *http.Request, endpoint string, fn func(context.Context) (interface{}, error)) {
	s.respondMaybe(w, r, endpoint, func(ctx context.Context) (interface{}, bool, error) {
		v, err := fn(ctx)
		return v, true, err
	})
}

func (s *Server) respondMaybe(w http.ResponseWriter, r *http.Request, endpoint string, fn func(context.Context) (interface{}, bool, error)) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	v, found, err := fn(ctx)

	if s.metrics != nil {
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}

	switch {
	case err != nil:
		s.countRequest(endpoint, "error")
		s.logger.Error().Str("endpoint", endpoint).Err(err).Msg("query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	case !found:
		s.countRequest(endpoint, "not_found")
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		s.countRequest(endpoint, "ok")
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) countRequest(endpoint, status string) {
	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range s.cfg.CORSOrigins {
			if allowed == "*" || allowed == origin {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				break
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// --- query param helpers ---

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryInt64(r *http.Request, key string, def int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func queryInt64Ptr(r *http.Request, key string) *int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > 500 {
		return 500
	}
	return n
}
