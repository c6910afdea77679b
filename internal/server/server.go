// Package server exposes the REST and WebSocket surface over the engine
// state: read endpoints for every fact category, mutating endpoints for the
// watchlist and the paper ledgers, webhooks, and operator tooling.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/discovery"
	"github.com/pkoukos/argus/internal/eod"
	"github.com/pkoukos/argus/internal/events"
	"github.com/pkoukos/argus/internal/history"
	"github.com/pkoukos/argus/internal/journal"
	"github.com/pkoukos/argus/internal/ml"
	"github.com/pkoukos/argus/internal/notify"
	"github.com/pkoukos/argus/internal/scheduler"
	"github.com/pkoukos/argus/internal/signals"
	"github.com/pkoukos/argus/internal/sources"
	"github.com/pkoukos/argus/internal/state"
)

// Deps bundles everything the handlers read or mutate.
type Deps struct {
	Store      *state.Store
	Journal    *journal.Journal
	Options    *journal.OptionsJournal
	Engine     *signals.Engine
	Calibrator *ml.Calibrator
	Dataset    *ml.Dataset
	Reporter   *eod.Reporter
	Pipeline   *discovery.Pipeline
	Scheduler  *scheduler.Scheduler
	History    *history.Store
	Ticks      *sources.TickStream
	Fetcher    *sources.Fetcher
	Events     *events.Log
	Notifier   *notify.Notifier
	DataDir    string
}

// Server is the HTTP front.
type Server struct {
	deps Deps
	hub  *Hub
	http *http.Server
	log  zerolog.Logger

	xMu     sync.RWMutex
	xAlerts []XAlert
}

// New builds the server and its router.
func New(port int, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		deps: deps,
		log:  log.With().Str("component", "server").Logger(),
	}
	s.hub = NewHub(deps.Store, s.log)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/tickers", s.handleTickers)
		r.Post("/tickers", s.handleMutateTickers)
		r.Get("/technicals/{ticker}/{timeframe}", s.handleTechnicals)
		r.Get("/ticker/{ticker}/deep", s.handleTickerDeep)
		r.Get("/signals/{ticker}", s.handleSignals)
		r.Get("/regime", s.handleRegime)
		r.Get("/correlation", s.handleCorrelation)
		r.Get("/scanner", s.handleScanner)
		r.Get("/x-alerts", s.handleXAlerts)
		r.Get("/gaps", s.handleGaps)
		r.Get("/halts", s.handleHalts)

		r.Get("/paper-trades", s.handlePaperTrades)
		r.Post("/paper-trades", s.handleOpenPaperTrade)
		r.Post("/paper-trades/close", s.handleClosePaperTrade)
		r.Get("/paper-trades/stats", s.handlePaperStats)
		r.Get("/journal/stats", s.handleJournalStats)

		r.Get("/options-paper/trades", s.handleOptionTrades)
		r.Get("/options-paper/stats", s.handleOptionStats)
		r.Post("/options-paper/open", s.handleOpenOptionTrade)
		r.Post("/options-paper/close", s.handleCloseOptionTrade)
		r.Post("/options-paper/auto-enter/{ticker}", s.handleAutoEnterOption)

		r.Get("/ml/status", s.handleMLStatus)
		r.Post("/ml/retrain", s.handleMLRetrain)
		r.Post("/backtest", s.handleBacktest)

		r.Get("/eod-reports", s.handleEODReports)
		r.Get("/eod-report/{date}", s.handleEODReport)
		r.Post("/eod-report/generate", s.handleEODGenerate)

		r.Get("/budget", s.handleBudget)
		r.Get("/discovery-performance", s.handleDiscoveryPerformance)
		r.Get("/events", s.handleEvents)
		r.Get("/system", s.handleSystem)

		r.Post("/validate-ticker", s.handleValidateTicker)
		r.Post("/scan-low-float", s.handleScanLowFloat)
		r.Post("/chat", s.handleChat)
	})

	r.Post("/webhook/tradingview", s.handleTradingViewWebhook)
	r.Post("/webhook/x-alert", s.handleXAlertWebhook)

	r.Get("/ws", s.hub.HandleWS)
	r.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub returns the websocket hub for the scheduler's broadcast hook.
func (s *Server) Hub() *Hub { return s.hub }

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("Request")
		})
	}
}

// writeJSON renders a 200 payload.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError renders the uniform error envelope.
func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// decodeBody parses a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
