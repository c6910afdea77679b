// Package main is the entry point for the Argus trading intelligence engine.
// The default command runs the full service: tiered refresh scheduler, signal
// engine, ML calibrator, paper-trade journal, discovery pipeline and the
// REST + WebSocket surface. A backtest subcommand replays the archived candle
// history through the signal engine offline.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkoukos/argus/internal/config"
	"github.com/pkoukos/argus/internal/discovery"
	"github.com/pkoukos/argus/internal/eod"
	"github.com/pkoukos/argus/internal/events"
	"github.com/pkoukos/argus/internal/history"
	"github.com/pkoukos/argus/internal/journal"
	"github.com/pkoukos/argus/internal/ml"
	"github.com/pkoukos/argus/internal/notify"
	"github.com/pkoukos/argus/internal/scheduler"
	"github.com/pkoukos/argus/internal/server"
	"github.com/pkoukos/argus/internal/signals"
	"github.com/pkoukos/argus/internal/sources"
	"github.com/pkoukos/argus/internal/state"
	"github.com/pkoukos/argus/pkg/logger"
)

func main() {
	root := &cobra.Command{
		Use:   "argus",
		Short: "Real-time trading intelligence engine",
		Run: func(cmd *cobra.Command, args []string) {
			serve()
		},
	}
	root.AddCommand(backtestCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// recorderRelay defers call-recorder wiring: the fetcher is constructed before
// the scheduler that counts its calls.
type recorderRelay struct {
	mu   sync.Mutex
	next sources.CallRecorder
}

func (r *recorderRelay) Record(provider string, n int) {
	r.mu.Lock()
	next := r.next
	r.mu.Unlock()
	if next != nil {
		next.Record(provider, n)
	}
}

func (r *recorderRelay) Set(next sources.CallRecorder) {
	r.mu.Lock()
	r.next = next
	r.mu.Unlock()
}

// broadcastRelay defers hub wiring: the scheduler is constructed before the
// server that owns the WebSocket hub.
type broadcastRelay struct {
	mu     sync.Mutex
	target scheduler.Broadcaster
}

func (b *broadcastRelay) BroadcastState() {
	b.mu.Lock()
	target := b.target
	b.mu.Unlock()
	if target != nil {
		target.BroadcastState()
	}
}

func (b *broadcastRelay) Set(target scheduler.Broadcaster) {
	b.mu.Lock()
	b.target = target
	b.mu.Unlock()
}

func serve() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Str("dataDir", cfg.DataDir).Bool("devMode", cfg.DevMode).Msg("Starting Argus")

	store := state.New(cfg.DataDir, log)
	if err := store.Load(cfg.Tickers); err != nil {
		log.Fatal().Err(err).Msg("Failed to load state")
	}

	hist, err := history.Open(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open candle history")
	}
	defer hist.Close()

	ticks := sources.NewTickStream(cfg.TickStreamURL, log)

	reg := sources.NewRegistry()
	var scanProvider sources.ScannerProvider
	if cfg.UnusualWhalesToken != "" {
		uw := sources.NewUW(cfg.UnusualWhalesToken)
		reg.Register(uw, sources.DefaultGuardConfig())
		scanProvider = uw
	}
	if cfg.PolygonAPIKey != "" {
		reg.Register(sources.NewPolygon(cfg.PolygonAPIKey), sources.DefaultGuardConfig())
	}
	if cfg.AlphaVantageAPIKey != "" {
		// Alpha Vantage free tier throttles hard; keep the bucket small.
		reg.Register(sources.NewAlphaVantage(cfg.AlphaVantageAPIKey), sources.GuardConfig{
			RPS:         0.1,
			Burst:       2,
			Timeout:     10 * time.Second,
			BreakerOpen: time.Minute,
		})
	}
	if cfg.DevMode {
		sim := sources.NewSimProvider()
		reg.Register(sim, sources.DefaultGuardConfig())
		if scanProvider == nil {
			scanProvider = sim
		}
	}
	if len(reg.Providers()) == 0 {
		log.Warn().Msg("No data providers configured, state entries will stay empty")
	}

	callRec := &recorderRelay{}
	fetcher := sources.NewFetcher(reg, store, hist, ticks, callRec, log)

	engine := signals.NewEngine(signals.LoadVersions(cfg.DataDir, log), log)

	calibrator := ml.New(log)
	if err := calibrator.LoadModels(cfg.DataDir); err != nil {
		log.Warn().Err(err).Msg("ML model load failed, starting untrained")
	}
	dataset := ml.OpenDataset(cfg.DataDir, log)

	jnl := journal.Open(cfg.DataDir, log)
	optJnl := journal.OpenOptions(cfg.DataDir, log)

	var channels []notify.Channel
	if cfg.DiscordWebhookURL != "" {
		channels = append(channels, notify.NewDiscord(cfg.DiscordWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram channel unavailable")
		} else {
			channels = append(channels, tg)
		}
	}
	notifier := notify.New(log, channels...)

	scanner := discovery.NewScanner(scanProvider, fetcher, log)
	pipeline := discovery.New(cfg.DataDir, store, ticks, log,
		scanner,
		discovery.NewVolRunner(fetcher, log),
		discovery.NewHaltResume(log),
		discovery.NewGapAnalyzer(store, log),
	)

	reporter := eod.New(cfg.DataDir, store, jnl, notifier, log)
	eventLog := events.NewLog()

	broadcast := &broadcastRelay{}
	sched := scheduler.New(scheduler.Deps{
		Store:      store,
		Fetcher:    fetcher,
		Ticks:      ticks,
		Engine:     engine,
		Calibrator: calibrator,
		Dataset:    dataset,
		Journal:    jnl,
		Pipeline:   pipeline,
		Scanner:    scanner,
		Reporter:   reporter,
		Notifier:   notifier,
		Events:     eventLog,
		Broadcast:  broadcast,
		History:    hist,
		DataDir:    cfg.DataDir,
		DailyLimit: cfg.DailyCallLimit,
	}, log)

	srv := server.New(cfg.Port, server.Deps{
		Store:      store,
		Journal:    jnl,
		Options:    optJnl,
		Engine:     engine,
		Calibrator: calibrator,
		Dataset:    dataset,
		Reporter:   reporter,
		Pipeline:   pipeline,
		Scheduler:  sched,
		History:    hist,
		Ticks:      ticks,
		Fetcher:    fetcher,
		Events:     eventLog,
		Notifier:   notifier,
		DataDir:    cfg.DataDir,
	}, log)
	broadcast.Set(srv.Hub())

	metrics := server.NewMetrics(sched,
		func() float64 { return float64(store.SchedulerState().CycleCount) },
		func() float64 { return float64(len(jnl.Pending())) },
		func() float64 { return float64(srv.Hub().Clients()) },
	)
	callRec.Set(metrics)

	// Watchlist tickers stay subscribed for the life of the process.
	for _, t := range store.Watchlist() {
		ticks.Subscribe(t, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ticks.Run(ctx)
	go sched.Run(ctx)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := store.Save(); err != nil {
		log.Error().Err(err).Msg("Final state save failed")
	}
	log.Info().Msg("Stopped")
}
