package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkoukos/argus/internal/config"
	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/history"
	"github.com/pkoukos/argus/internal/journal"
	"github.com/pkoukos/argus/internal/signals"
	"github.com/pkoukos/argus/pkg/logger"
)

// backtestCmd replays archived candles through the signal engine and prints
// the hit-rate summary as JSON.
func backtestCmd() *cobra.Command {
	var (
		ticker    string
		timeframe string
		horizon   string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay archived candles through the signal engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: "warn", Pretty: true})

			sym := domain.NormalizeTicker(ticker)
			if !domain.ValidTicker(sym) {
				return fmt.Errorf("invalid ticker %q", ticker)
			}
			tf := domain.Timeframe(timeframe)
			if !domain.ValidTimeframe(tf) {
				return fmt.Errorf("invalid timeframe %q", timeframe)
			}
			h := domain.Horizon(horizon)

			hist, err := history.Open(cfg.DataDir, log)
			if err != nil {
				return err
			}
			defer hist.Close()

			candles, err := hist.LoadSeries(sym, tf)
			if err != nil {
				return err
			}
			if len(candles) < domain.MinCandles {
				return fmt.Errorf("only %d candles archived for %s %s, need at least %d",
					len(candles), sym, tf, domain.MinCandles)
			}

			engine := signals.NewEngine(signals.LoadVersions(cfg.DataDir, log), log)
			result := journal.Backtest(engine, sym, candles, h, log)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "symbol to replay (required)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "1d", "candle timeframe (1m, 5m, 15m, 1h, 4h, 1d)")
	cmd.Flags().StringVar(&horizon, "horizon", "day", "holding horizon (scalp, day, swing)")
	_ = cmd.MarkFlagRequired("ticker")

	return cmd
}
