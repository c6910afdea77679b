package server

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gonum.org/v1/gonum/stat"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/ta"
)

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.deps.Store.Clone()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleTickers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"tickers": s.deps.Store.Watchlist()})
}

func (s *Server) handleTechnicals(w http.ResponseWriter, r *http.Request) {
	ticker := domain.NormalizeTicker(chi.URLParam(r, "ticker"))
	tf := domain.Timeframe(chi.URLParam(r, "timeframe"))
	if !domain.ValidTicker(ticker) {
		writeError(w, http.StatusBadRequest, "invalid ticker")
		return
	}
	if !domain.ValidTimeframe(tf) {
		writeError(w, http.StatusBadRequest, "invalid timeframe")
		return
	}

	facts := s.deps.Store.Ticker(ticker)
	if facts != nil {
		switch tf {
		case domain.TF1d:
			if facts.Technicals != nil {
				writeJSON(w, facts.Technicals)
				return
			}
		case domain.TF5m:
			if facts.IntradayTA != nil {
				writeJSON(w, facts.IntradayTA)
				return
			}
		}
	}

	// Other timeframes come straight off the candle archive.
	if s.deps.History != nil {
		candles, err := s.deps.History.LoadSeries(ticker, tf)
		if err == nil && len(candles) >= domain.MinCandles {
			if tech, err := ta.Compute(candles); err == nil {
				writeJSON(w, tech)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "no technicals for ticker/timeframe")
}

func (s *Server) handleTickerDeep(w http.ResponseWriter, r *http.Request) {
	ticker := domain.NormalizeTicker(chi.URLParam(r, "ticker"))
	facts := s.deps.Store.Ticker(ticker)
	if facts == nil {
		writeError(w, http.StatusNotFound, "unknown ticker")
		return
	}
	writeJSON(w, map[string]any{
		"facts":     facts,
		"score":     s.deps.Store.Score(ticker),
		"discovery": s.deps.Store.Discovery(ticker),
		"tick":      s.deps.Ticks.Summary(ticker),
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	ticker := domain.NormalizeTicker(chi.URLParam(r, "ticker"))
	score := s.deps.Store.Score(ticker)
	if score == nil {
		writeError(w, http.StatusNotFound, "no score for ticker")
		return
	}
	writeJSON(w, score)
}

func (s *Server) handleRegime(w http.ResponseWriter, _ *http.Request) {
	market := s.deps.Store.Market()
	resp := map[string]any{
		"vix":     market.VIX,
		"breadth": market.Breadth,
		"tide":    market.Tide,
	}
	// The per-ticker scores carry the cycle's regime read.
	if scores := s.deps.Store.Scores(); len(scores) > 0 {
		resp["regime"] = scores[0].Regime
	} else {
		resp["regime"] = domain.RegimeUnknown
	}
	writeJSON(w, resp)
}

// handleCorrelation returns the pairwise daily-return correlation matrix of
// the watchlist.
func (s *Server) handleCorrelation(w http.ResponseWriter, _ *http.Request) {
	watch := s.deps.Store.Watchlist()
	returns := make(map[string][]float64, len(watch))
	minLen := 0
	for _, sym := range watch {
		if s.deps.History == nil {
			break
		}
		candles, err := s.deps.History.LoadSeries(sym, domain.TF1d)
		if err != nil || len(candles) < domain.MinCandles {
			continue
		}
		rets := make([]float64, 0, len(candles)-1)
		for i := 1; i < len(candles); i++ {
			if candles[i-1].Close > 0 {
				rets = append(rets, candles[i].Close/candles[i-1].Close-1)
			}
		}
		returns[sym] = rets
		if minLen == 0 || len(rets) < minLen {
			minLen = len(rets)
		}
	}

	matrix := make(map[string]map[string]float64, len(returns))
	for a, ra := range returns {
		matrix[a] = make(map[string]float64, len(returns))
		for b, rb := range returns {
			x := ra[len(ra)-minLen:]
			y := rb[len(rb)-minLen:]
			matrix[a][b] = round3(stat.Correlation(x, y, nil))
		}
	}
	writeJSON(w, map[string]any{"correlation": matrix, "window": minLen})
}

func (s *Server) handleScanner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"discoveries": s.deps.Store.Discoveries()})
}

func (s *Server) handleGaps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"gaps": s.discoveriesBySource(domain.DiscoveryGapAnalyzer)})
}

func (s *Server) handleHalts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"halts": s.discoveriesBySource(domain.DiscoveryHaltResume)})
}

func (s *Server) discoveriesBySource(src domain.DiscoverySource) []*domain.Discovery {
	out := []*domain.Discovery{}
	for _, d := range s.deps.Store.Discoveries() {
		if d.Source == src {
			out = append(out, d)
		}
	}
	return out
}

func (s *Server) handleBudget(w http.ResponseWriter, _ *http.Request) {
	st := s.deps.Store.SchedulerState()
	pct := 0.0
	if st.DailyLimit > 0 {
		pct = float64(st.DailyCallCount) / float64(st.DailyLimit)
	}
	writeJSON(w, map[string]any{
		"dailyCallCount": st.DailyCallCount,
		"dailyLimit":     st.DailyLimit,
		"usedPct":        round3(pct),
		"lastResetDate":  st.LastResetDate,
		"cycleCount":     st.CycleCount,
		"session":        st.SessionName,
		"intervalMs":     st.SessionInterval,
	})
}

func (s *Server) handleDiscoveryPerformance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.deps.Pipeline.Performance())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := 100
	if r.URL.Query().Get("all") == "true" {
		n = 0
	}
	writeJSON(w, map[string]any{"events": s.deps.Events.Recent(n)})
}

func (s *Server) handlePaperTrades(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"trades": s.deps.Journal.Trades()})
}

func (s *Server) handlePaperStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.deps.Journal.Stats())
}

func (s *Server) handleJournalStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"overall":   s.deps.Journal.Stats(),
		"byVersion": s.deps.Journal.StatsByVersion(),
		"setups":    len(s.deps.Journal.Setups()),
	})
}

func (s *Server) handleOptionTrades(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"trades": s.deps.Options.Trades()})
}

func (s *Server) handleOptionStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.deps.Options.Stats())
}

func (s *Server) handleMLStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"dayTrained":    s.deps.Calibrator.Trained(domain.HorizonDay),
		"daySamples":    s.deps.Calibrator.Samples(domain.HorizonDay),
		"swingTrained":  s.deps.Calibrator.Trained(domain.HorizonSwing),
		"swingSamples":  s.deps.Calibrator.Samples(domain.HorizonSwing),
		"datasetSize":   s.deps.Dataset.Len(),
		"importances":   s.deps.Calibrator.Importances(),
		"activeVersion": s.deps.Engine.ActiveVersion(),
	})
}

func (s *Server) handleEODReports(w http.ResponseWriter, _ *http.Request) {
	dates, err := s.deps.Reporter.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report listing failed")
		return
	}
	writeJSON(w, map[string]any{"dates": dates})
}

func (s *Server) handleEODReport(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	rep, err := s.deps.Reporter.Load(date)
	if err != nil {
		writeError(w, http.StatusNotFound, "no report for date")
		return
	}
	writeJSON(w, rep)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
