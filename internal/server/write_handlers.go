package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/journal"
	"github.com/pkoukos/argus/internal/ml"
	"github.com/pkoukos/argus/internal/sources"
)

// handleMutateTickers adds or removes a watchlist symbol, persists the list
// and keeps tape subscriptions in sync.
func (s *Server) handleMutateTickers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticker string `json:"ticker"`
		Action string `json:"action"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ticker := domain.NormalizeTicker(req.Ticker)
	if !domain.ValidTicker(ticker) {
		writeError(w, http.StatusBadRequest, "invalid ticker symbol")
		return
	}

	switch strings.ToLower(req.Action) {
	case "add":
		added, err := s.deps.Store.AddTicker(ticker)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if added {
			s.deps.Ticks.Subscribe(ticker, 0)
		}
	case "remove":
		removed, err := s.deps.Store.RemoveTicker(ticker)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if removed {
			s.deps.Ticks.Unsubscribe(ticker)
		}
	default:
		writeError(w, http.StatusBadRequest, "action must be add or remove")
		return
	}

	s.hub.BroadcastState()
	writeJSON(w, map[string]any{"tickers": s.deps.Store.Watchlist()})
}

// handleOpenPaperTrade opens a manual paper trade.
func (s *Server) handleOpenPaperTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticker    string  `json:"ticker"`
		Direction string  `json:"direction"`
		Entry     float64 `json:"entry"`
		Stop      float64 `json:"stop"`
		Target1   float64 `json:"target1"`
		Target2   float64 `json:"target2"`
		Shares    int     `json:"shares"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ticker := domain.NormalizeTicker(req.Ticker)
	if !domain.ValidTicker(ticker) {
		writeError(w, http.StatusBadRequest, "invalid ticker symbol")
		return
	}
	dir := domain.Long
	if strings.EqualFold(req.Direction, string(domain.Short)) {
		dir = domain.Short
	}

	setup := &domain.TradeSetup{
		Ticker:    ticker,
		Direction: dir,
		Entry:     req.Entry,
		Stop:      req.Stop,
		Target1:   req.Target1,
		Target2:   req.Target2,
		Horizon:   domain.HorizonDay,
		CreatedAt: time.Now(),
	}
	if setup.Entry <= 0 {
		if facts := s.deps.Store.Ticker(ticker); facts != nil && facts.Quote != nil {
			setup.Entry = facts.Quote.Last
		}
	}
	if req.Shares > 0 {
		setup.KellyShares = req.Shares
	} else {
		_, setup.KellyShares = s.deps.Journal.KellySize(setup.Entry, setup.Stop)
	}

	trade, err := s.deps.Journal.OpenTrade(setup, "manual", time.Now())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.hub.BroadcastState()
	writeJSON(w, trade)
}

// handleClosePaperTrade closes one trade at the given (or last known) price.
func (s *Server) handleClosePaperTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	}
	if err := decodeBody(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid body, id required")
		return
	}
	trade, err := s.deps.Journal.CloseManual(req.ID, req.Price, time.Now())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.hub.BroadcastState()
	writeJSON(w, trade)
}

func (s *Server) handleOpenOptionTrade(w http.ResponseWriter, r *http.Request) {
	var req journal.OptionTrade
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Ticker = domain.NormalizeTicker(req.Ticker)
	trade, err := s.deps.Options.Open(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.hub.BroadcastState()
	writeJSON(w, trade)
}

func (s *Server) handleCloseOptionTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string  `json:"id"`
		ExitPremium float64 `json:"exitPremium"`
	}
	if err := decodeBody(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid body, id required")
		return
	}
	trade, err := s.deps.Options.Close(req.ID, req.ExitPremium, time.Now())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.hub.BroadcastState()
	writeJSON(w, trade)
}

func (s *Server) handleAutoEnterOption(w http.ResponseWriter, r *http.Request) {
	ticker := domain.NormalizeTicker(chi.URLParam(r, "ticker"))
	score := s.deps.Store.Score(ticker)
	facts := s.deps.Store.Ticker(ticker)
	trade, err := s.deps.Options.AutoEnter(score, facts, time.Now())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.hub.BroadcastState()
	writeJSON(w, trade)
}

// handleMLRetrain retrains immediately and optionally absorbs importances
// into the active signal weights.
func (s *Server) handleMLRetrain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AbsorbWeights bool `json:"absorbWeights"`
	}
	_ = decodeBody(r, &req) // empty body means plain retrain

	samples := s.deps.Dataset.All()
	if len(samples) < ml.MinSamples {
		writeError(w, http.StatusConflict, "not enough labeled samples to train")
		return
	}
	s.deps.Calibrator.Train(samples)
	if err := s.deps.Calibrator.SaveModels(s.deps.DataDir); err != nil {
		s.log.Warn().Err(err).Msg("Model persist failed")
	}
	if req.AbsorbWeights {
		s.deps.Engine.AbsorbWeights(s.deps.Calibrator.Importances())
	}
	s.deps.Events.Add("train", "", "operator retrain")
	writeJSON(w, map[string]any{
		"trained":     true,
		"datasetSize": len(samples),
		"importances": s.deps.Calibrator.Importances(),
	})
}

// handleBacktest replays archived candles for a ticker and feeds the labeled
// samples into the dataset.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticker    string `json:"ticker"`
		Timeframe string `json:"timeframe"`
		Horizon   string `json:"horizon"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ticker := domain.NormalizeTicker(req.Ticker)
	if !domain.ValidTicker(ticker) {
		writeError(w, http.StatusBadRequest, "invalid ticker symbol")
		return
	}
	tf := domain.Timeframe(req.Timeframe)
	if req.Timeframe == "" {
		tf = domain.TF1d
	}
	if !domain.ValidTimeframe(tf) {
		writeError(w, http.StatusBadRequest, "invalid timeframe")
		return
	}
	horizon := domain.Horizon(req.Horizon)
	if req.Horizon == "" {
		horizon = domain.HorizonDay
	}

	candles, err := s.deps.History.LoadSeries(ticker, tf)
	if err != nil || len(candles) <= domain.MinCandles {
		writeError(w, http.StatusNotFound, "no archived candles for ticker")
		return
	}

	res := journal.Backtest(s.deps.Engine, ticker, candles, horizon, s.log)
	if len(res.Samples) > 0 {
		if err := s.deps.Dataset.Append(res.Samples...); err != nil {
			s.log.Warn().Err(err).Msg("Backtest sample persist failed")
		}
	}
	writeJSON(w, res)
}

func (s *Server) handleEODGenerate(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Reporter.Generate(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, rep)
}

// handleValidateTicker checks a symbol resolves against a provider before
// the UI offers to add it.
func (s *Server) handleValidateTicker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticker string `json:"ticker"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ticker := domain.NormalizeTicker(req.Ticker)
	if !domain.ValidTicker(ticker) {
		writeJSON(w, map[string]any{"ticker": ticker, "valid": false, "reason": "bad symbol format"})
		return
	}
	q, err := s.deps.Fetcher.FetchQuote(r.Context(), ticker)
	if err != nil || q == nil || q.Last <= 0 {
		writeJSON(w, map[string]any{"ticker": ticker, "valid": false, "reason": "no quote from providers"})
		return
	}
	writeJSON(w, map[string]any{"ticker": ticker, "valid": true, "price": q.Last})
}

// handleScanLowFloat runs an on-demand low-float runner screen.
func (s *Server) handleScanLowFloat(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Fetcher.Screen(r.Context(), sources.ScreenQuery{
		MinChangePct: 5,
		MinVolume:    250_000,
		MaxMarketCap: 100_000_000,
		MinRelVolume: 2,
		LowFloat:     true,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "screen failed")
		return
	}
	writeJSON(w, map[string]any{"results": rows})
}

// handleChat is served by an external collaborator; the engine only reserves
// the route.
func (s *Server) handleChat(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotImplemented, "chat surface not enabled on this deployment")
}
