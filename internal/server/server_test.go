package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/events"
	"github.com/pkoukos/argus/internal/journal"
	"github.com/pkoukos/argus/internal/ml"
	"github.com/pkoukos/argus/internal/sources"
	"github.com/pkoukos/argus/internal/state"
)

type nopRecorder struct{}

func (nopRecorder) Record(string, int) {}

func newTestServer(t *testing.T) (*Server, *state.Store, *sources.TickStream) {
	t.Helper()
	dir := t.TempDir()
	log := zerolog.Nop()

	store := state.New(dir, log)
	require.NoError(t, store.Load([]string{"SPY"}))
	ticks := sources.NewTickStream("", log)

	reg := sources.NewRegistry()
	reg.Register(sources.NewSimProvider(), sources.DefaultGuardConfig())
	fetcher := sources.NewFetcher(reg, store, nil, ticks, nopRecorder{}, log)

	deps := Deps{
		Store:      store,
		Journal:    journal.Open(dir, log),
		Options:    journal.OpenOptions(dir, log),
		Calibrator: ml.New(log),
		Dataset:    ml.OpenDataset(dir, log),
		Ticks:      ticks,
		Fetcher:    fetcher,
		Events:     events.NewLog(),
		DataDir:    dir,
	}
	return New(0, deps, log), store, ticks
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleStateReturnsSnapshot(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.UpdateTicker("SPY", func(tf *domain.TickerFacts) {
		tf.Quote = &domain.Quote{Ticker: "SPY", Last: 512}
	})

	rec := doJSON(t, s, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap struct {
		Tickers map[string]*domain.TickerFacts `json:"tickers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Contains(t, snap.Tickers, "SPY")
	assert.Equal(t, 512.0, snap.Tickers["SPY"].Quote.Last)
}

func TestErrorEnvelopeShape(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/signals/ZZZZ", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no score for ticker", body["error"])
	assert.Len(t, body, 1, "errors carry only the error key")
}

func TestMutateTickers(t *testing.T) {
	s, store, ticks := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/tickers", map[string]string{"ticker": "tsla", "action": "add"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.OnWatchlist("TSLA"))
	assert.True(t, ticks.Subscribed("TSLA"))

	var resp struct {
		Tickers []string `json:"tickers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Tickers, "TSLA")

	rec = doJSON(t, s, http.MethodPost, "/api/tickers", map[string]string{"ticker": "TSLA", "action": "remove"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, store.OnWatchlist("TSLA"))
	assert.False(t, ticks.Subscribed("TSLA"))

	rec = doJSON(t, s, http.MethodPost, "/api/tickers", map[string]string{"ticker": "bad!", "action": "add"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/tickers", map[string]string{"ticker": "NVDA", "action": "rename"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateTicker(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/validate-ticker", map[string]string{"ticker": "not a ticker"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["valid"])
	assert.Equal(t, "bad symbol format", resp["reason"])

	// The simulated provider resolves any well-formed symbol.
	rec = doJSON(t, s, http.MethodPost, "/api/validate-ticker", map[string]string{"ticker": "NVDA"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["valid"])
	assert.Greater(t, resp["price"].(float64), 0.0)
}

func TestPaperTradeLifecycleOverHTTP(t *testing.T) {
	s, _, _ := newTestServer(t)

	open := map[string]any{
		"ticker": "NVDA", "direction": "long",
		"entry": 100.0, "stop": 98.0, "target1": 103.0, "shares": 10,
	}
	rec := doJSON(t, s, http.MethodPost, "/api/paper-trades", open)
	require.Equal(t, http.StatusOK, rec.Code)
	var trade domain.PaperTrade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trade))
	assert.Equal(t, domain.StatusPending, trade.Status)
	assert.Equal(t, 10, trade.Shares)

	// Duplicate pending position conflicts.
	rec = doJSON(t, s, http.MethodPost, "/api/paper-trades", open)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/paper-trades/close", map[string]any{"id": trade.ID, "price": 101.0})
	require.Equal(t, http.StatusOK, rec.Code)
	var closed domain.PaperTrade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed))
	assert.Equal(t, domain.StatusClosedManual, closed.Status)
	assert.Equal(t, 1.0, closed.PnlPoints)

	rec = doJSON(t, s, http.MethodPost, "/api/paper-trades/close", map[string]any{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBudgetEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.UpdateScheduler(func(st *domain.SchedulerState) {
		st.DailyCallCount = 450
		st.DailyLimit = 1000
	})

	rec := doJSON(t, s, http.MethodGet, "/api/budget", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 450.0, resp["dailyCallCount"])
	assert.Equal(t, 0.45, resp["usedPct"])
}

func TestEventsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.deps.Events.Add("system", "", "boot")

	rec := doJSON(t, s, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Events []events.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "boot", resp.Events[0].Text)
}
