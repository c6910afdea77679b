package server

import (
	"net/http"
	"time"

	"github.com/pkoukos/argus/internal/domain"
)

// xAlertsKeep bounds the external-alert ring.
const xAlertsKeep = 100

// XAlert is one alert received from the X (Twitter) watcher webhook.
type XAlert struct {
	Ticker   string    `json:"ticker"`
	Author   string    `json:"author,omitempty"`
	Text     string    `json:"text"`
	Link     string    `json:"link,omitempty"`
	Received time.Time `json:"received"`
}

// handleTradingViewWebhook accepts TradingView alert POSTs and rebroadcasts
// them to connected clients as alert frames.
func (s *Server) handleTradingViewWebhook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Ticker  string  `json:"ticker"`
		Action  string  `json:"action"`
		Price   float64 `json:"price"`
		Message string  `json:"message"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	payload.Ticker = domain.NormalizeTicker(payload.Ticker)

	s.deps.Events.Add("alert", payload.Ticker, "tradingview: "+payload.Message)
	s.hub.BroadcastAlert(map[string]any{
		"source":  "tradingview",
		"ticker":  payload.Ticker,
		"action":  payload.Action,
		"price":   payload.Price,
		"message": payload.Message,
	})
	writeJSON(w, map[string]any{"received": true})
}

// handleXAlertWebhook ingests one external X alert into the ring.
func (s *Server) handleXAlertWebhook(w http.ResponseWriter, r *http.Request) {
	var a XAlert
	if err := decodeBody(r, &a); err != nil || a.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid body, text required")
		return
	}
	a.Ticker = domain.NormalizeTicker(a.Ticker)
	a.Received = time.Now()

	s.xMu.Lock()
	s.xAlerts = append(s.xAlerts, a)
	if len(s.xAlerts) > xAlertsKeep {
		s.xAlerts = s.xAlerts[len(s.xAlerts)-xAlertsKeep:]
	}
	s.xMu.Unlock()

	s.deps.Events.Add("alert", a.Ticker, "x-alert received")
	writeJSON(w, map[string]any{"received": true})
}

// handleXAlerts lists recent external alerts, newest first.
func (s *Server) handleXAlerts(w http.ResponseWriter, _ *http.Request) {
	s.xMu.RLock()
	defer s.xMu.RUnlock()
	out := make([]XAlert, len(s.xAlerts))
	for i := range s.xAlerts {
		out[i] = s.xAlerts[len(s.xAlerts)-1-i]
	}
	writeJSON(w, map[string]any{"alerts": out})
}
