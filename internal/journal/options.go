package journal

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/persist"
)

const optionsFile = "options-paper-trades.json"

// OptionTrade is one simulated single-leg options position, premium-based.
type OptionTrade struct {
	ID           string     `json:"id"`
	Ticker       string     `json:"ticker"`
	Side         string     `json:"side"` // call | put
	Strike       float64    `json:"strike"`
	Expiry       string     `json:"expiry"` // YYYY-MM-DD
	Contracts    int        `json:"contracts"`
	EntryPremium float64    `json:"entryPremium"` // per contract
	EntryTime    time.Time  `json:"entryTime"`
	ExitPremium  float64    `json:"exitPremium,omitempty"`
	ExitTime     *time.Time `json:"exitTime,omitempty"`
	Open         bool       `json:"open"`
	PnlTotal     float64    `json:"pnlTotal"`
	PnlPct       float64    `json:"pnlPct"`
	Note         string     `json:"note,omitempty"`
}

// OptionStats aggregates the options ledger.
type OptionStats struct {
	Total    int     `json:"total"`
	Open     int     `json:"open"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"winRate"`
	TotalPnl float64 `json:"totalPnl"`
}

// OptionsJournal is the options-paper ledger, independent of the equity one.
type OptionsJournal struct {
	mu      sync.Mutex
	dataDir string
	trades  []OptionTrade
	log     zerolog.Logger
}

// OpenOptions loads the options ledger.
func OpenOptions(dataDir string, log zerolog.Logger) *OptionsJournal {
	j := &OptionsJournal{
		dataDir: dataDir,
		log:     log.With().Str("component", "options-journal").Logger(),
	}
	if err := persist.ReadJSON(j.path(), &j.trades); err != nil && !errors.Is(err, os.ErrNotExist) {
		j.log.Warn().Err(err).Msg("Options trades file unreadable, starting empty")
		j.trades = nil
	}
	return j
}

func (j *OptionsJournal) path() string {
	return filepath.Join(j.dataDir, optionsFile)
}

// Open records a new options position.
func (j *OptionsJournal) Open(t OptionTrade) (*OptionTrade, error) {
	if t.Ticker == "" || t.Strike <= 0 || t.EntryPremium <= 0 {
		return nil, errors.New("journal: option trade missing ticker, strike or premium")
	}
	if t.Side != "call" && t.Side != "put" {
		return nil, fmt.Errorf("journal: invalid option side %q", t.Side)
	}
	if t.Contracts <= 0 {
		t.Contracts = 1
	}
	t.ID = uuid.NewString()
	t.Open = true
	if t.EntryTime.IsZero() {
		t.EntryTime = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.trades = append(j.trades, t)
	if err := persist.WriteJSON(j.path(), j.trades); err != nil {
		return nil, err
	}
	j.log.Info().Str("ticker", t.Ticker).Str("side", t.Side).Float64("strike", t.Strike).Msg("Options paper trade opened")
	return &t, nil
}

// Close settles an open position at the given per-contract premium.
func (j *OptionsJournal) Close(id string, exitPremium float64, now time.Time) (*OptionTrade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.trades {
		t := &j.trades[i]
		if t.ID != id {
			continue
		}
		if !t.Open {
			return nil, fmt.Errorf("journal: option trade %s already closed", id)
		}
		if exitPremium < 0 {
			exitPremium = 0
		}
		t.Open = false
		t.ExitPremium = exitPremium
		t.ExitTime = &now
		// 100-share multiplier per contract.
		t.PnlTotal = round2((exitPremium - t.EntryPremium) * 100 * float64(t.Contracts))
		t.PnlPct = round2(100 * (exitPremium - t.EntryPremium) / t.EntryPremium)
		if err := persist.WriteJSON(j.path(), j.trades); err != nil {
			return nil, err
		}
		out := *t
		return &out, nil
	}
	return nil, fmt.Errorf("journal: option trade %s not found", id)
}

// AutoEnter derives a position from the current score and options surface:
// direction picks the side, the highest-volume strike near spot picks the
// contract, and net premium per contract is approximated from flow.
func (j *OptionsJournal) AutoEnter(score *domain.SignalScore, facts *domain.TickerFacts, now time.Time) (*OptionTrade, error) {
	if score == nil || score.Direction == domain.Neutral {
		return nil, errors.New("journal: no directional score to enter on")
	}
	if facts == nil || facts.Options == nil || len(facts.Options.FlowPerStrike) == 0 || facts.Quote == nil {
		return nil, errors.New("journal: no options surface for ticker")
	}

	side := "call"
	if score.Direction == domain.Bearish {
		side = "put"
	}
	spot := facts.Quote.Last

	strikes := make([]domain.StrikeFlow, len(facts.Options.FlowPerStrike))
	copy(strikes, facts.Options.FlowPerStrike)
	sort.Slice(strikes, func(a, b int) bool {
		da := math.Abs(strikes[a].Strike - spot)
		db := math.Abs(strikes[b].Strike - spot)
		if da == db {
			return strikes[a].Volume > strikes[b].Volume
		}
		return da < db
	})
	strike := strikes[0].Strike

	// Rough ATM premium proxy when no chain quote exists: ~2% of spot.
	premium := round2(spot * 0.02)
	if premium <= 0 {
		return nil, errors.New("journal: cannot derive entry premium")
	}

	return j.Open(OptionTrade{
		Ticker:       score.Ticker,
		Side:         side,
		Strike:       strike,
		Expiry:       domain.ETDate(now.AddDate(0, 0, daysToFriday(now))),
		Contracts:    1,
		EntryPremium: premium,
		EntryTime:    now,
		Note:         fmt.Sprintf("auto-enter at confidence %d", score.Confidence),
	})
}

func daysToFriday(now time.Time) int {
	wd := int(now.Weekday())
	d := (5 - wd + 7) % 7
	if d == 0 {
		d = 7
	}
	return d
}

// Trades returns the ledger copy.
func (j *OptionsJournal) Trades() []OptionTrade {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]OptionTrade, len(j.trades))
	copy(out, j.trades)
	return out
}

// Stats aggregates the ledger.
func (j *OptionsJournal) Stats() OptionStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	var s OptionStats
	for _, t := range j.trades {
		s.Total++
		if t.Open {
			s.Open++
			continue
		}
		s.TotalPnl += t.PnlTotal
		if t.PnlTotal > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRate = math.Round(float64(s.Wins)/float64(decided)*1000) / 1000
	}
	s.TotalPnl = round2(s.TotalPnl)
	return s
}
