// Package state holds the shared in-memory snapshot: per-ticker facts,
// market-wide facts, scores, discoveries and the scheduler counters.
// A single reader-writer lock serializes all mutation; readers that need a
// consistent view take a clone at cycle start.
package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/persist"
)

// Snapshot is the serializable engine state. All non-derived fields round-trip
// through save/load losslessly.
type Snapshot struct {
	Tickers     map[string]*domain.TickerFacts  `json:"tickers"`
	Market      domain.MarketFacts              `json:"market"`
	Scores      map[string]*domain.SignalScore  `json:"scores"`
	Discoveries map[string]*domain.Discovery    `json:"discoveries"`
	Scheduler   domain.SchedulerState           `json:"scheduler"`
	UpdatedAt   time.Time                       `json:"updatedAt"`
}

// Store owns the snapshot and the watchlist.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot

	watchlist []string // ordered, canonical uppercase

	snapshotPath  string
	watchlistPath string
	log           zerolog.Logger
}

// New creates a store rooted at dataDir. Nothing is loaded yet; call Load.
func New(dataDir string, log zerolog.Logger) *Store {
	return &Store{
		snap: Snapshot{
			Tickers:     make(map[string]*domain.TickerFacts),
			Scores:      make(map[string]*domain.SignalScore),
			Discoveries: make(map[string]*domain.Discovery),
		},
		snapshotPath:  filepath.Join(dataDir, "state-snapshot.json"),
		watchlistPath: filepath.Join(dataDir, "watchlist.json"),
		log:           log.With().Str("component", "state").Logger(),
	}
}

// Load restores the snapshot and watchlist from disk. Missing files are a
// normal first run; a malformed watchlist file is a fatal init error.
func (s *Store) Load(defaultTickers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	err := persist.ReadJSON(s.snapshotPath, &snap)
	switch {
	case err == nil:
		if snap.Tickers == nil {
			snap.Tickers = make(map[string]*domain.TickerFacts)
		}
		if snap.Scores == nil {
			snap.Scores = make(map[string]*domain.SignalScore)
		}
		if snap.Discoveries == nil {
			snap.Discoveries = make(map[string]*domain.Discovery)
		}
		s.snap = snap
		s.log.Info().Int("tickers", len(snap.Tickers)).Msg("State snapshot restored")
	case errors.Is(err, os.ErrNotExist):
		// first run
	default:
		// A corrupt snapshot is not fatal; the engine rebuilds it within a cycle.
		s.log.Warn().Err(err).Msg("State snapshot unreadable, starting cold")
	}

	var wl []string
	err = persist.ReadJSON(s.watchlistPath, &wl)
	switch {
	case err == nil:
		s.watchlist = normalizeWatchlist(wl)
		if len(s.watchlist) == 0 {
			return errors.New("watchlist file contains no valid tickers")
		}
	case errors.Is(err, os.ErrNotExist):
		s.watchlist = normalizeWatchlist(defaultTickers)
	default:
		return err
	}

	return nil
}

func normalizeWatchlist(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		t := domain.NormalizeTicker(raw)
		if domain.ValidTicker(t) && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Save persists the snapshot atomically. Called at the end of every cycle and
// on shutdown. The stamp and the encode both happen under the write lock: the
// snapshot's maps stay live for concurrent writers, so encoding outside the
// lock would race with them.
func (s *Store) Save() error {
	s.mu.Lock()
	s.snap.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(&s.snap, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return persist.WriteFile(s.snapshotPath, data)
}

// SaveWatchlist persists the watchlist atomically.
func (s *Store) SaveWatchlist() error {
	s.mu.RLock()
	wl := append([]string(nil), s.watchlist...)
	s.mu.RUnlock()
	return persist.WriteJSON(s.watchlistPath, wl)
}

// Watchlist returns a copy of the current watchlist.
func (s *Store) Watchlist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.watchlist...)
}

// OnWatchlist reports whether ticker is a watchlist symbol.
func (s *Store) OnWatchlist(ticker string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.watchlist {
		if t == ticker {
			return true
		}
	}
	return false
}

// AddTicker appends a valid symbol to the watchlist. Returns false when it was
// already present.
func (s *Store) AddTicker(ticker string) (bool, error) {
	t := domain.NormalizeTicker(ticker)
	if !domain.ValidTicker(t) {
		return false, errors.New("invalid ticker symbol")
	}
	s.mu.Lock()
	for _, w := range s.watchlist {
		if w == t {
			s.mu.Unlock()
			return false, nil
		}
	}
	s.watchlist = append(s.watchlist, t)
	s.mu.Unlock()
	return true, s.SaveWatchlist()
}

// RemoveTicker drops a symbol from the watchlist and clears its state entries.
func (s *Store) RemoveTicker(ticker string) (bool, error) {
	t := domain.NormalizeTicker(ticker)
	s.mu.Lock()
	found := false
	out := s.watchlist[:0]
	for _, w := range s.watchlist {
		if w == t {
			found = true
			continue
		}
		out = append(out, w)
	}
	s.watchlist = out
	if found {
		delete(s.snap.Tickers, t)
		delete(s.snap.Scores, t)
	}
	s.mu.Unlock()
	if !found {
		return false, nil
	}
	return true, s.SaveWatchlist()
}

// Ticker returns the facts for one symbol, or nil.
func (s *Store) Ticker(sym string) *domain.TickerFacts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Tickers[sym]
}

// UpdateTicker applies fn to the facts for sym under the write lock, creating
// the entry if needed. fn must not retain the pointer.
func (s *Store) UpdateTicker(sym string, fn func(*domain.TickerFacts)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf := s.snap.Tickers[sym]
	if tf == nil {
		tf = &domain.TickerFacts{Updated: make(map[string]time.Time)}
		s.snap.Tickers[sym] = tf
	}
	if tf.Updated == nil {
		tf.Updated = make(map[string]time.Time)
	}
	fn(tf)
}

// MarkUpdated stamps a per-category freshness time for sym.
func (s *Store) MarkUpdated(sym, category string) {
	s.UpdateTicker(sym, func(tf *domain.TickerFacts) {
		tf.Updated[category] = time.Now()
	})
}

// Market returns a copy of the market-wide facts.
func (s *Store) Market() domain.MarketFacts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Market
}

// UpdateMarket applies fn to the market facts under the write lock.
func (s *Store) UpdateMarket(fn func(*domain.MarketFacts)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap.Market)
}

// SetScore stores the latest signal score for a ticker.
func (s *Store) SetScore(score *domain.SignalScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Scores[score.Ticker] = score
}

// Score returns the latest score for sym, or nil.
func (s *Store) Score(sym string) *domain.SignalScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Scores[sym]
}

// Scores returns the score map keys sorted, with their scores.
func (s *Store) Scores() []*domain.SignalScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.snap.Scores))
	for k := range s.snap.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*domain.SignalScore, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.snap.Scores[k])
	}
	return out
}

// SetDiscovery upserts a discovery entry.
func (s *Store) SetDiscovery(d *domain.Discovery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Discoveries[d.Ticker] = d
}

// Discovery returns the entry for sym, or nil. Consumers must tolerate nil:
// expiry removes entries underneath them.
func (s *Store) Discovery(sym string) *domain.Discovery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Discoveries[sym]
}

// Discoveries returns all current entries.
func (s *Store) Discoveries() []*domain.Discovery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Discovery, 0, len(s.snap.Discoveries))
	for _, d := range s.snap.Discoveries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscoveredAt.After(out[j].DiscoveredAt) })
	return out
}

// RemoveDiscovery deletes the entry for sym.
func (s *Store) RemoveDiscovery(sym string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snap.Discoveries, sym)
}

// SchedulerState returns a copy of the scheduler counters.
func (s *Store) SchedulerState() domain.SchedulerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Scheduler
}

// UpdateScheduler applies fn to the scheduler counters under the write lock.
func (s *Store) UpdateScheduler(fn func(*domain.SchedulerState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap.Scheduler)
}

// Clone returns a deep copy of the snapshot via JSON round-trip, suitable for
// broadcast without holding the lock during encode.
func (s *Store) Clone() (*Snapshot, error) {
	s.mu.RLock()
	data, err := json.Marshal(&s.snap)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
