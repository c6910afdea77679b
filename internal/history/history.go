// Package history persists fetched candle series so technicals can be served
// and backtests bootstrapped without spending provider calls.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/pkoukos/argus/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS candle_series (
    ticker     TEXT NOT NULL,
    timeframe  TEXT NOT NULL,
    series     BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (ticker, timeframe)
);
`

// Store is a sqlite-backed candle archive. Series are stored whole as msgpack
// blobs keyed by (ticker, timeframe); the engine always reads and writes full
// sequences, so row-per-bar granularity buys nothing.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates or opens the history database under dataDir.
func Open(dataDir string, log zerolog.Logger) (*Store, error) {
	path := filepath.Join(dataDir, "history.db")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	// WAL with NORMAL sync: candle history is reproducible from providers, so
	// the cache profile from the teacher playbook applies.
	connStr := path + "?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=temp_store(MEMORY)" +
		"&_pragma=cache_size(-64000)"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Store{db: db, log: log.With().Str("component", "history").Logger()}, nil
}

// OpenMemory opens an in-memory store for tests.
func OpenMemory(log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", "file:history?mode=memory&cache=shared")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// SaveSeries replaces the stored series for (ticker, timeframe).
func (s *Store) SaveSeries(ticker string, tf domain.Timeframe, candles []domain.Candle) error {
	blob, err := msgpack.Marshal(candles)
	if err != nil {
		return fmt.Errorf("failed to encode series %s/%s: %w", ticker, tf, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO candle_series (ticker, timeframe, series, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (ticker, timeframe) DO UPDATE SET series = excluded.series, updated_at = excluded.updated_at`,
		ticker, string(tf), blob, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store series %s/%s: %w", ticker, tf, err)
	}
	return nil
}

// LoadSeries returns the stored series, or nil when absent.
func (s *Store) LoadSeries(ticker string, tf domain.Timeframe) ([]domain.Candle, error) {
	var blob []byte
	err := s.db.QueryRow(
		`SELECT series FROM candle_series WHERE ticker = ? AND timeframe = ?`,
		ticker, string(tf),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load series %s/%s: %w", ticker, tf, err)
	}
	var candles []domain.Candle
	if err := msgpack.Unmarshal(blob, &candles); err != nil {
		return nil, fmt.Errorf("failed to decode series %s/%s: %w", ticker, tf, err)
	}
	return candles, nil
}

// SeriesAge returns how stale the stored series is. Absent series report a
// very large age.
func (s *Store) SeriesAge(ticker string, tf domain.Timeframe) time.Duration {
	var updated int64
	err := s.db.QueryRow(
		`SELECT updated_at FROM candle_series WHERE ticker = ? AND timeframe = ?`,
		ticker, string(tf),
	).Scan(&updated)
	if err != nil {
		return 24 * 365 * time.Hour
	}
	return time.Since(time.Unix(updated, 0))
}

// Prune removes series not updated within keep.
func (s *Store) Prune(keep time.Duration) (int64, error) {
	cutoff := time.Now().Add(-keep).Unix()
	res, err := s.db.Exec(`DELETE FROM candle_series WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
