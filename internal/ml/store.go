package ml

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/persist"
)

// DatasetCap bounds the cumulative training file; oldest samples roll off.
const DatasetCap = 50_000

const (
	datasetFile = "ml-training-cumulative.json"
	modelsFile  = "ml-models.json"
)

// Dataset is the append-only training archive backing retrains.
type Dataset struct {
	mu      sync.Mutex
	path    string
	samples []domain.TrainingSample
	log     zerolog.Logger
}

// OpenDataset loads the cumulative sample file; a missing file starts empty,
// a corrupt one is logged and replaced on the next save.
func OpenDataset(dataDir string, log zerolog.Logger) *Dataset {
	d := &Dataset{
		path: filepath.Join(dataDir, datasetFile),
		log:  log.With().Str("component", "ml").Logger(),
	}
	if err := persist.ReadJSON(d.path, &d.samples); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.log.Warn().Err(err).Msg("Training dataset unreadable, starting empty")
		d.samples = nil
	}
	return d
}

// Append adds samples, enforces the cap, and persists.
func (d *Dataset) Append(samples ...domain.TrainingSample) error {
	if len(samples) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = append(d.samples, samples...)
	if len(d.samples) > DatasetCap {
		d.samples = d.samples[len(d.samples)-DatasetCap:]
	}
	return persist.WriteJSON(d.path, d.samples)
}

// All returns a copy of the current sample set.
func (d *Dataset) All() []domain.TrainingSample {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.TrainingSample, len(d.samples))
	copy(out, d.samples)
	return out
}

// Len returns the stored sample count.
func (d *Dataset) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.samples)
}

// persistedModels is the on-disk shape for both horizon models.
type persistedModels struct {
	Day   *model    `json:"day,omitempty"`
	Swing *model    `json:"swing,omitempty"`
	Saved time.Time `json:"saved"`
}

// SaveModels persists the fitted models so a restart keeps calibrating.
func (c *Calibrator) SaveModels(dataDir string) error {
	c.mu.RLock()
	pm := persistedModels{Day: c.day, Swing: c.swing, Saved: time.Now()}
	c.mu.RUnlock()
	return persist.WriteJSON(filepath.Join(dataDir, modelsFile), &pm)
}

// LoadModels restores previously fitted models. Missing file is not an error.
func (c *Calibrator) LoadModels(dataDir string) error {
	var pm persistedModels
	err := persist.ReadJSON(filepath.Join(dataDir, modelsFile), &pm)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pm.Day != nil && len(pm.Day.Weights) == domain.FeatureCount+1 {
		c.day = pm.Day
	}
	if pm.Swing != nil && len(pm.Swing.Weights) == domain.FeatureCount+1 {
		c.swing = pm.Swing
	}
	return nil
}
