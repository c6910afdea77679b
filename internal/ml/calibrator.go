// Package ml calibrates raw technical confidence with a pair of logistic
// models trained on closed paper-trade outcomes: one for intraday horizons,
// one for swing. Predictions blend into the technical score with a weight
// that grows with the training set, so a young model barely moves the needle.
package ml

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/signals"
)

const (
	// MinSamples is the labeled-sample floor before the first train.
	MinSamples = 30

	// TrainEvery retrains when the sample count crosses a multiple of this.
	TrainEvery = 10

	epochs       = 500
	learningRate = 0.1
	l2Lambda     = 1e-4

	// alphaSaturation divides the sample count in the blend-weight ramp; the
	// 0.5 cap is reached at half this many samples.
	alphaSaturation = 200
	alphaCap        = 0.5
)

var ErrNotTrained = errors.New("ml: model not trained")

// model is one standardized logistic regression.
type model struct {
	Weights []float64 `json:"weights"` // FeatureCount + bias at the end
	Means   []float64 `json:"means"`
	Stds    []float64 `json:"stds"`
	Samples int       `json:"samples"`
	Trained time.Time `json:"trained"`
}

// Calibrator holds the per-horizon models.
type Calibrator struct {
	mu    sync.RWMutex
	day   *model
	swing *model
	log   zerolog.Logger
}

// New creates an untrained calibrator.
func New(log zerolog.Logger) *Calibrator {
	return &Calibrator{log: log.With().Str("component", "ml").Logger()}
}

func bucket(h domain.Horizon) string {
	if h == domain.HorizonSwing {
		return "swing"
	}
	return "day"
}

func (c *Calibrator) modelFor(h domain.Horizon) *model {
	if bucket(h) == "swing" {
		return c.swing
	}
	return c.day
}

// Trained reports whether a model exists for the horizon.
func (c *Calibrator) Trained(h domain.Horizon) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelFor(h) != nil
}

// Samples returns the training-set size behind the horizon's model, 0 when
// untrained.
func (c *Calibrator) Samples(h domain.Horizon) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m := c.modelFor(h); m != nil {
		return m.Samples
	}
	return 0
}

// ShouldTrain implements the cadence rule: first train at the sample floor,
// then every TrainEvery new labels.
func ShouldTrain(labeled int) bool {
	return labeled >= MinSamples && labeled%TrainEvery == 0
}

// Train fits both horizon models from the cumulative sample set. Horizons
// with too few samples keep their previous model.
func (c *Calibrator) Train(samples []domain.TrainingSample) {
	var day, swing []domain.TrainingSample
	for _, s := range samples {
		if len(s.Features) != domain.FeatureCount {
			continue
		}
		if bucket(s.Horizon) == "swing" {
			swing = append(swing, s)
		} else {
			day = append(day, s)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(day) >= MinSamples {
		c.day = fit(day)
		c.log.Info().Int("samples", len(day)).Str("bucket", "day").Msg("Calibrator trained")
	}
	if len(swing) >= MinSamples {
		c.swing = fit(swing)
		c.log.Info().Int("samples", len(swing)).Str("bucket", "swing").Msg("Calibrator trained")
	}
}

// fit runs batch gradient descent on standardized features.
func fit(samples []domain.TrainingSample) *model {
	n := len(samples)
	d := domain.FeatureCount

	means := make([]float64, d)
	stds := make([]float64, d)
	for j := 0; j < d; j++ {
		var sum float64
		for _, s := range samples {
			sum += s.Features[j]
		}
		means[j] = sum / float64(n)
		var sq float64
		for _, s := range samples {
			dv := s.Features[j] - means[j]
			sq += dv * dv
		}
		stds[j] = math.Sqrt(sq / float64(n))
		if stds[j] < 1e-9 {
			stds[j] = 1
		}
	}

	// Design matrix with a trailing bias column.
	x := mat.NewDense(n, d+1, nil)
	y := mat.NewVecDense(n, nil)
	for i, s := range samples {
		for j := 0; j < d; j++ {
			x.Set(i, j, (s.Features[j]-means[j])/stds[j])
		}
		x.Set(i, d, 1)
		y.SetVec(i, float64(s.Label))
	}

	w := mat.NewVecDense(d+1, nil)
	z := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(d+1, nil)
	for epoch := 0; epoch < epochs; epoch++ {
		z.MulVec(x, w)
		for i := 0; i < n; i++ {
			z.SetVec(i, sigmoid(z.AtVec(i))-y.AtVec(i))
		}
		grad.MulVec(x.T(), z)
		for j := 0; j <= d; j++ {
			g := grad.AtVec(j)/float64(n) + l2Lambda*w.AtVec(j)
			w.SetVec(j, w.AtVec(j)-learningRate*g)
		}
	}

	weights := make([]float64, d+1)
	for j := 0; j <= d; j++ {
		weights[j] = w.AtVec(j)
	}
	return &model{Weights: weights, Means: means, Stds: stds, Samples: n, Trained: time.Now()}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Predict returns the win probability for a feature vector under the
// horizon's model.
func (c *Calibrator) Predict(features []float64, h domain.Horizon) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.modelFor(h)
	if m == nil {
		return 0, ErrNotTrained
	}
	if len(features) != domain.FeatureCount {
		return 0, errors.New("ml: feature vector width mismatch")
	}
	z := m.Weights[domain.FeatureCount] // bias
	for j := 0; j < domain.FeatureCount; j++ {
		z += m.Weights[j] * (features[j] - m.Means[j]) / m.Stds[j]
	}
	return sigmoid(z), nil
}

// Blend mixes the technical confidence with the model's probability, reported
// as a 0-100 percentage. The model's share alpha ramps with the training set
// and caps at one half, so the technical read always keeps at least equal say;
// the blended score itself stays under the 95 confidence cap.
func (c *Calibrator) Blend(technical int, features []float64, h domain.Horizon) (blended, mlConf int, alpha float64) {
	p, err := c.Predict(features, h)
	if err != nil {
		return technical, 0, 0
	}
	mlConf = int(math.Round(100 * p))
	alpha = math.Min(alphaCap, float64(c.Samples(h))/alphaSaturation)
	blended = int(math.Round(float64(technical)*(1-alpha) + float64(mlConf)*alpha))
	if blended > 95 {
		blended = 95
	}
	if blended < 0 {
		blended = 0
	}
	return blended, mlConf, alpha
}

// Importances maps feature names to the day model's absolute standardized
// weights, normalized to [0,1]. Swing importances are folded in at half
// weight when that model exists.
func (c *Calibrator) Importances() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]float64, domain.FeatureCount)
	add := func(m *model, scale float64) {
		if m == nil {
			return
		}
		for j := 0; j < domain.FeatureCount && j < len(signals.FeatureNames); j++ {
			out[signals.FeatureNames[j]] += scale * math.Abs(m.Weights[j])
		}
	}
	add(c.day, 1)
	add(c.swing, 0.5)
	if len(out) == 0 {
		return out
	}

	var max float64
	for _, v := range out {
		if v > max {
			max = v
		}
	}
	if max > 0 {
		for k, v := range out {
			out[k] = v / max
		}
	}
	return out
}
