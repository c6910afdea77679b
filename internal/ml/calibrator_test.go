package ml

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/signals"
)

// separable builds n samples where the first feature alone decides the label.
func separable(n int, h domain.Horizon) []domain.TrainingSample {
	rng := rand.New(rand.NewSource(7))
	out := make([]domain.TrainingSample, n)
	for i := range out {
		f := make([]float64, domain.FeatureCount)
		label := i % 2
		if label == 1 {
			f[0] = 2 + rng.Float64()*0.2
		} else {
			f[0] = -2 - rng.Float64()*0.2
		}
		f[1] = rng.Float64() // noise column
		out[i] = domain.TrainingSample{
			Features: f,
			Label:    label,
			Horizon:  h,
			Ticker:   "XYZ",
			At:       time.Now(),
		}
	}
	return out
}

func vec(first float64) []float64 {
	f := make([]float64, domain.FeatureCount)
	f[0] = first
	return f
}

func TestTrainSeparatesClasses(t *testing.T) {
	c := New(zerolog.Nop())
	require.False(t, c.Trained(domain.HorizonDay))

	c.Train(separable(100, domain.HorizonDay))
	require.True(t, c.Trained(domain.HorizonDay))
	assert.Equal(t, 100, c.Samples(domain.HorizonDay))
	assert.False(t, c.Trained(domain.HorizonSwing), "swing bucket stays untrained")

	win, err := c.Predict(vec(2), domain.HorizonDay)
	require.NoError(t, err)
	loss, err := c.Predict(vec(-2), domain.HorizonDay)
	require.NoError(t, err)
	assert.Greater(t, win, 0.8)
	assert.Less(t, loss, 0.2)
}

func TestTrainSkipsThinBuckets(t *testing.T) {
	c := New(zerolog.Nop())
	c.Train(separable(MinSamples-1, domain.HorizonDay))
	assert.False(t, c.Trained(domain.HorizonDay))
}

func TestTrainDropsMalformedVectors(t *testing.T) {
	c := New(zerolog.Nop())
	samples := separable(MinSamples, domain.HorizonDay)
	samples[0].Features = []float64{1, 2, 3}
	c.Train(samples)
	// One bad vector pushes the bucket below the floor.
	assert.False(t, c.Trained(domain.HorizonDay))
}

func TestPredictUntrainedErrors(t *testing.T) {
	c := New(zerolog.Nop())
	_, err := c.Predict(vec(1), domain.HorizonDay)
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestBlendRampsWithSampleCount(t *testing.T) {
	c := New(zerolog.Nop())

	// Untrained: the technical read passes through.
	blended, mlConf, alpha := c.Blend(70, vec(2), domain.HorizonDay)
	assert.Equal(t, 70, blended)
	assert.Zero(t, mlConf)
	assert.Zero(t, alpha)

	c.Train(separable(100, domain.HorizonDay))
	blended, mlConf, alpha = c.Blend(70, vec(2), domain.HorizonDay)
	assert.Equal(t, 0.5, alpha, "100 samples is half the saturation point")

	// mlConf is the model probability on a 0-100 percentage scale.
	p, err := c.Predict(vec(2), domain.HorizonDay)
	require.NoError(t, err)
	assert.Equal(t, int(math.Round(100*p)), mlConf)
	assert.GreaterOrEqual(t, blended, 0)
	assert.LessOrEqual(t, blended, 95, "the blended score keeps the confidence cap")

	// A confident model pulls a mediocre technical score up.
	assert.Greater(t, blended, 70)
}

func TestBlendAlphaCapped(t *testing.T) {
	c := New(zerolog.Nop())
	c.Train(separable(600, domain.HorizonDay))
	_, _, alpha := c.Blend(50, vec(2), domain.HorizonDay)
	assert.Equal(t, alphaCap, alpha)
}

func TestShouldTrainCadence(t *testing.T) {
	assert.False(t, ShouldTrain(0))
	assert.False(t, ShouldTrain(29))
	assert.True(t, ShouldTrain(30))
	assert.False(t, ShouldTrain(35))
	assert.True(t, ShouldTrain(40))
	assert.True(t, ShouldTrain(120))
}

func TestBucketRouting(t *testing.T) {
	assert.Equal(t, "swing", bucket(domain.HorizonSwing))
	assert.Equal(t, "day", bucket(domain.HorizonDay))
	assert.Equal(t, "day", bucket(domain.HorizonScalp))
	assert.Equal(t, "day", bucket(domain.HorizonExtendedHours))
}

func TestImportancesKeyedByFeatureNames(t *testing.T) {
	c := New(zerolog.Nop())
	assert.Empty(t, c.Importances())

	c.Train(separable(100, domain.HorizonDay))
	imp := c.Importances()
	require.Len(t, imp, domain.FeatureCount)
	for _, name := range signals.FeatureNames {
		_, ok := imp[name]
		assert.True(t, ok, "missing importance for %s", name)
	}
	// The discriminating feature dominates and normalization pins it at 1.
	assert.Equal(t, 1.0, imp[signals.FeatureNames[0]])
	for name, v := range imp {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestDatasetAppendAndCap(t *testing.T) {
	d := OpenDataset(t.TempDir(), zerolog.Nop())
	require.Zero(t, d.Len())

	require.NoError(t, d.Append(separable(10, domain.HorizonDay)...))
	assert.Equal(t, 10, d.Len())

	big := make([]domain.TrainingSample, DatasetCap+5)
	require.NoError(t, d.Append(big...))
	assert.Equal(t, DatasetCap, d.Len(), "oldest samples roll off past the cap")
}

func TestDatasetSurvivesRestartAndCorruption(t *testing.T) {
	dir := t.TempDir()
	d := OpenDataset(dir, zerolog.Nop())
	require.NoError(t, d.Append(separable(5, domain.HorizonSwing)...))

	reopened := OpenDataset(dir, zerolog.Nop())
	assert.Equal(t, 5, reopened.Len())
	assert.Equal(t, domain.HorizonSwing, reopened.All()[0].Horizon)

	require.NoError(t, os.WriteFile(filepath.Join(dir, datasetFile), []byte("{nope"), 0o644))
	corrupt := OpenDataset(dir, zerolog.Nop())
	assert.Zero(t, corrupt.Len(), "corrupt archive starts empty")
}

func TestSaveLoadModelsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New(zerolog.Nop())
	c.Train(separable(100, domain.HorizonDay))
	want, err := c.Predict(vec(2), domain.HorizonDay)
	require.NoError(t, err)
	require.NoError(t, c.SaveModels(dir))

	restored := New(zerolog.Nop())
	require.NoError(t, restored.LoadModels(dir))
	require.True(t, restored.Trained(domain.HorizonDay))
	assert.Equal(t, 100, restored.Samples(domain.HorizonDay))

	got, err := restored.Predict(vec(2), domain.HorizonDay)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-9)

	// A fresh directory loads cleanly as untrained.
	empty := New(zerolog.Nop())
	require.NoError(t, empty.LoadModels(t.TempDir()))
	assert.False(t, empty.Trained(domain.HorizonDay))
}
