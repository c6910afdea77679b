package signals

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
)

const (
	// directionSpread is the bull/bear weight margin needed to call a side.
	directionSpread = 2.0

	// rangingBearSpread raises the bar for shorts in a ranging tape.
	rangingBearSpread = 5.0

	// noSetupCeiling caps confidence when no curated setup matched.
	noSetupCeiling = 55.0

	// agreementBonus is added when the weighted read concurs with the
	// matched setup's direction.
	agreementBonus = 5.0
)

// Engine scores one ticker's merged facts into a directional conviction. It
// evaluates the indicator catalogue once per pass and weighs the fired set
// under every configured version, so shadow versions ride along for free.
type Engine struct {
	mu        sync.RWMutex
	versions  *Versions
	catalogue []Indicator
	setups    []Setup
	log       zerolog.Logger
}

// NewEngine creates the scoring engine with the given weight configuration.
func NewEngine(versions *Versions, log zerolog.Logger) *Engine {
	return &Engine{
		versions:  versions,
		catalogue: Catalogue(),
		setups:    Setups(),
		log:       log.With().Str("component", "signals").Logger(),
	}
}

// Versions returns the current weight configuration.
func (e *Engine) Versions() *Versions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.versions
}

// SetVersions swaps the weight configuration (operator endpoint).
func (e *Engine) SetVersions(v *Versions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.versions = v
}

// ActiveVersion returns the name of the live weight set.
func (e *Engine) ActiveVersion() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.versions.ActiveVersion
}

// firedSignal is one catalogue hit before version weighting.
type firedSignal struct {
	ind  Indicator
	cont *Contribution
}

// Score runs a full scoring pass over the inputs.
func (e *Engine) Score(in *Inputs) *domain.SignalScore {
	e.mu.RLock()
	versions := e.versions
	e.mu.RUnlock()

	var fired []firedSignal
	firedNames := make(map[string]bool)
	for _, ind := range e.catalogue {
		c := ind.Eval(in)
		if c == nil {
			continue
		}
		fired = append(fired, firedSignal{ind: ind, cont: c})
		firedNames[ind.Name] = true
	}

	score := e.scoreVersion(versions, versions.ActiveVersion, in, fired, firedNames)
	score.Ticker = in.Ticker
	score.Session = in.Session
	score.Regime = in.Regime
	score.Timestamp = in.Now
	score.Features = ExtractFeatures(in)

	score.ShadowScores = make(map[string]domain.ShadowScore)
	for name := range versions.Versions {
		if name == versions.ActiveVersion {
			continue
		}
		sv := e.scoreVersion(versions, name, in, fired, firedNames)
		score.ShadowScores[name] = domain.ShadowScore{
			Direction:  sv.Direction,
			Confidence: sv.Confidence,
			BullWeight: sv.BullWeight,
			BearWeight: sv.BearWeight,
		}
	}
	return score
}

// scoreVersion weighs an already-evaluated fired set under one version.
func (e *Engine) scoreVersion(versions *Versions, version string, in *Inputs, fired []firedSignal, firedNames map[string]bool) *domain.SignalScore {
	var adx float64
	if in.TA != nil {
		adx = in.TA.ADX.Value
	}

	var bullW, bearW float64
	entries := make([]domain.SignalEntry, 0, len(fired))
	for _, f := range fired {
		base := versions.weightFor(version, f.ind.Name, in.Horizon, in.Ticker)
		w := base * f.cont.Scale
		w *= sessionMultiplier(in.Session, f.ind.Class)
		w *= regimeMultiplier(in.Regime, f.ind.Class, f.ind.Name, f.cont.Direction, adx)

		switch f.cont.Direction {
		case domain.Bullish:
			bullW += w
		case domain.Bearish:
			bearW += w
		default:
			w = 0 // informational
		}
		entries = append(entries, domain.SignalEntry{
			Name:      f.ind.Name,
			Direction: f.cont.Direction,
			Weight:    round2(w),
			Detail:    f.cont.Detail,
		})
	}

	bearSpread := directionSpread
	if in.Regime == domain.RegimeRanging {
		bearSpread = rangingBearSpread
	}

	weighted := domain.Neutral
	switch {
	case bullW > bearW+directionSpread:
		weighted = domain.Bullish
	case bearW > bullW+bearSpread:
		weighted = domain.Bearish
	}

	// Setup overlay: the strongest matched setup decides direction and lifts
	// confidence past the no-setup ceiling, with a small bonus when the
	// weighted read concurs. Without a match the weighted read stands, capped.
	type setupMatch struct {
		name      string
		direction domain.Direction
		strength  float64
	}
	var matches []setupMatch
	for _, s := range e.setups {
		strength, ok := s.Match(in, firedNames)
		if !ok || strength <= 0 {
			continue
		}
		matches = append(matches, setupMatch{s.Name, s.Direction, strength})
	}

	spread := math.Abs(bullW - bearW)
	direction := weighted
	confidence := math.Min(noSetupCeiling, 30+spread*2.5)
	var matchedNames []string
	if len(matches) > 0 {
		best := matches[0]
		for _, m := range matches[1:] {
			if m.strength > best.strength {
				best = m
			}
		}
		direction = best.direction
		confidence = math.Min(95, 60+30*best.strength)
		if weighted == direction {
			confidence = math.Min(95, confidence+agreementBonus)
		}
		for _, m := range matches {
			if m.direction == direction {
				matchedNames = append(matchedNames, m.name)
			}
		}
	} else if direction == domain.Neutral {
		confidence = math.Min(confidence, 40)
	}

	return &domain.SignalScore{
		Direction:     direction,
		Confidence:    int(math.Round(confidence)),
		BullWeight:    round2(bullW),
		BearWeight:    round2(bearW),
		Spread:        round2(spread),
		Signals:       entries,
		MatchedSetups: matchedNames,
	}
}

// AbsorbWeights nudges the active version's weights toward ML feature
// importances. The nudge is bounded so one retrain can never flip the weight
// profile; the operator triggers this explicitly.
func (e *Engine) AbsorbWeights(importances map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vc, ok := e.versions.Versions[e.versions.ActiveVersion]
	if !ok {
		return
	}

	var maxImp float64
	for _, v := range importances {
		if a := math.Abs(v); a > maxImp {
			maxImp = a
		}
	}
	if maxImp == 0 {
		return
	}

	for name, imp := range importances {
		w, found := vc.Weights[name]
		if !found {
			continue
		}
		rel := math.Abs(imp) / maxImp // [0,1]
		next := w * (0.85 + 0.3*rel)  // bounded nudge: x0.85 .. x1.15
		vc.Weights[name] = round2(math.Max(0.25, math.Min(5, next)))
	}
	e.versions.Versions[e.versions.ActiveVersion] = vc
	e.log.Info().Int("signals", len(importances)).Msg("Absorbed model importances into active weights")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
