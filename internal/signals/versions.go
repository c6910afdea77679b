// Package signals implements the multi-signal scoring engine: a weighted
// indicator catalogue layered with session multipliers, horizon profiles,
// per-ticker overrides and regime dampening, topped by a setup overlay.
package signals

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/persist"
)

// VersionConfig is one named weight set. Horizon maps override the base
// weights per holding horizon; ticker overrides layer on top of both.
type VersionConfig struct {
	Label           string                        `json:"label"`
	Weights         map[string]float64            `json:"weights"`
	WeightsScalp    map[string]float64            `json:"weights-scalp,omitempty"`
	WeightsDay      map[string]float64            `json:"weights-day,omitempty"`
	WeightsSwing    map[string]float64            `json:"weights-swing,omitempty"`
	TickerOverrides map[string]map[string]float64 `json:"ticker-overrides,omitempty"`
	Gating          map[string]float64            `json:"gating,omitempty"`
}

// Versions is the persisted signal-version configuration, enabling live A/B
// comparison of weight sets without code changes.
type Versions struct {
	ActiveVersion string                   `json:"activeVersion"`
	Versions      map[string]VersionConfig `json:"versions"`
}

// weightFor resolves the effective base weight of a signal for a version,
// horizon and ticker.
func (v *Versions) weightFor(version string, name string, horizon domain.Horizon, ticker string) float64 {
	vc, ok := v.Versions[version]
	if !ok {
		return 1
	}
	w, found := vc.Weights[name]
	if !found {
		w = 1
	}

	var hmap map[string]float64
	switch horizon {
	case domain.HorizonScalp:
		hmap = vc.WeightsScalp
	case domain.HorizonDay, domain.HorizonDayVolatile, domain.HorizonIntraday:
		hmap = vc.WeightsDay
	case domain.HorizonSwing:
		hmap = vc.WeightsSwing
	}
	if hw, ok := hmap[name]; ok {
		w = hw
	}

	if to, ok := vc.TickerOverrides[ticker]; ok {
		if ow, ok := to[name]; ok {
			w = ow
		}
	}
	return w
}

// VersionsPath returns the config file location under dataDir.
func VersionsPath(dataDir string) string {
	return filepath.Join(dataDir, "signal-versions.json")
}

// LoadVersions reads the persisted configuration, falling back to the
// built-in defaults on any error (missing file, malformed weights).
func LoadVersions(dataDir string, log zerolog.Logger) *Versions {
	var v Versions
	err := persist.ReadJSON(VersionsPath(dataDir), &v)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("Signal versions file unreadable, using built-in defaults")
		}
		return DefaultVersions()
	}
	if v.ActiveVersion == "" || len(v.Versions) == 0 {
		log.Warn().Msg("Signal versions file incomplete, using built-in defaults")
		return DefaultVersions()
	}
	if _, ok := v.Versions[v.ActiveVersion]; !ok {
		log.Warn().Str("active", v.ActiveVersion).Msg("Active signal version missing, using built-in defaults")
		return DefaultVersions()
	}
	return &v
}

// SaveVersions persists the configuration atomically.
func SaveVersions(dataDir string, v *Versions) error {
	return persist.WriteJSON(VersionsPath(dataDir), v)
}

// DefaultVersions is the built-in weight configuration: v3 active, v2 kept as
// a shadow for A/B comparison.
func DefaultVersions() *Versions {
	base := map[string]float64{
		SigRSIOversold:        3,
		SigRSIOverbought:      3,
		SigRSIBullish:         1,
		SigRSIBearish:         1,
		SigRSIContinuation:    2,
		SigEMAAlignBull:       2,
		SigEMAAlignBear:       2,
		SigMACDPositive:       2,
		SigMACDNegative:       2,
		SigMACDSlopeUp:        1,
		SigMACDSlopeDown:      1,
		SigBBDipBuy:           2,
		SigBBBreakoutUpper:    1.5,
		SigBBBreakdownLower:   1.5,
		SigADXTrendBull:       1.5,
		SigADXTrendBear:       1.5,
		SigAboveVWAP:          1,
		SigBelowVWAP:          1,
		SigVolumeSpike:        1,
		SigPattern:            2,
		SigDivergenceBull:     2,
		SigDivergenceBear:     2,
		SigFibGoldenPocket:    1.5,
		SigPivotSupportHold:   1,
		SigPivotResistReject:  1,
		SigCallPremiumDom:     2,
		SigPutPremiumDom:      2,
		SigAggressiveCalls:    2.5,
		SigAggressivePuts:     2.5,
		SigNetPremiumRising:   1.5,
		SigNetPremiumFalling:  1.5,
		SigNegativeGEX:        1,
		SigMaxPainAbove:       1,
		SigMaxPainBelow:       1,
		SigIVSkewBullish:      1,
		SigIVSkewBearish:      1,
		SigIVBackwardation:    1,
		SigNOPEExtremeHigh:    1,
		SigNOPEExtremeLow:     1,
		SigOISurgeBull:        1,
		SigOISurgeBear:        1,
		SigDarkPoolAccum:      2,
		SigDarkPoolDistrib:    2,
		SigBlockBuys:          1.5,
		SigBlockSells:         1.5,
		SigTapeImbalanceBuy:   1.5,
		SigTapeImbalanceSell:  1.5,
		SigNewHighOfDay:       1,
		SigNewLowOfDay:        1,
		SigSqueezeFuel:        2,
		SigEarningsBeatGapUp:  3,
		SigEarningsMissGapDn:  3,
		SigNewsPositive:       1.5,
		SigNewsNegative:       1.5,
		SigCongressBuying:     1,
		SigInsiderBuying:      1.5,
		SigInsiderSelling:     0.5,
		SigMarketTideBull:     1.5,
		SigMarketTideBear:     1.5,
		SigVIXSpike:           2,
		SigBreadthStrong:      1,
		SigBreadthWeak:        1,
		SigGapUpMomentum:      1.5,
		SigGapDownMomentum:    1.5,
		SigGapFillFade:        1,
		SigOversoldBounce:     2,
		SigOverboughtFade:     1.5,
	}

	// v2 is the prior generation: trend-heavier, no tape signals tuned.
	v2 := make(map[string]float64, len(base))
	for k, w := range base {
		v2[k] = w
	}
	v2[SigEMAAlignBull] = 3
	v2[SigEMAAlignBear] = 3
	v2[SigMACDPositive] = 2.5
	v2[SigMACDNegative] = 2.5
	v2[SigTapeImbalanceBuy] = 1
	v2[SigTapeImbalanceSell] = 1
	v2[SigBBDipBuy] = 1.5

	return &Versions{
		ActiveVersion: "v3",
		Versions: map[string]VersionConfig{
			"v3": {
				Label:   "v3: tape-aware, regime-damped",
				Weights: base,
				WeightsScalp: map[string]float64{
					SigTapeImbalanceBuy:  2.5,
					SigTapeImbalanceSell: 2.5,
					SigBlockBuys:         2,
					SigBlockSells:        2,
					SigNewHighOfDay:      1.5,
					SigNewLowOfDay:       1.5,
					SigEMAAlignBull:      1,
					SigEMAAlignBear:      1,
				},
				WeightsSwing: map[string]float64{
					SigEMAAlignBull:    3,
					SigEMAAlignBear:    3,
					SigInsiderBuying:   2,
					SigCongressBuying:  1.5,
					SigNewsPositive:    2,
					SigNewsNegative:    2,
					SigTapeImbalanceBuy:  0.5,
					SigTapeImbalanceSell: 0.5,
				},
				TickerOverrides: map[string]map[string]float64{
					// Index ETFs: options-flow weights dominate, tape noise discounted.
					"SPY": {SigTapeImbalanceBuy: 0.5, SigTapeImbalanceSell: 0.5, SigNegativeGEX: 2},
					"QQQ": {SigTapeImbalanceBuy: 0.5, SigTapeImbalanceSell: 0.5, SigNegativeGEX: 2},
				},
			},
			"v2": {
				Label:   "v2: trend-following baseline",
				Weights: v2,
			},
		},
	}
}
