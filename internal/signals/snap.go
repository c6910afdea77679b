package signals

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkoukos/argus/internal/domain"
)

const (
	// targetSnapWindow is the fraction of the raw target distance a structural
	// level may deviate and still capture the target.
	targetSnapWindow = 0.30

	// stopSnapWindow is the wider window used on the protective side.
	stopSnapWindow = 0.50

	// snapStrikes caps how many volume-ranked strikes join the level set.
	snapStrikes = 10
)

type level struct {
	price  float64
	source string
}

// SnapStructure adjusts ATR-projected target and stop onto nearby structural
// levels: Fibonacci retracements and extensions, floor pivots, and the
// highest-volume option strikes. A level only captures the target when it
// sits on the trade side of entry and within the snap window; the nearest
// qualifying level wins. The stop snaps the same way on the protective side.
func SnapStructure(in *Inputs, dir domain.TradeDirection, entry, rawTarget, rawStop float64) domain.StructureSnap {
	snap := domain.StructureSnap{Target1: rawTarget, Stop: rawStop}
	if entry <= 0 || rawTarget <= 0 || rawStop <= 0 {
		return snap
	}

	levels := collectLevels(in)
	long := dir == domain.Long

	targetDist := math.Abs(rawTarget - entry)
	stopDist := math.Abs(entry - rawStop)
	if targetDist == 0 || stopDist == 0 {
		return snap
	}

	var bestT, bestS *level
	var bestTDelta, bestSDelta float64
	for i := range levels {
		l := &levels[i]

		onTradeSide := (long && l.price > entry) || (!long && l.price < entry)
		if onTradeSide {
			if d := math.Abs(l.price - rawTarget); d <= targetSnapWindow*targetDist {
				if bestT == nil || d < bestTDelta {
					bestT, bestTDelta = l, d
				}
			}
		}

		onProtectiveSide := (long && l.price < entry) || (!long && l.price > entry)
		if onProtectiveSide {
			if d := math.Abs(l.price - rawStop); d <= stopSnapWindow*stopDist {
				if bestS == nil || d < bestSDelta {
					bestS, bestSDelta = l, d
				}
			}
		}
	}

	if bestT != nil {
		snap.Target1 = bestT.price
		snap.TargetSource = bestT.source
		snap.Snapped = true
	}
	if bestS != nil {
		snap.Stop = bestS.price
		snap.StopSource = bestS.source
		snap.Snapped = true
	}
	return snap
}

func collectLevels(in *Inputs) []level {
	var out []level
	if in.TA != nil {
		for k, v := range in.TA.Fib.Levels {
			if v > 0 {
				out = append(out, level{v, "fib-" + k})
			}
		}
		for k, v := range in.TA.Fib.Extensions {
			if v > 0 {
				out = append(out, level{v, "fib-ext-" + k})
			}
		}
		p := in.TA.Pivots
		for _, pl := range []struct {
			v    float64
			name string
		}{{p.PP, "pivot-PP"}, {p.R1, "pivot-R1"}, {p.R2, "pivot-R2"}, {p.S1, "pivot-S1"}, {p.S2, "pivot-S2"}} {
			if pl.v > 0 {
				out = append(out, level{pl.v, pl.name})
			}
		}
	}

	if in.Options != nil {
		// Daily and intraday flow merge per strike before the volume ranking,
		// so a strike lit up only on today's tape still makes the level set.
		byStrike := make(map[float64]int64)
		for _, s := range in.Options.FlowPerStrike {
			byStrike[s.Strike] += s.Volume
		}
		for _, s := range in.Options.IntradayPerStrike {
			byStrike[s.Strike] += s.Volume
		}
		strikes := make([]domain.StrikeFlow, 0, len(byStrike))
		for k, v := range byStrike {
			if k > 0 {
				strikes = append(strikes, domain.StrikeFlow{Strike: k, Volume: v})
			}
		}
		sort.Slice(strikes, func(i, j int) bool {
			if strikes[i].Volume != strikes[j].Volume {
				return strikes[i].Volume > strikes[j].Volume
			}
			return strikes[i].Strike < strikes[j].Strike
		})
		if len(strikes) > snapStrikes {
			strikes = strikes[:snapStrikes]
		}
		for _, s := range strikes {
			out = append(out, level{s.Strike, fmt.Sprintf("strike-%g", s.Strike)})
		}
	}
	return out
}
