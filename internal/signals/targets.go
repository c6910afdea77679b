package signals

import "github.com/pkoukos/argus/internal/domain"

// atrProfile is the target/stop projection for one horizon.
type atrProfile struct {
	t1, t2, stop float64
}

func profileFor(h domain.Horizon) atrProfile {
	switch h {
	case domain.HorizonScalp:
		return atrProfile{t1: 1.0, t2: 1.5, stop: 0.75}
	case domain.HorizonSwing:
		return atrProfile{t1: 2.5, t2: 4.0, stop: 1.5}
	case domain.HorizonDayVolatile:
		return atrProfile{t1: 2.0, t2: 3.0, stop: 1.25}
	default:
		return atrProfile{t1: 1.5, t2: 2.5, stop: 1.0}
	}
}

// ProjectTargets derives raw ATR-projected targets and stop for an entry.
// The returned multiplier is the Target1 ATR multiple.
func ProjectTargets(entry, atr float64, dir domain.TradeDirection, h domain.Horizon) (t1, t2, stop, atrMult float64) {
	p := profileFor(h)
	if entry <= 0 || atr <= 0 {
		return 0, 0, 0, p.t1
	}
	if dir == domain.Long {
		return entry + p.t1*atr, entry + p.t2*atr, entry - p.stop*atr, p.t1
	}
	return entry - p.t1*atr, entry - p.t2*atr, entry + p.stop*atr, p.t1
}
