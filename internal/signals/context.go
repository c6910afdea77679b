package signals

import "github.com/pkoukos/argus/internal/domain"

// sessionMultiplier scales an indicator class for the active trading session.
// Tape reads dominate the open, mean reversion works the midday chop, and
// off-hours discounts everything that depends on a live options surface.
func sessionMultiplier(s domain.Session, class string) float64 {
	switch s {
	case domain.SessionOpenRush:
		switch class {
		case ClassTape:
			return 1.3
		case ClassMeanReversion:
			return 0.7
		case ClassTrend:
			return 0.85
		}
	case domain.SessionPowerOpen:
		switch class {
		case ClassTape:
			return 1.15
		case ClassCatalyst:
			return 1.2
		}
	case domain.SessionMidday:
		switch class {
		case ClassMeanReversion:
			return 1.2
		case ClassTape:
			return 0.8
		}
	case domain.SessionPowerHour:
		switch class {
		case ClassTrend:
			return 1.2
		case ClassOptions:
			return 1.1
		}
	case domain.SessionPreMarket, domain.SessionAfterHours:
		switch class {
		case ClassOptions, ClassTape:
			return 0.6
		case ClassCatalyst:
			return 1.25
		}
	case domain.SessionOvernight:
		switch class {
		case ClassOptions, ClassTape:
			return 0.4
		}
	}
	return 1
}

// regimeMultiplier dampens signals that historically bleed in the current
// regime. Ranging markets punish trend-following shorts hardest, so those
// get cut the most; mean reversion gets a boost in the same tape.
func regimeMultiplier(r domain.Regime, class, name string, dir domain.Direction, adx float64) float64 {
	m := 1.0
	if r == domain.RegimeRanging {
		switch name {
		case SigEMAAlignBear:
			m *= 0.25
		case SigMACDNegative:
			m *= 0.4
		case SigRSIBearish:
			m *= 0.4
		}
		if class == ClassMeanReversion {
			m *= 1.3
		}
	}
	if adx > 0 && adx < 18 && dir == domain.Bearish && class == ClassTrend {
		m *= 0.75
	}
	if r == domain.RegimeVolatile && class == ClassMeanReversion {
		m *= 0.85
	}
	return m
}
