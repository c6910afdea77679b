package domain

import "time"

// Session classifies the Eastern wall clock into trading-day phases.
// The session drives the refresh cadence and the signal weight profile.
type Session string

const (
	SessionPreMarket  Session = "pre-market"
	SessionOpenRush   Session = "open-rush"
	SessionPowerOpen  Session = "power-open"
	SessionMidday     Session = "midday"
	SessionPowerHour  Session = "power-hour"
	SessionAfterHours Session = "after-hours"
	SessionOvernight  Session = "overnight"
)

// Eastern is the exchange wall clock. Falls back to a fixed offset when the
// tz database is unavailable (stripped containers).
var Eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("ET", -5*3600)
	}
	return loc
}

// SessionAt classifies t (converted to ET) into a session.
func SessionAt(t time.Time) Session {
	et := t.In(Eastern)
	mins := et.Hour()*60 + et.Minute()

	switch {
	case mins >= 8*60+30 && mins < 9*60:
		return SessionPreMarket
	case mins >= 9*60 && mins <= 9*60+20:
		return SessionOpenRush
	case mins >= 9*60+21 && mins <= 10*60:
		return SessionPowerOpen
	case mins >= 10*60+1 && mins <= 15*60:
		return SessionMidday
	case mins >= 15*60+1 && mins <= 16*60+15:
		return SessionPowerHour
	case mins >= 16*60+16 && mins <= 17*60:
		return SessionAfterHours
	default:
		return SessionOvernight
	}
}

// Interval returns the refresh cadence for the session.
func (s Session) Interval() time.Duration {
	switch s {
	case SessionOpenRush:
		return 10 * time.Second
	case SessionPowerOpen, SessionPowerHour:
		return 15 * time.Second
	case SessionMidday:
		return 30 * time.Second
	case SessionPreMarket, SessionAfterHours:
		return 45 * time.Second
	default:
		return 60 * time.Second
	}
}

// DefaultHorizon maps a session to the holding horizon its setups get.
func (s Session) DefaultHorizon() Horizon {
	switch s {
	case SessionOpenRush:
		return HorizonScalp
	case SessionPowerOpen:
		return HorizonDayVolatile
	case SessionMidday, SessionPowerHour:
		return HorizonDay
	case SessionPreMarket, SessionAfterHours:
		return HorizonExtendedHours
	default:
		return HorizonSwing
	}
}

// MarketOpen reports whether the regular session is trading at t.
func MarketOpen(t time.Time) bool {
	et := t.In(Eastern)
	if wd := et.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	mins := et.Hour()*60 + et.Minute()
	return mins >= 9*60+30 && mins < 16*60
}

// ETDate formats t's ET calendar date as YYYY-MM-DD.
func ETDate(t time.Time) string {
	return t.In(Eastern).Format("2006-01-02")
}
