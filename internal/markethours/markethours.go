// Package markethours encodes the US equities session clock.
// All session math is done in exchange-local time (America/New_York);
// timestamps from other zones are converted on entry.
package markethours

import (
	"fmt"
	"time"
)

// Eastern is the exchange-local zone. time.LoadLocation would depend on the
// host tzdata; a fixed zone is wrong across DST, so we try the IANA zone
// first and fall back to EST.
var Eastern = loadEastern()

func loadEastern() *time.Location {
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		return loc
	}
	return time.FixedZone("EST", -5*3600)
}

// Session boundaries in exchange-local time.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0

	PreMarketHour   = 4 // pre-market starts 04:00
	PreMarketMinute = 0

	// Opening range: first 30 minutes of the regular session (09:30–10:00).
	ORBMinutes = 30
)

// IsMarketOpen returns true if t falls within regular trading hours
// (9:30 AM – 4:00 PM ET, Mon–Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	et := t.In(Eastern)
	if !IsTradingDay(et) {
		return false
	}
	hm := et.Hour()*60 + et.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(Eastern).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	et := t.In(Eastern)
	return IsWeekday(et) && !IsHoliday(et)
}

// SessionOpen returns the regular-session open (09:30 ET) for t's date.
func SessionOpen(t time.Time) time.Time {
	et := t.In(Eastern)
	return time.Date(et.Year(), et.Month(), et.Day(), OpenHour, OpenMinute, 0, 0, Eastern)
}

// SessionClose returns the regular-session close (16:00 ET) for t's date.
func SessionClose(t time.Time) time.Time {
	et := t.In(Eastern)
	return time.Date(et.Year(), et.Month(), et.Day(), CloseHour, CloseMinute, 0, 0, Eastern)
}

// InOpeningRange reports whether t falls in the first ORBMinutes of the
// regular session (09:30–10:00 ET). The open itself is included, the
// boundary at 10:00 is not.
func InOpeningRange(t time.Time) bool {
	et := t.In(Eastern)
	open := SessionOpen(et)
	return !et.Before(open) && et.Before(open.Add(ORBMinutes*time.Minute))
}

// InPreMarket reports whether t falls in the pre-market window
// (04:00–09:30 ET) on t's date.
func InPreMarket(t time.Time) bool {
	et := t.In(Eastern)
	pre := time.Date(et.Year(), et.Month(), et.Day(), PreMarketHour, PreMarketMinute, 0, 0, Eastern)
	return !et.Before(pre) && et.Before(SessionOpen(et))
}

// NextOpen returns the next session open. If t is before today's open on a
// trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	et := t.In(Eastern)

	todayOpen := SessionOpen(et)
	if et.Before(todayOpen) && IsTradingDay(et) {
		return todayOpen
	}

	d := et.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // holidays + weekends never exceed this
		if IsTradingDay(d) {
			return SessionOpen(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return SessionOpen(et.AddDate(0, 0, 1))
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		d := SessionClose(t).Sub(t.In(Eastern))
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(d))
	}
	if InPreMarket(t) && IsTradingDay(t) {
		return "Pre-Market"
	}
	next := NextOpen(t)
	et := next.In(Eastern)
	return fmt.Sprintf("Market Closed — opens %s %s (%s)",
		et.Weekday().String()[:3], et.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
