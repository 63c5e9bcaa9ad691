package feed

import "time"

// US regular trading hours in UTC.
const (
	openHour    = 14
	openMinute  = 30
	closeHour   = 21
)

// MarketOpen reports whether the US market is in regular trading hours
// at the given instant: Monday to Friday, 14:30-21:00 UTC.
func MarketOpen(t time.Time) bool {
	utc := t.UTC()

	switch utc.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := utc.Hour()*60 + utc.Minute()
	return minutes >= openHour*60+openMinute && minutes < closeHour*60
}
