package util

import "time"

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// IsTradingDay reports whether t falls on a US weekday in New York time.
// Exchange holidays are not modelled; fetches for them just return no bars.
func IsTradingDay(t time.Time) bool {
	switch t.In(newYork).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// LastSession returns midnight UTC of the most recent trading day at or
// before t.
func LastSession(t time.Time) time.Time {
	d := t.In(newYork)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
