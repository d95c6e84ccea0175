package calendar

import "time"

// Ranges accepted by the calendar endpoint. Anything other than RangeToday is upcoming.
const (
	RangeToday    = "today"
	RangeUpcoming = "upcoming"
)

// Window is an inclusive time range of calendar events.
type Window struct {
	Min time.Time
	Max time.Time
}

// WindowFor returns the window of rng in now's location: today is the whole local day,
// upcoming runs from tomorrow 00:00 to the end of the seventh day after today.
func WindowFor(rng string, now time.Time) Window {
	y, m, d := now.Date()
	loc := now.Location()
	endOfDay := func(day int) time.Time {
		return time.Date(y, m, day, 23, 59, 59, int(999*time.Millisecond), loc)
	}
	if rng == RangeToday {
		return Window{Min: time.Date(y, m, d, 0, 0, 0, 0, loc), Max: endOfDay(d)}
	}
	return Window{Min: time.Date(y, m, d+1, 0, 0, 0, 0, loc), Max: endOfDay(d + 7)}
}
