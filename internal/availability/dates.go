package availability

import "time"

// DateLabel names date relative to today the way the date picker shows it.
func DateLabel(date, today time.Time) string {
	switch dayDiff(date, today) {
	case 0:
		return "Today"
	case -1:
		return "Yesterday"
	case 1:
		return "Tomorrow"
	}
	return date.Format("Monday, January 2")
}

// VisibleDates returns the calendar days selected-radius..selected+radius,
// skipping days before today.
func VisibleDates(selected, today time.Time, radius int) []time.Time {
	if radius < 0 {
		radius = 0
	}
	start := truncateDay(selected.In(today.Location()))
	first := truncateDay(today)

	out := make([]time.Time, 0, 2*radius+1)
	for i := -radius; i <= radius; i++ {
		d := start.AddDate(0, 0, i)
		if d.Before(first) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// IsPast reports whether date falls on a calendar day before today.
func IsPast(date, today time.Time) bool {
	return dayDiff(date, today) < 0
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayDiff counts calendar days from today to date in today's location.
func dayDiff(date, today time.Time) int {
	ay, am, ad := date.In(today.Location()).Date()
	by, bm, bd := today.Date()
	// UTC midnights avoid DST-length days.
	return int(time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Sub(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)).Hours() / 24)
}
