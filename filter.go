package inbox

import "time"

// FilterByDateRange returns the conversations whose last message falls on a day
// within [start, end], both inclusive. Days are taken in start's location.
// When either bound is nil the input is returned unchanged. The input slice is
// never modified.
func FilterByDateRange(convs []Conversation, start, end *time.Time) []Conversation {
	if start == nil || end == nil {
		return convs
	}
	loc := start.Location()
	from := startOfDay(*start, loc)
	to := startOfDay(*end, loc).AddDate(0, 0, 1).Add(-time.Second)

	out := make([]Conversation, 0, len(convs))
	for _, c := range convs {
		if c.LastTimestamp.IsZero() {
			continue
		}
		day := startOfDay(c.LastTimestamp, loc)
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
