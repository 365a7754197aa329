package usage

import "time"

// MonthBounds returns the first instant of t's calendar month in loc and the
// first instant of the following month. A nil loc means UTC.
func MonthBounds(t time.Time, loc *time.Location) (start, next time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	next = start.AddDate(0, 1, 0)
	return start, next
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
