package billing

import "time"

// AddMonths shifts t by n calendar months (n may be negative).
//
// The day of month is kept and normalized the way time.Time.AddDate does, so
// Jan 31 + 1 month is Mar 2 (Mar 3 in a non-leap year) and subtracting the
// month again does not land on Jan 31. Reversal of a subscription payment is
// therefore exact only when the day of month exists in every month crossed.
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}

// EndOfDay returns 23:59:59 on the calendar day of t, in t's location
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
