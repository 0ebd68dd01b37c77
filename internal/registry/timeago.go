// ABOUTME: Relative "time ago" phrasing from a calendar day/month/year difference
// ABOUTME: Days under a month, months under a year, years otherwise, with half-unit rounding

package registry

import (
	"fmt"
	"time"
)

// TimeAgo describes t relative to now. The earlier of the two is always
// subtracted from the later, so argument order does not matter.
func TimeAgo(now, t time.Time) string {
	years, months, days := calendarDiff(now, t)

	switch {
	case years == 0 && months == 0:
		switch days {
		case 0:
			return "today"
		case 1:
			return "a day ago"
		default:
			return fmt.Sprintf("%d days ago", days)
		}
	case years == 0:
		if days > 15 {
			months++
		}
		if months == 1 {
			return "a month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		if months > 6 {
			years++
		}
		if years == 1 {
			return "a year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// calendarDiff returns the whole years, months and days between a and b.
func calendarDiff(a, b time.Time) (years, months, days int) {
	a, b = a.UTC(), b.UTC()
	if a.Before(b) {
		a, b = b, a
	}
	y1, m1, d1 := b.Date()
	y2, m2, d2 := a.Date()

	years = y2 - y1
	months = int(m2) - int(m1)
	days = d2 - d1
	if days < 0 {
		months--
		// days in the month preceding a's month
		days += time.Date(y2, m2, 0, 0, 0, 0, 0, time.UTC).Day()
	}
	if months < 0 {
		years--
		months += 12
	}
	return years, months, days
}
