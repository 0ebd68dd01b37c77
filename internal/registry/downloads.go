// ABOUTME: Weekly download buckets from the registry's daily download series
// ABOUTME: Windows of 7 from the newest sample backwards; a partial oldest window is dropped

package registry

import (
	"strings"
	"time"
)

const daysPerWeek = 7

// WeeklyBucket is the summed downloads of seven consecutive days.
type WeeklyBucket struct {
	Start     string // dd-mm-yyyy
	End       string // dd-mm-yyyy
	Downloads int64
}

// Label is the "start - end" text used on charts.
func (b WeeklyBucket) Label() string {
	return b.Start + " - " + b.End
}

// WeeklyBuckets groups days (oldest first) into weeks, oldest first.
func WeeklyBuckets(days []DailyDownloads) []WeeklyBucket {
	n := len(days) / daysPerWeek
	out := make([]WeeklyBucket, n)
	end := len(days)
	for i := n - 1; i >= 0; i-- {
		window := days[end-daysPerWeek : end]
		var sum int64
		for _, d := range window {
			sum += d.Downloads
		}
		out[i] = WeeklyBucket{
			Start:     dayLabel(window[0].Day),
			End:       dayLabel(window[len(window)-1].Day),
			Downloads: sum,
		}
		end -= daysPerWeek
	}
	return out
}

// dayLabel turns yyyy-mm-dd into dd-mm-yyyy.
func dayLabel(day string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(day))
	if err != nil {
		return day
	}
	return t.Format("02-01-2006")
}
