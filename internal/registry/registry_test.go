// ABOUTME: Tests for registry algorithms: weekly buckets, time ago, pagination, weights
// ABOUTME: Pure functions; no network

package registry

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func dailySeries(n int, start time.Time) []DailyDownloads {
	out := make([]DailyDownloads, n)
	for i := range out {
		out[i] = DailyDownloads{
			Day:       start.AddDate(0, 0, i).Format("2006-01-02"),
			Downloads: int64(i + 1),
		}
	}
	return out
}

func TestWeeklyBuckets_365Days(t *testing.T) {
	t.Parallel()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	days := dailySeries(365, start)
	buckets := WeeklyBuckets(days)

	if len(buckets) != 52 {
		t.Fatalf("len = %d; want 52", len(buckets))
	}
	// 365 = 52*7 + 1: the oldest sample (index 0) is dropped.
	for i, b := range buckets {
		first := 1 + i*7
		var want int64
		for j := 0; j < 7; j++ {
			want += int64(first + j + 1)
		}
		if b.Downloads != want {
			t.Errorf("bucket %d downloads = %d; want %d", i, b.Downloads, want)
		}
	}
	if got := buckets[0].Start; got != "02-01-2023" {
		t.Errorf("first bucket start = %q; want 02-01-2023", got)
	}
	if got := buckets[51].End; got != "31-12-2023" {
		t.Errorf("last bucket end = %q; want 31-12-2023", got)
	}
	if got := buckets[51].Label(); got != "25-12-2023 - 31-12-2023" {
		t.Errorf("last label = %q", got)
	}
}

func TestWeeklyBuckets_Short(t *testing.T) {
	t.Parallel()

	if got := WeeklyBuckets(dailySeries(6, time.Now())); len(got) != 0 {
		t.Errorf("6 days = %d buckets; want 0", len(got))
	}
	if got := WeeklyBuckets(nil); len(got) != 0 {
		t.Errorf("nil = %d buckets; want 0", len(got))
	}
	got := WeeklyBuckets(dailySeries(14, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	if len(got) != 2 || got[0].Start != "01-02-2024" || got[1].End != "14-02-2024" {
		t.Errorf("14 days = %+v", got)
	}
}

func TestTimeAgo(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"same day", now.Add(-2 * time.Hour), "today"},
		{"one day", now.AddDate(0, 0, -1), "a day ago"},
		{"two days", now.AddDate(0, 0, -2), "2 days ago"},
		{"29 days", now.AddDate(0, 0, -29), "29 days ago"},
		{"one month", now.AddDate(0, -1, 0), "a month ago"},
		{"month and 17 days rounds up", time.Date(2024, 4, 29, 9, 0, 0, 0, time.UTC), "2 months ago"},
		{"month and 14 days", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), "a month ago"},
		{"year minus a day stays in months", now.AddDate(-1, 0, 1), "12 months ago"},
		{"twelve months", now.AddDate(0, -12, 0), "a year ago"},
		{"year and 7 months rounds up", now.AddDate(-1, -7, 0), "2 years ago"},
		{"three years", now.AddDate(-3, 0, 0), "3 years ago"},
		{"future is symmetric", now.AddDate(0, 0, 2), "2 days ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TimeAgo(now, tt.t); got != tt.want {
				t.Errorf("TimeAgo = %q; want %q", got, tt.want)
			}
		})
	}
}

func render(items []PageItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		switch {
		case it.Ellipsis:
			parts[i] = "..."
		case it.Active:
			parts[i] = fmt.Sprintf("[%d]", it.Page)
		default:
			parts[i] = fmt.Sprint(it.Page)
		}
	}
	return strings.Join(parts, " ")
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total, active, side int
		want                string
	}{
		{10, 5, 1, "1 ... 4 [5] 6 ... 10"},
		{10, 1, 1, "[1] 2 ... 10"},
		{10, 10, 2, "1 ... 8 9 [10]"},
		{5, 3, 2, "1 2 [3] 4 5"},
		{1, 1, 2, "[1]"},
		{10, 3, 1, "1 2 [3] 4 ... 10"},
		{10, 99, 0, "1 ... [10]"},
		{0, 1, 2, ""},
	}
	for _, tt := range tests {
		got := render(Paginate(tt.total, tt.active, tt.side))
		if got != tt.want {
			t.Errorf("Paginate(%d, %d, %d) = %q; want %q", tt.total, tt.active, tt.side, got, tt.want)
		}
	}
}

func TestPaginate_NoAdjacentEllipses(t *testing.T) {
	t.Parallel()

	for total := 1; total <= 30; total++ {
		for active := 1; active <= total; active++ {
			items := Paginate(total, active, 1)
			for i := 1; i < len(items); i++ {
				if items[i].Ellipsis && items[i-1].Ellipsis {
					t.Fatalf("Paginate(%d, %d, 1) has adjacent ellipses: %s", total, active, render(items))
				}
			}
		}
	}
}

func TestTotalPages(t *testing.T) {
	t.Parallel()

	cases := map[[2]int]int{{0, 20}: 0, {1, 20}: 1, {20, 20}: 1, {21, 20}: 2, {5, 0}: 0}
	for in, want := range cases {
		if got := TotalPages(in[0], in[1]); got != want {
			t.Errorf("TotalPages(%d, %d) = %d; want %d", in[0], in[1], got, want)
		}
	}
}

func TestSortWeights(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sort SortType
		want Weights
	}{
		{SortOptimal, Weights{Quality: 0.65, Popularity: 0.98, Maintenance: 0.5}},
		{SortPopularity, Weights{Popularity: 1}},
		{SortQuality, Weights{Quality: 1}},
		{SortMaintenance, Weights{Maintenance: 1}},
	}
	for _, tt := range tests {
		if got := tt.sort.Weights(); got != tt.want {
			t.Errorf("%s weights = %+v; want %+v", tt.sort, got, tt.want)
		}
	}
}

func TestParseRepository(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in         string
		host, path string
		ok         bool
	}{
		{"git+https://github.com/lodash/lodash.git", "github.com", "lodash/lodash", true},
		{"git://github.com/expressjs/express.git", "github.com", "expressjs/express", true},
		{"git@github.com:mochajs/mocha.git", "github.com", "mochajs/mocha", true},
		{"https://github.com/babel/babel/tree/main/packages/core", "github.com", "babel/babel", true},
		{"github:sindresorhus/got", "github.com", "sindresorhus/got", true},
		{"sindresorhus/got", "github.com", "sindresorhus/got", true},
		{"https://gitlab.com/group/sub/project.git", "gitlab.com", "group/sub/project", true},
		{"https://bitbucket.org/a/b", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		host, path, ok := ParseRepository(tt.in)
		if host != tt.host || path != tt.path || ok != tt.ok {
			t.Errorf("ParseRepository(%q) = %q, %q, %v; want %q, %q, %v", tt.in, host, path, ok, tt.host, tt.path, tt.ok)
		}
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	if got := PlainText("A <b>fast</b>   utility &amp; more"); got != "A fast utility & more" {
		t.Errorf("PlainText = %q", got)
	}
	if got := PlainText("  plain\ttext "); got != "plain text" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestHTMLToMarkdown(t *testing.T) {
	t.Parallel()

	in := "<h1 align=\"center\">Lodash</h1>\n\n" +
		"Some `Array<string>` text.\n\n" +
		"```js\n\n<div>kept</div>\n```"
	got := HTMLToMarkdown(in)
	if !strings.HasPrefix(got, "# Lodash") {
		t.Errorf("header not converted:\n%s", got)
	}
	if !strings.Contains(got, "Some `Array<string>` text.") {
		t.Errorf("markdown paragraph changed:\n%s", got)
	}
	if !strings.Contains(got, "<div>kept</div>") {
		t.Errorf("fenced HTML converted:\n%s", got)
	}
}
