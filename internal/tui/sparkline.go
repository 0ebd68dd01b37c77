// ABOUTME: Block-character sparkline of weekly downloads for the registry browser
// ABOUTME: Resamples to the available width and scales to the series maximum

package tui

import "strings"

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws values in at most width cells. An empty or all-zero
// series draws a flat baseline.
func Sparkline(values []int64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = resample(values, width)
	}
	var maxV int64
	for _, v := range values {
		maxV = max(maxV, v)
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if maxV > 0 && v > 0 {
			idx = int(v * int64(len(sparkBlocks)-1) / maxV)
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// resample averages values into n buckets.
func resample(values []int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		lo := i * len(values) / n
		hi := (i + 1) * len(values) / n
		var sum int64
		for _, v := range values[lo:hi] {
			sum += v
		}
		out[i] = sum / int64(hi-lo)
	}
	return out
}
