// ABOUTME: Tests for COLORFGBG background detection
// ABOUTME: Table-driven over the forms terminals export

package termfix

import "testing"

func TestDarkBackground(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"15;0", true},
		{"0;15", false},
		{"0;7", false},
		{"0;default;15", false},
		{"7", true},
		{"garbage", true},
	}
	for _, tt := range tests {
		if got := DarkBackground(tt.in); got != tt.want {
			t.Errorf("DarkBackground(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
