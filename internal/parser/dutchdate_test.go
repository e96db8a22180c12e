package parser

import (
	"testing"
	"time"
)

func TestDaysAgo(t *testing.T) {
	now := time.Date(2026, time.July, 29, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		text string
		want int
		ok   bool
	}{
		{"weeks", "Sinds 2 weken", 14, true},
		{"months", "Sinds 3 maanden", 90, true},
		{"day month same year", "15 juli", 14, true},
		{"day month rolls back a year", "1 augustus", 362, true},
		{"unrecognised", "Sinds gisteren", 0, false},
		{"empty", "", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DaysAgo(tc.text, now)
			if ok != tc.ok {
				t.Fatalf("DaysAgo(%q) ok = %v, want %v", tc.text, ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("DaysAgo(%q) = %d, want %d", tc.text, got, tc.want)
			}
		})
	}
}
