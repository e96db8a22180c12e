package parser

import (
	"strconv"
	"strings"
	"time"
)

var dutchMonths = map[string]int{
	"januari": 1, "februari": 2, "maart": 3, "april": 4,
	"mei": 5, "juni": 6, "juli": 7, "augustus": 8,
	"september": 9, "oktober": 10, "november": 11, "december": 12,
}

// DaysAgo maps a Dutch listed-since phrase to an integer days-ago value,
// relative to now. It recognises "Sinds N weken", "Sinds N maanden", and
// "<day> <dutch-month>" forms; the year rolls back one if the resulting
// date would otherwise be in the future. Returns false if the text
// matches none of the recognised forms.
func DaysAgo(text string, now time.Time) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	if m := weeksAgoRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 7, true
	}
	if m := monthsAgoRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 30, true
	}
	if m := dayMonthRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		day, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		month, ok := dutchMonths[m[2]]
		if !ok {
			return 0, false
		}
		candidate := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
		if candidate.After(now) {
			candidate = time.Date(now.Year()-1, time.Month(month), day, 0, 0, 0, 0, now.Location())
		}
		days := int(now.Sub(candidate).Hours() / 24)
		if days < 0 {
			days = 0
		}
		return days, true
	}

	return 0, false
}
