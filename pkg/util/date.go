package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodStart returns the first instant covered by a lookback period such as
// "5d", "1mo", "2y" or "max", measured back from now.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	if p == "max" {
		return time.Time{}, nil
	}
	var unit string
	for _, u := range []string{"mo", "wk", "d", "y"} {
		if strings.HasSuffix(p, u) {
			unit = u
			break
		}
	}
	if unit == "" {
		return time.Time{}, fmt.Errorf("unsupported period %q", period)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(p, unit))
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("unsupported period %q", period)
	}
	switch unit {
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "wk":
		return now.AddDate(0, 0, -7*n), nil
	case "mo":
		return now.AddDate(0, -n, 0), nil
	default:
		return now.AddDate(-n, 0, 0), nil
	}
}

// TruncateDay drops the time-of-day part in t's location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
