package domain

import (
	"fmt"
	"time"
)

// DateKeyLayout is the calendar date format used as the partition key for
// reservations, ledger entries and finalization records.
const DateKeyLayout = "2006-01-02"

// ParseDateKey validates and parses a dateKey string.
func ParseDateKey(dateKey string) (time.Time, error) {
	parsed, err := time.Parse(DateKeyLayout, dateKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", dateKey, err)
	}
	return parsed, nil
}

// FormatDateKey renders a time as a dateKey in the time's own location.
func FormatDateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// YesterdayKey returns the dateKey for the day before now, restaurant-local.
func YesterdayKey(now time.Time, loc *time.Location) string {
	return FormatDateKey(now.In(loc).AddDate(0, 0, -1))
}

// CatchupRange lists the dateKeys from the day after lastSuccess through
// target (inclusive), oldest first, capped at maxDays entries to bound the
// worst-case backfill cost of one invocation. An empty lastSuccess starts the
// range at target itself.
func CatchupRange(lastSuccess, target string, maxDays int) ([]string, error) {
	end, err := ParseDateKey(target)
	if err != nil {
		return nil, err
	}

	start := end
	if lastSuccess != "" {
		last, err := ParseDateKey(lastSuccess)
		if err != nil {
			return nil, err
		}
		start = last.AddDate(0, 0, 1)
	}

	if start.After(end) {
		return nil, nil
	}

	dates := make([]string, 0, maxDays)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if len(dates) == maxDays {
			break
		}
		dates = append(dates, FormatDateKey(d))
	}
	return dates, nil
}
