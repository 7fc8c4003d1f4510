// Package biztime provides time helpers for the reconciliation core.
// All storage and transport use UTC; webhook date fields arrive as bare
// ISO dates and are parsed as UTC midnight.
package biztime

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date layout used by billing webhook payloads.
const DateLayout = "2006-01-02"

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ParseDateUTC parses a date string (YYYY-MM-DD) as UTC midnight.
func ParseDateUTC(dateStr string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, dateStr, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q: %w", dateStr, err)
	}
	return t, nil
}
