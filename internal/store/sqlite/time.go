package sqlite

import (
	"fmt"
	"time"
)

// timeLayout is a fixed-width UTC layout: every stored instant has exactly
// nine fractional digits, so lexicographic ordering of the TEXT column equals
// chronological ordering. That property is what lets report queries use plain
// string range comparisons on order_date.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
