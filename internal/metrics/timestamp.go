package metrics

import (
	"strings"
	"time"
)

// Fractional seconds of any length are accepted after the seconds field by
// time.Parse even though the layouts do not mention them.
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05 Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseEpoch converts a date-time string into Unix seconds, truncated toward zero.
// Times without a zone are taken as UTC.
func ParseEpoch(value string) (int64, error) {
	s := strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return truncatedUnix(t), nil
		}
	}
	return 0, &TimestampParseError{Value: value}
}

// epochOrZero normalizes an optional timestamp; absent means epoch 0
func epochOrZero(value *string) (int64, error) {
	if value == nil {
		return 0, nil
	}
	return ParseEpoch(*value)
}

func truncatedUnix(t time.Time) int64 {
	sec := t.Unix()
	// Unix() floors; pre-1970 instants with a fraction need rounding up
	if sec < 0 && t.Nanosecond() > 0 {
		sec++
	}
	return sec
}
