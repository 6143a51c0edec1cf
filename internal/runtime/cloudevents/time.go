package cloudevents

import (
	"time"
)

const (
	// TimeFormat is the canonical CloudEvents timestamp layout (RFC3339).
	TimeFormat = time.RFC3339

	// TimeFormatNano keeps nanosecond precision on the wire.
	TimeFormatNano = time.RFC3339Nano
)

// fallbackLayouts covers timestamps from producers that are sloppy about
// RFC3339: missing zone, space separator, or date only.
var fallbackLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses an event timestamp, trying the canonical layouts first.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeFormatNano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(TimeFormat, s); err == nil {
		return t, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{
		Layout:  TimeFormat,
		Value:   s,
		Message: "cannot parse as CloudEvents time",
	}
}

// FormatTime renders t for the time attribute. Zero times render empty so
// the attribute is omitted.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}
