package cloudevents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeAcceptedLayouts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339 nano", "2026-02-01T10:00:00.123456789Z", time.Date(2026, 2, 1, 10, 0, 0, 123456789, time.UTC)},
		{"rfc3339", "2026-02-01T10:00:00+02:00", time.Date(2026, 2, 1, 10, 0, 0, 0, time.FixedZone("", 2*60*60))},
		{"zulu without offset", "2026-02-01T10:00:00Z", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		{"no zone", "2026-02-01T10:00:00", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		{"space separator", "2026-02-01 10:00:00", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		{"date only", "2026-02-01", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTime(tc.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %v, want %v", got, tc.want)
		})
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not-a-time", "01/02/2026", "1767261600"} {
		_, err := ParseTime(input)
		require.Error(t, err, "input %q", input)

		var parseErr *time.ParseError
		assert.ErrorAs(t, err, &parseErr)
	}
}

func TestFormatTime(t *testing.T) {
	in := time.Date(2026, 2, 1, 12, 0, 0, 0, time.FixedZone("CET", 60*60))
	assert.Equal(t, "2026-02-01T11:00:00Z", FormatTime(in))
}

func TestFormatTimeZeroValue(t *testing.T) {
	assert.Empty(t, FormatTime(time.Time{}))
}

func TestFormatParseRoundTrip(t *testing.T) {
	orig := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
	parsed, err := ParseTime(FormatTime(orig))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(orig))
}

func TestNowIsUTC(t *testing.T) {
	now := Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, 5*time.Second)
}
