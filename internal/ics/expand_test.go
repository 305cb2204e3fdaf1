package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandSingle(t *testing.T) {
	start := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	spans, truncated, err := Expand(start, end, "", start.Add(-time.Hour), start.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, []Span{{Start: start, End: end}}, spans)

	spans, _, err = Expand(start, end, "", end, end.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestExpandWeekly(t *testing.T) {
	start := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC) // Monday
	end := start.Add(2 * time.Hour)
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	spans, truncated, err := Expand(start, end, "RRULE:FREQ=WEEKLY;COUNT=10", from, to, 0)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, spans, 5)
	assert.Equal(t, time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC), spans[4].Start)
	assert.Equal(t, 2*time.Hour, spans[4].End.Sub(spans[4].Start))
}

func TestExpandOverlapAtRangeStart(t *testing.T) {
	start := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)
	from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	spans, _, err := Expand(start, end, "FREQ=DAILY;COUNT=2", from, from.Add(24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, spans, 2, "occurrence running past midnight overlaps the range")
	assert.Equal(t, start, spans[0].Start)
}

func TestExpandLimit(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	spans, truncated, err := Expand(start, start.Add(time.Hour), "FREQ=DAILY", start, start.AddDate(1, 0, 0), 7)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, spans, 7)
}

func TestExpandErrors(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := Expand(start, start, "FREQ=NEVER", start, start.AddDate(0, 1, 0), 0)
	assert.Error(t, err)

	_, _, err = Expand(start, start, "", start, start.Add(-time.Hour), 0)
	assert.Error(t, err)
}

func TestValidateRule(t *testing.T) {
	assert.NoError(t, ValidateRule(""))
	assert.NoError(t, ValidateRule("FREQ=MONTHLY;BYMONTHDAY=1"))
	assert.NoError(t, ValidateRule("RRULE:FREQ=DAILY;COUNT=3"))
	assert.Error(t, ValidateRule("FREQ=SOMETIMES"))
}
