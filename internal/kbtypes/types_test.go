package kbtypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", d.String())
	assert.False(t, d.IsZero())
}

func TestParseDateRejectsMalformed(t *testing.T) {
	_, err := ParseDate("not-a-date")
	assert.Error(t, err)
}

func TestDateFromTimeTruncatesTimeOfDay(t *testing.T) {
	tm := time.Date(2026, time.August, 1, 13, 45, 0, 0, time.UTC)
	d := DateFromTime(tm)
	assert.Equal(t, Date{Year: 2026, Month: 8, Day: 1}, d)
}

func TestClockTimeRoundTrip(t *testing.T) {
	ct, err := ParseClockTime("09:30:00")
	require.NoError(t, err)
	assert.Equal(t, "09:30:00", ct.String())
}

func TestParseRefSplitsOnFirstHyphen(t *testing.T) {
	ref, err := ParseRef("tasks-2026-03-05-fix-login")
	require.NoError(t, err)
	assert.Equal(t, "tasks", ref.Type)
	assert.Equal(t, "2026-03-05-fix-login", ref.ID)
}

func TestParseRefRejectsMissingHyphen(t *testing.T) {
	_, err := ParseRef("malformed")
	assert.Error(t, err)
}

func TestParseRefRejectsEmptyHalves(t *testing.T) {
	_, err := ParseRef("-id")
	assert.Error(t, err)
	_, err = ParseRef("type-")
	assert.Error(t, err)
}

func TestNormalizedTagsDedupesTrimsAndSorts(t *testing.T) {
	got := NormalizedTags([]string{" go ", "sqlite", "go", "", "  "})
	assert.Equal(t, []string{"go", "sqlite"}, got)
}

func TestPriorityNormalizedOrDefault(t *testing.T) {
	assert.Equal(t, PriorityMedium, Priority("").NormalizedOrDefault())
	assert.Equal(t, PriorityHigh, PriorityHigh.NormalizedOrDefault())
}

func TestIsReservedType(t *testing.T) {
	assert.True(t, IsReservedType(TypeSessions))
	assert.True(t, IsReservedType(TypeDailies))
	assert.False(t, IsReservedType("tasks"))
}

func TestBaseTypeValid(t *testing.T) {
	assert.True(t, BaseTasks.Valid())
	assert.False(t, BaseType("bogus").Valid())
}
