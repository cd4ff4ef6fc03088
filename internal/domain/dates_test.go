package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayware/bookingcore/internal/pkg/errors"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(DayFormat, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewStayRange_Valid(t *testing.T) {
	stay, err := NewStayRange(day("2026-09-10"), day("2026-09-13"))
	require.NoError(t, err)

	assert.Equal(t, 3, stay.NightCount())
	nights := stay.Nights()
	require.Len(t, nights, 3)
	assert.Equal(t, day("2026-09-10"), nights[0])
	assert.Equal(t, day("2026-09-12"), nights[2])
}

func TestNewStayRange_CheckOutNotAfterCheckIn(t *testing.T) {
	_, err := NewStayRange(day("2026-09-10"), day("2026-09-10"))
	assert.True(t, errors.Is(err, errors.KindInvalidDateRange))

	_, err = NewStayRange(day("2026-09-10"), day("2026-09-08"))
	assert.True(t, errors.Is(err, errors.KindInvalidDateRange))
}

func TestStayRange_NightsAreAscending(t *testing.T) {
	stay, err := NewStayRange(day("2026-12-30"), day("2027-01-02"))
	require.NoError(t, err)

	nights := stay.Nights()
	require.Len(t, nights, 3)
	for i := 1; i < len(nights); i++ {
		assert.True(t, nights[i].After(nights[i-1]))
	}
	// the range crosses a year boundary
	assert.Equal(t, day("2027-01-01"), nights[2])
}

func TestStayRange_StartsBefore(t *testing.T) {
	stay, err := NewStayRange(day("2026-09-10"), day("2026-09-12"))
	require.NoError(t, err)

	assert.False(t, stay.StartsBefore(day("2026-09-10")))
	assert.False(t, stay.StartsBefore(day("2026-09-09")))
	assert.True(t, stay.StartsBefore(day("2026-09-11")))
}

func TestDay_TruncatesToUTCMidnight(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	in := time.Date(2026, 9, 10, 22, 15, 0, 0, loc)
	got := Day(in.UTC())
	assert.Equal(t, day("2026-09-11"), got)
}
