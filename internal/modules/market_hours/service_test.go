package market_hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// cst builds a time in China Standard Time.
func cst(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.FixedZone("CST", 8*60*60))
}

func TestCalendar_MorningSession(t *testing.T) {
	cal := NewSSECalendar()

	// Wednesday 2024-03-06
	session, open := cal.Session(cst(2024, 3, 6, 10, 0))
	assert.True(t, open)
	assert.Equal(t, "morning", session)
}

func TestCalendar_AfternoonSession(t *testing.T) {
	cal := NewSSECalendar()

	session, open := cal.Session(cst(2024, 3, 6, 14, 30))
	assert.True(t, open)
	assert.Equal(t, "afternoon", session)
}

func TestCalendar_LunchBreakClosed(t *testing.T) {
	cal := NewSSECalendar()

	assert.False(t, cal.IsSessionOpen(cst(2024, 3, 6, 12, 0)))
}

func TestCalendar_SessionBoundaries(t *testing.T) {
	cal := NewSSECalendar()

	assert.True(t, cal.IsSessionOpen(cst(2024, 3, 6, 9, 30)), "open boundary inclusive")
	assert.True(t, cal.IsSessionOpen(cst(2024, 3, 6, 11, 30)), "close boundary inclusive")
	assert.False(t, cal.IsSessionOpen(cst(2024, 3, 6, 9, 29)))
	assert.False(t, cal.IsSessionOpen(cst(2024, 3, 6, 15, 1)))
}

func TestCalendar_WeekendClosed(t *testing.T) {
	cal := NewSSECalendar()

	// Saturday and Sunday, mid-morning
	assert.False(t, cal.IsSessionOpen(cst(2024, 3, 9, 10, 0)))
	assert.False(t, cal.IsSessionOpen(cst(2024, 3, 10, 10, 0)))
}

func TestCalendar_HostTimezoneIrrelevant(t *testing.T) {
	cal := NewSSECalendar()

	// 02:00 UTC on a weekday is 10:00 in Shanghai - open regardless of how
	// the caller's time is zoned.
	utc := time.Date(2024, 3, 6, 2, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsSessionOpen(utc))

	ny := utc.In(time.FixedZone("EST", -5*60*60))
	assert.True(t, cal.IsSessionOpen(ny))
}

func TestCalendar_NextOpen(t *testing.T) {
	cal := NewSSECalendar()

	// During lunch break the next open is 13:00 the same day
	next := cal.NextOpen(cst(2024, 3, 6, 12, 0))
	assert.True(t, next.Equal(cst(2024, 3, 6, 13, 0)), "got %v", next)

	// Friday after close rolls to Monday morning
	next = cal.NextOpen(cst(2024, 3, 8, 16, 0))
	assert.True(t, next.Equal(cst(2024, 3, 11, 9, 30)), "got %v", next)

	// Saturday rolls to Monday morning
	next = cal.NextOpen(cst(2024, 3, 9, 10, 0))
	assert.True(t, next.Equal(cst(2024, 3, 11, 9, 30)), "got %v", next)
}
