// Package market_hours provides trading-session checking for the target
// market. All checks are pinned to the market's own timezone, never the host's.
package market_hours

import "time"

// SessionWindow is one contiguous intraday trading window.
type SessionWindow struct {
	Name        string
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// Calendar answers whether the market is open at a given instant.
// It is pure and deterministic: no I/O, no host-timezone dependence.
type Calendar struct {
	location *time.Location
	sessions []SessionWindow
}

// NewCalendar creates a calendar for the given IANA timezone and windows.
func NewCalendar(location *time.Location, sessions []SessionWindow) *Calendar {
	return &Calendar{location: location, sessions: sessions}
}

// NewSSECalendar returns the Shanghai/Shenzhen A-share calendar:
// 09:30-11:30 and 13:00-15:00 China Standard Time, closed on weekends.
func NewSSECalendar() *Calendar {
	// Fixed UTC+8; loading "Asia/Shanghai" from the host tzdata can fail on
	// minimal containers, and CST has no daylight saving.
	loc := time.FixedZone("CST", 8*60*60)
	return NewCalendar(loc, []SessionWindow{
		{Name: "morning", OpenHour: 9, OpenMinute: 30, CloseHour: 11, CloseMinute: 30},
		{Name: "afternoon", OpenHour: 13, OpenMinute: 0, CloseHour: 15, CloseMinute: 0},
	})
}

// IsSessionOpen reports whether the market is open at t.
func (c *Calendar) IsSessionOpen(t time.Time) bool {
	_, open := c.Session(t)
	return open
}

// Session returns the name of the session containing t, if any.
func (c *Calendar) Session(t time.Time) (string, bool) {
	local := t.In(c.location)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return "", false
	}

	minutes := local.Hour()*60 + local.Minute()
	for _, s := range c.sessions {
		open := s.OpenHour*60 + s.OpenMinute
		close := s.CloseHour*60 + s.CloseMinute
		// Inclusive on both ends, matching the upstream market convention
		if minutes >= open && minutes <= close {
			return s.Name, true
		}
	}

	return "", false
}

// NextOpen returns the start of the next session strictly after t.
// Used by the catalog cache to suspend TTL while the market is closed.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.location)

	// Scan at most two weeks of session opens; the first future one wins.
	for day := 0; day < 14; day++ {
		d := local.AddDate(0, 0, day)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		for _, s := range c.sessions {
			open := time.Date(d.Year(), d.Month(), d.Day(), s.OpenHour, s.OpenMinute, 0, 0, c.location)
			if open.After(local) {
				return open
			}
		}
	}

	// Unreachable with a sane session table
	return local
}
