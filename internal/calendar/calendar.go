package calendar

import (
	"errors"
	"time"
)

var (
	ErrPastDate  = errors.New("delivery date is in the past")
	ErrTooSoon   = errors.New("delivery date is earlier than the shortest lead time")
	ErrTooFar    = errors.New("delivery date is beyond the booking horizon")
	ErrClosedDay = errors.New("delivery date falls on a weekend or holiday")
)

// Calendar decides which delivery dates a customer may pick.
type Calendar struct {
	loc         *time.Location
	leadDays    int
	horizonDays int
}

// New builds a calendar in loc. leadDays is the minimum number of days
// between today and the delivery date; horizonDays caps how far ahead a date
// may be booked (0 disables the cap).
func New(loc *time.Location, leadDays, horizonDays int) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if leadDays < 0 {
		leadDays = 0
	}
	return &Calendar{loc: loc, leadDays: leadDays, horizonDays: horizonDays}
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Today is the current day in the calendar's location.
func (c *Calendar) Today(now time.Time) Date {
	return DateOf(now.In(c.loc))
}

// Check returns nil when d can be chosen as a delivery date at now.
func (c *Calendar) Check(d Date, now time.Time) error {
	today := c.Today(now)
	if d.Before(today) {
		return ErrPastDate
	}
	if d.Before(today.AddDays(c.leadDays)) {
		return ErrTooSoon
	}
	if c.horizonDays > 0 && d.After(today.AddDays(c.horizonDays)) {
		return ErrTooFar
	}
	if IsHoliday(d) {
		return ErrClosedDay
	}
	return nil
}

// EarliestSelectable returns the first date Check accepts.
func (c *Calendar) EarliestSelectable(now time.Time) Date {
	d := c.Today(now).AddDays(c.leadDays)
	for IsHoliday(d) {
		d = d.AddDays(1)
	}
	return d
}

type Day struct {
	Date        string `json:"date"`
	Weekday     int    `json:"weekday"`
	Holiday     bool   `json:"holiday"`
	HolidayName string `json:"holidayName,omitempty"`
	Selectable  bool   `json:"selectable"`
}

// Month lists every day of the month with its delivery status.
func (c *Calendar) Month(year int, month time.Month, now time.Time) []Day {
	days := make([]Day, 0, 31)
	for d := NewDate(year, month, 1); d.Month == month; d = d.AddDays(1) {
		name, national := HolidayName(d)
		days = append(days, Day{
			Date:        d.String(),
			Weekday:     int(d.Weekday()),
			Holiday:     national || d.IsWeekend(),
			HolidayName: name,
			Selectable:  c.Check(d, now) == nil,
		})
	}
	return days
}
