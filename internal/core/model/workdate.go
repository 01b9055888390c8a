package model

import (
	"fmt"
	"time"
)

// WorkDate is the civil date a punch or record is accounted against. It is
// deliberately not a time.Time: a work date has no clock or zone of its own,
// and night shifts mean the accounting date can differ from the calendar
// date of a timestamp.
type WorkDate struct {
	Year  int
	Month time.Month
	Day   int
}

func NewWorkDate(year int, month time.Month, day int) WorkDate {
	return WorkDate{Year: year, Month: month, Day: day}
}

// WorkDateOf returns the calendar date of t in t's own location.
func WorkDateOf(t time.Time) WorkDate {
	y, m, d := t.Date()
	return WorkDate{Year: y, Month: m, Day: d}
}

// ParseWorkDate parses "2006-01-02".
func ParseWorkDate(s string) (WorkDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return WorkDate{}, fmt.Errorf("invalid work date %q: %w", s, err)
	}
	return WorkDateOf(t), nil
}

// Time returns midnight of the work date in loc. This is also the "day
// start" sentinel used for pre-seeded attendance records.
func (d WorkDate) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At materializes a clock time onto the work date. Clock times past 24:00
// land on the following calendar day, which is how night windows such as
// 22:00-29:00 are expressed.
func (d WorkDate) At(c ClockTime, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, int(c), 0, 0, loc)
}

func (d WorkDate) AddDays(n int) WorkDate {
	return WorkDateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

func (d WorkDate) Next() WorkDate { return d.AddDays(1) }
func (d WorkDate) Prev() WorkDate { return d.AddDays(-1) }

func (d WorkDate) Before(o WorkDate) bool {
	return d.Time(time.UTC).Before(o.Time(time.UTC))
}

func (d WorkDate) After(o WorkDate) bool { return o.Before(d) }

func (d WorkDate) IsZero() bool { return d == WorkDate{} }

func (d WorkDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ClockTime is minutes since the work date's midnight. Values beyond 24h
// are valid and mean "on the next calendar day": 29:00 is 05:00 tomorrow.
type ClockTime int

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

// PastMidnight reports whether the clock time falls on the next calendar day.
func (c ClockTime) PastMidnight() bool { return c >= 24*60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// ClockTimeOf converts a timestamp to minutes past midnight of date in loc.
// A timestamp on the calendar day after date yields a value past 24:00, so
// night-shift leave instants compare naturally against night windows.
func ClockTimeOf(t time.Time, date WorkDate, loc *time.Location) ClockTime {
	return ClockTime(t.In(loc).Sub(date.Time(loc)) / time.Minute)
}
