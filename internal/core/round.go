package core

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

// roundUpTo rounds m up to the next multiple of unit.
func roundUpTo(m, unit int) int {
	if unit <= 1 {
		return m
	}
	if m >= 0 {
		return ((m + unit - 1) / unit) * unit
	}
	return -((-m / unit) * unit)
}

// roundDownTo rounds m down to the previous multiple of unit.
func roundDownTo(m, unit int) int {
	if unit <= 1 {
		return m
	}
	if m >= 0 {
		return (m / unit) * unit
	}
	return -roundUpTo(-m, unit)
}

// overlapRounded computes the overlap of [aStart,aEnd) and [bStart,bEnd)
// in minutes, rounding the overlap's start up and its end down to unit
// before differencing. Rounding each sub-interval first is load-bearing:
// rounding a summed total once yields different payroll numbers.
func overlapRounded(aStart, aEnd, bStart, bEnd, unit int) int {
	s := aStart
	if bStart > s {
		s = bStart
	}
	e := aEnd
	if bEnd < e {
		e = bEnd
	}
	if e <= s {
		return 0
	}
	s = roundUpTo(s, unit)
	e = roundDownTo(e, unit)
	if e <= s {
		return 0
	}
	return e - s
}

// minutesOn converts a timestamp to minutes relative to date's midnight in
// loc. Timestamps on neighboring calendar days yield values outside
// [0,1440), which is exactly what midnight-crossing math needs.
func minutesOn(t time.Time, date model.WorkDate, loc *time.Location) int {
	return int(model.ClockTimeOf(t, date, loc))
}

var sixty = decimal.NewFromInt(60)

// hoursFromMinutes converts whole minutes to decimal hours.
func hoursFromMinutes(m int) decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(sixty)
}

// minutesFromHours converts decimal hours to whole minutes.
func minutesFromHours(h decimal.Decimal) int {
	return int(h.Mul(sixty).IntPart())
}
