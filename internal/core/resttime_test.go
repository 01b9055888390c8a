package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

func restSegment(date model.WorkDate, in, out time.Time) *model.TimeSegment {
	return &model.TimeSegment{
		ID:       "seg-1",
		UserID:   "u1",
		Date:     date,
		EditedIn: &in, EditedOut: &out,
		ActualIn: &in, ActualOut: &out,
	}
}

func workedType() model.AttendanceType {
	return model.DefaultAttendanceTypes()[model.TypeNormal]
}

func TestDatedWindowOverridesFallback(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 9, 0), at(date, 18, 0))

	rc := RestContext{
		Window: &model.RestWindow{
			ValidFrom: date,
			Intervals: []model.RestInterval{{Name: "lunch", Start: model.NewClockTime(12, 0), End: model.NewClockTime(12, 45)}},
		},
		Schedule: testSchedule(),
		DayType:  workedType(),
		Main:     true,
		Loc:      time.UTC,
	}
	assert.Equal(t, 45, ResolveRestMinutes(seg, rc))
}

func TestDatedWindowCoveringWholeSegment(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 9, 0), at(date, 18, 0))

	rc := RestContext{
		Window: &model.RestWindow{
			ValidFrom: date,
			Intervals: []model.RestInterval{{Start: 0, End: model.NewClockTime(24, 0)}},
		},
		Schedule: testSchedule(),
		DayType:  workedType(),
		Main:     true,
		Loc:      time.UTC,
	}
	// The window swallows the entire interval; net work goes to zero.
	assert.Equal(t, 540, ResolveRestMinutes(seg, rc))
}

func TestWindowMaterializedOnExitDate(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 21, 0), at(date.Next(), 6, 10))

	rc := RestContext{
		Window: &model.RestWindow{
			ValidFrom: date,
			Intervals: []model.RestInterval{{Name: "night break", Start: model.NewClockTime(1, 0), End: model.NewClockTime(1, 30)}},
		},
		Schedule: nightSchedule(),
		DayType:  workedType(),
		Main:     true,
		Loc:      time.UTC,
	}
	// 01:00-01:30 misses the segment on the entry date but lands inside
	// it when materialized on the exit date.
	assert.Equal(t, 30, ResolveRestMinutes(seg, rc))
}

func TestWindowIntervalWrappingMidnight(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 21, 0), at(date.Next(), 6, 10))

	rc := RestContext{
		Window: &model.RestWindow{
			ValidFrom: date,
			Intervals: []model.RestInterval{{Start: model.NewClockTime(23, 30), End: model.NewClockTime(0, 30)}},
		},
		Schedule: nightSchedule(),
		DayType:  workedType(),
		Main:     true,
		Loc:      time.UTC,
	}
	// Materialized on the entry date the wrap gives 23:30-24:30, fully
	// inside the segment. The exit-date materialization (23:30 next day
	// onward) is past the leave time and contributes nothing.
	assert.Equal(t, 60, ResolveRestMinutes(seg, rc))
}

func TestWindowInactiveOutsideValidity(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 9, 0), at(date, 18, 0))

	rc := RestContext{
		Window: &model.RestWindow{
			ValidFrom: date.Next(),
			Intervals: []model.RestInterval{{Start: model.NewClockTime(12, 0), End: model.NewClockTime(13, 0)}},
		},
		Schedule: testSchedule(),
		DayType:  workedType(),
		Main:     true,
		Loc:      time.UTC,
	}
	// Falls back to the fixed default.
	assert.Equal(t, 60, ResolveRestMinutes(seg, rc))
}

func TestFallbackRestMainSegmentOnly(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 9, 0), at(date, 18, 0))

	rc := RestContext{Schedule: testSchedule(), DayType: workedType(), Main: false, Loc: time.UTC}
	assert.Equal(t, 0, ResolveRestMinutes(seg, rc))

	rc.Main = true
	assert.Equal(t, 60, ResolveRestMinutes(seg, rc))
}

func TestFallbackRestScheduleOverride(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 9, 0), at(date, 18, 0))

	sched := testSchedule()
	sched.DayRestHours = decimal.NullDecimal{Decimal: decimal.RequireFromString("0.75"), Valid: true}
	rc := RestContext{Schedule: sched, DayType: workedType(), Main: true, Loc: time.UTC}
	assert.Equal(t, 45, ResolveRestMinutes(seg, rc))
}

func TestFallbackRestNightVariant(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 21, 0), at(date.Next(), 6, 0))

	sched := nightSchedule()
	sched.NightRestHours = decimal.NullDecimal{Decimal: decimal.RequireFromString("1.25"), Valid: true}
	rc := RestContext{Schedule: sched, DayType: workedType(), Main: true, Loc: time.UTC}
	assert.Equal(t, 75, ResolveRestMinutes(seg, rc))
}

func TestFallbackRestZeroOnNonWorkedDay(t *testing.T) {
	date := model.NewWorkDate(2026, time.March, 2)
	seg := restSegment(date, at(date, 9, 0), at(date, 18, 0))

	rc := RestContext{
		Schedule: testSchedule(),
		DayType:  model.DefaultAttendanceTypes()[model.TypeWeeklyRest],
		Main:     true,
		Loc:      time.UTC,
	}
	assert.Equal(t, 0, ResolveRestMinutes(seg, rc))
}

func TestApplyRestStickyEdit(t *testing.T) {
	seg := &model.TimeSegment{
		ActualRestHours: decimal.RequireFromString("1"),
		EditedRestHours: decimal.RequireFromString("1.5"),
	}
	ApplyRest(seg, 45)
	assert.True(t, seg.ActualRestHours.Equal(decimal.RequireFromString("0.75")))
	assert.True(t, seg.EditedRestHours.Equal(decimal.RequireFromString("1.5")), "manual edit must survive recomputation")

	fresh := &model.TimeSegment{
		ActualRestHours: decimal.RequireFromString("1"),
		EditedRestHours: decimal.RequireFromString("1"),
	}
	ApplyRest(fresh, 45)
	assert.True(t, fresh.EditedRestHours.Equal(decimal.RequireFromString("0.75")))
}
