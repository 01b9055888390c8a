package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/repository"
)

func seedClosedDay(t *testing.T, repo *repository.MemoryRepository, date model.WorkDate, dayType model.AttendanceTypeCode, in, out time.Time, restHours string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.UpsertDay(ctx, &model.AttendanceDay{
		UserID: "u1", Date: date, Type: dayType,
		CapturedIn: &in, CapturedOut: &out,
		BoundaryIn: &in, BoundaryOut: &out,
	}))
	rest := decimal.RequireFromString(restHours)
	require.NoError(t, repo.UpsertSegment(ctx, &model.TimeSegment{
		ID: "seg-" + date.String(), UserID: "u1", Date: date,
		ActualIn: &in, ActualOut: &out,
		EditedIn: &in, EditedOut: &out,
		ActualRestHours: rest, EditedRestHours: rest,
		Main: true,
	}))
}

func TestMonthlySummaryAggregates(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := NewSummaryService(repo, model.DefaultAttendanceTypes(), time.UTC)

	d1 := model.NewWorkDate(2026, time.March, 2)
	d2 := model.NewWorkDate(2026, time.March, 3)
	seedClosedDay(t, repo, d1, model.TypeNormal, at(d1, 9, 0), at(d1, 18, 0), "1")
	seedClosedDay(t, repo, d2, model.TypeNormal, at(d2, 9, 0), at(d2, 20, 0), "1")
	require.NoError(t, repo.UpsertDay(ctx, &model.AttendanceDay{
		UserID: "u1", Date: model.NewWorkDate(2026, time.March, 4), Type: model.TypePaidLeave,
	}))

	sum, err := svc.Month(ctx, testProfile(testSchedule()), 2026, time.March)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.WorkDays)
	assert.Equal(t, 1, sum.PaidLeaveDays)
	assert.Equal(t, 0, sum.HolidayWorkDays)
	assert.Equal(t, 480+600, sum.WorkedMinutes)
	assert.Equal(t, 120, sum.OvertimeMinutes)
	assert.Equal(t, 120, sum.RestMinutes)
	assert.False(t, sum.Incomplete)
	assert.True(t, sum.WorkedHours.Equal(decimal.RequireFromString("18")))
	assert.True(t, sum.OvertimeHours.Equal(decimal.RequireFromString("2")))
}

func TestMonthlySummaryHolidayWorkDay(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := NewSummaryService(repo, model.DefaultAttendanceTypes(), time.UTC)

	d := model.NewWorkDate(2026, time.March, 8)
	repo.SetHoliday(d, model.HolidayPublic)
	seedClosedDay(t, repo, d, model.TypeHolidayWork, at(d, 9, 0), at(d, 15, 0), "1")

	sum, err := svc.Month(ctx, testProfile(testSchedule()), 2026, time.March)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.HolidayWorkDays)
	assert.Equal(t, 0, sum.WorkDays)
	assert.Equal(t, 300, sum.WorkedMinutes)
	assert.Equal(t, 300, sum.HolidayMinutes)
	assert.Equal(t, 0, sum.ExcludeMinutes, "holiday work is off duty for exclude minutes")
}

func TestMonthlySummaryIncompleteSpill(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := NewSummaryService(repo, model.DefaultAttendanceTypes(), time.UTC)

	// A night segment spilling into April while April 1st is not
	// reconciled yet.
	d := model.NewWorkDate(2026, time.March, 31)
	seedClosedDay(t, repo, d, model.TypeNormal, at(d, 21, 0), at(d.Next(), 2, 0), "0")

	sum, err := svc.Month(ctx, testProfile(nightSchedule()), 2026, time.March)
	require.NoError(t, err)
	assert.True(t, sum.Incomplete, "missing adjacent day must flag the summary, not silently zero")
}
