package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/repository"
)

type reconcilerFixture struct {
	repo      *repository.MemoryRepository
	publisher *capturePublisher
	rec       *Reconciler
	profile   *model.UserProfile
}

func newReconcilerFixture(t *testing.T, profile *model.UserProfile) *reconcilerFixture {
	t.Helper()
	repo := repository.NewMemoryRepository()
	publisher := &capturePublisher{}
	ledger := NewSegmentLedger(repo, nil, time.UTC)
	rec := NewReconciler(repo, ledger, stubResolver{profile: profile}, publisher, model.DefaultAttendanceTypes(), time.UTC)
	return &reconcilerFixture{repo: repo, publisher: publisher, rec: rec, profile: profile}
}

func punch(kind model.PunchKind, ts time.Time) model.PunchEvent {
	return model.PunchEvent{
		ID:             "p-" + ts.Format("150405"),
		UserIdentifier: "card-u1",
		AssignmentID:   "asg-main",
		Timestamp:      ts,
		Kind:           kind,
		Outcome:        model.OutcomeAllowed,
	}
}

func TestApplyEnterSnapsGraceWindow(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchAutoEnter, at(date, 8, 55))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, at(date, 8, 55), *day.CapturedIn, "captured boundary keeps the raw punch")
	assert.Equal(t, at(date, 9, 0), *day.BoundaryIn, "boundary absorbs the early punch")
	assert.Equal(t, model.TypeNormal, day.Type)
	assert.Equal(t, model.DayOpen, day.State(time.UTC))

	segs, err := f.repo.ListSegments(ctx, "u1", date)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, at(date, 9, 0), *segs[0].EditedIn)
	assert.True(t, segs[0].IsOpen())
}

func TestApplyLeaveClosesDay(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchAutoEnter, at(date, 8, 55))))
	// Unknown kind on a day with a real capture routes to leave.
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchUnknown, at(date, 18, 5))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Equal(t, at(date, 18, 5), *day.CapturedOut)
	assert.Equal(t, at(date, 18, 5), *day.BoundaryOut)
	assert.Equal(t, model.TypeNormal, day.Type, "09:00 in and 18:05 out inside the scheduled window")
	assert.Equal(t, model.DayClosed, day.State(time.UTC))

	segs, err := f.repo.ListSegments(ctx, "u1", date)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.False(t, segs[0].IsOpen())

	require.Len(t, f.publisher.notices, 1)
	assert.Equal(t, "u1", f.publisher.notices[0].UserID)
	assert.Equal(t, date.String(), f.publisher.notices[0].Date)
}

func TestApplyClassifiesLateArrival(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchAutoEnter, at(date, 9, 30))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchAutoLeave, at(date, 18, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Equal(t, model.TypeLateArrival, day.Type)
}

func TestApplyClassifiesEarlyLeave(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchAutoEnter, at(date, 8, 55))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchAutoLeave, at(date, 17, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Equal(t, model.TypeEarlyLeave, day.Type)
}

func TestApplyClassifiesHolidayWork(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)
	f.repo.SetHoliday(date, model.HolidayPublic)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchAutoEnter, at(date, 9, 0))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchAutoLeave, at(date, 15, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Equal(t, model.TypeHolidayWork, day.Type)
}

func TestApplyReplayedEnterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 8, 55))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 8, 55))))
	// A later enter must not move the captured in-time either.
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 20))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Equal(t, at(date, 8, 55), *day.CapturedIn)

	segs, err := f.repo.ListSegments(ctx, "u1", date)
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}

func TestApplyReplayedEnterAfterCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 0))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualLeave, at(date, 12, 0))))
	// The same enter replayed after the segment closed changes nothing.
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 0))))

	segs, err := f.repo.ListSegments(ctx, "u1", date)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.False(t, segs[0].IsOpen())

	// With nothing left open, an unknown punch on the next day is an
	// enter, not a night leave.
	next := date.Next()
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchUnknown, at(next, 9, 0))))
	day, err := f.repo.GetDay(ctx, "u1", next)
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, at(next, 9, 0), *day.CapturedIn)
}

func TestApplyEarlierEnterMovesBoundary(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 20))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 8, 55))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Equal(t, at(date, 8, 55), *day.CapturedIn)
	assert.Equal(t, at(date, 9, 0), *day.BoundaryIn)
}

func TestApplyStaleLeaveIgnored(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 0))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualLeave, at(date, 18, 0))))
	// Duplicate and out-of-order leaves do not shrink the window.
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualLeave, at(date, 18, 0))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualLeave, at(date, 17, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Equal(t, at(date, 18, 0), *day.CapturedOut)

	// A genuinely later leave still extends it.
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualLeave, at(date, 19, 0))))
	day, err = f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Equal(t, at(date, 19, 0), *day.CapturedOut)
}

func TestApplyLeaveWithoutEnterIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualLeave, at(date, 18, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Nil(t, day)
}

func TestApplyIgnoresDeniedPunch(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	p := punch(model.PunchManualEnter, at(date, 9, 0))
	p.Outcome = model.OutcomeDenied
	require.NoError(t, f.rec.Apply(ctx, p))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Nil(t, day)
}

func TestApplyIgnoresUnknownUser(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	ledger := NewSegmentLedger(repo, nil, time.UTC)
	rec := NewReconciler(repo, ledger, stubResolver{err: ErrUserNotFound}, &capturePublisher{}, model.DefaultAttendanceTypes(), time.UTC)

	date := model.NewWorkDate(2026, time.March, 2)
	assert.NoError(t, rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 0))))
}

func TestApplyRespectsApprovalGate(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)
	f.repo.SetApproval(model.Approval{UserID: "u1", Year: 2026, Month: time.March, Status: model.ApprovalApplicating})

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	assert.Nil(t, day, "punches on a month under approval are dropped")

	ok, err := f.rec.Stampable(ctx, "u1", 2026, time.March)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStampableWhileNoApplication(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))

	ok, err := f.rec.Stampable(ctx, "u1", 2026, time.March)
	require.NoError(t, err)
	assert.True(t, ok)

	f.repo.SetApproval(model.Approval{UserID: "u1", Year: 2026, Month: time.March, Status: model.ApprovalNoApplication})
	ok, err = f.rec.Stampable(ctx, "u1", 2026, time.March)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)
	f.repo.FailNextWrites(1)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	require.NotNil(t, day, "a transient write failure is retried")
}

func TestNightLeaveClosesPreviousDate(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(nightSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 20, 55))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualNightLeave, at(date.Next(), 6, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, at(date.Next(), 6, 0), *day.CapturedOut)
	assert.Equal(t, model.TypeNormal, day.Type, "20:55 snaps to 21:00 and 06:00 is past the 29:00 end")

	segs, err := f.repo.ListSegments(ctx, "u1", date)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.False(t, segs[0].IsOpen())

	// The calendar day after a closed night shift is seeded as rest.
	seeded, err := f.repo.GetDay(ctx, "u1", date.Next())
	require.NoError(t, err)
	require.NotNil(t, seeded)
	assert.Equal(t, model.TypeWeeklyRest, seeded.Type)
	assert.False(t, seeded.HasRealCapture(time.UTC))
	assert.Equal(t, model.DaySeeded, seeded.State(time.UTC))
}

func TestNightLeaveSeedsSpecialLeaveOverThreshold(t *testing.T) {
	ctx := context.Background()
	sched := nightSchedule()
	sched.SpecialLeaveThreshold = 300
	f := newReconcilerFixture(t, testProfile(sched))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 21, 0))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualNightLeave, at(date.Next(), 6, 0))))

	seeded, err := f.repo.GetDay(ctx, "u1", date.Next())
	require.NoError(t, err)
	require.NotNil(t, seeded)
	assert.Equal(t, model.TypeSpecialPaidLeave, seeded.Type, "shift past the threshold upgrades the seeded rest day")
}

func TestNightLeaveReassignsMisdatedSegment(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(nightSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)
	next := date.Next()

	// The enter came after midnight, so the day and segment were opened
	// on the wrong work date.
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(next, 0, 30))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualNightLeave, at(next, 7, 0))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	require.NotNil(t, day, "the previous work date adopts the reassigned punch")
	assert.Equal(t, at(next, 0, 30), *day.CapturedIn)
	assert.Equal(t, at(next, 7, 0), *day.CapturedOut)
	assert.Equal(t, model.TypeLateArrival, day.Type)

	segs, err := f.repo.ListSegments(ctx, "u1", date)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.False(t, segs[0].IsOpen())

	// The erroneous record on the punch date is replaced by the rest seed.
	seeded, err := f.repo.GetDay(ctx, "u1", next)
	require.NoError(t, err)
	require.NotNil(t, seeded)
	assert.False(t, seeded.HasRealCapture(time.UTC))
	assert.Equal(t, model.TypeWeeklyRest, seeded.Type)

	misdated, err := f.repo.ListSegments(ctx, "u1", next)
	require.NoError(t, err)
	assert.Empty(t, misdated)
}

func TestUnknownKindRoutesNightLeaveFromOpenSegment(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(nightSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 21, 0))))
	// Reader punch after midnight with an open segment from yesterday.
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchUnknown, at(date.Next(), 5, 30))))

	day, err := f.repo.GetDay(ctx, "u1", date)
	require.NoError(t, err)
	require.NotNil(t, day.CapturedOut)
	assert.Equal(t, at(date.Next(), 5, 30), *day.CapturedOut)
}

func TestRefreshAppliesRestAndMainFlag(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 0))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualLeave, at(date, 18, 0))))

	segs, err := f.repo.ListSegments(ctx, "u1", date)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.True(t, segs[0].Main)
	assert.Equal(t, 60, minutesFromHours(segs[0].EditedRestHours), "fallback rest applied on close")
}

func TestRecomputeDatePicksUpNewWindow(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, testProfile(testSchedule()))
	date := model.NewWorkDate(2026, time.March, 2)

	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualEnter, at(date, 9, 0))))
	require.NoError(t, f.rec.Apply(ctx, punch(model.PunchManualLeave, at(date, 18, 0))))

	window := &model.RestWindow{
		ID:        "w1",
		ValidFrom: date,
		Intervals: []model.RestInterval{{Name: "lunch", Start: model.NewClockTime(12, 0), End: model.NewClockTime(12, 45)}},
	}
	require.NoError(t, f.repo.SaveRestWindow(ctx, "u1", window))

	require.NoError(t, f.rec.RecomputeDate(ctx, f.profile, date))

	segs, err := f.repo.ListSegments(ctx, "u1", date)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 45, minutesFromHours(segs[0].EditedRestHours))
}
