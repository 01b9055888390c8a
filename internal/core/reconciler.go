package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/messaging"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/repository"
)

// Resolver is the identity-directory port: it turns the opaque identifier
// a reader sends into a user and their active schedule.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (*model.UserProfile, error)
}

// reconcileAttempts is how many times one punch's full reconciliation is
// tried against transient persistence failures. Every step re-reads
// current state before mutating, so a replayed attempt is a no-op where
// the previous one already landed.
const reconcileAttempts = 3

type punchAction int

const (
	actionEnter punchAction = iota
	actionLeave
	actionNightLeave
)

// Reconciler consumes one allowed punch at a time and updates the
// attendance day(s) and segment(s) it affects. Idempotency against
// duplicate and out-of-order delivery rests on the monotonic captured
// boundaries and the needSave gate, not on locks.
type Reconciler struct {
	repo     repository.Repository
	ledger   *SegmentLedger
	resolver Resolver
	producer messaging.Publisher
	calc     *Calculator
	catalog  model.AttendanceTypeCatalog
	loc      *time.Location
}

func NewReconciler(repo repository.Repository, ledger *SegmentLedger, resolver Resolver, producer messaging.Publisher, catalog model.AttendanceTypeCatalog, loc *time.Location) *Reconciler {
	return &Reconciler{
		repo:     repo,
		ledger:   ledger,
		resolver: resolver,
		producer: producer,
		calc:     NewCalculator(catalog, loc),
		catalog:  catalog,
		loc:      loc,
	}
}

// Apply processes one punch event end to end: resolve the user, check the
// month still accepts punches, then reconcile with retries on transient
// persistence failures.
func (r *Reconciler) Apply(ctx context.Context, punch model.PunchEvent) error {
	if punch.Outcome != model.OutcomeAllowed {
		log.Ctx(ctx).Debug().Str("punch_id", punch.ID).Msg("Punch not allowed, ignoring")
		return nil
	}

	profile, err := r.resolver.Resolve(ctx, punch.UserIdentifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Ctx(ctx).Info().Str("identifier", punch.UserIdentifier).Msg("Punch for unknown user, ignoring")
			return nil
		}
		return fmt.Errorf("resolving punch user: %w", err)
	}

	date := model.WorkDateOf(punch.Timestamp.In(r.loc))
	ok, err := r.Stampable(ctx, profile.UserID, date.Year, date.Month)
	if err != nil {
		return err
	}
	if !ok {
		log.Ctx(ctx).Info().
			Str("user_id", profile.UserID).
			Str("date", date.String()).
			Msg("Month under approval, punch ignored")
		return nil
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		if err := r.applyOnce(ctx, profile, punch); err != nil {
			if repository.IsTransient(err) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(reconcileAttempts))
	return err
}

// Stampable reports whether a user's month still accepts punches: true
// while no approval record exists or it is still unapplied.
func (r *Reconciler) Stampable(ctx context.Context, userID string, year int, month time.Month) (bool, error) {
	a, err := r.repo.GetApproval(ctx, userID, year, month)
	if err != nil {
		return false, err
	}
	return a == nil || a.Status == model.ApprovalNoApplication, nil
}

func (r *Reconciler) applyOnce(ctx context.Context, profile *model.UserProfile, punch model.PunchEvent) error {
	ts := punch.Timestamp.In(r.loc)
	date := model.WorkDateOf(ts)

	action, err := r.route(ctx, profile, punch.Kind, date)
	if err != nil {
		return err
	}

	switch action {
	case actionEnter:
		return r.registerEnter(ctx, profile, punch.AssignmentID, date, ts)
	case actionLeave:
		return r.registerLeave(ctx, profile, punch.AssignmentID, date, ts)
	default:
		return r.registerNightLeave(ctx, profile, punch.AssignmentID, ts)
	}
}

// route picks the register operation. Manual kinds are explicit; auto and
// unknown kinds are inferred: an existing day with a real captured
// in-time means leave, an open segment from yesterday means night-leave,
// anything else is an enter.
func (r *Reconciler) route(ctx context.Context, profile *model.UserProfile, kind model.PunchKind, date model.WorkDate) (punchAction, error) {
	switch kind {
	case model.PunchManualEnter:
		return actionEnter, nil
	case model.PunchManualLeave:
		return actionLeave, nil
	case model.PunchManualNightLeave:
		return actionNightLeave, nil
	}

	day, err := r.repo.GetDay(ctx, profile.UserID, date)
	if err != nil {
		return actionEnter, err
	}
	if day != nil && day.HasRealCapture(r.loc) {
		return actionLeave, nil
	}

	open, err := r.repo.FindAnyOpenSegment(ctx, profile.UserID)
	if err != nil {
		return actionEnter, err
	}
	if open != nil && open.Date == date.Prev() {
		return actionNightLeave, nil
	}
	return actionEnter, nil
}

func (r *Reconciler) registerEnter(ctx context.Context, profile *model.UserProfile, assignmentID string, date model.WorkDate, ts time.Time) error {
	day, err := r.repo.GetDay(ctx, profile.UserID, date)
	if err != nil {
		return err
	}
	if day == nil {
		day = &model.AttendanceDay{UserID: profile.UserID, Date: date}
	}

	// Captured in-time only ever moves earlier; the seed sentinel does
	// not count as a capture.
	needSave := !day.HasRealCapture(r.loc) || ts.Before(*day.CapturedIn)
	if needSave {
		in := ts
		snapped := AbsorbEarlyPunch(ts, date, profile.Schedule, r.loc)
		day.CapturedIn = &in
		day.BoundaryIn = &snapped
		if day.Type == "" {
			day.Type = model.TypeNormal
		}
		if err := r.checkType(day.Type); err != nil {
			return err
		}
		if err := r.repo.UpsertDay(ctx, day); err != nil {
			return err
		}
	}

	// Segment bookkeeping happens even when the day boundary is
	// untouched: a re-entry after a closed segment opens a new one.
	if _, err := r.ledger.OpenSegment(ctx, profile.UserID, date, assignmentID, ts, profile.Schedule); err != nil {
		return err
	}
	return r.refresh(ctx, profile, date)
}

func (r *Reconciler) registerLeave(ctx context.Context, profile *model.UserProfile, assignmentID string, date model.WorkDate, ts time.Time) error {
	day, err := r.repo.GetDay(ctx, profile.UserID, date)
	if err != nil {
		return err
	}
	if day == nil || !day.HasRealCapture(r.loc) {
		// Leave without an enter: nothing to close.
		return nil
	}

	// needSave gate: only timestamps extending the captured window are
	// applied; everything else is a duplicate or arrived out of order.
	if !ts.After(*day.CapturedIn) {
		return nil
	}
	if day.CapturedOut != nil && !ts.After(*day.CapturedOut) {
		return nil
	}

	out := ts
	day.CapturedOut = &out
	day.BoundaryOut = &out // leave edges are never snapped
	if err := r.classifyOnLeave(ctx, day, profile.Schedule); err != nil {
		return err
	}
	if err := r.repo.UpsertDay(ctx, day); err != nil {
		return err
	}

	if _, err := r.ledger.CloseSegment(ctx, profile.UserID, assignmentID, ts); err != nil {
		return err
	}
	if err := r.refresh(ctx, profile, date); err != nil {
		return err
	}

	r.publishDayClosed(ctx, profile, day)
	return nil
}

// registerNightLeave applies a leave punch that belongs to the previous
// work date. When the schedule is a night shift and the open segment was
// (wrongly) opened on the punch's own date inside the night window, the
// current date's record was created in error: it is deleted and the leave
// re-applied against the previous date.
func (r *Reconciler) registerNightLeave(ctx context.Context, profile *model.UserProfile, assignmentID string, ts time.Time) error {
	current := model.WorkDateOf(ts)
	prev := current.Prev()
	sched := profile.Schedule

	if sched != nil && sched.NightShift {
		open, err := r.repo.FindAnyOpenSegment(ctx, profile.UserID)
		if err != nil {
			return err
		}
		if open != nil && open.Date == current && open.ActualIn != nil && r.inNightWindow(*open.ActualIn, current, sched) {
			if err := r.repo.DeleteDay(ctx, profile.UserID, current); err != nil {
				return err
			}
			open.Date = prev
			if err := r.repo.UpsertSegment(ctx, open); err != nil {
				return err
			}
			if err := r.adoptSegmentDay(ctx, profile, prev, open); err != nil {
				return err
			}
		}
	}

	day, err := r.repo.GetDay(ctx, profile.UserID, prev)
	if err != nil {
		return err
	}
	if day == nil || !day.HasRealCapture(r.loc) {
		return nil
	}
	if !ts.After(*day.CapturedIn) {
		return nil
	}
	if day.CapturedOut != nil && !ts.After(*day.CapturedOut) {
		return nil
	}

	out := ts
	day.CapturedOut = &out
	day.BoundaryOut = &out
	if err := r.classifyOnLeave(ctx, day, sched); err != nil {
		return err
	}
	if err := r.repo.UpsertDay(ctx, day); err != nil {
		return err
	}

	if _, err := r.ledger.CloseSegment(ctx, profile.UserID, assignmentID, ts); err != nil {
		return err
	}
	if err := r.refresh(ctx, profile, prev); err != nil {
		return err
	}

	if sched != nil && sched.NightShift {
		if err := r.seedFollowingRestDay(ctx, profile, day); err != nil {
			return err
		}
	}

	r.publishDayClosed(ctx, profile, day)
	return nil
}

// adoptSegmentDay makes sure the previous date has a record carrying the
// reassigned segment's enter punch.
func (r *Reconciler) adoptSegmentDay(ctx context.Context, profile *model.UserProfile, date model.WorkDate, seg *model.TimeSegment) error {
	day, err := r.repo.GetDay(ctx, profile.UserID, date)
	if err != nil {
		return err
	}
	if day != nil && day.HasRealCapture(r.loc) {
		return nil
	}
	if day == nil {
		day = &model.AttendanceDay{UserID: profile.UserID, Date: date, Type: model.TypeNormal}
	}
	in := *seg.ActualIn
	snapped := AbsorbEarlyPunch(in, date, profile.Schedule, r.loc)
	day.CapturedIn = &in
	day.BoundaryIn = &snapped
	return r.repo.UpsertDay(ctx, day)
}

// seedFollowingRestDay creates the rest record for the calendar date
// after a closed night-shift day: weekly rest by default, special paid
// leave when the completed shift ran past the configured threshold.
func (r *Reconciler) seedFollowingRestDay(ctx context.Context, profile *model.UserProfile, closed *model.AttendanceDay) error {
	next := closed.Date.Next()
	existing, err := r.repo.GetDay(ctx, profile.UserID, next)
	if err != nil {
		return err
	}
	if existing != nil && existing.HasRealCapture(r.loc) {
		return nil
	}

	segs, err := r.repo.ListSegments(ctx, profile.UserID, closed.Date)
	if err != nil {
		return err
	}
	worked, err := r.calc.DayWorkedMinutes(closed, segs, profile.Schedule)
	if err != nil {
		return err
	}

	restType := model.TypeWeeklyRest
	if t := profile.Schedule.SpecialLeaveThreshold; t > 0 && worked > t {
		restType = model.TypeSpecialPaidLeave
	}
	if err := r.checkType(restType); err != nil {
		return err
	}

	sentinel := next.Time(r.loc)
	seed := existing
	if seed == nil {
		seed = &model.AttendanceDay{UserID: profile.UserID, Date: next}
	}
	seed.CapturedIn = &sentinel
	seed.BoundaryIn = &sentinel
	seed.Type = restType
	return r.repo.UpsertDay(ctx, seed)
}

// classifyOnLeave sets the day's attendance type. Calendar holidays take
// precedence unless the schedule is a night shift; otherwise the
// boundaries are compared against the scheduled window.
func (r *Reconciler) classifyOnLeave(ctx context.Context, day *model.AttendanceDay, sched *model.WorkSchedule) error {
	if sched == nil {
		return r.checkType(day.Type)
	}

	if !sched.NightShift {
		cal, err := r.repo.HolidayCalendar(ctx, day.Date, day.Date)
		if err != nil {
			return err
		}
		switch cal.Kind(day.Date) {
		case model.HolidayPublic:
			day.Type = model.TypeHolidayWork
			return r.checkType(day.Type)
		case model.HolidayWeeklyRest:
			day.Type = model.TypeLegalHolidayWork
			return r.checkType(day.Type)
		}
	}

	start := day.Date.At(sched.Start(), r.loc)
	end := day.Date.At(sched.End(), r.loc)
	switch {
	case day.BoundaryIn != nil && day.BoundaryIn.After(start):
		day.Type = model.TypeLateArrival
	case day.BoundaryOut != nil && day.BoundaryOut.Before(end):
		day.Type = model.TypeEarlyLeave
	default:
		day.Type = model.TypeNormal
	}
	return r.checkType(day.Type)
}

// inNightWindow reports whether ts falls inside the schedule's night
// window when read as a clock time on date, accounting for the window
// running past midnight.
func (r *Reconciler) inNightWindow(ts time.Time, date model.WorkDate, sched *model.WorkSchedule) bool {
	ct := model.ClockTimeOf(ts, date, r.loc)
	if ct >= sched.NightStart && ct < sched.NightEnd {
		return true
	}
	wrapped := ct + model.ClockTime(24*60)
	return wrapped >= sched.NightStart && wrapped < sched.NightEnd
}

// RecomputeDate re-derives main-segment flags and rest hours for one
// user's date. It re-reads everything it touches, so replaying it is
// harmless; the recompute worker leans on that.
func (r *Reconciler) RecomputeDate(ctx context.Context, profile *model.UserProfile, date model.WorkDate) error {
	return r.refresh(ctx, profile, date)
}

// refresh recomputes derived segment state for a date after boundaries
// changed: main-segment designation and rest hours (sticky edits
// respected).
func (r *Reconciler) refresh(ctx context.Context, profile *model.UserProfile, date model.WorkDate) error {
	day, err := r.repo.GetDay(ctx, profile.UserID, date)
	if err != nil || day == nil {
		return err
	}
	segs, err := r.repo.ListSegments(ctx, profile.UserID, date)
	if err != nil || len(segs) == 0 {
		return err
	}

	dayType, ok := r.catalog[day.Type]
	if !ok {
		return &DataIntegrityError{Entity: "attendance type", Key: string(day.Type)}
	}

	window, err := r.repo.ActiveRestWindow(ctx, profile.UserID, date)
	if err != nil {
		return err
	}

	mainAssignment := ""
	if profile.Schedule != nil {
		mainAssignment = profile.Schedule.MainAssignmentID
	}
	MarkMainSegment(segs, mainAssignment)

	for i := range segs {
		seg := &segs[i]
		rest := ResolveRestMinutes(seg, RestContext{
			Window:   window,
			Schedule: profile.Schedule,
			DayType:  dayType,
			Main:     seg.Main,
			Loc:      r.loc,
		})
		ApplyRest(seg, rest)
		if err := r.repo.UpsertSegment(ctx, seg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) checkType(code model.AttendanceTypeCode) error {
	if _, ok := r.catalog[code]; !ok {
		return &DataIntegrityError{Entity: "attendance type", Key: string(code)}
	}
	return nil
}

// publishDayClosed hands the closed day to the notice queue. Delivery is
// best effort; a queue hiccup must not fail the punch.
func (r *Reconciler) publishDayClosed(ctx context.Context, profile *model.UserProfile, day *model.AttendanceDay) {
	if r.producer == nil {
		return
	}
	segs, err := r.repo.ListSegments(ctx, profile.UserID, day.Date)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Skipping day-closed notice")
		return
	}
	worked, err := r.calc.DayWorkedMinutes(day, segs, profile.Schedule)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Skipping day-closed notice")
		return
	}

	ev := messaging.DayClosedEvent{
		UserID:        profile.UserID,
		Email:         profile.Email,
		Date:          day.Date.String(),
		Type:          string(day.Type),
		WorkedMinutes: worked,
		ClosedAt:      time.Now().UTC(),
	}
	if err := r.producer.PublishNotice(ctx, ev); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to publish day-closed notice")
	}
}
