package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/repository"
)

// AuditTrail receives segment edits made by someone other than the
// segment's owner. Delivery is an external concern; failures there must
// never fail the edit.
type AuditTrail interface {
	RecordSegmentEdit(ctx context.Context, actorID, action string, seg *model.TimeSegment)
}

// LogAuditTrail is the default AuditTrail, writing structured log lines.
type LogAuditTrail struct{}

func (LogAuditTrail) RecordSegmentEdit(ctx context.Context, actorID, action string, seg *model.TimeSegment) {
	log.Ctx(ctx).Info().
		Str("actor_id", actorID).
		Str("owner_id", seg.UserID).
		Str("segment_id", seg.ID).
		Str("action", action).
		Msg("Foreign segment edit recorded")
}

// SegmentLedger maintains the per-assignment work intervals for a user and
// day: punches open and close them, people edit them, and resets undo the
// edits.
type SegmentLedger struct {
	repo  repository.Repository
	audit AuditTrail
	loc   *time.Location
	newID func() string
}

func NewSegmentLedger(repo repository.Repository, audit AuditTrail, loc *time.Location) *SegmentLedger {
	if audit == nil {
		audit = LogAuditTrail{}
	}
	return &SegmentLedger{repo: repo, audit: audit, loc: loc, newID: uuid.NewString}
}

// OpenSegment records an enter punch. Early-punch absorption applies to
// the edited in-time exactly as it does to the day boundary. Returns
// (nil, nil) when the punch is skipped: an open segment with a
// different assignment key exists (mixed accounting), the punch does
// not extend the existing open segment, or the timestamp falls inside
// a segment that already closed (a replayed punch).
func (l *SegmentLedger) OpenSegment(ctx context.Context, userID string, date model.WorkDate, assignmentID string, ts time.Time, sched *model.WorkSchedule) (*model.TimeSegment, error) {
	segs, err := l.repo.ListSegments(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}

	for i := range segs {
		seg := &segs[i]
		if !seg.IsOpen() {
			// A punch inside an already-closed interval is a replay or
			// a late duplicate; it must not open a second segment.
			if seg.ActualIn != nil && seg.ActualOut != nil &&
				!ts.Before(*seg.ActualIn) && !ts.After(*seg.ActualOut) {
				return nil, nil
			}
			continue
		}
		if seg.AssignmentID != assignmentID {
			// An open segment under another assignment (or none) is
			// already accounting this day. Skip silently.
			log.Ctx(ctx).Debug().
				Str("user_id", userID).
				Str("assignment_id", assignmentID).
				Msg("Enter punch skipped: mixed-assignment open segment")
			return nil, nil
		}
		// Same assignment already open: only an earlier punch matters.
		if seg.ActualIn != nil && !ts.Before(*seg.ActualIn) {
			return nil, nil
		}
		edited := seg.EditedIn != nil && seg.ActualIn != nil && !seg.EditedIn.Equal(*seg.ActualIn)
		in := ts
		seg.ActualIn = &in
		if !edited {
			snapped := l.absorbEnter(ts, date, sched)
			seg.EditedIn = &snapped
		}
		if err := l.repo.UpsertSegment(ctx, seg); err != nil {
			return nil, err
		}
		return seg, nil
	}

	in := ts
	snapped := l.absorbEnter(ts, date, sched)
	seg := &model.TimeSegment{
		ID:           l.newID(),
		UserID:       userID,
		Date:         date,
		AssignmentID: assignmentID,
		ActualIn:     &in,
		EditedIn:     &snapped,
	}
	if err := l.repo.UpsertSegment(ctx, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

// CloseSegment records a leave punch against the matching open segment,
// falling back to any open segment for the user. Returns (nil, nil) when
// nothing is open.
func (l *SegmentLedger) CloseSegment(ctx context.Context, userID, assignmentID string, ts time.Time) (*model.TimeSegment, error) {
	seg, err := l.repo.FindOpenSegment(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	if seg == nil {
		if seg, err = l.repo.FindAnyOpenSegment(ctx, userID); err != nil {
			return nil, err
		}
	}
	if seg == nil {
		return nil, nil
	}

	out := ts
	seg.ActualOut = &out
	seg.EditedOut = &out
	if err := l.repo.UpsertSegment(ctx, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

// AddSegment creates a manually added segment, which ResetOrClear will
// delete rather than restore.
func (l *SegmentLedger) AddSegment(ctx context.Context, actorID, userID string, date model.WorkDate, assignmentID string, in, out time.Time, rest decimal.Decimal) (*model.TimeSegment, error) {
	if !in.Before(out) {
		return nil, &ValidationError{Field: "in", Reason: "must be before out time"}
	}
	if rest.IsNegative() {
		return nil, &ValidationError{Field: "restHours", Reason: "must not be negative"}
	}

	seg := &model.TimeSegment{
		ID:              l.newID(),
		UserID:          userID,
		Date:            date,
		AssignmentID:    assignmentID,
		ActualIn:        &in,
		ActualOut:       &out,
		EditedIn:        &in,
		EditedOut:       &out,
		ActualRestHours: rest,
		EditedRestHours: rest,
		ManuallyAdded:   true,
	}
	if err := l.repo.UpsertSegment(ctx, seg); err != nil {
		return nil, err
	}
	if actorID != userID {
		l.audit.RecordSegmentEdit(ctx, actorID, "add", seg)
	}
	return seg, nil
}

// EditSegment overrides the edited fields of a segment. Validation runs
// before anything is persisted; a rejected edit leaves prior state
// untouched.
func (l *SegmentLedger) EditSegment(ctx context.Context, segmentID, actorID string, in, out *time.Time, restHours *decimal.Decimal) (*model.TimeSegment, error) {
	seg, err := l.repo.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	if seg == nil {
		return nil, ErrSegmentNotFound
	}

	effIn := seg.EditedIn
	if in != nil {
		effIn = in
	}
	effOut := seg.EditedOut
	if out != nil {
		effOut = out
	}
	if effIn != nil && effOut != nil && !effIn.Before(*effOut) {
		return nil, &ValidationError{Field: "in", Reason: "must be before out time"}
	}
	if restHours != nil && restHours.IsNegative() {
		return nil, &ValidationError{Field: "restHours", Reason: "must not be negative"}
	}

	if in != nil {
		seg.EditedIn = in
	}
	if out != nil {
		seg.EditedOut = out
	}
	if restHours != nil {
		seg.EditedRestHours = *restHours
	}
	if err := l.repo.UpsertSegment(ctx, seg); err != nil {
		return nil, err
	}
	if actorID != seg.UserID {
		l.audit.RecordSegmentEdit(ctx, actorID, "edit", seg)
	}
	return seg, nil
}

// ResetOrClear deletes a manually added segment; for punched segments it
// restores the edited fields to the actual ones, discarding all edits.
func (l *SegmentLedger) ResetOrClear(ctx context.Context, segmentID, actorID string) error {
	seg, err := l.repo.GetSegment(ctx, segmentID)
	if err != nil {
		return err
	}
	if seg == nil {
		return ErrSegmentNotFound
	}

	if seg.ManuallyAdded {
		if err := l.repo.DeleteSegment(ctx, seg.ID); err != nil {
			return err
		}
		if actorID != seg.UserID {
			l.audit.RecordSegmentEdit(ctx, actorID, "delete", seg)
		}
		return nil
	}

	seg.EditedIn = seg.ActualIn
	seg.EditedOut = seg.ActualOut
	seg.EditedRestHours = seg.ActualRestHours
	if err := l.repo.UpsertSegment(ctx, seg); err != nil {
		return err
	}
	if actorID != seg.UserID {
		l.audit.RecordSegmentEdit(ctx, actorID, "reset", seg)
	}
	return nil
}

// absorbEnter snaps a punch inside the grace window before the scheduled
// start (day or night variant) to the scheduled start. Leave edges are
// never snapped.
func (l *SegmentLedger) absorbEnter(ts time.Time, date model.WorkDate, sched *model.WorkSchedule) time.Time {
	return AbsorbEarlyPunch(ts, date, sched, l.loc)
}

// AbsorbEarlyPunch applies the early-punch grace rule shared by the day
// boundary and segment in-times.
func AbsorbEarlyPunch(ts time.Time, date model.WorkDate, sched *model.WorkSchedule, loc *time.Location) time.Time {
	if sched == nil || sched.GraceMinutes <= 0 {
		return ts
	}
	start := date.At(sched.Start(), loc)
	grace := time.Duration(sched.GraceMinutes) * time.Minute
	if ts.Before(start) && !ts.Before(start.Add(-grace)) {
		return start
	}
	return ts
}

// MarkMainSegment flags the day's main segment: the earliest edited
// in-time among segments on the configured main assignment, or the
// earliest overall when none matches. Only the main segment feeds
// rest-hours and early/late minutes into day aggregates.
func MarkMainSegment(segs []model.TimeSegment, mainAssignmentID string) int {
	pick := func(match func(*model.TimeSegment) bool) int {
		best := -1
		for i := range segs {
			if !match(&segs[i]) || segs[i].EditedIn == nil {
				continue
			}
			if best < 0 || segs[i].EditedIn.Before(*segs[best].EditedIn) {
				best = i
			}
		}
		return best
	}

	best := -1
	if mainAssignmentID != "" {
		best = pick(func(s *model.TimeSegment) bool { return s.AssignmentID == mainAssignmentID })
	}
	if best < 0 {
		best = pick(func(s *model.TimeSegment) bool { return true })
	}

	for i := range segs {
		segs[i].Main = i == best
	}
	return best
}
