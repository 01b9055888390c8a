package core

import (
	"context"
	"sync"
	"time"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/messaging"
)

// Shared fixtures for the core tests. Everything runs in UTC so the
// expected instants are easy to read off.

func testSchedule() *model.WorkSchedule {
	return &model.WorkSchedule{
		ID:               "sched-day",
		DayStart:         model.NewClockTime(9, 0),
		DayEnd:           model.NewClockTime(18, 0),
		NightStart:       model.NewClockTime(21, 0),
		NightEnd:         model.NewClockTime(29, 0),
		GraceMinutes:     10,
		RoundingUnit:     15,
		ScheduledMinutes: 480,
		MainAssignmentID: "asg-main",
	}
}

func nightSchedule() *model.WorkSchedule {
	s := testSchedule()
	s.ID = "sched-night"
	s.NightShift = true
	s.SpecialLeaveThreshold = 600
	return s
}

func testProfile(sched *model.WorkSchedule) *model.UserProfile {
	return &model.UserProfile{UserID: "u1", Email: "u1@factory.com", Schedule: sched}
}

func at(date model.WorkDate, hour, min int) time.Time {
	return time.Date(date.Year, date.Month, date.Day, hour, min, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

type stubResolver struct {
	profile *model.UserProfile
	err     error
}

func (s stubResolver) Resolve(_ context.Context, _ string) (*model.UserProfile, error) {
	return s.profile, s.err
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu         sync.Mutex
	recomputes []messaging.RecomputeRestEvent
	notices    []messaging.DayClosedEvent
	failAll    bool
}

func (p *capturePublisher) PublishRecompute(_ context.Context, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return context.DeadlineExceeded
	}
	p.recomputes = append(p.recomputes, body.(messaging.RecomputeRestEvent))
	return nil
}

func (p *capturePublisher) PublishNotice(_ context.Context, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return context.DeadlineExceeded
	}
	p.notices = append(p.notices, body.(messaging.DayClosedEvent))
	return nil
}
