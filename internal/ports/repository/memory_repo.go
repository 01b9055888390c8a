package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

type dayKey struct {
	userID string
	date   model.WorkDate
}

type approvalKey struct {
	userID string
	year   int
	month  time.Month
}

type windowEntry struct {
	userID string
	window model.RestWindow
}

// MemoryRepository is an in-memory Repository used by tests and local
// development. It mirrors the Postgres implementation's contract,
// including (nil, nil) on missing rows, and can simulate transient
// failures for retry tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	days      map[dayKey]model.AttendanceDay
	segments  map[string]model.TimeSegment
	windows   map[string]windowEntry
	holidays  model.HolidayCalendar
	approvals map[approvalKey]model.Approval

	failNextWrites int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		days:      make(map[dayKey]model.AttendanceDay),
		segments:  make(map[string]model.TimeSegment),
		windows:   make(map[string]windowEntry),
		holidays:  make(model.HolidayCalendar),
		approvals: make(map[approvalKey]model.Approval),
	}
}

// FailNextWrites makes the next n mutating calls fail with ErrTransient.
func (r *MemoryRepository) FailNextWrites(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNextWrites = n
}

func (r *MemoryRepository) writeFailure() error {
	if r.failNextWrites > 0 {
		r.failNextWrites--
		return fmt.Errorf("%w: induced failure", ErrTransient)
	}
	return nil
}

func (r *MemoryRepository) GetDay(_ context.Context, userID string, date model.WorkDate) (*model.AttendanceDay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if day, ok := r.days[dayKey{userID, date}]; ok {
		cp := day
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpsertDay(_ context.Context, day *model.AttendanceDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeFailure(); err != nil {
		return err
	}
	r.days[dayKey{day.UserID, day.Date}] = *day
	return nil
}

func (r *MemoryRepository) DeleteDay(_ context.Context, userID string, date model.WorkDate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeFailure(); err != nil {
		return err
	}
	delete(r.days, dayKey{userID, date})
	return nil
}

func (r *MemoryRepository) ListDays(_ context.Context, userID string, year int, month time.Month) ([]model.AttendanceDay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var days []model.AttendanceDay
	for k, day := range r.days {
		if k.userID == userID && day.Date.Year == year && day.Date.Month == month {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

func (r *MemoryRepository) ListSegments(_ context.Context, userID string, date model.WorkDate) ([]model.TimeSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var segs []model.TimeSegment
	for _, seg := range r.segments {
		if seg.UserID == userID && seg.Date == date {
			segs = append(segs, seg)
		}
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].EditedIn == nil || segs[j].EditedIn == nil {
			return segs[j].EditedIn == nil
		}
		return segs[i].EditedIn.Before(*segs[j].EditedIn)
	})
	return segs, nil
}

func (r *MemoryRepository) FindOpenSegment(_ context.Context, userID, assignmentID string) (*model.TimeSegment, error) {
	return r.findOpen(func(seg *model.TimeSegment) bool {
		return seg.UserID == userID && seg.AssignmentID == assignmentID
	})
}

func (r *MemoryRepository) FindAnyOpenSegment(_ context.Context, userID string) (*model.TimeSegment, error) {
	return r.findOpen(func(seg *model.TimeSegment) bool {
		return seg.UserID == userID
	})
}

func (r *MemoryRepository) findOpen(match func(*model.TimeSegment) bool) (*model.TimeSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *model.TimeSegment
	for _, seg := range r.segments {
		seg := seg
		if !seg.IsOpen() || !match(&seg) {
			continue
		}
		if best == nil || (seg.ActualIn != nil && best.ActualIn != nil && seg.ActualIn.After(*best.ActualIn)) {
			best = &seg
		}
	}
	return best, nil
}

func (r *MemoryRepository) GetSegment(_ context.Context, id string) (*model.TimeSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if seg, ok := r.segments[id]; ok {
		cp := seg
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpsertSegment(_ context.Context, seg *model.TimeSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeFailure(); err != nil {
		return err
	}
	r.segments[seg.ID] = *seg
	return nil
}

func (r *MemoryRepository) DeleteSegment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeFailure(); err != nil {
		return err
	}
	delete(r.segments, id)
	return nil
}

func (r *MemoryRepository) ActiveRestWindow(_ context.Context, userID string, date model.WorkDate) (*model.RestWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *model.RestWindow
	for _, e := range r.windows {
		if e.userID != userID {
			continue
		}
		w := e.window
		if date.Before(w.ValidFrom) {
			continue
		}
		if !w.ValidTo.IsZero() && date.After(w.ValidTo) {
			continue
		}
		if best == nil || best.ValidFrom.Before(w.ValidFrom) {
			cp := w
			best = &cp
		}
	}
	return best, nil
}

func (r *MemoryRepository) GetRestWindow(_ context.Context, id string) (*model.RestWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.windows[id]; ok {
		cp := e.window
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryRepository) SaveRestWindow(_ context.Context, userID string, w *model.RestWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeFailure(); err != nil {
		return err
	}
	r.windows[w.ID] = windowEntry{userID: userID, window: *w}
	return nil
}

func (r *MemoryRepository) DeleteRestWindow(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeFailure(); err != nil {
		return err
	}
	delete(r.windows, id)
	return nil
}

func (r *MemoryRepository) HolidayCalendar(_ context.Context, from, to model.WorkDate) (model.HolidayCalendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cal := make(model.HolidayCalendar)
	for d, kind := range r.holidays {
		if !d.Before(from) && !d.After(to) {
			cal[d] = kind
		}
	}
	return cal, nil
}

// SetHoliday seeds the holiday calendar.
func (r *MemoryRepository) SetHoliday(date model.WorkDate, kind model.HolidayKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holidays[date] = kind
}

func (r *MemoryRepository) GetApproval(_ context.Context, userID string, year int, month time.Month) (*model.Approval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.approvals[approvalKey{userID, year, month}]; ok {
		cp := a
		return &cp, nil
	}
	return nil, nil
}

// SetApproval seeds an approval record.
func (r *MemoryRepository) SetApproval(a model.Approval) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approvals[approvalKey{a.UserID, a.Year, a.Month}] = a
}
