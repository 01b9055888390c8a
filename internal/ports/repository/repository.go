package repository

import (
	"context"
	"errors"
	"time"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

// ErrTransient marks a persistence failure that is worth retrying. The
// reconciliation driver re-reads state on every attempt, so retrying a
// wrapped operation is always safe.
var ErrTransient = errors.New("transient persistence failure")

// IsTransient reports whether err is a retryable persistence failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Repository contract. Lookups that miss return (nil, nil), not an error;
// absence is a normal condition in punch processing.
type Repository interface {
	// AttendanceDay
	GetDay(ctx context.Context, userID string, date model.WorkDate) (*model.AttendanceDay, error)
	UpsertDay(ctx context.Context, day *model.AttendanceDay) error
	DeleteDay(ctx context.Context, userID string, date model.WorkDate) error
	ListDays(ctx context.Context, userID string, year int, month time.Month) ([]model.AttendanceDay, error)

	// TimeSegment
	ListSegments(ctx context.Context, userID string, date model.WorkDate) ([]model.TimeSegment, error)
	FindOpenSegment(ctx context.Context, userID, assignmentID string) (*model.TimeSegment, error)
	FindAnyOpenSegment(ctx context.Context, userID string) (*model.TimeSegment, error)
	GetSegment(ctx context.Context, id string) (*model.TimeSegment, error)
	UpsertSegment(ctx context.Context, seg *model.TimeSegment) error
	DeleteSegment(ctx context.Context, id string) error

	// RestWindow
	ActiveRestWindow(ctx context.Context, userID string, date model.WorkDate) (*model.RestWindow, error)
	GetRestWindow(ctx context.Context, id string) (*model.RestWindow, error)
	SaveRestWindow(ctx context.Context, userID string, w *model.RestWindow) error
	DeleteRestWindow(ctx context.Context, id string) error

	// Holiday calendar, inclusive date range.
	HolidayCalendar(ctx context.Context, from, to model.WorkDate) (model.HolidayCalendar, error)

	// Approval workflow (read-only here).
	GetApproval(ctx context.Context, userID string, year int, month time.Month) (*model.Approval, error)
}
