package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

// AttendanceRepository is the concrete implementation for a PostgreSQL database.
type AttendanceRepository struct {
	DB *sql.DB
}

// NewAttendanceRepository create new instance
func NewAttendanceRepository(db *sql.DB) Repository {
	return &AttendanceRepository{DB: db}
}

// markTransient tags database failures as retryable. Row absence is a
// domain condition, never a failure.
func markTransient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// GetDay fetches one attendance day, (nil, nil) when absent.
func (r *AttendanceRepository) GetDay(ctx context.Context, userID string, date model.WorkDate) (*model.AttendanceDay, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.userId", userID))

	query := `SELECT captured_in, captured_out, boundary_in, boundary_out, type, edit_reason
              FROM attendance_days
              WHERE user_id = $1 AND work_date = $2`

	day := &model.AttendanceDay{UserID: userID, Date: date}
	var typ string
	row := r.DB.QueryRowContext(ctx, query, userID, date.Time(time.UTC))
	err := row.Scan(&day.CapturedIn, &day.CapturedOut, &day.BoundaryIn, &day.BoundaryOut, &typ, &day.EditReason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, markTransient(err)
	}
	day.Type = model.AttendanceTypeCode(typ)
	return day, nil
}

// UpsertDay writes the full next value of an attendance day in one
// statement; there is never a partially applied record.
func (r *AttendanceRepository) UpsertDay(ctx context.Context, day *model.AttendanceDay) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.userId", day.UserID))

	query := `INSERT INTO attendance_days (user_id, work_date, captured_in, captured_out, boundary_in, boundary_out, type, edit_reason)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              ON CONFLICT (user_id, work_date) DO UPDATE
              SET captured_in = EXCLUDED.captured_in,
                  captured_out = EXCLUDED.captured_out,
                  boundary_in = EXCLUDED.boundary_in,
                  boundary_out = EXCLUDED.boundary_out,
                  type = EXCLUDED.type,
                  edit_reason = EXCLUDED.edit_reason`

	_, err := r.DB.ExecContext(ctx, query,
		day.UserID, day.Date.Time(time.UTC),
		day.CapturedIn, day.CapturedOut, day.BoundaryIn, day.BoundaryOut,
		string(day.Type), day.EditReason,
	)
	return markTransient(err)
}

// DeleteDay removes a day record; deleting an absent day is a no-op.
func (r *AttendanceRepository) DeleteDay(ctx context.Context, userID string, date model.WorkDate) error {
	query := `DELETE FROM attendance_days WHERE user_id = $1 AND work_date = $2`
	_, err := r.DB.ExecContext(ctx, query, userID, date.Time(time.UTC))
	return markTransient(err)
}

// ListDays returns a user's day records for one month, ordered by date.
func (r *AttendanceRepository) ListDays(ctx context.Context, userID string, year int, month time.Month) ([]model.AttendanceDay, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	query := `SELECT work_date, captured_in, captured_out, boundary_in, boundary_out, type, edit_reason
              FROM attendance_days
              WHERE user_id = $1 AND work_date >= $2 AND work_date < $3
              ORDER BY work_date`

	rows, err := r.DB.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, markTransient(err)
	}
	defer rows.Close()

	var days []model.AttendanceDay
	for rows.Next() {
		day := model.AttendanceDay{UserID: userID}
		var workDate time.Time
		var typ string
		if err := rows.Scan(&workDate, &day.CapturedIn, &day.CapturedOut, &day.BoundaryIn, &day.BoundaryOut, &typ, &day.EditReason); err != nil {
			return nil, markTransient(err)
		}
		day.Date = model.WorkDateOf(workDate)
		day.Type = model.AttendanceTypeCode(typ)
		days = append(days, day)
	}
	return days, markTransient(rows.Err())
}

const segmentColumns = `id, user_id, work_date, assignment_id, actual_in, actual_out, edited_in, edited_out,
              actual_rest_hours, edited_rest_hours, manually_added, is_main`

func scanSegment(row interface{ Scan(...any) error }) (*model.TimeSegment, error) {
	seg := &model.TimeSegment{}
	var workDate time.Time
	err := row.Scan(&seg.ID, &seg.UserID, &workDate, &seg.AssignmentID,
		&seg.ActualIn, &seg.ActualOut, &seg.EditedIn, &seg.EditedOut,
		&seg.ActualRestHours, &seg.EditedRestHours, &seg.ManuallyAdded, &seg.Main)
	if err != nil {
		return nil, err
	}
	seg.Date = model.WorkDateOf(workDate)
	return seg, nil
}

// ListSegments returns the segments of one user's work date.
func (r *AttendanceRepository) ListSegments(ctx context.Context, userID string, date model.WorkDate) ([]model.TimeSegment, error) {
	query := `SELECT ` + segmentColumns + `
              FROM time_segments
              WHERE user_id = $1 AND work_date = $2
              ORDER BY edited_in NULLS LAST`

	rows, err := r.DB.QueryContext(ctx, query, userID, date.Time(time.UTC))
	if err != nil {
		return nil, markTransient(err)
	}
	defer rows.Close()

	var segs []model.TimeSegment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, markTransient(err)
		}
		segs = append(segs, *seg)
	}
	return segs, markTransient(rows.Err())
}

// FindOpenSegment returns the latest open segment for the exact
// (user, assignment) key, (nil, nil) when none.
func (r *AttendanceRepository) FindOpenSegment(ctx context.Context, userID, assignmentID string) (*model.TimeSegment, error) {
	query := `SELECT ` + segmentColumns + `
              FROM time_segments
              WHERE user_id = $1 AND assignment_id = $2 AND actual_out IS NULL
              ORDER BY actual_in DESC
              LIMIT 1`

	seg, err := scanSegment(r.DB.QueryRowContext(ctx, query, userID, assignmentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, markTransient(err)
	}
	return seg, nil
}

// FindAnyOpenSegment returns the latest open segment for a user across
// all assignments, (nil, nil) when none.
func (r *AttendanceRepository) FindAnyOpenSegment(ctx context.Context, userID string) (*model.TimeSegment, error) {
	query := `SELECT ` + segmentColumns + `
              FROM time_segments
              WHERE user_id = $1 AND actual_out IS NULL
              ORDER BY actual_in DESC
              LIMIT 1`

	seg, err := scanSegment(r.DB.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, markTransient(err)
	}
	return seg, nil
}

// GetSegment fetches one segment by id, (nil, nil) when absent.
func (r *AttendanceRepository) GetSegment(ctx context.Context, id string) (*model.TimeSegment, error) {
	query := `SELECT ` + segmentColumns + ` FROM time_segments WHERE id = $1`

	seg, err := scanSegment(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, markTransient(err)
	}
	return seg, nil
}

// UpsertSegment writes the full next value of a segment.
func (r *AttendanceRepository) UpsertSegment(ctx context.Context, seg *model.TimeSegment) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.userId", seg.UserID))

	query := `INSERT INTO time_segments (id, user_id, work_date, assignment_id, actual_in, actual_out, edited_in, edited_out,
                  actual_rest_hours, edited_rest_hours, manually_added, is_main)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
              ON CONFLICT (id) DO UPDATE
              SET work_date = EXCLUDED.work_date,
                  assignment_id = EXCLUDED.assignment_id,
                  actual_in = EXCLUDED.actual_in,
                  actual_out = EXCLUDED.actual_out,
                  edited_in = EXCLUDED.edited_in,
                  edited_out = EXCLUDED.edited_out,
                  actual_rest_hours = EXCLUDED.actual_rest_hours,
                  edited_rest_hours = EXCLUDED.edited_rest_hours,
                  manually_added = EXCLUDED.manually_added,
                  is_main = EXCLUDED.is_main`

	_, err := r.DB.ExecContext(ctx, query,
		seg.ID, seg.UserID, seg.Date.Time(time.UTC), seg.AssignmentID,
		seg.ActualIn, seg.ActualOut, seg.EditedIn, seg.EditedOut,
		seg.ActualRestHours, seg.EditedRestHours, seg.ManuallyAdded, seg.Main,
	)
	return markTransient(err)
}

// DeleteSegment removes a segment by id.
func (r *AttendanceRepository) DeleteSegment(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM time_segments WHERE id = $1`, id)
	return markTransient(err)
}

type restWindowRow struct {
	id        string
	validFrom time.Time
	validTo   sql.NullTime
	intervals []byte
}

func (row restWindowRow) toModel() (*model.RestWindow, error) {
	w := &model.RestWindow{ID: row.id, ValidFrom: model.WorkDateOf(row.validFrom)}
	if row.validTo.Valid {
		w.ValidTo = model.WorkDateOf(row.validTo.Time)
	}
	if err := json.Unmarshal(row.intervals, &w.Intervals); err != nil {
		return nil, fmt.Errorf("decoding rest window intervals: %w", err)
	}
	return w, nil
}

// ActiveRestWindow returns the rest window covering date for the user,
// (nil, nil) when none applies.
func (r *AttendanceRepository) ActiveRestWindow(ctx context.Context, userID string, date model.WorkDate) (*model.RestWindow, error) {
	query := `SELECT id, valid_from, valid_to, intervals
              FROM rest_windows
              WHERE user_id = $1 AND valid_from <= $2 AND (valid_to IS NULL OR valid_to >= $2)
              ORDER BY valid_from DESC
              LIMIT 1`

	var row restWindowRow
	err := r.DB.QueryRowContext(ctx, query, userID, date.Time(time.UTC)).
		Scan(&row.id, &row.validFrom, &row.validTo, &row.intervals)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, markTransient(err)
	}
	return row.toModel()
}

// GetRestWindow fetches one rest window by id, (nil, nil) when absent.
func (r *AttendanceRepository) GetRestWindow(ctx context.Context, id string) (*model.RestWindow, error) {
	query := `SELECT id, valid_from, valid_to, intervals FROM rest_windows WHERE id = $1`

	var row restWindowRow
	err := r.DB.QueryRowContext(ctx, query, id).
		Scan(&row.id, &row.validFrom, &row.validTo, &row.intervals)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, markTransient(err)
	}
	return row.toModel()
}

// SaveRestWindow upserts a rest window configuration.
func (r *AttendanceRepository) SaveRestWindow(ctx context.Context, userID string, w *model.RestWindow) error {
	intervals, err := json.Marshal(w.Intervals)
	if err != nil {
		return fmt.Errorf("encoding rest window intervals: %w", err)
	}

	var validTo any
	if !w.ValidTo.IsZero() {
		validTo = w.ValidTo.Time(time.UTC)
	}

	query := `INSERT INTO rest_windows (id, user_id, valid_from, valid_to, intervals)
              VALUES ($1, $2, $3, $4, $5)
              ON CONFLICT (id) DO UPDATE
              SET valid_from = EXCLUDED.valid_from,
                  valid_to = EXCLUDED.valid_to,
                  intervals = EXCLUDED.intervals`

	_, err = r.DB.ExecContext(ctx, query, w.ID, userID, w.ValidFrom.Time(time.UTC), validTo, intervals)
	return markTransient(err)
}

// DeleteRestWindow removes a rest window by id.
func (r *AttendanceRepository) DeleteRestWindow(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM rest_windows WHERE id = $1`, id)
	return markTransient(err)
}

// HolidayCalendar returns the holiday kinds inside [from, to] as a
// read-only map keyed by work date.
func (r *AttendanceRepository) HolidayCalendar(ctx context.Context, from, to model.WorkDate) (model.HolidayCalendar, error) {
	query := `SELECT holiday_date, kind FROM holidays WHERE holiday_date >= $1 AND holiday_date <= $2`

	rows, err := r.DB.QueryContext(ctx, query, from.Time(time.UTC), to.Time(time.UTC))
	if err != nil {
		return nil, markTransient(err)
	}
	defer rows.Close()

	cal := make(model.HolidayCalendar)
	for rows.Next() {
		var day time.Time
		var kind int
		if err := rows.Scan(&day, &kind); err != nil {
			return nil, markTransient(err)
		}
		cal[model.WorkDateOf(day)] = model.HolidayKind(kind)
	}
	return cal, markTransient(rows.Err())
}

// GetApproval fetches a user's monthly approval record, (nil, nil) when
// the month has never been applied for.
func (r *AttendanceRepository) GetApproval(ctx context.Context, userID string, year int, month time.Month) (*model.Approval, error) {
	query := `SELECT status, tier FROM approvals WHERE user_id = $1 AND year = $2 AND month = $3`

	a := &model.Approval{UserID: userID, Year: year, Month: month}
	var status string
	err := r.DB.QueryRowContext(ctx, query, userID, year, int(month)).Scan(&status, &a.Tier)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, markTransient(err)
	}
	a.Status = model.ApprovalStatus(status)
	return a, nil
}
