package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PunchKind tells the reconciler which direction a punch is, if the source
// knew. Door readers only report presence, so their "auto" kinds are hints
// and the direction is inferred from current state; manual kinds are taken
// at face value.
type PunchKind string

const (
	PunchAutoEnter        PunchKind = "auto_enter"
	PunchAutoLeave        PunchKind = "auto_leave"
	PunchManualEnter      PunchKind = "manual_enter"
	PunchManualLeave      PunchKind = "manual_leave"
	PunchManualNightLeave PunchKind = "manual_night_leave"
	PunchUnknown          PunchKind = "unknown"
)

// Explicit reports whether the kind pins the punch direction. Auto and
// unknown kinds go through state-based inference instead.
func (k PunchKind) Explicit() bool {
	switch k {
	case PunchManualEnter, PunchManualLeave, PunchManualNightLeave:
		return true
	}
	return false
}

// PunchOutcome is the access decision attached to a punch by the door
// layer. Only allowed punches reach attendance.
type PunchOutcome string

const (
	OutcomeAllowed PunchOutcome = "allowed"
	OutcomeDenied  PunchOutcome = "denied"
)

// PunchEvent is one presence transition as delivered by a reader or the
// mobile app. Immutable once received.
type PunchEvent struct {
	ID             string       `json:"id"`
	UserIdentifier string       `json:"userIdentifier"`
	AssignmentID   string       `json:"assignmentId,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	Kind           PunchKind    `json:"kind,omitempty"`
	Outcome        PunchOutcome `json:"outcome"`
}

// AttendanceTypeCode identifies an entry in the attendance-type catalog.
type AttendanceTypeCode string

const (
	TypeNormal           AttendanceTypeCode = "normal"
	TypeLateArrival      AttendanceTypeCode = "late_arrival"
	TypeEarlyLeave       AttendanceTypeCode = "early_leave"
	TypeHolidayWork      AttendanceTypeCode = "holiday_work"
	TypeLegalHolidayWork AttendanceTypeCode = "legal_holiday_work"
	TypeWeeklyRest       AttendanceTypeCode = "weekly_rest"
	TypeSpecialPaidLeave AttendanceTypeCode = "special_paid_leave"
	TypePaidLeave        AttendanceTypeCode = "paid_leave"
	TypeAbsence          AttendanceTypeCode = "absence"
)

// AttendanceType is one catalog entry. CountsAsWorked gates whether
// segments on such a day produce work minutes at all; OnDuty marks the
// regular day/night working types that participate in exclude-minute and
// night-differential computation.
type AttendanceType struct {
	Code           AttendanceTypeCode
	Name           string
	CountsAsWorked bool
	OnDuty         bool
}

// AttendanceTypeCatalog is resolved once per operation and passed in
// read-only; it is never module-global state.
type AttendanceTypeCatalog map[AttendanceTypeCode]AttendanceType

// DefaultAttendanceTypes is the catalog shipped with the service.
func DefaultAttendanceTypes() AttendanceTypeCatalog {
	return AttendanceTypeCatalog{
		TypeNormal:           {Code: TypeNormal, Name: "Normal", CountsAsWorked: true, OnDuty: true},
		TypeLateArrival:      {Code: TypeLateArrival, Name: "Late arrival", CountsAsWorked: true, OnDuty: true},
		TypeEarlyLeave:       {Code: TypeEarlyLeave, Name: "Early leave", CountsAsWorked: true, OnDuty: true},
		TypeHolidayWork:      {Code: TypeHolidayWork, Name: "Holiday work", CountsAsWorked: true},
		TypeLegalHolidayWork: {Code: TypeLegalHolidayWork, Name: "Legal holiday work", CountsAsWorked: true},
		TypeWeeklyRest:       {Code: TypeWeeklyRest, Name: "Weekly rest"},
		TypeSpecialPaidLeave: {Code: TypeSpecialPaidLeave, Name: "Special paid leave"},
		TypePaidLeave:        {Code: TypePaidLeave, Name: "Paid leave"},
		TypeAbsence:          {Code: TypeAbsence, Name: "Absence"},
	}
}

// DayState is the lifecycle position of an AttendanceDay.
type DayState string

const (
	DaySeeded DayState = "seeded"
	DayOpen   DayState = "open"
	DayClosed DayState = "closed"
)

// AttendanceDay is the authoritative daily record for one user. Captured
// boundaries move monotonically (in earlier, out later) and are never
// edited; boundary values default to the captured ones and are what edits
// and classification operate on.
type AttendanceDay struct {
	UserID      string
	Date        WorkDate
	CapturedIn  *time.Time
	CapturedOut *time.Time
	BoundaryIn  *time.Time
	BoundaryOut *time.Time
	Type        AttendanceTypeCode
	EditReason  string
}

// State derives the lifecycle position from the captured boundaries. A
// pre-seeded day holds the day-start sentinel, not a real punch.
func (d *AttendanceDay) State(loc *time.Location) DayState {
	switch {
	case d.CapturedIn == nil || !d.HasRealCapture(loc):
		return DaySeeded
	case d.CapturedOut == nil || !d.CapturedOut.After(*d.CapturedIn):
		return DayOpen
	default:
		return DayClosed
	}
}

// HasRealCapture reports whether CapturedIn came from an actual punch
// rather than the day-start seed sentinel.
func (d *AttendanceDay) HasRealCapture(loc *time.Location) bool {
	return d.CapturedIn != nil && !d.CapturedIn.Equal(d.Date.Time(loc))
}

// TimeSegment is one continuous work interval on a work date, optionally
// scoped to an assignment. Actual* fields track punches; Edited* fields
// start equal to them and diverge only on an explicit manual edit.
type TimeSegment struct {
	ID              string
	UserID          string
	Date            WorkDate
	AssignmentID    string // empty means no assignment
	ActualIn        *time.Time
	ActualOut       *time.Time
	EditedIn        *time.Time
	EditedOut       *time.Time
	ActualRestHours decimal.Decimal
	EditedRestHours decimal.Decimal
	ManuallyAdded   bool
	Main            bool
}

// IsOpen reports whether the segment is still waiting for a leave punch.
func (s *TimeSegment) IsOpen() bool { return s.ActualOut == nil }

// RestEdited reports whether someone overrode the computed rest hours.
// A punch may then refresh ActualRestHours but must leave the edit alone.
func (s *TimeSegment) RestEdited() bool {
	return !s.EditedRestHours.Equal(s.ActualRestHours)
}

// CrossesMidnight reports whether the segment closes on a later calendar
// day than its work date.
func (s *TimeSegment) CrossesMidnight(loc *time.Location) bool {
	if s.EditedOut == nil {
		return false
	}
	return WorkDateOf(s.EditedOut.In(loc)) != s.Date
}

// RestInterval is one named break window in a RestWindow template,
// expressed as clock times on whatever date it gets materialized onto.
// End at or before Start means the interval wraps past midnight.
type RestInterval struct {
	Name  string
	Start ClockTime
	End   ClockTime
}

func (i RestInterval) WrapsMidnight() bool { return i.End <= i.Start }

// RestWindow is a dated break template: while a work date falls inside
// its validity period, its intervals replace the schedule's fixed rest
// defaults. Intervals are matched independently; order is irrelevant.
type RestWindow struct {
	ID        string
	ValidFrom WorkDate
	ValidTo   WorkDate // zero value means open-ended
	Intervals []RestInterval
}

// ActiveOn reports whether the window applies to date and actually
// configures at least one interval.
func (w *RestWindow) ActiveOn(date WorkDate) bool {
	if w == nil || len(w.Intervals) == 0 {
		return false
	}
	if date.Before(w.ValidFrom) {
		return false
	}
	if !w.ValidTo.IsZero() && date.After(w.ValidTo) {
		return false
	}
	return true
}

// WorkSchedule is the active schedule for a user: scheduled window (day
// and night variants), grace window for early punches, rounding unit and
// fallback rest defaults.
type WorkSchedule struct {
	ID                    string
	DayStart              ClockTime
	DayEnd                ClockTime
	NightStart            ClockTime
	NightEnd              ClockTime // may pass 24:00, e.g. 29:30
	NightShift            bool
	GraceMinutes          int
	RoundingUnit          int // minutes, 15 when unset
	ScheduledMinutes      int
	DayRestHours          decimal.NullDecimal
	NightRestHours        decimal.NullDecimal
	MainAssignmentID      string
	SpecialLeaveThreshold int // worked minutes beyond which the seeded rest day upgrades
}

// Start returns the scheduled start for the active variant.
func (s *WorkSchedule) Start() ClockTime {
	if s.NightShift {
		return s.NightStart
	}
	return s.DayStart
}

// End returns the scheduled end for the active variant.
func (s *WorkSchedule) End() ClockTime {
	if s.NightShift {
		return s.NightEnd
	}
	return s.DayEnd
}

// Rounding returns the rounding unit in minutes, defaulting to 15.
func (s *WorkSchedule) Rounding() int {
	if s == nil || s.RoundingUnit <= 0 {
		return 15
	}
	return s.RoundingUnit
}

// Scheduled returns the scheduled work minutes, zero without a schedule.
func (s *WorkSchedule) Scheduled() int {
	if s == nil {
		return 0
	}
	return s.ScheduledMinutes
}

// HolidayKind is the calendar's verdict for one work date.
type HolidayKind int

const (
	HolidayNone HolidayKind = iota
	HolidayWeeklyRest
	HolidayPublic
)

// HolidayCalendar is a read-only date lookup resolved once per operation.
type HolidayCalendar map[WorkDate]HolidayKind

func (c HolidayCalendar) Kind(date WorkDate) HolidayKind {
	return c[date] // zero value is HolidayNone
}

// UserProfile is what the identity directory hands back for a punch
// identifier: the canonical user plus their active schedule.
type UserProfile struct {
	UserID   string
	Email    string
	Schedule *WorkSchedule
}

// ApprovalStatus is the monthly approval workflow state. Punches are only
// accepted while the month has no application in flight.
type ApprovalStatus string

const (
	ApprovalNoApplication ApprovalStatus = "no_application"
	ApprovalApplicating   ApprovalStatus = "applicating"
	ApprovalAccepted      ApprovalStatus = "accepted"
	ApprovalDenegated     ApprovalStatus = "denegated"
)

// Approval is one user's approval record for a month.
type Approval struct {
	UserID string
	Year   int
	Month  time.Month
	Status ApprovalStatus
	Tier   int
}
