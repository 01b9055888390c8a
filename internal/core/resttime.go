package core

import (
	"time"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

// RestContext carries everything the resolver needs about the day a
// segment belongs to. Lookups happen before resolution; the resolver
// itself never touches storage.
type RestContext struct {
	Window   *model.RestWindow
	Schedule *model.WorkSchedule
	DayType  model.AttendanceType
	Main     bool
	Loc      *time.Location
}

// ResolveRestMinutes computes the unpaid rest minutes for a segment's
// edited interval. A dated rest window, when active for the segment's
// date, wins over everything; otherwise a fixed default applies to the
// main segment only.
func ResolveRestMinutes(seg *model.TimeSegment, rc RestContext) int {
	if seg.EditedIn == nil || seg.EditedOut == nil {
		return 0
	}

	if rc.Window.ActiveOn(seg.Date) {
		return datedWindowRest(seg, rc)
	}
	return fallbackRest(seg, rc)
}

// datedWindowRest materializes each configured interval onto the entry
// date, and onto the exit date as well when the segment closes the next
// calendar day. Intervals are independent; overlaps are rounded
// per-interval before summing.
func datedWindowRest(seg *model.TimeSegment, rc RestContext) int {
	unit := rc.Schedule.Rounding()
	segIn := minutesOn(*seg.EditedIn, seg.Date, rc.Loc)
	segOut := minutesOn(*seg.EditedOut, seg.Date, rc.Loc)

	total := 0
	dates := []model.WorkDate{seg.Date}
	if seg.CrossesMidnight(rc.Loc) {
		dates = append(dates, model.WorkDateOf(seg.EditedOut.In(rc.Loc)))
	}

	for _, date := range dates {
		// Interval clock times are relative to this materialization
		// date; shift them into the segment's entry-date frame.
		shift := minutesOn(date.Time(rc.Loc), seg.Date, rc.Loc)
		for _, iv := range rc.Window.Intervals {
			start := int(iv.Start) + shift
			end := int(iv.End) + shift
			if iv.WrapsMidnight() {
				end += 24 * 60
			}
			total += overlapRounded(segIn, segOut, start, end, unit)
		}
	}
	return total
}

// fallbackRest is the fixed default used when no dated window applies.
// Only the main segment carries it: one hour when the day's attendance
// type counts as worked, overridden by an explicit schedule value (night
// variant when a night-shift segment closes the next day).
func fallbackRest(seg *model.TimeSegment, rc RestContext) int {
	if !rc.Main {
		return 0
	}

	if rc.Schedule != nil {
		if rc.Schedule.NightShift && seg.CrossesMidnight(rc.Loc) {
			if rc.Schedule.NightRestHours.Valid {
				return minutesFromHours(rc.Schedule.NightRestHours.Decimal)
			}
		} else if rc.Schedule.DayRestHours.Valid {
			return minutesFromHours(rc.Schedule.DayRestHours.Decimal)
		}
	}

	if rc.DayType.CountsAsWorked {
		return 60
	}
	return 0
}

// ApplyRest writes a freshly computed rest value onto a segment. Edits
// are sticky: once EditedRestHours diverged from ActualRestHours, a punch
// refreshes only the actual value.
func ApplyRest(seg *model.TimeSegment, restMinutes int) {
	edited := seg.RestEdited()
	seg.ActualRestHours = hoursFromMinutes(restMinutes)
	if !edited {
		seg.EditedRestHours = seg.ActualRestHours
	}
}
