package core

import (
	"sort"
	"time"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

// Night differential bands, minutes past midnight: 00:00-05:00 and
// 22:00-29:00 (22:00 through 05:00 of the next calendar day).
const (
	nightBandAStart = 0
	nightBandAEnd   = 5 * 60
	nightBandBStart = 22 * 60
	nightBandBEnd   = 29 * 60
)

// OvertimeResult distinguishes a genuine zero from "the neighboring day
// is not reconciled yet": callers re-query instead of guessing.
type OvertimeResult struct {
	Minutes    int
	Incomplete bool
}

// HolidayWorkResult carries holiday and legal-holiday minutes; legal
// holidays are the designated weekly rest days.
type HolidayWorkResult struct {
	HolidayMinutes      int
	LegalHolidayMinutes int
	Incomplete          bool
}

// Calculator derives payroll metrics from reconciled state. All methods
// are read-only: they never touch storage and never mutate their inputs.
type Calculator struct {
	Catalog model.AttendanceTypeCatalog
	Loc     *time.Location
}

func NewCalculator(catalog model.AttendanceTypeCatalog, loc *time.Location) *Calculator {
	return &Calculator{Catalog: catalog, Loc: loc}
}

func (c *Calculator) typeOf(code model.AttendanceTypeCode) (model.AttendanceType, error) {
	at, ok := c.Catalog[code]
	if !ok {
		return model.AttendanceType{}, &DataIntegrityError{Entity: "attendance type", Key: string(code)}
	}
	return at, nil
}

// WorkMinutes is rounded(out) - rounded(in) - rest, clamped at zero, and
// forced to zero when the day's attendance type does not count as worked.
func (c *Calculator) WorkMinutes(seg *model.TimeSegment, dayType model.AttendanceTypeCode, sched *model.WorkSchedule) (int, error) {
	at, err := c.typeOf(dayType)
	if err != nil {
		return 0, err
	}
	if !at.CountsAsWorked || seg.EditedIn == nil || seg.EditedOut == nil {
		return 0, nil
	}

	unit := sched.Rounding()
	in := roundUpTo(minutesOn(*seg.EditedIn, seg.Date, c.Loc), unit)
	out := roundDownTo(minutesOn(*seg.EditedOut, seg.Date, c.Loc), unit)
	w := out - in - minutesFromHours(seg.EditedRestHours)
	if w < 0 {
		w = 0
	}
	return w, nil
}

// DayWorkedMinutes sums work minutes across all of the day's segments.
func (c *Calculator) DayWorkedMinutes(day *model.AttendanceDay, segs []model.TimeSegment, sched *model.WorkSchedule) (int, error) {
	total := 0
	for i := range segs {
		w, err := c.WorkMinutes(&segs[i], day.Type, sched)
		if err != nil {
			return 0, err
		}
		total += w
	}
	return total, nil
}

// ExcludeMinutes is the scheduled time not covered by the main segment's
// work, for on-duty day/night types only.
func (c *Calculator) ExcludeMinutes(day *model.AttendanceDay, segs []model.TimeSegment, sched *model.WorkSchedule) (int, error) {
	at, err := c.typeOf(day.Type)
	if err != nil {
		return 0, err
	}
	if !at.OnDuty {
		return 0, nil
	}

	worked := 0
	for i := range segs {
		if !segs[i].Main {
			continue
		}
		w, err := c.WorkMinutes(&segs[i], day.Type, sched)
		if err != nil {
			return 0, err
		}
		worked += w
	}

	ex := sched.Scheduled() - worked
	if ex < 0 {
		ex = 0
	}
	return ex, nil
}

// datePortion is the worked share of one segment falling on one calendar
// date, already rounded per sub-interval and net of rest.
type datePortion struct {
	date    model.WorkDate
	minutes int
}

// splitByDate splits a segment's worked minutes across the calendar dates
// it spans. Each portion is rounded on its own before rest is subtracted;
// rest is taken from the entry-date portion first, spilling into the next
// date only when the entry portion cannot absorb it.
func (c *Calculator) splitByDate(seg *model.TimeSegment, unit int) []datePortion {
	if seg.EditedIn == nil || seg.EditedOut == nil {
		return nil
	}
	in := minutesOn(*seg.EditedIn, seg.Date, c.Loc)
	out := minutesOn(*seg.EditedOut, seg.Date, c.Loc)

	portions := []datePortion{
		{date: seg.Date, minutes: overlapRounded(in, out, 0, 24*60, unit)},
	}
	if out > 24*60 {
		portions = append(portions, datePortion{
			date:    seg.Date.Next(),
			minutes: overlapRounded(in, out, 24*60, 48*60, unit),
		})
	}

	restLeft := minutesFromHours(seg.EditedRestHours)
	for i := range portions {
		take := restLeft
		if take > portions[i].minutes {
			take = portions[i].minutes
		}
		portions[i].minutes -= take
		restLeft -= take
	}
	return portions
}

// perDateTotals accumulates worked minutes per calendar date across all
// segments of the day.
func (c *Calculator) perDateTotals(segs []model.TimeSegment, unit int) map[model.WorkDate]int {
	totals := make(map[model.WorkDate]int)
	for i := range segs {
		for _, p := range c.splitByDate(&segs[i], unit) {
			totals[p.date] += p.minutes
		}
	}
	return totals
}

// OvertimeMinutes accumulates each spanned date's worked minutes against
// the scheduled minutes; what exceeds the schedule is overtime, except on
// dates that are themselves holiday work (those are accounted under the
// holiday buckets). A spanned date whose AttendanceDay is missing makes
// the result Incomplete with zero minutes.
func (c *Calculator) OvertimeMinutes(day *model.AttendanceDay, segs []model.TimeSegment, adjacent map[model.WorkDate]*model.AttendanceDay, sched *model.WorkSchedule) (OvertimeResult, error) {
	at, err := c.typeOf(day.Type)
	if err != nil {
		return OvertimeResult{}, err
	}
	if !at.CountsAsWorked {
		return OvertimeResult{}, nil
	}
	if sched == nil {
		// Without a schedule there is no baseline to exceed.
		return OvertimeResult{}, nil
	}

	totals := c.perDateTotals(segs, sched.Rounding())
	dates := make([]model.WorkDate, 0, len(totals))
	for d := range totals {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	overtime := 0
	for _, d := range dates {
		rec := day
		if d != day.Date {
			rec = adjacent[d]
			if rec == nil {
				return OvertimeResult{Incomplete: true}, nil
			}
		}
		if rec.Type == model.TypeHolidayWork || rec.Type == model.TypeLegalHolidayWork {
			continue
		}
		if over := totals[d] - sched.ScheduledMinutes; over > 0 {
			overtime += over
		}
	}
	return OvertimeResult{Minutes: overtime}, nil
}

// HolidayWorkMinutes counts minutes worked on holiday and legal-holiday
// dates, including the share of a night segment spilling into such a
// date. Spill into a holiday counts in full when the originating day is
// itself holiday work, and only beyond the scheduled minutes otherwise.
func (c *Calculator) HolidayWorkMinutes(day *model.AttendanceDay, segs []model.TimeSegment, adjacent map[model.WorkDate]*model.AttendanceDay, calendar model.HolidayCalendar, sched *model.WorkSchedule) (HolidayWorkResult, error) {
	at, err := c.typeOf(day.Type)
	if err != nil {
		return HolidayWorkResult{}, err
	}
	if !at.CountsAsWorked {
		return HolidayWorkResult{}, nil
	}

	originHoliday := day.Type == model.TypeHolidayWork || day.Type == model.TypeLegalHolidayWork
	totals := c.perDateTotals(segs, sched.Rounding())

	var res HolidayWorkResult
	spanned := 0
	for _, m := range totals {
		spanned += m
	}

	for d, portion := range totals {
		kind := calendar.Kind(d)
		if kind == model.HolidayNone {
			continue
		}
		if d != day.Date {
			if adjacent[d] == nil {
				return HolidayWorkResult{Incomplete: true}, nil
			}
			if !originHoliday {
				limit := spanned - sched.Scheduled()
				if limit < 0 {
					limit = 0
				}
				if portion > limit {
					portion = limit
				}
			}
		}
		switch kind {
		case model.HolidayWeeklyRest:
			res.LegalHolidayMinutes += portion
		case model.HolidayPublic:
			res.HolidayMinutes += portion
		}
	}
	return res, nil
}

// NightDifferentialMinutes intersects the segment intervals with the two
// fixed night bands, for on-duty types only. Rest is not subtracted; the
// differential compensates the placement of the interval, not its net
// length.
func (c *Calculator) NightDifferentialMinutes(day *model.AttendanceDay, segs []model.TimeSegment, sched *model.WorkSchedule) (int, error) {
	at, err := c.typeOf(day.Type)
	if err != nil {
		return 0, err
	}
	if !at.OnDuty {
		return 0, nil
	}

	unit := sched.Rounding()
	total := 0
	for i := range segs {
		seg := &segs[i]
		if seg.EditedIn == nil || seg.EditedOut == nil {
			continue
		}
		in := minutesOn(*seg.EditedIn, seg.Date, c.Loc)
		out := minutesOn(*seg.EditedOut, seg.Date, c.Loc)
		total += overlapRounded(in, out, nightBandAStart, nightBandAEnd, unit)
		total += overlapRounded(in, out, nightBandBStart, nightBandBEnd, unit)
	}
	return total, nil
}

// DayMetrics bundles the per-day derivations for summary consumers.
type DayMetrics struct {
	WorkedMinutes       int
	OvertimeMinutes     int
	HolidayMinutes      int
	LegalHolidayMinutes int
	NightMinutes        int
	ExcludeMinutes      int
	RestMinutes         int
	Incomplete          bool
}

// ComputeDay runs every metric for one reconciled day.
func (c *Calculator) ComputeDay(day *model.AttendanceDay, segs []model.TimeSegment, adjacent map[model.WorkDate]*model.AttendanceDay, calendar model.HolidayCalendar, sched *model.WorkSchedule) (*DayMetrics, error) {
	worked, err := c.DayWorkedMinutes(day, segs, sched)
	if err != nil {
		return nil, err
	}
	exclude, err := c.ExcludeMinutes(day, segs, sched)
	if err != nil {
		return nil, err
	}
	night, err := c.NightDifferentialMinutes(day, segs, sched)
	if err != nil {
		return nil, err
	}
	overtime, err := c.OvertimeMinutes(day, segs, adjacent, sched)
	if err != nil {
		return nil, err
	}
	holiday, err := c.HolidayWorkMinutes(day, segs, adjacent, calendar, sched)
	if err != nil {
		return nil, err
	}

	rest := 0
	for i := range segs {
		if segs[i].Main {
			rest += minutesFromHours(segs[i].EditedRestHours)
		}
	}

	return &DayMetrics{
		WorkedMinutes:       worked,
		OvertimeMinutes:     overtime.Minutes,
		HolidayMinutes:      holiday.HolidayMinutes,
		LegalHolidayMinutes: holiday.LegalHolidayMinutes,
		NightMinutes:        night,
		ExcludeMinutes:      exclude,
		RestMinutes:         rest,
		Incomplete:          overtime.Incomplete || holiday.Incomplete,
	}, nil
}
