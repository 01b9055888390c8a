package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/repository"
)

// MonthlySummary is the payroll-style aggregate for one user and month.
// Minutes are exact; the hour fields are their decimal renderings.
type MonthlySummary struct {
	UserID string     `json:"userId"`
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`

	WorkDays        int `json:"workDays"`
	HolidayWorkDays int `json:"holidayWorkDays"`
	PaidLeaveDays   int `json:"paidLeaveDays"`
	AbsenceDays     int `json:"absenceDays"`

	WorkedMinutes       int `json:"workedMinutes"`
	OvertimeMinutes     int `json:"overtimeMinutes"`
	HolidayMinutes      int `json:"holidayMinutes"`
	LegalHolidayMinutes int `json:"legalHolidayMinutes"`
	NightMinutes        int `json:"nightMinutes"`
	ExcludeMinutes      int `json:"excludeMinutes"`
	RestMinutes         int `json:"restMinutes"`

	WorkedHours   decimal.Decimal `json:"workedHours"`
	OvertimeHours decimal.Decimal `json:"overtimeHours"`

	// Incomplete means at least one day needed a neighboring record that
	// is not reconciled yet; re-query later rather than trusting zeros.
	Incomplete bool `json:"incomplete"`
}

// SummaryService reads reconciled state and derives monthly aggregates.
// It is read-only and safe to run concurrently across users and months.
type SummaryService struct {
	repo repository.Repository
	calc *Calculator
	loc  *time.Location
}

func NewSummaryService(repo repository.Repository, catalog model.AttendanceTypeCatalog, loc *time.Location) *SummaryService {
	return &SummaryService{repo: repo, calc: NewCalculator(catalog, loc), loc: loc}
}

// Month computes the summary for one user and month. The month's days,
// the holiday calendar and the boundary-adjacent days are independent
// lookups and are fetched concurrently before computation starts.
func (s *SummaryService) Month(ctx context.Context, profile *model.UserProfile, year int, month time.Month) (*MonthlySummary, error) {
	first := model.NewWorkDate(year, month, 1)
	last := first.AddDays(daysIn(year, month) - 1)

	var (
		days     []model.AttendanceDay
		calendar model.HolidayCalendar
		prevDay  *model.AttendanceDay
		nextDay  *model.AttendanceDay
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		days, err = s.repo.ListDays(gctx, profile.UserID, year, month)
		return
	})
	g.Go(func() (err error) {
		calendar, err = s.repo.HolidayCalendar(gctx, first.Prev(), last.Next())
		return
	})
	g.Go(func() (err error) {
		prevDay, err = s.repo.GetDay(gctx, profile.UserID, first.Prev())
		return
	})
	g.Go(func() (err error) {
		nextDay, err = s.repo.GetDay(gctx, profile.UserID, last.Next())
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	adjacent := make(map[model.WorkDate]*model.AttendanceDay, len(days)+2)
	for i := range days {
		adjacent[days[i].Date] = &days[i]
	}
	if prevDay != nil {
		adjacent[prevDay.Date] = prevDay
	}
	if nextDay != nil {
		adjacent[nextDay.Date] = nextDay
	}

	sum := &MonthlySummary{UserID: profile.UserID, Year: year, Month: month}
	for i := range days {
		day := &days[i]
		segs, err := s.repo.ListSegments(ctx, profile.UserID, day.Date)
		if err != nil {
			return nil, err
		}
		m, err := s.calc.ComputeDay(day, segs, adjacent, calendar, profile.Schedule)
		if err != nil {
			return nil, err
		}

		sum.WorkedMinutes += m.WorkedMinutes
		sum.OvertimeMinutes += m.OvertimeMinutes
		sum.HolidayMinutes += m.HolidayMinutes
		sum.LegalHolidayMinutes += m.LegalHolidayMinutes
		sum.NightMinutes += m.NightMinutes
		sum.ExcludeMinutes += m.ExcludeMinutes
		sum.RestMinutes += m.RestMinutes
		sum.Incomplete = sum.Incomplete || m.Incomplete

		switch day.Type {
		case model.TypeHolidayWork, model.TypeLegalHolidayWork:
			sum.HolidayWorkDays++
		case model.TypePaidLeave, model.TypeSpecialPaidLeave:
			sum.PaidLeaveDays++
		case model.TypeAbsence:
			sum.AbsenceDays++
		default:
			if at, ok := s.calc.Catalog[day.Type]; ok && at.CountsAsWorked {
				sum.WorkDays++
			}
		}
	}

	sum.WorkedHours = hoursFromMinutes(sum.WorkedMinutes)
	sum.OvertimeHours = hoursFromMinutes(sum.OvertimeMinutes)
	return sum, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}
