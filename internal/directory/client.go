package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core"
	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

// Client resolves opaque punch identifiers against the identity and
// assignment directory over HTTP. The directory is a shared legacy
// system, so calls go through a circuit breaker to avoid hammering it
// while it is struggling.
type Client struct {
	client  *http.Client
	baseURL string
	cb      *gobreaker.CircuitBreaker
}

// NewClient builds a directory client with a circuit breaker that trips
// once the failure rate passes 50% over at least 10 calls.
func NewClient(baseURL string) *Client {
	settings := gobreaker.Settings{
		Name:        "Directory-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

type schedulePayload struct {
	ID                    string           `json:"id"`
	DayStartMinutes       int              `json:"dayStartMinutes"`
	DayEndMinutes         int              `json:"dayEndMinutes"`
	NightStartMinutes     int              `json:"nightStartMinutes"`
	NightEndMinutes       int              `json:"nightEndMinutes"`
	NightShift            bool             `json:"nightShift"`
	GraceMinutes          int              `json:"graceMinutes"`
	RoundingUnit          int              `json:"roundingUnit"`
	ScheduledMinutes      int              `json:"scheduledMinutes"`
	DayRestHours          *decimal.Decimal `json:"dayRestHours"`
	NightRestHours        *decimal.Decimal `json:"nightRestHours"`
	MainAssignmentID      string           `json:"mainAssignmentId"`
	SpecialLeaveThreshold int              `json:"specialLeaveThresholdMinutes"`
}

type userPayload struct {
	UserID   string           `json:"userId"`
	Email    string           `json:"email"`
	Schedule *schedulePayload `json:"schedule"`
}

// Resolve looks up a punch identifier. A directory 404 maps to
// core.ErrUserNotFound, which the reconciler treats as a silent no-op.
func (c *Client) Resolve(ctx context.Context, identifier string) (*model.UserProfile, error) {
	endpoint := c.baseURL + "users/" + url.PathEscape(identifier)

	res, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create directory request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to call directory: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, core.ErrUserNotFound
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("directory returned non-successful status code: %d", resp.StatusCode)
		}

		var payload userPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("failed to decode directory response: %w", err)
		}
		return &payload, nil
	})
	if err != nil {
		return nil, err
	}

	payload := res.(*userPayload)
	profile := &model.UserProfile{
		UserID: payload.UserID,
		Email:  payload.Email,
	}
	if sp := payload.Schedule; sp != nil {
		profile.Schedule = &model.WorkSchedule{
			ID:                    sp.ID,
			DayStart:              model.ClockTime(sp.DayStartMinutes),
			DayEnd:                model.ClockTime(sp.DayEndMinutes),
			NightStart:            model.ClockTime(sp.NightStartMinutes),
			NightEnd:              model.ClockTime(sp.NightEndMinutes),
			NightShift:            sp.NightShift,
			GraceMinutes:          sp.GraceMinutes,
			RoundingUnit:          sp.RoundingUnit,
			ScheduledMinutes:      sp.ScheduledMinutes,
			MainAssignmentID:      sp.MainAssignmentID,
			SpecialLeaveThreshold: sp.SpecialLeaveThreshold,
		}
		if sp.DayRestHours != nil {
			profile.Schedule.DayRestHours = decimal.NullDecimal{Decimal: *sp.DayRestHours, Valid: true}
		}
		if sp.NightRestHours != nil {
			profile.Schedule.NightRestHours = decimal.NullDecimal{Decimal: *sp.NightRestHours, Valid: true}
		}
	}
	return profile, nil
}
