package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core"
	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
)

// AttendanceHandler exposes the punch, segment, summary and rest-window
// operations over HTTP.
type AttendanceHandler struct {
	Reconciler  *core.Reconciler
	Ledger      *core.SegmentLedger
	Summary     *core.SummaryService
	RestWindows *core.RestWindowService
	Resolver    core.Resolver
}

// Punch accepts one punch event and reconciles it synchronously.
func (h *AttendanceHandler) Punch(w http.ResponseWriter, r *http.Request) {
	var punch model.PunchEvent
	if err := json.NewDecoder(r.Body).Decode(&punch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if punch.UserIdentifier == "" {
		http.Error(w, "userIdentifier is required", http.StatusBadRequest)
		return
	}
	if punch.Timestamp.IsZero() {
		http.Error(w, "timestamp is required", http.StatusBadRequest)
		return
	}
	if punch.Outcome == "" {
		punch.Outcome = model.OutcomeAllowed
	}

	if err := h.Reconciler.Apply(r.Context(), punch); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"message": "Punch recorded."})
}

// MonthlySummary returns the computed attendance summary for one user month.
func (h *AttendanceHandler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, month, ok := parseYearMonth(w, vars["year"], vars["month"])
	if !ok {
		return
	}

	profile, err := h.Resolver.Resolve(r.Context(), vars["userId"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.Summary.Month(r.Context(), profile, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// Stampable reports whether a user's month still accepts punches.
func (h *AttendanceHandler) Stampable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, month, ok := parseYearMonth(w, vars["year"], vars["month"])
	if !ok {
		return
	}

	stampable, err := h.Reconciler.Stampable(r.Context(), vars["userId"], year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"stampable": stampable})
}

type addSegmentRequest struct {
	Date         string          `json:"date"`
	AssignmentID string          `json:"assignmentId,omitempty"`
	In           time.Time       `json:"in"`
	Out          time.Time       `json:"out"`
	RestHours    decimal.Decimal `json:"restHours"`
}

// AddSegment creates a manually entered work segment for a user day.
func (h *AttendanceHandler) AddSegment(w http.ResponseWriter, r *http.Request) {
	var req addSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := model.ParseWorkDate(req.Date)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	userID := mux.Vars(r)["userId"]
	seg, err := h.Ledger.AddSegment(r.Context(), actorID(r), userID, date, req.AssignmentID, req.In, req.Out, req.RestHours)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(seg)
}

type editSegmentRequest struct {
	In        *time.Time       `json:"in,omitempty"`
	Out       *time.Time       `json:"out,omitempty"`
	RestHours *decimal.Decimal `json:"restHours,omitempty"`
}

// EditSegment overrides the edited boundaries or rest hours of a segment.
func (h *AttendanceHandler) EditSegment(w http.ResponseWriter, r *http.Request) {
	var req editSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	seg, err := h.Ledger.EditSegment(r.Context(), mux.Vars(r)["segmentId"], actorID(r), req.In, req.Out, req.RestHours)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(seg)
}

// ResetSegment restores a segment's edited values to the captured ones,
// or removes it entirely if it was manually added.
func (h *AttendanceHandler) ResetSegment(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.ResetOrClear(r.Context(), mux.Vars(r)["segmentId"], actorID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restIntervalPayload struct {
	StartMinutes int `json:"startMinutes"`
	EndMinutes   int `json:"endMinutes"`
}

type restWindowRequest struct {
	ID        string                `json:"id,omitempty"`
	ValidFrom string                `json:"validFrom"`
	ValidTo   string                `json:"validTo,omitempty"`
	Intervals []restIntervalPayload `json:"intervals"`
}

// SaveRestWindow creates or updates a rest window and queues recomputation
// of every affected work date.
func (h *AttendanceHandler) SaveRestWindow(w http.ResponseWriter, r *http.Request) {
	var req restWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	window := model.RestWindow{ID: req.ID}
	if req.ValidFrom != "" {
		from, err := model.ParseWorkDate(req.ValidFrom)
		if err != nil {
			http.Error(w, "Invalid validFrom, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		window.ValidFrom = from
	}
	if req.ValidTo != "" {
		to, err := model.ParseWorkDate(req.ValidTo)
		if err != nil {
			http.Error(w, "Invalid validTo, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		window.ValidTo = to
	}
	for _, iv := range req.Intervals {
		window.Intervals = append(window.Intervals, model.RestInterval{
			Start: model.ClockTime(iv.StartMinutes),
			End:   model.ClockTime(iv.EndMinutes),
		})
	}

	saved, err := h.RestWindows.Save(r.Context(), mux.Vars(r)["userId"], &window)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saved)
}

// DeleteRestWindow removes a rest window and queues recomputation of the
// dates it used to cover.
func (h *AttendanceHandler) DeleteRestWindow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.RestWindows.Delete(r.Context(), vars["userId"], vars["windowId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actorID identifies who performed an edit, for the audit trail.
func actorID(r *http.Request) string {
	if actor := r.Header.Get("X-Actor-Id"); actor != "" {
		return actor
	}
	return "anonymous"
}

func parseYearMonth(w http.ResponseWriter, yearStr, monthStr string) (int, time.Month, bool) {
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 2100 {
		http.Error(w, "Invalid year", http.StatusBadRequest)
		return 0, 0, false
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		http.Error(w, "Invalid month", http.StatusBadRequest)
		return 0, 0, false
	}
	return year, time.Month(month), true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrSegmentNotFound),
		errors.Is(err, core.ErrRestWindowNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrStampingClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
