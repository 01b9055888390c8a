package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abdul-baten/apc-kilock-sub001/internal/api/handler"
	"github.com/abdul-baten/apc-kilock-sub001/internal/core"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(reconciler *core.Reconciler, ledger *core.SegmentLedger, summary *core.SummaryService, restWindows *core.RestWindowService, resolver core.Resolver) *mux.Router {

	attendanceHandler := handler.AttendanceHandler{
		Reconciler:  reconciler,
		Ledger:      ledger,
		Summary:     summary,
		RestWindows: restWindows,
		Resolver:    resolver,
	}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/punches", attendanceHandler.Punch).Methods(http.MethodPost)
	api.HandleFunc("/users/{userId}/summary/{year}/{month}", attendanceHandler.MonthlySummary).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/stampable/{year}/{month}", attendanceHandler.Stampable).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/segments", attendanceHandler.AddSegment).Methods(http.MethodPost)
	api.HandleFunc("/segments/{segmentId}", attendanceHandler.EditSegment).Methods(http.MethodPatch)
	api.HandleFunc("/segments/{segmentId}/reset", attendanceHandler.ResetSegment).Methods(http.MethodPost)
	api.HandleFunc("/users/{userId}/rest-windows", attendanceHandler.SaveRestWindow).Methods(http.MethodPut)
	api.HandleFunc("/users/{userId}/rest-windows/{windowId}", attendanceHandler.DeleteRestWindow).Methods(http.MethodDelete)
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
