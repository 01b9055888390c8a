package messaging

import "time"

// RecomputeRestEvent is one per-date rest recomputation task. Rest window
// edits fan out into many of these; each task is idempotent and retried
// on its own, so a failed date never blocks the edit itself.
type RecomputeRestEvent struct {
	TaskID     string    `json:"taskId"`
	UserID     string    `json:"userId"`
	Date       string    `json:"date"` // 2006-01-02
	OccurredAt time.Time `json:"occurredAt"`
}

// DayClosedEvent is published when a leave punch closes an attendance
// day; the notice worker turns it into a summary mail.
type DayClosedEvent struct {
	UserID        string    `json:"userId"`
	Email         string    `json:"email,omitempty"`
	Date          string    `json:"date"`
	Type          string    `json:"type"`
	WorkedMinutes int       `json:"workedMinutes"`
	ClosedAt      time.Time `json:"closedAt"`
}
