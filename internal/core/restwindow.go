package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/messaging"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/repository"
)

// maxRecomputeDays bounds a single edit's recompute fan-out. Oversized
// validity ranges are clamped with a warning instead of flooding the
// queue.
const maxRecomputeDays = 92

// RestWindowService owns rest-window configuration. Saving an edit always
// succeeds or fails on its own; the recomputation of affected dates is
// dispatched as independent per-date tasks afterwards, so a queue failure
// never blocks the edit.
type RestWindowService struct {
	repo     repository.Repository
	producer messaging.Publisher
	loc      *time.Location
	newID    func() string
	today    func() model.WorkDate
}

func NewRestWindowService(repo repository.Repository, producer messaging.Publisher, loc *time.Location) *RestWindowService {
	return &RestWindowService{
		repo:     repo,
		producer: producer,
		loc:      loc,
		newID:    uuid.NewString,
		today:    func() model.WorkDate { return model.WorkDateOf(time.Now().In(loc)) },
	}
}

// Save validates and persists a rest window, then fans out recompute
// tasks for both the previously covered dates (when updating) and the
// newly covered ones.
func (s *RestWindowService) Save(ctx context.Context, userID string, w *model.RestWindow) (*model.RestWindow, error) {
	if w.ValidFrom.IsZero() {
		return nil, &ValidationError{Field: "validFrom", Reason: "is required"}
	}
	if !w.ValidTo.IsZero() && w.ValidTo.Before(w.ValidFrom) {
		return nil, &ValidationError{Field: "validTo", Reason: "must not precede validFrom"}
	}
	for _, iv := range w.Intervals {
		if iv.Start < 0 || iv.End < 0 {
			return nil, &ValidationError{Field: "intervals", Reason: "clock times must not be negative"}
		}
	}

	var previous *model.RestWindow
	if w.ID == "" {
		w.ID = s.newID()
	} else {
		var err error
		if previous, err = s.repo.GetRestWindow(ctx, w.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.SaveRestWindow(ctx, userID, w); err != nil {
		return nil, err
	}

	if previous != nil {
		s.fanOutRecompute(ctx, userID, previous.ValidFrom, previous.ValidTo)
	}
	s.fanOutRecompute(ctx, userID, w.ValidFrom, w.ValidTo)
	return w, nil
}

// Delete removes a rest window and recomputes the dates it used to
// cover. A missing window is a logged no-op.
func (s *RestWindowService) Delete(ctx context.Context, userID, id string) error {
	w, err := s.repo.GetRestWindow(ctx, id)
	if err != nil {
		return err
	}
	if w == nil {
		log.Ctx(ctx).Info().Str("rest_window_id", id).Msg("Rest window already gone")
		return nil
	}
	if err := s.repo.DeleteRestWindow(ctx, id); err != nil {
		return err
	}
	s.fanOutRecompute(ctx, userID, w.ValidFrom, w.ValidTo)
	return nil
}

// fanOutRecompute publishes one idempotent task per affected date.
// Open-ended ranges are clamped to today; there is nothing to recompute
// on days that have not happened. Publish failures are logged and
// skipped: a later edit supersedes by covering the same range again.
func (s *RestWindowService) fanOutRecompute(ctx context.Context, userID string, from, to model.WorkDate) {
	if s.producer == nil || from.IsZero() {
		return
	}
	today := s.today()
	if to.IsZero() || to.After(today) {
		to = today
	}
	if to.Before(from) {
		return
	}

	published := 0
	for d := from; !d.After(to); d = d.Next() {
		if published >= maxRecomputeDays {
			log.Ctx(ctx).Warn().
				Str("user_id", userID).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Recompute range clamped")
			break
		}
		ev := messaging.RecomputeRestEvent{
			TaskID:     s.newID(),
			UserID:     userID,
			Date:       d.String(),
			OccurredAt: time.Now().UTC(),
		}
		if err := s.producer.PublishRecompute(ctx, ev); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("date", d.String()).Msg("Failed to publish recompute task")
			continue
		}
		published++
	}
}
