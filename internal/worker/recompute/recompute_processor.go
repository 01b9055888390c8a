package recompute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core"
	"github.com/abdul-baten/apc-kilock-sub001/internal/core/model"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/messaging"
)

// Processor handles jobs from the recompute queue. Each message names one
// user and one work date whose segments need their rest hours and main
// flag re-derived after a rest window change.
type Processor struct {
	reconciler *core.Reconciler
	resolver   core.Resolver
}

// NewProcessor creates a new processor for the recompute queue.
func NewProcessor(reconciler *core.Reconciler, resolver core.Resolver) *Processor {
	return &Processor{
		reconciler: reconciler,
		resolver:   resolver,
	}
}

// Process is the core logic for handling a message from the recompute queue.
// Recomputation is idempotent, so redelivery after a partial failure is safe.
func (p *Processor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.RecomputeRestEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal recompute event")
		return false, 0, err // Do not retry on malformed message
	}

	log.Ctx(ctx).Info().
		Str("task_id", event.TaskID).
		Str("user_id", event.UserID).
		Str("date", event.Date).
		Msg("Processing rest recompute")

	date, err := model.ParseWorkDate(event.Date)
	if err != nil {
		return false, 0, fmt.Errorf("bad date in recompute event: %w", err)
	}

	profile, err := p.resolver.Resolve(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			// User vanished from the directory since the window changed.
			// Nothing to recompute.
			log.Ctx(ctx).Warn().Str("user_id", event.UserID).Msg("User not found, dropping recompute job")
			return false, 0, nil
		}
		return true, backoffDelay(receiveCount(msg)), fmt.Errorf("failed to resolve user: %w", err)
	}

	if err := p.reconciler.RecomputeDate(ctx, profile, date); err != nil {
		return true, backoffDelay(receiveCount(msg)), fmt.Errorf("failed to recompute date %s: %w", event.Date, err)
	}

	return false, 0, nil
}

// receiveCount reads how many times SQS has delivered this message so far.
func receiveCount(msg types.Message) int {
	raw, ok := msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// backoffDelay determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each delivery.
func backoffDelay(attempt int) int32 {
	backoff := int32(math.Pow(2, float64(attempt)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
