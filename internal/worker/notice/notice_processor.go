package notice

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"

	"github.com/abdul-baten/apc-kilock-sub001/internal/core"
	"github.com/abdul-baten/apc-kilock-sub001/internal/ports/messaging"
)

// Processor handles day-closed events from the notice queue and mails the
// user a short summary of the closed work date.
type Processor struct {
	noticeService core.NoticeService
}

// NewProcessor sets up a new processor for handling notice jobs.
func NewProcessor(noticeService core.NoticeService) *Processor {
	return &Processor{
		noticeService: noticeService,
	}
}

// Process is the main entry point for handling a message from the notice queue.
// It tries to send the notice email and will tell the worker to retry if SES fails.
func (p *Processor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.DayClosedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal day-closed event")
		return false, 0, err // Do not retry on malformed message
	}

	if event.Email == "" {
		log.Ctx(ctx).Info().Str("user_id", event.UserID).Msg("User has no email on file. Skipping notice.")
		return false, 0, nil
	}

	err := p.noticeService.SendDayClosedNotice(ctx, event.Email, event.Date, event.WorkedMinutes)
	if err != nil {
		return true, backoffDelay(receiveCount(msg)), err
	}

	log.Ctx(ctx).Info().
		Str("user_id", event.UserID).
		Str("date", event.Date).
		Msg("Day-closed notice sent")
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
// It increases the delay exponentially with each delivery to avoid
// overwhelming a struggling mail service.
func backoffDelay(attempt int) int32 {
	backoff := int32(math.Pow(2, float64(attempt)) * 10)
	if backoff > 3600 { // Cap at 1 hour
		return 3600
	}
	return backoff
}
