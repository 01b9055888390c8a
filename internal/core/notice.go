package core

import (
	"context"
	"fmt"

	"github.com/abdul-baten/apc-kilock-sub001/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type NoticeService interface {
	SendDayClosedNotice(ctx context.Context, to, date string, workedMinutes int) error
}

type SESNoticeService struct {
	client *ses.Client
	sender string
}

func NewSESNoticeService(client *ses.Client, sender string) *SESNoticeService {
	return &SESNoticeService{client: client, sender: sender}
}

func (s *SESNoticeService) SendDayClosedNotice(ctx context.Context, to, date string, workedMinutes int) error {
	tracer := otel.Tracer("ses-notice-service")
	ctx, span := tracer.Start(ctx, "send_notice", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// Enrich span with userId if available in context
	if userID := telemetry.GetUserIDFromContext(ctx); userID != "" {
		span.SetAttributes(attribute.String("app.userId", userID))
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Attendance recorded for %s", date)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(fmt.Sprintf(
						"Hello,\n\nYour attendance for %s is closed. Recorded work time: %dh%02dm.",
						date, workedMinutes/60, workedMinutes%60)),
				},
			},
		},
	}

	_, err := s.client.SendEmail(ctx, input)
	return err
}
