package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Producer struct {
	sender            MessageSender
	recomputeQueueURL string
	noticeQueueURL    string
}

func NewProducer(sender MessageSender, recomputeQueueURL, noticeQueueURL string) *Producer {
	return &Producer{
		sender:            sender,
		recomputeQueueURL: recomputeQueueURL,
		noticeQueueURL:    noticeQueueURL,
	}
}

func NewSQSPublisher(client SQSClient, recomputeQueueURL, noticeQueueURL string) *Producer {
	return NewProducer(&SQSSender{client: client}, recomputeQueueURL, noticeQueueURL)
}

func (p *Producer) PublishRecompute(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.recomputeQueueURL, body)
}

func (p *Producer) PublishNotice(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.noticeQueueURL, body)
}

func (p *Producer) publish(ctx context.Context, destination string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	// Enrich the current span with user_id if available
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		var payload struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(b, &payload); err == nil && payload.UserID != "" {
			span.SetAttributes(attribute.String("app.userId", payload.UserID))
		}
	}

	if err := p.sender.SendMessage(ctx, destination, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
