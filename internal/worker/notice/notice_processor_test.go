package notice

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNoticeService struct {
	sent []string
	err  error
}

func (s *stubNoticeService) SendDayClosedNotice(_ context.Context, to, _ string, _ int) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

func TestProcessSendsNotice(t *testing.T) {
	svc := &stubNoticeService{}
	p := NewProcessor(svc)

	retry, _, err := p.Process(context.Background(), types.Message{
		Body: aws.String(`{"userId":"u1","email":"u1@factory.com","date":"2026-03-02","workedMinutes":480}`),
	})
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, []string{"u1@factory.com"}, svc.sent)
}

func TestProcessSkipsWithoutEmail(t *testing.T) {
	svc := &stubNoticeService{}
	p := NewProcessor(svc)

	retry, _, err := p.Process(context.Background(), types.Message{
		Body: aws.String(`{"userId":"u1","date":"2026-03-02","workedMinutes":480}`),
	})
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Empty(t, svc.sent)
}

func TestProcessRetriesOnSendFailure(t *testing.T) {
	svc := &stubNoticeService{err: context.DeadlineExceeded}
	p := NewProcessor(svc)

	m := types.Message{
		Body: aws.String(`{"userId":"u1","email":"u1@factory.com","date":"2026-03-02"}`),
		Attributes: map[string]string{
			string(types.MessageSystemAttributeNameApproximateReceiveCount): "3",
		},
	}
	retry, delay, err := p.Process(context.Background(), m)
	require.Error(t, err)
	assert.True(t, retry)
	assert.Equal(t, int32(80), delay)
}

func TestProcessMalformedBodyNotRetried(t *testing.T) {
	p := NewProcessor(&stubNoticeService{})

	retry, _, err := p.Process(context.Background(), types.Message{Body: aws.String(`nope`)})
	require.Error(t, err)
	assert.False(t, retry)
}
