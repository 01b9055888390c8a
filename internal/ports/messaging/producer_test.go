package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	destinations []string
	bodies       [][]byte
}

func (s *captureSender) SendMessage(_ context.Context, destination string, body []byte) error {
	s.destinations = append(s.destinations, destination)
	s.bodies = append(s.bodies, body)
	return nil
}

func TestProducerRoutesByEventKind(t *testing.T) {
	sender := &captureSender{}
	p := NewProducer(sender, "recompute-q", "notice-q")

	err := p.PublishRecompute(context.Background(), RecomputeRestEvent{
		TaskID: "t1", UserID: "u1", Date: "2026-03-02", OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	err = p.PublishNotice(context.Background(), DayClosedEvent{
		UserID: "u1", Email: "u1@factory.com", Date: "2026-03-02", WorkedMinutes: 480,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"recompute-q", "notice-q"}, sender.destinations)

	var ev RecomputeRestEvent
	require.NoError(t, json.Unmarshal(sender.bodies[0], &ev))
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "2026-03-02", ev.Date)
}
