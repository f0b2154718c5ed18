package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-matcher/internal/config"
	"resume-matcher/internal/types"
)

type publishedMessage struct {
	exchange   string
	routingKey string
	data       interface{}
	persistent bool
	deadline   bool
}

type fakeQueue struct {
	exchanges []string
	queues    []string
	bindings  []string
	published []publishedMessage
	err       error
}

func (q *fakeQueue) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	_, hasDeadline := ctx.Deadline()
	q.published = append(q.published, publishedMessage{exchangeName, routingKey, data, persistent, hasDeadline})
	return q.err
}

func (q *fakeQueue) EnsureExchange(exchangeName, exchangeType string, _ bool) error {
	q.exchanges = append(q.exchanges, exchangeName+"/"+exchangeType)
	return nil
}

func (q *fakeQueue) EnsureQueue(queueName string, _ bool) error {
	q.queues = append(q.queues, queueName)
	return nil
}

func (q *fakeQueue) BindQueue(queueName, exchangeName, routingKey string) error {
	q.bindings = append(q.bindings, exchangeName+"->"+queueName+"@"+routingKey)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func TestScreeningEventsDeclaresTopologyAndPublishes(t *testing.T) {
	q := &fakeQueue{}
	cfg := &config.RabbitMQConfig{
		ScreeningExchange:     "screening.events.exchange",
		CompletedRoutingKey:   "screening.completed",
		ScreeningEventsQueue:  "q.screening_completed",
		PublishTimeoutSeconds: 1,
	}
	events, err := NewScreeningEvents(q, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"screening.events.exchange/topic"}, q.exchanges)
	assert.Equal(t, []string{"q.screening_completed"}, q.queues)
	assert.Equal(t, []string{"screening.events.exchange->q.screening_completed@screening.completed"}, q.bindings)

	event := types.ScreeningCompletedEvent{RunID: "r1", JobTitle: "Go Engineer", CandidateCount: 2, TopCandidate: "Jane", TopScore: 0.8}
	require.NoError(t, events.PublishScreeningCompleted(context.Background(), event))
	require.Len(t, q.published, 1)
	msg := q.published[0]
	assert.Equal(t, "screening.events.exchange", msg.exchange)
	assert.Equal(t, "screening.completed", msg.routingKey)
	assert.Equal(t, event, msg.data)
	assert.True(t, msg.persistent)
	assert.True(t, msg.deadline, "发布应带超时")
	assert.Equal(t, time.Second, events.timeout)
}

func TestScreeningEventsWithoutQueueSkipsBinding(t *testing.T) {
	q := &fakeQueue{}
	_, err := NewScreeningEvents(q, &config.RabbitMQConfig{ScreeningExchange: "ex", CompletedRoutingKey: "rk"})
	require.NoError(t, err)
	assert.Empty(t, q.queues)
	assert.Empty(t, q.bindings)
}

func TestScreeningEventsPublishError(t *testing.T) {
	q := &fakeQueue{err: errors.New("channel closed")}
	events, err := NewScreeningEvents(q, &config.RabbitMQConfig{ScreeningExchange: "ex", CompletedRoutingKey: "rk"})
	require.NoError(t, err)

	err = events.PublishScreeningCompleted(context.Background(), types.ScreeningCompletedEvent{RunID: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}
