package rabbitmq

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logrus.SetOutput(io.Discard)
}

// MockChannel is a mock type for the AMQP channel
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	ret := m.Called(name, durable)
	return amqp.Queue{Name: name}, ret.Error(0)
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(key, msg).Error(0)
}

func (m *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	ret := m.Called(queue, autoAck)
	return ret.Get(0).(chan amqp.Delivery), ret.Error(1)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

// recorder is an amqp.Acknowledger that remembers the outcome of each delivery.
type recorder struct {
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (r *recorder) Ack(tag uint64, multiple bool) error {
	r.acked = append(r.acked, tag)
	return nil
}

func (r *recorder) Nack(tag uint64, multiple bool, requeue bool) error {
	r.nacked = append(r.nacked, tag)
	r.requeue = append(r.requeue, requeue)
	return nil
}

func (r *recorder) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func TestPublish(t *testing.T) {
	ch := new(MockChannel)
	ch.On("QueueDeclare", "order_events", true).Return(nil)
	client, err := newClient(ch, "order_events")
	require.NoError(t, err)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	var sent amqp.Publishing
	ch.On("Publish", "order_events", mock.AnythingOfType("amqp.Publishing")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(amqp.Publishing) }).
		Return(nil).Once()

	err = client.Publish("order.created", map[string]string{"orderId": "o-1"})
	require.NoError(t, err)
	ch.AssertExpectations(t)

	assert.Equal(t, "order.created", sent.Type)
	assert.Equal(t, amqp.Persistent, sent.DeliveryMode)
	var event Event
	require.NoError(t, json.Unmarshal(sent.Body, &event))
	assert.Equal(t, "order.created", event.Type)
	assert.True(t, fixed.Equal(event.OccurredAt))
	assert.JSONEq(t, `{"orderId":"o-1"}`, string(event.Payload))

	ch.On("Publish", "order_events", mock.Anything).Return(errors.New("channel closed")).Once()
	assert.Error(t, client.Publish("order.created", nil))
}

func TestNewClient_DeclareFails(t *testing.T) {
	ch := new(MockChannel)
	ch.On("QueueDeclare", "order_events", true).Return(errors.New("access refused"))
	_, err := newClient(ch, "order_events")
	assert.Error(t, err)
}

func TestConsume(t *testing.T) {
	ch := new(MockChannel)
	ch.On("QueueDeclare", "order_events", true).Return(nil)
	client, err := newClient(ch, "order_events")
	require.NoError(t, err)

	deliveries := make(chan amqp.Delivery, 4)
	ch.On("Consume", "order_events", false).Return(deliveries, nil)

	acks := &recorder{}
	good, _ := json.Marshal(Event{Type: "order.created", Payload: json.RawMessage(`{}`)})
	bad, _ := json.Marshal(Event{Type: "order.status_changed", Payload: json.RawMessage(`{}`)})
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: good}
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: []byte("{not json")}
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, Body: bad}
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 4, Body: bad, Redelivered: true}
	close(deliveries)

	var seen []string
	err = client.Consume(context.Background(), func(e Event) error {
		seen = append(seen, e.Type)
		if e.Type == "order.status_changed" {
			return errors.New("downstream unavailable")
		}
		return nil
	})
	assert.Error(t, err, "closed delivery channel ends consumption")

	assert.Equal(t, []string{"order.created", "order.status_changed", "order.status_changed"}, seen)
	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2, 3, 4}, acks.nacked)
	assert.Equal(t, []bool{false, true, false}, acks.requeue)
}

func TestConsume_StopsOnContext(t *testing.T) {
	ch := new(MockChannel)
	ch.On("QueueDeclare", "order_events", true).Return(nil)
	client, err := newClient(ch, "order_events")
	require.NoError(t, err)
	ch.On("Consume", "order_events", false).Return(make(chan amqp.Delivery), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, client.Consume(ctx, func(Event) error { return nil }))
}
