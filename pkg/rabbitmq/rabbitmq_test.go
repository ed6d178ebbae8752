package rabbitmq

import (
	"errors"
	"testing"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type recordingAcknowledger struct {
	acked  []uint64
	nacked []uint64
}

func (a *recordingAcknowledger) Ack(tag uint64, _ bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *recordingAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		return errors.New("unexpected requeue")
	}
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestDeliver(t *testing.T) {
	c := &Client{queue: "push_notifications", logger: zaptest.NewLogger(t)}
	ack := &recordingAcknowledger{}

	var bodies []string
	handler := func(body []byte) error {
		bodies = append(bodies, string(body))
		if string(body) == "bad" {
			return errors.New("invalid payload")
		}
		return nil
	}

	c.deliver(amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"title":"hi"}`)}, handler)
	c.deliver(amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("bad")}, handler)
	c.deliver(amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: nil}, handler)

	assert.Equal(t, []string{`{"title":"hi"}`, "bad", ""}, bodies)
	assert.Equal(t, []uint64{1, 3}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.nacked)
}

func TestConsume_WithoutChannel(t *testing.T) {
	c := &Client{queue: "push_notifications", logger: zaptest.NewLogger(t)}
	assert.Error(t, c.Consume(func([]byte) error { return nil }))
}
