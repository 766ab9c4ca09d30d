// Package queue delivers notifications between the order workflow and its consumers.
//
// Delivery is at-least-once: a handler error puts the message back for another delivery until
// the broker's delivery limit is reached. Messages of one topic are delivered in send order.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	OrderNotifications = "order-notifications"
	StockUpdates       = "stock-updates"
)

// DefaultMaxDeliveries matches the usual poison threshold of hosted queues.
const DefaultMaxDeliveries = 5

var ErrClosed = errors.New("queue closed")

type Message struct {
	ID      string    `json:"id"`
	Topic   string    `json:"topic"`
	Payload []byte    `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
	// Attempt is the 1-based delivery count seen by the handler.
	Attempt int `json:"attempt"`
}

type Handler func(ctx context.Context, msg Message) error

type Producer interface {
	// Send enqueues payload on topic. It never waits for a consumer.
	Send(ctx context.Context, topic string, payload []byte) error
}

type Consumer interface {
	// Subscribe delivers messages of topic to h until ctx is done.
	Subscribe(ctx context.Context, topic string, h Handler) error
}

type Queue interface {
	Producer
	Consumer
	Close() error
}

func newMessage(topic string, payload []byte) Message {
	return Message{
		ID:      uuid.NewString(),
		Topic:   topic,
		Payload: append([]byte(nil), payload...),
		SentAt:  time.Now().UTC(),
	}
}
