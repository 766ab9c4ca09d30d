package queue

import (
	"context"
	"log/slog"
	"sync"
)

type topic struct {
	items  []Message
	signal chan struct{}
}

// Memory is an in-process broker. Consumers of the same topic compete for messages.
type Memory struct {
	mu            sync.Mutex
	topics        map[string]*topic
	closed        bool
	done          chan struct{}
	maxDeliveries int
	logger        *slog.Logger
}

var _ Queue = (*Memory)(nil)

func NewMemory(maxDeliveries int, logger *slog.Logger) *Memory {
	if maxDeliveries <= 0 {
		maxDeliveries = DefaultMaxDeliveries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		topics:        map[string]*topic{},
		done:          make(chan struct{}),
		maxDeliveries: maxDeliveries,
		logger:        logger,
	}
}

// topicLocked returns the named topic, creating it. m.mu must be held.
func (m *Memory) topicLocked(name string) *topic {
	t, ok := m.topics[name]
	if !ok {
		t = &topic{signal: make(chan struct{}, 1)}
		m.topics[name] = t
	}
	return t
}

func notify(t *topic) {
	select {
	case t.signal <- struct{}{}:
	default:
	}
}

func (m *Memory) Send(_ context.Context, name string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	t := m.topicLocked(name)
	t.items = append(t.items, newMessage(name, payload))
	notify(t)
	return nil
}

// Len reports the messages waiting on a topic.
func (m *Memory) Len(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.topics[name]; ok {
		return len(t.items)
	}
	return 0
}

func (m *Memory) pop(name string) (Message, chan struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.topicLocked(name)
	if len(t.items) == 0 {
		return Message{}, t.signal, false
	}
	msg := t.items[0]
	t.items = t.items[1:]
	if len(t.items) > 0 {
		// wake a competing consumer
		notify(t)
	}
	return msg, t.signal, true
}

// requeue puts msg back at the head so the topic keeps its order.
func (m *Memory) requeue(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.topicLocked(msg.Topic)
	t.items = append([]Message{msg}, t.items...)
	notify(t)
}

func (m *Memory) Subscribe(ctx context.Context, name string, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return ErrClosed
		default:
		}
		msg, signal, ok := m.pop(name)
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-m.done:
				return ErrClosed
			case <-signal:
				continue
			}
		}
		msg.Attempt++
		err := h(ctx, msg)
		if err == nil {
			continue
		}
		if msg.Attempt >= m.maxDeliveries {
			m.logger.Error("dead letter", "topic", name, "id", msg.ID, "attempt", msg.Attempt, "err", err)
		} else {
			m.logger.Warn("redeliver", "topic", name, "id", msg.ID, "attempt", msg.Attempt, "err", err)
			m.requeue(msg)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close stops every subscriber; further sends fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
