// Package audit records one ledger entry per delivered notification.
//
// Delivery is at-least-once and every delivery gets a fresh entry id, so a redelivered message
// shows up twice in the ledger. Duplicates are kept on purpose; the message id on each entry lets
// a reader collapse them.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/queue"
	"github.com/kcmvp/retail/store"
	"github.com/samber/lo"
)

const idLayout = "20060102150405"

// NewID returns a UTC timestamp prefixed id, so lexical order follows recording time.
func NewID(now time.Time) string {
	return now.UTC().Format(idLayout) + "-" + uuid.NewString()
}

var statusOf = map[string]string{
	queue.OrderNotifications: entity.AuditNotificationProcessed,
	queue.StockUpdates:       entity.AuditStockUpdateProcessed,
}

// Topics lists the topics the sink understands.
func Topics() []string {
	return lo.Keys(statusOf)
}

type Sink struct {
	entries store.Table[entity.AuditEntry]
	logger  *slog.Logger
	now     func() time.Time
}

func NewSink(s store.Store, logger *slog.Logger) *Sink {
	return &Sink{
		entries: store.NewTable[entity.AuditEntry](s),
		logger:  lo.Ternary(logger != nil, logger, slog.Default()),
		now:     time.Now,
	}
}

// Handle appends an entry for msg. An insert error is returned so the broker redelivers.
func (s *Sink) Handle(ctx context.Context, msg queue.Message) error {
	status, ok := statusOf[msg.Topic]
	if !ok {
		return fmt.Errorf("unexpected topic %q", msg.Topic)
	}
	s.logger.DebugContext(ctx, "notification received", "topic", msg.Topic, "message", msg.ID, "attempt", msg.Attempt)
	now := s.now()
	entry := entity.AuditEntry{
		ID:          NewID(now),
		Topic:       msg.Topic,
		MessageID:   msg.ID,
		Description: describe(msg),
		Status:      status,
		Attempt:     msg.Attempt,
		RecordedAt:  now.UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.entries.Insert(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "audit insert failed", "topic", msg.Topic, "message", msg.ID, "err", err)
		return err
	}
	s.logger.DebugContext(ctx, "audited", "topic", msg.Topic, "message", msg.ID, "entry", entry.ID)
	return nil
}

// describe renders the payload as compact JSON, or as text when it is not JSON.
func describe(msg queue.Message) string {
	var v any
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return string(msg.Payload)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// List returns every entry ordered by id, oldest first.
func List(ctx context.Context, s store.Store) ([]entity.AuditEntry, error) {
	entries, err := store.NewTable[entity.AuditEntry](s).All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Worker feeds both notification topics into a Sink.
type Worker struct {
	consumer queue.Consumer
	sink     *Sink
	logger   *slog.Logger
}

func NewWorker(c queue.Consumer, sink *Sink, logger *slog.Logger) *Worker {
	return &Worker{consumer: c, sink: sink, logger: lo.Ternary(logger != nil, logger, slog.Default())}
}

// Run blocks until ctx is done or the queue is closed. The first subscription error stops every
// subscription.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	topics := Topics()
	sort.Strings(topics)
	errs := make([]error, len(topics))
	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.logger.Info("audit worker subscribed", "topic", topic)
			err := w.consumer.Subscribe(ctx, topic, w.sink.Handle)
			if err != nil && !errors.Is(err, queue.ErrClosed) {
				errs[i] = fmt.Errorf("subscribe %s: %w", topic, err)
				cancel()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
