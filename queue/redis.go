package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	URL           string
	Prefix        string
	MaxDeliveries int
	// PollTimeout bounds each blocking pop so cancellation is noticed.
	PollTimeout time.Duration
	Logger      *slog.Logger
}

// Redis is a broker on Redis lists. Senders LPUSH onto the ready list, consumers atomically move
// the oldest entry into a processing list and remove it once handled, so a crashed consumer
// leaves its message behind for recovery.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
}

var _ Queue = (*Redis)(nil)

func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(ro)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return newRedis(client, opts), nil
}

func newRedis(client *redis.Client, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "retail"
	}
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = DefaultMaxDeliveries
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Redis{client: client, opts: opts}
}

func (r *Redis) readyKey(topic string) string {
	return fmt.Sprintf("%s:queue:%s", r.opts.Prefix, topic)
}

func (r *Redis) processingKey(topic string) string {
	return r.readyKey(topic) + ":processing"
}

func (r *Redis) deadKey(topic string) string {
	return r.readyKey(topic) + ":dead"
}

func (r *Redis) Send(ctx context.Context, topic string, payload []byte) error {
	data, err := json.Marshal(newMessage(topic, payload))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return r.client.LPush(ctx, r.readyKey(topic), data).Err()
}

// recover moves messages left in processing by a dead consumer back to the head of the ready
// list. Call it only while no other consumer of the topic is running.
func (r *Redis) recover(ctx context.Context, topic string) error {
	for {
		err := r.client.LMove(ctx, r.processingKey(topic), r.readyKey(topic), "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (r *Redis) Subscribe(ctx context.Context, topic string, h Handler) error {
	if err := r.recover(ctx, topic); err != nil {
		return fmt.Errorf("recover %s: %w", topic, err)
	}
	for ctx.Err() == nil {
		raw, err := r.client.BLMove(ctx, r.readyKey(topic), r.processingKey(topic), "RIGHT", "LEFT", r.opts.PollTimeout).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, redis.ErrClosed):
			return ErrClosed
		case err != nil:
			r.opts.Logger.Error("pop failed", "topic", topic, "err", err)
			time.Sleep(r.opts.PollTimeout)
			continue
		}
		r.deliver(ctx, topic, raw, h)
	}
	return nil
}

func (r *Redis) deliver(ctx context.Context, topic, raw string, h Handler) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.opts.Logger.Error("dead letter: undecodable", "topic", topic, "err", err)
		r.bury(ctx, topic, raw, raw)
		return
	}
	msg.Attempt++
	herr := h(ctx, msg)
	if herr == nil {
		if err := r.client.LRem(ctx, r.processingKey(topic), 1, raw).Err(); err != nil {
			r.opts.Logger.Error("ack failed", "topic", topic, "id", msg.ID, "err", err)
		}
		return
	}
	next, _ := json.Marshal(msg)
	if msg.Attempt >= r.opts.MaxDeliveries {
		r.opts.Logger.Error("dead letter", "topic", topic, "id", msg.ID, "attempt", msg.Attempt, "err", herr)
		r.bury(ctx, topic, raw, string(next))
		return
	}
	r.opts.Logger.Warn("redeliver", "topic", topic, "id", msg.ID, "attempt", msg.Attempt, "err", herr)
	// back to the consuming end so the topic keeps its order
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, r.processingKey(topic), 1, raw)
		p.RPush(ctx, r.readyKey(topic), next)
		return nil
	})
	if err != nil {
		r.opts.Logger.Error("requeue failed", "topic", topic, "id", msg.ID, "err", err)
	}
}

func (r *Redis) bury(ctx context.Context, topic, raw, dead string) {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, r.processingKey(topic), 1, raw)
		p.LPush(ctx, r.deadKey(topic), dead)
		return nil
	})
	if err != nil {
		r.opts.Logger.Error("bury failed", "topic", topic, "err", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
