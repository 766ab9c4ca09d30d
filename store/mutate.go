package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kcmvp/retail/entity"
	"github.com/samber/lo"
)

// RetryPolicy bounds optimistic read-modify-write loops. Retries counts the attempts made after
// the first one.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

// delay grows linearly with the attempt and adds up to one Backoff of jitter so that competing
// writers spread out.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	return time.Duration(attempt)*p.Backoff + rand.N(p.Backoff)
}

// Mutate reads id, applies fn and writes the result, retrying on ErrVersionConflict.
func Mutate[E entity.Entity[E]](ctx context.Context, t Table[E], id string, p RetryPolicy, fn func(E) (E, error)) (E, error) {
	current, err := t.Get(ctx, id)
	if err != nil {
		return current, err
	}
	return MutateFrom(ctx, t, current, p, fn)
}

// MutateFrom is Mutate starting from an already loaded entity. The first write uses the version
// held by current; every retry re-reads. An error returned by fn aborts the loop unchanged.
func MutateFrom[E entity.Entity[E]](ctx context.Context, t Table[E], current E, p RetryPolicy, fn func(E) (E, error)) (E, error) {
	for attempt := 0; ; attempt++ {
		next, err := fn(current)
		if err != nil {
			return lo.Empty[E](), err
		}
		saved, err := t.Update(ctx, next)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return lo.Empty[E](), err
		}
		if attempt >= p.Retries {
			return lo.Empty[E](), fmt.Errorf("%w after %d attempts", err, attempt+1)
		}
		select {
		case <-ctx.Done():
			return lo.Empty[E](), ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
		if current, err = t.Get(ctx, current.Key()); err != nil {
			return lo.Empty[E](), err
		}
	}
}
