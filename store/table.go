package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kcmvp/retail/entity"
	"github.com/samber/lo"
)

// Table is a typed view of one category.
type Table[E entity.Entity[E]] struct {
	s Store
}

func NewTable[E entity.Entity[E]](s Store) Table[E] {
	return Table[E]{s: s}
}

func (t Table[E]) Category() string {
	var e E
	return e.Category()
}

func (t Table[E]) All(ctx context.Context) ([]E, error) {
	recs, err := t.s.GetAll(ctx, t.Category())
	if err != nil {
		return nil, err
	}
	items := make([]E, 0, len(recs))
	for _, rec := range recs {
		e, err := t.decode(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, nil
}

func (t Table[E]) Get(ctx context.Context, id string) (E, error) {
	rec, err := t.s.Get(ctx, t.Category(), id)
	if err != nil {
		return lo.Empty[E](), err
	}
	return t.decode(rec)
}

func (t Table[E]) Insert(ctx context.Context, e E) (E, error) {
	return t.write(ctx, e, t.s.Insert)
}

// Update writes e guarded by e.Version().
func (t Table[E]) Update(ctx context.Context, e E) (E, error) {
	return t.write(ctx, e, t.s.Update)
}

func (t Table[E]) Delete(ctx context.Context, id string) error {
	return t.s.Delete(ctx, t.Category(), id)
}

func (t Table[E]) write(ctx context.Context, e E, op func(context.Context, Record) (Record, error)) (E, error) {
	rec, err := t.encode(e)
	if err != nil {
		return lo.Empty[E](), err
	}
	saved, err := op(ctx, rec)
	if err != nil {
		return lo.Empty[E](), err
	}
	return e.WithVersion(saved.Version), nil
}

func (t Table[E]) encode(e E) (Record, error) {
	// the version lives in the record, not in the payload
	data, err := json.Marshal(e.WithVersion(""))
	if err != nil {
		return Record{}, fmt.Errorf("encode %s %s: %w", t.Category(), e.Key(), err)
	}
	return Record{Category: t.Category(), ID: e.Key(), Version: e.Version(), Data: data}, nil
}

func (t Table[E]) decode(rec Record) (E, error) {
	var e E
	if err := json.Unmarshal(rec.Data, &e); err != nil {
		return e, fmt.Errorf("decode %s %s: %w", rec.Category, rec.ID, err)
	}
	return e.WithKey(rec.ID).WithVersion(rec.Version), nil
}
