package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]Record
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]Record{}}
}

func (m *Memory) GetAll(_ context.Context, category string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Map(lo.Values(m.data[category]), func(r Record, _ int) Record { return clone(r) }), nil
}

func (m *Memory) Get(_ context.Context, category, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[category][id]
	if !ok {
		return Record{}, fmt.Errorf("%s %s: %w", category, id, ErrNotFound)
	}
	return clone(rec), nil
}

func (m *Memory) Insert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.data[rec.Category]
	if !ok {
		rows = map[string]Record{}
		m.data[rec.Category] = rows
	}
	if _, exists := rows[rec.ID]; exists {
		return Record{}, fmt.Errorf("%s %s: %w", rec.Category, rec.ID, ErrAlreadyExists)
	}
	rec = clone(rec)
	rec.Version = NewVersion()
	rows[rec.ID] = rec
	return clone(rec), nil
}

func (m *Memory) Update(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[rec.Category][rec.ID]
	if !ok {
		return Record{}, fmt.Errorf("%s %s: %w", rec.Category, rec.ID, ErrNotFound)
	}
	if cur.Version != rec.Version {
		return Record{}, fmt.Errorf("%s %s: %w", rec.Category, rec.ID, ErrVersionConflict)
	}
	rec = clone(rec)
	rec.Version = NewVersion()
	m.data[rec.Category][rec.ID] = rec
	return clone(rec), nil
}

func (m *Memory) Delete(_ context.Context, category, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[category][id]; !ok {
		return fmt.Errorf("%s %s: %w", category, id, ErrNotFound)
	}
	delete(m.data[category], id)
	return nil
}

func clone(r Record) Record {
	r.Data = append([]byte(nil), r.Data...)
	return r
}
