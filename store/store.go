// Package store defines the versioned entity store used by every other component.
//
// Entities are addressed by (category, id). Every write assigns a fresh opaque version and an
// update only succeeds when the caller presents the version it read. There are no transactions
// spanning more than one record.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrVersionConflict = errors.New("version conflict")
)

// Record is the persisted form of an entity. Data is the JSON payload.
type Record struct {
	Category string
	ID       string
	Version  string
	Data     []byte
}

type Store interface {
	// GetAll returns every record of a category in no particular order.
	GetAll(ctx context.Context, category string) ([]Record, error)
	Get(ctx context.Context, category, id string) (Record, error)
	// Insert fails with ErrAlreadyExists when the key is taken.
	Insert(ctx context.Context, rec Record) (Record, error)
	// Update fails with ErrVersionConflict when rec.Version is stale.
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, category, id string) error
}

// NewVersion returns a fresh version token.
func NewVersion() string {
	return uuid.NewString()
}
