package sqlx

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/kcmvp/retail/store"
)

//go:embed schema.sql
var schema string

// Store keeps every entity in one table keyed by (category, id). The version column is the
// optimistic concurrency token; updates are conditional on it.
type Store struct {
	db DB
}

var _ store.Store = (*Store)(nil)

// NewStore creates the entities table if needed.
func NewStore(ctx context.Context, db DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate entities: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) q(query string) string {
	return rebind(s.db.DriverName(), query)
}

func (s *Store) GetAll(ctx context.Context, category string) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT id, version, data FROM entities WHERE category = ?"), category)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	defer rows.Close()
	var recs []store.Record
	for rows.Next() {
		rec := store.Record{Category: category}
		var data string
		if err := rows.Scan(&rec.ID, &rec.Version, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", category, err)
		}
		rec.Data = []byte(data)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) Get(ctx context.Context, category, id string) (store.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT version, data FROM entities WHERE category = ? AND id = ?"), category, id)
	if err != nil {
		return store.Record{}, fmt.Errorf("get %s %s: %w", category, id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return store.Record{}, fmt.Errorf("get %s %s: %w", category, id, err)
		}
		return store.Record{}, fmt.Errorf("%s %s: %w", category, id, store.ErrNotFound)
	}
	rec := store.Record{Category: category, ID: id}
	var data string
	if err := rows.Scan(&rec.Version, &data); err != nil {
		return store.Record{}, fmt.Errorf("scan %s %s: %w", category, id, err)
	}
	rec.Data = []byte(data)
	return rec, nil
}

func (s *Store) Insert(ctx context.Context, rec store.Record) (store.Record, error) {
	rec.Version = store.NewVersion()
	_, err := s.db.ExecContext(ctx, s.q("INSERT INTO entities (category, id, version, data) VALUES (?, ?, ?, ?)"),
		rec.Category, rec.ID, rec.Version, string(rec.Data))
	if err != nil {
		if isDuplicateKey(err) {
			return store.Record{}, fmt.Errorf("%s %s: %w", rec.Category, rec.ID, store.ErrAlreadyExists)
		}
		return store.Record{}, fmt.Errorf("insert %s %s: %w", rec.Category, rec.ID, err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, rec store.Record) (store.Record, error) {
	next := store.NewVersion()
	res, err := s.db.ExecContext(ctx, s.q("UPDATE entities SET version = ?, data = ? WHERE category = ? AND id = ? AND version = ?"),
		next, string(rec.Data), rec.Category, rec.ID, rec.Version)
	if err != nil {
		return store.Record{}, fmt.Errorf("update %s %s: %w", rec.Category, rec.ID, err)
	}
	if err := affected(res); err != nil {
		// zero rows: either the row is gone or the version moved on
		if _, gerr := s.Get(ctx, rec.Category, rec.ID); gerr != nil {
			return store.Record{}, gerr
		}
		return store.Record{}, fmt.Errorf("%s %s: %w", rec.Category, rec.ID, store.ErrVersionConflict)
	}
	rec.Version = next
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, category, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM entities WHERE category = ? AND id = ?"), category, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", category, id, err)
	}
	if err := affected(res); err != nil {
		return fmt.Errorf("%s %s: %w", category, id, store.ErrNotFound)
	}
	return nil
}

var errNoRows = errors.New("no rows affected")

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNoRows
	}
	return nil
}
