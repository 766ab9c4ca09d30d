package sqlx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kcmvp/retail/store"
	"github.com/kcmvp/retail/store/storetest"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestDataSource_DSN_Substitution(t *testing.T) {
	ds := dataSource{
		User:     "u",
		Password: "p",
		Host:     "localhost:5432",
		URL:      "postgres://${user}:${password}@${host}/db?sslmode=disable",
	}
	dsn, err := ds.DSNChecked()
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", dsn)
}

func TestDataSource_DSNChecked(t *testing.T) {
	tests := []struct {
		name string
		ds   dataSource
		ok   bool
	}{
		{"no placeholders", dataSource{URL: "file::memory:?cache=shared"}, true},
		{"missing url", dataSource{}, false},
		{"missing user", dataSource{URL: "postgres://${user}@${host}/db", Host: "h"}, false},
		{"missing password", dataSource{URL: "postgres://${user}:${password}@${host}/db", User: "u", Host: "h"}, false},
		{"missing host", dataSource{URL: "postgres://${user}@${host}/db", User: "u"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.ds.DSNChecked()
			assert.Equal(t, tt.ok, err == nil)
		})
	}
}

func resetRegistry(t *testing.T) {
	t.Helper()
	require.NoError(t, CloseAllDataSources())
	initOnce = sync.Once{}
	initErr = nil
}

func TestGetDS_FromApplicationTestYml(t *testing.T) {
	resetRegistry(t)
	t.Cleanup(func() { resetRegistry(t) })

	db, err := GetDS("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", db.DriverName())
	require.NoError(t, db.PingContext(context.Background()))

	_, err = GetDS("missing")
	require.Error(t, err)

	require.NoError(t, CloseDataSource(DefaultName))
	_, err = GetDS("")
	require.Error(t, err)
}

func TestLoadDataSources_RunsScripts(t *testing.T) {
	resetRegistry(t)
	t.Cleanup(func() { resetRegistry(t) })

	script := filepath.Join(t.TempDir(), "seed.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE TABLE IF NOT EXISTS seeded (id INTEGER)"), 0o600))
	v := viper.New()
	v.Set("datasource.extra.driver", "sqlite3")
	v.Set("datasource.extra.url", "file:scripts?mode=memory&cache=shared")
	v.Set("datasource.extra.scripts", []string{script})
	require.NoError(t, loadDataSources(v))

	dsMu.RLock()
	db := dsRegistry["extra"]
	dsMu.RUnlock()
	require.NotNil(t, db)
	_, err := db.ExecContext(context.Background(), "INSERT INTO seeded (id) VALUES (1)")
	require.NoError(t, err)
}

func TestLoadDataSources_BadDriver(t *testing.T) {
	resetRegistry(t)
	v := viper.New()
	v.Set("datasource.bad.url", "whatever")
	require.Error(t, loadDataSources(v))
}

func TestWithSQLLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db, err := open(context.Background(), "log", dataSource{Driver: "sqlite3", URL: "file:logged?mode=memory&cache=shared"})
	require.NoError(t, err)
	wrapped := WithSQLLogger(db, logger)
	t.Cleanup(func() { _ = wrapped.Close() })

	_, err = wrapped.ExecContext(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sqlx exec")
	assert.Contains(t, buf.String(), "SELECT 1")
	assert.Equal(t, db, WithSQLLogger(db, nil))
}

func TestRebind(t *testing.T) {
	q := "UPDATE entities SET version = ? WHERE id = ? AND version = ?"
	assert.Equal(t, q, rebind("sqlite3", q))
	assert.Equal(t, q, rebind("mysql", q))
	assert.Equal(t, "UPDATE entities SET version = $1 WHERE id = $2 AND version = $3", rebind("postgres", q))
	assert.Equal(t, "UPDATE entities SET version = $1 WHERE id = $2 AND version = $3", rebind("pgx", q))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1045}))
	assert.True(t, isDuplicateKey(&pq.Error{Code: "23505"}))
	assert.True(t, isDuplicateKey(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isDuplicateKey(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isDuplicateKey(errors.New("boom")))
}

func TestStore_Contract(t *testing.T) {
	db, err := open(context.Background(), "contract", dataSource{Driver: "sqlite3", URL: "file:contract?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewStore(context.Background(), db)
	require.NoError(t, err)
	suite.Run(t, &storetest.Suite{New: func() store.Store { return s }})
}

func TestStore_DuplicateInsertOnSqlite(t *testing.T) {
	db, err := open(context.Background(), "dup", dataSource{Driver: "sqlite3", URL: "file:dup?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewStore(context.Background(), db)
	require.NoError(t, err)
	rec := store.Record{Category: "Customer", ID: "c1", Data: []byte(`{}`)}
	_, err = s.Insert(context.Background(), rec)
	require.NoError(t, err)
	_, err = s.Insert(context.Background(), rec)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}
