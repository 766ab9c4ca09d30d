package sqlx

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kcmvp/retail/app"
	"github.com/spf13/viper"
)

// DB is the subset of *sql.DB this package needs. The wrapper below adds statement logging.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
	DriverName() string
}

type stdDB struct {
	*sql.DB
	driver string
}

func (d stdDB) DriverName() string { return d.driver }

type loggingDB struct {
	inner  DB
	logger *slog.Logger
}

func (d loggingDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := d.inner.ExecContext(ctx, query, args...)
	d.logger.DebugContext(ctx, "sqlx exec", "dur", time.Since(start), "err", err, "sql", query, "args", args)
	return res, err
}

func (d loggingDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.inner.QueryContext(ctx, query, args...)
	d.logger.DebugContext(ctx, "sqlx query", "dur", time.Since(start), "err", err, "sql", query, "args", args)
	return rows, err
}

func (d loggingDB) PingContext(ctx context.Context) error {
	err := d.inner.PingContext(ctx)
	d.logger.DebugContext(ctx, "sqlx ping", "err", err)
	return err
}

func (d loggingDB) Close() error {
	err := d.inner.Close()
	d.logger.Debug("sqlx close", "err", err)
	return err
}

func (d loggingDB) DriverName() string { return d.inner.DriverName() }

// WithSQLLogger wraps db with a statement logger if logger is not nil.
func WithSQLLogger(db DB, logger *slog.Logger) DB {
	if logger == nil {
		return db
	}
	return loggingDB{inner: db, logger: logger}
}

var (
	dsRegistry = map[string]DB{}
	dsMu       sync.RWMutex

	initOnce sync.Once
	initErr  error

	sqlLogger *slog.Logger
)

// SetSQLLogger enables statement logging for datasources registered after this call.
func SetSQLLogger(l *slog.Logger) {
	sqlLogger = l
}

// open connects cfg, pings it and runs its scripts. It does not register the result.
func open(ctx context.Context, name string, cfg dataSource) (DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("driver is required to register datasource %q", name)
	}
	dsn, err := cfg.DSNChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid dsn for datasource %q: %w", name, err)
	}
	raw, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open datasource %q: %w", name, err)
	}
	switch {
	case cfg.MaxOpenConns > 0:
		raw.SetMaxOpenConns(cfg.MaxOpenConns)
	case cfg.Driver == "sqlite3":
		// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY under load
		raw.SetMaxOpenConns(1)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping datasource %q: %w", name, err)
	}
	var db DB = stdDB{DB: raw, driver: cfg.Driver}
	if sqlLogger != nil {
		db = WithSQLLogger(db, sqlLogger.With("datasource", name))
	}
	for _, script := range cfg.Scripts {
		body, err := os.ReadFile(script)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("read script %s of datasource %q: %w", script, name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run script %s of datasource %q: %w", script, name, err)
		}
	}
	return db, nil
}

func registerDataSource(name string, cfg dataSource) error {
	if name == "" {
		name = DefaultName
	}
	db, err := open(context.Background(), name, cfg)
	if err != nil {
		return err
	}
	dsMu.Lock()
	defer dsMu.Unlock()
	if prev, ok := dsRegistry[name]; ok {
		_ = prev.Close()
	}
	dsRegistry[name] = db
	return nil
}

func initDataSources() error {
	initOnce.Do(func() {
		res := app.Config()
		if res.IsError() {
			initErr = res.Error()
			return
		}
		initErr = loadDataSources(res.MustGet())
	})
	return initErr
}

func loadDataSources(cfg *viper.Viper) error {
	for name := range cfg.GetStringMap("datasource") {
		var ds dataSource
		sub := cfg.Sub("datasource." + name)
		if sub == nil {
			return fmt.Errorf("datasource %s must be a map", name)
		}
		if err := sub.Unmarshal(&ds); err != nil {
			return fmt.Errorf("unmarshal datasource %s: %w", name, err)
		}
		if err := registerDataSource(name, ds); err != nil {
			return fmt.Errorf("register datasource %s: %w", name, err)
		}
	}
	return nil
}

// GetDS returns a datasource configured under `datasource.<name>`.
func GetDS(name string) (DB, error) {
	if err := initDataSources(); err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultName
	}
	dsMu.RLock()
	defer dsMu.RUnlock()
	db, ok := dsRegistry[name]
	if !ok {
		return nil, fmt.Errorf("datasource %q is not configured", name)
	}
	return db, nil
}

// CloseDataSource closes and forgets the named datasource.
func CloseDataSource(name string) error {
	if name == "" {
		name = DefaultName
	}
	dsMu.Lock()
	defer dsMu.Unlock()
	if db, ok := dsRegistry[name]; ok {
		delete(dsRegistry, name)
		return db.Close()
	}
	return nil
}

// CloseAllDataSources closes every registered datasource and returns the first error.
func CloseAllDataSources() error {
	dsMu.Lock()
	defer dsMu.Unlock()
	var firstErr error
	for name, db := range dsRegistry {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(dsRegistry, name)
	}
	return firstErr
}
