// Package boot assembles the process from app.Settings: store, queue, blob storage, the order
// workflow and the facade the commands talk to.
package boot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kcmvp/retail/app"
	"github.com/kcmvp/retail/audit"
	"github.com/kcmvp/retail/blob"
	"github.com/kcmvp/retail/facade"
	"github.com/kcmvp/retail/mongox"
	"github.com/kcmvp/retail/order"
	"github.com/kcmvp/retail/queue"
	"github.com/kcmvp/retail/server"
	"github.com/kcmvp/retail/sqlx"
	"github.com/kcmvp/retail/store"
	"github.com/samber/lo"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrRemote is returned when a local-only component is asked for while the facade is remote.
	ErrRemote = errors.New("not available with a remote facade")
)

// Runtime owns everything Open created. Store, Queue and Workflow are nil for a remote facade.
type Runtime struct {
	Settings app.Settings
	Logger   *slog.Logger
	Service  facade.Service
	Store    store.Store
	Queue    queue.Queue
	Workflow *order.Workflow

	closers []func() error
}

// Open wires the components named by s. Close releases them.
func Open(ctx context.Context, s app.Settings, logger *slog.Logger) (*Runtime, error) {
	logger = lo.Ternary(logger != nil, logger, slog.Default())
	rt := &Runtime{Settings: s, Logger: logger}
	if s.Facade.Remote {
		remote, err := facade.NewRemote(s.Facade.BaseURL, s.Facade.Timeout)
		if err != nil {
			return nil, err
		}
		if err := remote.Check(ctx); err != nil {
			return nil, fmt.Errorf("remote %s: %w", s.Facade.BaseURL, err)
		}
		rt.Service = remote
		return rt, nil
	}
	if err := rt.openLocal(ctx); err != nil {
		return nil, errors.Join(err, rt.Close())
	}
	return rt, nil
}

func (rt *Runtime) openLocal(ctx context.Context) error {
	s := rt.Settings
	st, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	q, err := rt.openQueue(ctx)
	if err != nil {
		return err
	}
	rt.Store, rt.Queue = st, q
	rt.Workflow = order.New(st, q,
		order.WithLogger(rt.Logger.With("component", "order")),
		order.WithRetry(store.RetryPolicy{Retries: s.Order.StockRetries, Backoff: s.Order.RetryBackoff}),
	)
	rt.Service = facade.NewLocal(st, rt.Workflow, q, blob.NewOS(s.Blob.Root), rt.Logger.With("component", "facade"))
	rt.Logger.Info("runtime ready", "store", s.Store.Backend, "queue", s.Queue.Backend)
	return nil
}

func (rt *Runtime) openStore(ctx context.Context) (store.Store, error) {
	s := rt.Settings.Store
	switch s.Backend {
	case app.BackendMemory:
		return store.NewMemory(), nil
	case app.BackendSQL:
		sqlx.SetSQLLogger(rt.Logger.With("component", "sqlx"))
		db, err := sqlx.GetDS(s.Datasource)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { return sqlx.CloseDataSource(s.Datasource) })
		st, err := sqlx.NewStore(ctx, db)
		if err != nil {
			return nil, err
		}
		return st, nil
	case app.BackendMongo:
		m := rt.Settings.Mongo
		st, client, err := mongox.Connect(ctx, m.URI, m.Database, m.Collection)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { return client.Disconnect(context.Background()) })
		return st, nil
	default:
		return nil, fmt.Errorf("%w: store %q", ErrUnknownBackend, s.Backend)
	}
}

func (rt *Runtime) openQueue(ctx context.Context) (queue.Queue, error) {
	s := rt.Settings.Queue
	logger := rt.Logger.With("component", "queue")
	var q queue.Queue
	switch s.Backend {
	case app.BackendMemory:
		q = queue.NewMemory(s.MaxDeliveries, logger)
	case app.BackendRedis:
		r, err := queue.NewRedis(ctx, queue.RedisOptions{
			URL:           rt.Settings.Redis.URL,
			Prefix:        rt.Settings.Redis.Prefix,
			MaxDeliveries: s.MaxDeliveries,
			PollTimeout:   s.PollTimeout,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		q = r
	default:
		return nil, fmt.Errorf("%w: queue %q", ErrUnknownBackend, s.Backend)
	}
	rt.closers = append(rt.closers, q.Close)
	return q, nil
}

// Handler serves Service over HTTP.
func (rt *Runtime) Handler() *server.Handler {
	return server.NewHandler(rt.Service, rt.Logger.With("component", "server"))
}

// AuditWorker consumes the notification topics into the audit log.
func (rt *Runtime) AuditWorker() (*audit.Worker, error) {
	if rt.Queue == nil {
		return nil, ErrRemote
	}
	logger := rt.Logger.With("component", "audit")
	return audit.NewWorker(rt.Queue, audit.NewSink(rt.Store, logger), logger), nil
}

// Close releases the components in reverse order of creation.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
