package facade

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/kcmvp/retail/audit"
	"github.com/kcmvp/retail/blob"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/order"
	"github.com/kcmvp/retail/queue"
	"github.com/kcmvp/retail/store"
	"github.com/samber/lo"
)

type validatable[E any] interface {
	entity.Entity[E]
	Validate() error
}

type collection[E validatable[E]] struct {
	table   store.Table[E]
	created func(ctx context.Context, e E)
}

var _ Collection[entity.Product] = collection[entity.Product]{}

// List is ordered by id.
func (c collection[E]) List(ctx context.Context) ([]E, error) {
	items, err := c.table.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key() < items[j].Key() })
	return items, nil
}

func (c collection[E]) Get(ctx context.Context, id string) (E, error) {
	return c.table.Get(ctx, id)
}

func (c collection[E]) Create(ctx context.Context, e E) (E, error) {
	if e.Key() == "" {
		e = e.WithKey(uuid.NewString())
	}
	if err := e.Validate(); err != nil {
		return lo.Empty[E](), err
	}
	saved, err := c.table.Insert(ctx, e.WithVersion(""))
	if err != nil {
		return saved, err
	}
	if c.created != nil {
		c.created(ctx, saved)
	}
	return saved, nil
}

func (c collection[E]) Update(ctx context.Context, e E) (E, error) {
	if err := e.Validate(); err != nil {
		return lo.Empty[E](), err
	}
	return c.table.Update(ctx, e)
}

func (c collection[E]) Delete(ctx context.Context, id string) error {
	return c.table.Delete(ctx, id)
}

// Local calls the store and the order workflow in-process.
type Local struct {
	store    store.Store
	workflow *order.Workflow
	producer queue.Producer
	blobs    blob.Storage
	logger   *slog.Logger
}

var _ Service = (*Local)(nil)

func NewLocal(s store.Store, wf *order.Workflow, p queue.Producer, b blob.Storage, logger *slog.Logger) *Local {
	return &Local{store: s, workflow: wf, producer: p, blobs: b, logger: lo.Ternary(logger != nil, logger, slog.Default())}
}

func (l *Local) Customers() Collection[entity.Customer] {
	return collection[entity.Customer]{table: store.NewTable[entity.Customer](l.store)}
}

// Products announces every new product on the stock-updates topic.
func (l *Local) Products() Collection[entity.Product] {
	return collection[entity.Product]{
		table: store.NewTable[entity.Product](l.store),
		created: func(ctx context.Context, p entity.Product) {
			if l.producer == nil {
				return
			}
			if err := order.Publish(ctx, l.producer, queue.StockUpdates, order.NewProduct(p)); err != nil {
				l.logger.WarnContext(ctx, "notification dropped", "topic", queue.StockUpdates, "product", p.ID, "err", err)
			}
		},
	}
}

func (l *Local) Orders() Orders {
	return l.workflow
}

func (l *Local) Audit(ctx context.Context) ([]entity.AuditEntry, error) {
	return audit.List(ctx, l.store)
}

func (l *Local) Upload(ctx context.Context, container, name string, data []byte) (string, error) {
	ref, err := l.blobs.Upload(ctx, container, name, data)
	if err != nil {
		return "", err
	}
	l.logger.InfoContext(ctx, "file uploaded", "container", container, "ref", ref, "size", len(data))
	return ref, nil
}
