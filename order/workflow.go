// Package order places orders against product stock.
//
// The store has no multi-entity transactions, so placing an order is a sequence of single-record
// writes: the order is inserted first and the product stock is then decremented under its
// version token, re-reading and re-checking on every conflict. A failure after the insert leaves
// a Submitted order behind and is reported as a *PendingError.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/queue"
	"github.com/kcmvp/retail/store"
	"github.com/samber/lo"
)

// DefaultRetries is the number of stock writes attempted after a version conflict.
const DefaultRetries = 3

type Request struct {
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	CustomerID string
	Status     entity.Status
}

func (f Filter) match(o entity.Order) bool {
	return (f.CustomerID == "" || f.CustomerID == o.CustomerID) && (f.Status == "" || f.Status == o.Status)
}

type Option func(*Workflow)

func WithRetry(p store.RetryPolicy) Option {
	return func(w *Workflow) { w.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// WithClock replaces time.Now for order dates.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

type Workflow struct {
	customers store.Table[entity.Customer]
	products  store.Table[entity.Product]
	orders    store.Table[entity.Order]
	producer  queue.Producer
	policy    store.RetryPolicy
	logger    *slog.Logger
	now       func() time.Time
}

func New(s store.Store, p queue.Producer, opts ...Option) *Workflow {
	w := &Workflow{
		customers: store.NewTable[entity.Customer](s),
		products:  store.NewTable[entity.Product](s),
		orders:    store.NewTable[entity.Order](s),
		producer:  p,
		policy:    store.RetryPolicy{Retries: DefaultRetries, Backoff: 10 * time.Millisecond},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Place validates the request, records the order and takes the stock.
//
// Errors before the order insert leave nothing behind. If the stock turns out to be gone on a
// retry the order is cancelled and ErrInsufficientStock returned with it. Any other failure after
// the insert returns the Submitted order and a *PendingError wrapping ErrStockUpdateFailed.
func (w *Workflow) Place(ctx context.Context, req Request) (entity.Order, error) {
	if err := positive(req.Quantity); err != nil {
		return entity.Order{}, fmt.Errorf("%w: %w", ErrInvalidQuantity, err)
	}
	customer, err := w.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return entity.Order{}, reference(err, "customer", req.CustomerID)
	}
	product, err := w.products.Get(ctx, req.ProductID)
	if err != nil {
		return entity.Order{}, reference(err, "product", req.ProductID)
	}
	if product.StockAvailable < req.Quantity {
		return entity.Order{}, shortage(product, req.Quantity)
	}

	placed, err := w.orders.Insert(ctx, entity.Order{
		ID:          uuid.NewString(),
		CustomerID:  customer.ID,
		Username:    customer.Username,
		ProductID:   product.ID,
		ProductName: product.Name,
		OrderDate:   w.now().UTC(),
		Quantity:    req.Quantity,
		UnitPrice:   product.Price,
		TotalPrice:  product.Price.Times(req.Quantity),
		Status:      entity.Submitted,
	})
	if err != nil {
		return entity.Order{}, fmt.Errorf("insert order: %w", err)
	}

	product, err = store.MutateFrom(ctx, w.products, product, w.policy, func(p entity.Product) (entity.Product, error) {
		if p.StockAvailable < req.Quantity {
			return p, shortage(p, req.Quantity)
		}
		p.StockAvailable -= req.Quantity
		return p, nil
	})
	if err != nil {
		return w.stockFailed(ctx, placed, err)
	}
	w.logger.InfoContext(ctx, "order placed", "order", placed.ID, "product", product.ID,
		"quantity", placed.Quantity, "total", placed.TotalPrice.String(), "stock", product.StockAvailable)

	w.notify(ctx, queue.OrderNotifications, NotificationOf(placed))
	w.notify(ctx, queue.StockUpdates, StockTaken(product, placed))
	return placed, nil
}

func (w *Workflow) stockFailed(ctx context.Context, placed entity.Order, cause error) (entity.Order, error) {
	if errors.Is(cause, ErrInsufficientStock) {
		cancelled, err := w.transition(ctx, placed.ID, entity.Cancelled)
		if err == nil {
			w.logger.InfoContext(ctx, "order cancelled, stock taken by a concurrent order", "order", placed.ID)
			return cancelled, cause
		}
		w.logger.ErrorContext(ctx, "cancel after stock shortage failed", "order", placed.ID, "shortage", cause, "err", err)
		cause = fmt.Errorf("cancel order: %w", err)
	}
	w.logger.ErrorContext(ctx, "order placed, inventory pending", "order", placed.ID, "product", placed.ProductID, "err", cause)
	return placed, &PendingError{Order: placed, Err: fmt.Errorf("%w: %w", ErrStockUpdateFailed, cause)}
}

func (w *Workflow) notify(ctx context.Context, topic string, v any) {
	if w.producer == nil {
		return
	}
	if err := Publish(ctx, w.producer, topic, v); err != nil {
		w.logger.WarnContext(ctx, "notification dropped", "topic", topic, "err", err)
	}
}

func (w *Workflow) Get(ctx context.Context, id string) (entity.Order, error) {
	return w.orders.Get(ctx, id)
}

// List returns the matching orders, newest first.
func (w *Workflow) List(ctx context.Context, f Filter) ([]entity.Order, error) {
	all, err := w.orders.All(ctx)
	if err != nil {
		return nil, err
	}
	orders := lo.Filter(all, func(o entity.Order, _ int) bool { return f.match(o) })
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].OrderDate.After(orders[j].OrderDate)
		}
		return orders[i].ID < orders[j].ID
	})
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. Stock is not given back on cancellation.
func (w *Workflow) UpdateStatus(ctx context.Context, id string, next entity.Status) (entity.Order, error) {
	if _, err := entity.ParseStatus(string(next)); err != nil {
		return entity.Order{}, fmt.Errorf("%w: %w", entity.ErrInvalidTransition, err)
	}
	updated, err := w.transition(ctx, id, next)
	if err != nil {
		return updated, err
	}
	w.logger.InfoContext(ctx, "order status changed", "order", id, "status", next)
	return updated, nil
}

func (w *Workflow) transition(ctx context.Context, id string, next entity.Status) (entity.Order, error) {
	return store.Mutate(ctx, w.orders, id, w.policy, func(o entity.Order) (entity.Order, error) {
		if err := o.Status.To(next); err != nil {
			return o, err
		}
		o.Status = next
		return o, nil
	})
}

func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.orders.Delete(ctx, id)
}

func reference(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %q", ErrReferenceNotFound, kind, id)
	}
	return fmt.Errorf("load %s %q: %w", kind, id, err)
}

func shortage(p entity.Product, qty int) error {
	return fmt.Errorf("%w: %s has %d, %d requested", ErrInsufficientStock, p.ID, p.StockAvailable, qty)
}
