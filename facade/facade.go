// Package facade is the single entry point callers use, served either in-process (Local) or over
// HTTP (Remote). The two are interchangeable: the same calls produce the same data and the same
// error kinds. Which one is used is decided once at start up.
package facade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kcmvp/retail/blob"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/order"
	"github.com/kcmvp/retail/store"
	"github.com/kcmvp/retail/view"
)

// Collection is CRUD over one entity type.
type Collection[E any] interface {
	List(ctx context.Context) ([]E, error)
	Get(ctx context.Context, id string) (E, error)
	// Create assigns an id when the entity has none.
	Create(ctx context.Context, e E) (E, error)
	// Update is guarded by the entity version. A missing version never matches the stored one.
	Update(ctx context.Context, e E) (E, error)
	Delete(ctx context.Context, id string) error
}

type Orders interface {
	List(ctx context.Context, f order.Filter) ([]entity.Order, error)
	Get(ctx context.Context, id string) (entity.Order, error)
	Place(ctx context.Context, req order.Request) (entity.Order, error)
	UpdateStatus(ctx context.Context, id string, status entity.Status) (entity.Order, error)
	Delete(ctx context.Context, id string) error
}

type Service interface {
	Customers() Collection[entity.Customer]
	Products() Collection[entity.Product]
	Orders() Orders
	// Audit lists the audit ledger, oldest first.
	Audit(ctx context.Context) ([]entity.AuditEntry, error)
	// Upload stores a file in a blob container and returns its reference.
	Upload(ctx context.Context, container, name string, data []byte) (string, error)
}

var (
	ErrTransport    = errors.New("transport failure")
	ErrIncompatible = errors.New("incompatible api version")
)

// kinds are the domain errors a failure envelope can name.
var kinds = []error{
	store.ErrNotFound,
	store.ErrAlreadyExists,
	store.ErrVersionConflict,
	order.ErrInvalidQuantity,
	order.ErrReferenceNotFound,
	order.ErrInsufficientStock,
	order.ErrStockUpdateFailed,
	entity.ErrInvalid,
	entity.ErrInvalidMoney,
	entity.ErrInvalidTransition,
	view.ErrInvalid,
	blob.ErrUnknownContainer,
	blob.ErrInvalidName,
	blob.ErrEmpty,
	blob.ErrNotFound,
}

// TransportError is a failed remote call. Its text is the message of the failure envelope, and
// it matches ErrTransport as well as every domain error named in that message.
type TransportError struct {
	StatusCode int
	Message    string
	Kinds      []error
	Err        error
}

func newTransportError(status int, message string, err error) *TransportError {
	te := &TransportError{StatusCode: status, Message: message, Err: err}
	for _, k := range kinds {
		if strings.Contains(message, k.Error()) {
			te.Kinds = append(te.Kinds, k)
		}
	}
	return te
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
	default:
		return fmt.Sprintf("%s: status %d", ErrTransport, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() []error {
	errs := append([]error{ErrTransport}, e.Kinds...)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
