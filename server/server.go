// Package server exposes a facade.Service over HTTP on gin, echo or fiber.
//
// Every route lives in one engine-neutral table; the engine files only translate their request
// context into path parameters, query and body, and write the reply back. Replies always use the
// api.Response envelope.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kcmvp/retail/api"
	"github.com/kcmvp/retail/blob"
	"github.com/kcmvp/retail/constraint"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/facade"
	"github.com/kcmvp/retail/order"
	"github.com/kcmvp/retail/store"
	"github.com/kcmvp/retail/view"
	"github.com/samber/lo"
)

// Engines.
const (
	Gin   = "gin"
	Echo  = "echo"
	Fiber = "fiber"
)

// Prefix is where the API is mounted.
const Prefix = "/api"

var errBadRequest = errors.New("bad request")

var (
	customerVO = view.WithFields(
		view.Field[string]("customerId")().Optional(),
		view.Field[string]("name")().Optional(),
		view.Field[string]("surname")().Optional(),
		view.Field[string]("username")(),
		view.Field[string]("email")(),
		view.Field[string]("shippingAddress")().Optional(),
		view.Field[string]("version")().Optional(),
	)
	productVO = view.WithFields(
		view.Field[string]("productId")().Optional(),
		view.Field[string]("productName")(),
		view.Field[string]("description")().Optional(),
		view.Field[string]("price", constraint.Decimal(2))(),
		view.Field[int]("stockAvailable")(),
		view.Field[string]("imageUrl")().Optional(),
		view.Field[string]("version")().Optional(),
	)
	orderVO = view.WithFields(
		view.Field[string]("customerId")(),
		view.Field[string]("productId")(),
		view.Field[int]("quantity")(),
	)
	statusVO = view.WithFields(
		view.Field[string]("status")(),
	)
	uploadVO = view.WithFields(
		view.Field[string]("fileName")(),
		view.Field[string]("data", constraint.Base64())(),
	)
)

type request struct {
	params map[string]string
	body   []byte
	vo     view.ValueObject
}

type reply struct {
	status int
	body   any
}

type endpoint struct {
	method string
	// path is relative to Prefix and uses :name for parameters, which all three engines accept.
	path   string
	schema *view.ViewObject
	handle func(ctx context.Context, r request) reply
}

// Handler serves the endpoints for one Service.
type Handler struct {
	svc    facade.Service
	logger *slog.Logger
}

func NewHandler(svc facade.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: lo.Ternary(logger != nil, logger, slog.Default())}
}

func (h *Handler) endpoints() []endpoint {
	eps := []endpoint{
		{http.MethodGet, "/health", nil, func(context.Context, request) reply {
			return reply{http.StatusOK, api.OK(api.Health{Status: "ok", Version: api.Version}, "healthy")}
		}},
	}
	eps = append(eps, crud(h, "customers", "Customer", customerVO, h.svc.Customers)...)
	eps = append(eps, crud(h, "products", "Product", productVO, h.svc.Products)...)
	return append(eps,
		endpoint{http.MethodGet, "/orders", nil, h.listOrders},
		endpoint{http.MethodGet, "/orders/:id", nil, func(ctx context.Context, r request) reply {
			o, err := h.svc.Orders().Get(ctx, r.params["id"])
			return h.respond(ctx, o, err, http.StatusOK, "Order retrieved successfully")
		}},
		endpoint{http.MethodPost, "/orders", orderVO, h.placeOrder},
		endpoint{http.MethodPatch, "/orders/:id/status", statusVO, func(ctx context.Context, r request) reply {
			status := entity.Status(r.vo.String("status").OrEmpty())
			o, err := h.svc.Orders().UpdateStatus(ctx, r.params["id"], status)
			return h.respond(ctx, o, err, http.StatusOK, fmt.Sprintf("Order status updated to %s", status))
		}},
		endpoint{http.MethodDelete, "/orders/:id", nil, func(ctx context.Context, r request) reply {
			err := h.svc.Orders().Delete(ctx, r.params["id"])
			return h.respond(ctx, nil, err, http.StatusOK, "Order deleted successfully")
		}},
		endpoint{http.MethodPost, "/upload/:container", uploadVO, h.upload},
		endpoint{http.MethodGet, "/audit", nil, func(ctx context.Context, _ request) reply {
			entries, err := h.svc.Audit(ctx)
			return h.respond(ctx, entries, err, http.StatusOK, "Audit entries retrieved successfully")
		}},
	)
}

// crud builds the five collection routes of one entity type.
func crud[E entity.Entity[E]](h *Handler, path, name string, schema *view.ViewObject, col func() facade.Collection[E]) []endpoint {
	base := "/" + path
	decode := func(r request) (E, error) {
		var e E
		if err := json.Unmarshal(r.body, &e); err != nil {
			return e, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		if id, ok := r.params["id"]; ok {
			e = e.WithKey(id)
		}
		return e, nil
	}
	return []endpoint{
		{http.MethodGet, base, nil, func(ctx context.Context, _ request) reply {
			items, err := col().List(ctx)
			return h.respond(ctx, items, err, http.StatusOK, fmt.Sprintf("%ss retrieved successfully", name))
		}},
		{http.MethodGet, base + "/:id", nil, func(ctx context.Context, r request) reply {
			item, err := col().Get(ctx, r.params["id"])
			return h.respond(ctx, item, err, http.StatusOK, fmt.Sprintf("%s retrieved successfully", name))
		}},
		{http.MethodPost, base, schema, func(ctx context.Context, r request) reply {
			e, err := decode(r)
			if err == nil {
				e, err = col().Create(ctx, e)
			}
			return h.respond(ctx, e, err, http.StatusCreated, fmt.Sprintf("%s created successfully", name))
		}},
		{http.MethodPut, base + "/:id", schema, func(ctx context.Context, r request) reply {
			e, err := decode(r)
			if err == nil {
				e, err = col().Update(ctx, e)
			}
			return h.respond(ctx, e, err, http.StatusOK, fmt.Sprintf("%s updated successfully", name))
		}},
		{http.MethodDelete, base + "/:id", nil, func(ctx context.Context, r request) reply {
			err := col().Delete(ctx, r.params["id"])
			return h.respond(ctx, nil, err, http.StatusOK, fmt.Sprintf("%s deleted successfully", name))
		}},
	}
}

func (h *Handler) listOrders(ctx context.Context, r request) reply {
	orders, err := h.svc.Orders().List(ctx, order.Filter{
		CustomerID: r.params["customerId"],
		Status:     entity.Status(r.params["status"]),
	})
	return h.respond(ctx, orders, err, http.StatusOK, "Orders retrieved successfully")
}

// placeOrder answers 202 with the order when it was placed but its stock is pending, and keeps
// the order in the envelope of any failure that produced one.
func (h *Handler) placeOrder(ctx context.Context, r request) reply {
	req := order.Request{
		CustomerID: r.vo.String("customerId").OrEmpty(),
		ProductID:  r.vo.String("productId").OrEmpty(),
		Quantity:   r.vo.Int("quantity").OrEmpty(),
	}
	o, err := h.svc.Orders().Place(ctx, req)
	if err != nil && o.ID != "" {
		h.logFailure(ctx, err)
		return reply{statusOf(err), api.Partial(o, err.Error())}
	}
	return h.respond(ctx, o, err, http.StatusCreated, "Order created successfully")
}

func (h *Handler) upload(ctx context.Context, r request) reply {
	data, err := base64.StdEncoding.DecodeString(r.vo.String("data").OrEmpty())
	if err != nil {
		return h.respond(ctx, nil, fmt.Errorf("%w: %w", errBadRequest, err), 0, "")
	}
	name := r.vo.String("fileName").OrEmpty()
	ref, err := h.svc.Upload(ctx, r.params["container"], name, data)
	if err != nil {
		return h.respond(ctx, nil, err, 0, "")
	}
	return reply{http.StatusCreated, api.OK(&api.Upload{Reference: ref, FileName: name}, "File uploaded successfully")}
}

// respond wraps data in a success envelope, or err in a failure envelope with null data.
func (h *Handler) respond(ctx context.Context, data any, err error, status int, message string) reply {
	if err == nil {
		return reply{status, api.OK(data, message)}
	}
	h.logFailure(ctx, err)
	return reply{statusOf(err), api.Fail[any](err.Error())}
}

func (h *Handler) logFailure(ctx context.Context, err error) {
	if statusOf(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", "err", err)
		return
	}
	h.logger.InfoContext(ctx, "request rejected", "err", err)
}

// serve validates the request against the endpoint schema and runs it.
func (h *Handler) serve(ctx context.Context, ep endpoint, path map[string]string, query map[string][]string, body []byte) reply {
	params, err := unify(path, query)
	if err != nil {
		return reply{http.StatusBadRequest, api.Fail[any](err.Error())}
	}
	r := request{params: params, body: body}
	if ep.schema != nil {
		rs := ep.schema.Validate(string(body))
		if rs.IsError() {
			h.logger.InfoContext(ctx, "request rejected", "method", ep.method, "path", ep.path, "err", rs.Error())
			return reply{http.StatusBadRequest, api.Fail[any](rs.Error().Error())}
		}
		r.vo = rs.MustGet()
	}
	return ep.handle(ctx, r)
}

var (
	notFound   = []error{store.ErrNotFound, order.ErrReferenceNotFound, blob.ErrNotFound}
	conflict   = []error{store.ErrAlreadyExists, store.ErrVersionConflict, order.ErrInsufficientStock, entity.ErrInvalidTransition}
	badRequest = []error{errBadRequest, view.ErrInvalid, entity.ErrInvalid, entity.ErrInvalidMoney, order.ErrInvalidQuantity,
		blob.ErrUnknownContainer, blob.ErrInvalidName, blob.ErrEmpty}
)

func statusOf(err error) int {
	is := func(target error) bool { return errors.Is(err, target) }
	var pending *order.PendingError
	switch {
	case errors.As(err, &pending):
		return http.StatusAccepted
	case lo.ContainsBy(notFound, is):
		return http.StatusNotFound
	case lo.ContainsBy(conflict, is):
		return http.StatusConflict
	case lo.ContainsBy(badRequest, is):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
