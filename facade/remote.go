package facade

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kcmvp/retail/api"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/order"
	"golang.org/x/mod/semver"
)

const pendingPrefix = "order placed, inventory pending: "

// Remote calls the HTTP API served by package server.
type Remote struct {
	base   *url.URL
	client *http.Client
}

var _ Service = (*Remote)(nil)

// NewRemote targets the API rooted at baseURL, e.g. http://localhost:8080/api/.
func NewRemote(baseURL string, timeout time.Duration) (*Remote, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	return &Remote{base: u, client: &http.Client{Timeout: timeout}}, nil
}

// WithClient replaces the HTTP client; tests pass the client of an httptest server.
func (r *Remote) WithClient(c *http.Client) *Remote {
	r.client = c
	return r
}

// Check makes sure the server speaks the same major API version.
func (r *Remote) Check(ctx context.Context) error {
	h, err := call[api.Health](ctx, r, http.MethodGet, "health", nil, nil)
	if err != nil {
		return err
	}
	if !semver.IsValid(h.Version) {
		return fmt.Errorf("%w: server reports %q", ErrIncompatible, h.Version)
	}
	if semver.Major(h.Version) != semver.Major(api.Version) {
		return fmt.Errorf("%w: server %s, client %s", ErrIncompatible, h.Version, api.Version)
	}
	return nil
}

// call sends body as JSON and decodes the envelope. Data is returned even on failure.
func call[T any](ctx context.Context, r *Remote, method, path string, query url.Values, body any) (T, error) {
	var zero T
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	u := r.base.JoinPath(strings.Split(path, "/")...)
	u.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return zero, newTransportError(0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return zero, newTransportError(0, "", err)
	}
	defer resp.Body.Close()

	var env api.Response[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, newTransportError(resp.StatusCode, "", fmt.Errorf("decode %s %s: %w", method, u.Path, err))
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		env.Success = false
	}
	if !env.Success && env.Message == "" {
		env.Message = http.StatusText(resp.StatusCode)
	}
	data, err := env.Result().Get()
	if err != nil {
		return env.Data, newTransportError(resp.StatusCode, err.Error(), nil)
	}
	return data, nil
}

type remoteCollection[E entity.Entity[E]] struct {
	r    *Remote
	path string
}

func (c remoteCollection[E]) List(ctx context.Context) ([]E, error) {
	items, err := call[[]E](ctx, c.r, http.MethodGet, c.path, nil, nil)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []E{}
	}
	return items, nil
}

func (c remoteCollection[E]) Get(ctx context.Context, id string) (E, error) {
	return call[E](ctx, c.r, http.MethodGet, c.path+"/"+url.PathEscape(id), nil, nil)
}

func (c remoteCollection[E]) Create(ctx context.Context, e E) (E, error) {
	return call[E](ctx, c.r, http.MethodPost, c.path, nil, e)
}

func (c remoteCollection[E]) Update(ctx context.Context, e E) (E, error) {
	return call[E](ctx, c.r, http.MethodPut, c.path+"/"+url.PathEscape(e.Key()), nil, e)
}

func (c remoteCollection[E]) Delete(ctx context.Context, id string) error {
	_, err := call[json.RawMessage](ctx, c.r, http.MethodDelete, c.path+"/"+url.PathEscape(id), nil, nil)
	return err
}

func (r *Remote) Customers() Collection[entity.Customer] {
	return remoteCollection[entity.Customer]{r: r, path: "customers"}
}

func (r *Remote) Products() Collection[entity.Product] {
	return remoteCollection[entity.Product]{r: r, path: "products"}
}

func (r *Remote) Orders() Orders {
	return remoteOrders{r: r}
}

type remoteOrders struct {
	r *Remote
}

func (o remoteOrders) List(ctx context.Context, f order.Filter) ([]entity.Order, error) {
	q := url.Values{}
	if f.CustomerID != "" {
		q.Set("customerId", f.CustomerID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	orders, err := call[[]entity.Order](ctx, o.r, http.MethodGet, "orders", q, nil)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []entity.Order{}
	}
	return orders, nil
}

func (o remoteOrders) Get(ctx context.Context, id string) (entity.Order, error) {
	return call[entity.Order](ctx, o.r, http.MethodGet, "orders/"+url.PathEscape(id), nil, nil)
}

// Place turns an accepted-but-pending reply back into an *order.PendingError.
func (o remoteOrders) Place(ctx context.Context, req order.Request) (entity.Order, error) {
	placed, err := call[entity.Order](ctx, o.r, http.MethodPost, "orders", nil, req)
	var te *TransportError
	if errors.As(err, &te) && te.StatusCode == http.StatusAccepted {
		te.Message = strings.TrimPrefix(te.Message, pendingPrefix)
		return placed, &order.PendingError{Order: placed, Err: te}
	}
	return placed, err
}

func (o remoteOrders) UpdateStatus(ctx context.Context, id string, status entity.Status) (entity.Order, error) {
	return call[entity.Order](ctx, o.r, http.MethodPatch, "orders/"+url.PathEscape(id)+"/status", nil,
		api.StatusRequest{Status: string(status)})
}

func (o remoteOrders) Delete(ctx context.Context, id string) error {
	_, err := call[json.RawMessage](ctx, o.r, http.MethodDelete, "orders/"+url.PathEscape(id), nil, nil)
	return err
}

func (r *Remote) Audit(ctx context.Context) ([]entity.AuditEntry, error) {
	entries, err := call[[]entity.AuditEntry](ctx, r, http.MethodGet, "audit", nil, nil)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []entity.AuditEntry{}
	}
	return entries, nil
}

func (r *Remote) Upload(ctx context.Context, container, name string, data []byte) (string, error) {
	up, err := call[api.Upload](ctx, r, http.MethodPost, "upload/"+url.PathEscape(container), nil, api.UploadRequest{
		FileName: name,
		Data:     base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", err
	}
	return up.Reference, nil
}
