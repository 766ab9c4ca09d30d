package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kcmvp/retail/api"
	"github.com/kcmvp/retail/app"
	"github.com/kcmvp/retail/blob"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/facade"
	"github.com/kcmvp/retail/order"
	"github.com/kcmvp/retail/queue"
	"github.com/kcmvp/retail/store"
	"github.com/kcmvp/retail/view"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
)

// conflicting makes every product update lose against a concurrent writer while on is set.
type conflicting struct {
	store.Store
	on bool
}

func (c *conflicting) Update(ctx context.Context, rec store.Record) (store.Record, error) {
	if c.on && rec.Category == entity.ProductCategory {
		return store.Record{}, fmt.Errorf("%s %s: %w", rec.Category, rec.ID, store.ErrVersionConflict)
	}
	return c.Store.Update(ctx, rec)
}

type ServerTestSuite struct {
	suite.Suite
	engine  string
	store   *conflicting
	queue   *queue.Memory
	handler http.Handler
}

func (s *ServerTestSuite) SetupTest() {
	s.store = &conflicting{Store: store.NewMemory()}
	s.queue = queue.NewMemory(1, app.Discard())
	wf := order.New(s.store, s.queue,
		order.WithRetry(store.RetryPolicy{Retries: 1, Backoff: time.Millisecond}), order.WithLogger(app.Discard()))
	svc := facade.NewLocal(s.store, wf, s.queue, blob.NewFS(afero.NewMemMapFs(), ""), app.Discard())
	h, err := HTTPHandler(s.engine, NewHandler(svc, app.Discard()))
	s.Require().NoError(err)
	s.handler = h
}

func (s *ServerTestSuite) TearDownTest() {
	s.Require().NoError(s.queue.Close())
}

func TestServer(t *testing.T) {
	for _, engine := range []string{Gin, Echo, Fiber} {
		t.Run(engine, func(t *testing.T) {
			suite.Run(t, &ServerTestSuite{engine: engine})
		})
	}
}

func (s *ServerTestSuite) do(method, path, body string) (int, gjson.Result) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, Prefix+path, nil)
	} else {
		req = httptest.NewRequest(method, Prefix+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	raw := rec.Body.String()
	s.Require().True(gjson.Valid(raw), "%s %s: %s", method, path, raw)
	env := gjson.Parse(raw)
	s.Require().True(env.Get("success").Exists(), raw)
	return rec.Code, env
}

func (s *ServerTestSuite) seed() {
	code, _ := s.do(http.MethodPost, "/customers",
		`{"customerId":"C1","name":"Ada","surname":"Lovelace","username":"ada","email":"ada@example.com","shippingAddress":"1 Analytical St"}`)
	s.Require().Equal(http.StatusCreated, code)
	code, _ = s.do(http.MethodPost, "/products",
		`{"productId":"P1","productName":"Widget","description":"A widget","price":"10.00","stockAvailable":5}`)
	s.Require().Equal(http.StatusCreated, code)
}

func (s *ServerTestSuite) TestHealth() {
	req := httptest.NewRequest(http.MethodGet, Prefix+"/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(api.Version, rec.Header().Get(api.VersionHeader))
	env := gjson.Parse(rec.Body.String())
	s.True(env.Get("success").Bool())
	s.Equal(api.Version, env.Get("data.version").String())
}

func (s *ServerTestSuite) TestUnknownRoute() {
	code, env := s.do(http.MethodGet, "/nothing", "")
	s.Equal(http.StatusNotFound, code)
	s.False(env.Get("success").Bool())
}

func (s *ServerTestSuite) TestCustomers() {
	s.seed()
	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		code    int
		success bool
		check   func(env gjson.Result)
	}{
		{"list", http.MethodGet, "/customers", "", http.StatusOK, true, func(env gjson.Result) {
			s.Equal(int64(1), env.Get("data.#").Int())
			s.Equal("ada", env.Get("data.0.username").String())
		}},
		{"get", http.MethodGet, "/customers/C1", "", http.StatusOK, true, func(env gjson.Result) {
			s.Equal("Lovelace", env.Get("data.surname").String())
			s.NotEmpty(env.Get("data.version").String())
		}},
		{"get missing", http.MethodGet, "/customers/C9", "", http.StatusNotFound, false, func(env gjson.Result) {
			s.Equal(gjson.Null, env.Get("data").Type)
			s.Contains(env.Get("message").String(), store.ErrNotFound.Error())
		}},
		{"duplicate", http.MethodPost, "/customers", `{"customerId":"C1","username":"x","email":"x@example.com"}`, http.StatusConflict, false, nil},
		{"generated id", http.MethodPost, "/customers", `{"username":"bob","email":"bob@example.com"}`, http.StatusCreated, true, func(env gjson.Result) {
			s.Len(env.Get("data.customerId").String(), 36)
		}},
		{"missing username", http.MethodPost, "/customers", `{"email":"x@example.com"}`, http.StatusBadRequest, false, func(env gjson.Result) {
			s.Contains(env.Get("message").String(), view.ErrInvalid.Error())
		}},
		{"bad email", http.MethodPost, "/customers", `{"username":"x","email":"nope"}`, http.StatusBadRequest, false, func(env gjson.Result) {
			s.Contains(env.Get("message").String(), entity.ErrInvalid.Error())
		}},
		{"unknown field", http.MethodPost, "/customers", `{"username":"x","email":"x@example.com","admin":true}`, http.StatusBadRequest, false, nil},
		{"not json", http.MethodPost, "/customers", `username=x`, http.StatusBadRequest, false, nil},
		{"update without version", http.MethodPut, "/customers/C1", `{"username":"ada2","email":"ada@example.com"}`, http.StatusConflict, false, func(env gjson.Result) {
			s.Contains(env.Get("message").String(), store.ErrVersionConflict.Error())
		}},
		{"stale update", http.MethodPut, "/customers/C1", `{"username":"ada3","email":"ada@example.com","version":"stale"}`, http.StatusConflict, false, nil},
		{"update missing", http.MethodPut, "/customers/C9", `{"username":"x","email":"x@example.com"}`, http.StatusNotFound, false, nil},
		{"delete", http.MethodDelete, "/customers/C1", "", http.StatusOK, true, nil},
		{"delete again", http.MethodDelete, "/customers/C1", "", http.StatusNotFound, false, nil},
	}
	for _, test := range tests {
		code, env := s.do(test.method, test.path, test.body)
		s.Equal(test.code, code, test.name)
		s.Equal(test.success, env.Get("success").Bool(), test.name)
		if test.check != nil {
			test.check(env)
		}
	}
}

func (s *ServerTestSuite) TestVersionedUpdate() {
	s.seed()
	_, env := s.do(http.MethodGet, "/customers/C1", "")
	version := env.Get("data.version").String()
	code, env := s.do(http.MethodPut, "/customers/C1",
		fmt.Sprintf(`{"username":"ada2","email":"ada@example.com","version":%q}`, version))
	s.Equal(http.StatusOK, code)
	s.Equal("C1", env.Get("data.customerId").String())
	s.Equal("ada2", env.Get("data.username").String())
	s.NotEqual(version, env.Get("data.version").String())

	code, _ = s.do(http.MethodPut, "/customers/C1",
		fmt.Sprintf(`{"username":"ada3","email":"ada@example.com","version":%q}`, version))
	s.Equal(http.StatusConflict, code)
}

// TestUpdateKeepsOrderedStock edits a product from a read taken before an order was placed.
func (s *ServerTestSuite) TestUpdateKeepsOrderedStock() {
	s.seed()
	_, before := s.do(http.MethodGet, "/products/P1", "")
	s.Equal(int64(5), before.Get("data.stockAvailable").Int())
	code, _ := s.do(http.MethodPost, "/orders", `{"customerId":"C1","productId":"P1","quantity":3}`)
	s.Require().Equal(http.StatusCreated, code)

	blind := `{"productName":"Widget","description":"A widget","price":"12.00","stockAvailable":5}`
	code, env := s.do(http.MethodPut, "/products/P1", blind)
	s.Equal(http.StatusConflict, code)
	s.False(env.Get("success").Bool())

	stale := fmt.Sprintf(`{"productName":"Widget","description":"A widget","price":"12.00","stockAvailable":5,"version":%q}`,
		before.Get("data.version").String())
	code, _ = s.do(http.MethodPut, "/products/P1", stale)
	s.Equal(http.StatusConflict, code)

	_, after := s.do(http.MethodGet, "/products/P1", "")
	s.Equal(int64(2), after.Get("data.stockAvailable").Int())
	s.Equal("10.00", after.Get("data.price").String())
}

func (s *ServerTestSuite) TestProducts() {
	s.seed()
	code, env := s.do(http.MethodGet, "/products/P1", "")
	s.Equal(http.StatusOK, code)
	s.Equal("10.00", env.Get("data.price").String())
	s.Equal(gjson.String, env.Get("data.price").Type)
	s.Equal(1, s.queue.Len(queue.StockUpdates))

	code, _ = s.do(http.MethodPost, "/products", `{"productName":"Gadget","price":"1.234","stockAvailable":1}`)
	s.Equal(http.StatusBadRequest, code)
	code, _ = s.do(http.MethodPost, "/products", `{"productName":"Gadget","price":"1.00","stockAvailable":-1}`)
	s.Equal(http.StatusBadRequest, code)
	code, _ = s.do(http.MethodPost, "/products", `{"productName":"Gadget","price":"1.00","stockAvailable":"many"}`)
	s.Equal(http.StatusBadRequest, code)
}

func (s *ServerTestSuite) TestOrders() {
	s.seed()
	code, env := s.do(http.MethodPost, "/orders", `{"customerId":"C1","productId":"P1","quantity":3}`)
	s.Require().Equal(http.StatusCreated, code)
	id := env.Get("data.orderId").String()
	s.Equal("30.00", env.Get("data.totalPrice").String())
	s.Equal("Submitted", env.Get("data.status").String())
	s.Equal("ada", env.Get("data.username").String())

	_, env = s.do(http.MethodGet, "/products/P1", "")
	s.Equal(int64(2), env.Get("data.stockAvailable").Int())

	rejected := []struct {
		body string
		code int
	}{
		{`{"customerId":"C1","productId":"P1","quantity":5}`, http.StatusConflict},
		{`{"customerId":"C9","productId":"P1","quantity":1}`, http.StatusNotFound},
		{`{"customerId":"C1","productId":"P1","quantity":0}`, http.StatusBadRequest},
		{`{"customerId":"C1","productId":"P1"}`, http.StatusBadRequest},
		{`{"customerId":"C1","productId":"P1","quantity":"two"}`, http.StatusBadRequest},
	}
	for _, r := range rejected {
		code, env := s.do(http.MethodPost, "/orders", r.body)
		s.Equal(r.code, code, r.body)
		s.False(env.Get("success").Bool())
		s.Equal(gjson.Null, env.Get("data").Type, r.body)
	}

	code, env = s.do(http.MethodGet, "/orders/"+id, "")
	s.Equal(http.StatusOK, code)
	s.Equal(int64(3), env.Get("data.quantity").Int())

	code, env = s.do(http.MethodPatch, "/orders/"+id+"/status", `{"status":"Processing"}`)
	s.Equal(http.StatusOK, code)
	s.Equal("Processing", env.Get("data.status").String())
	code, _ = s.do(http.MethodPatch, "/orders/"+id+"/status", `{"status":"Submitted"}`)
	s.Equal(http.StatusConflict, code)
	code, _ = s.do(http.MethodPatch, "/orders/"+id+"/status", `{"status":"Lost"}`)
	s.Equal(http.StatusConflict, code)

	_, env = s.do(http.MethodGet, "/orders?customerId=C1", "")
	s.Equal(int64(1), env.Get("data.#").Int())
	_, env = s.do(http.MethodGet, "/orders?status=Cancelled", "")
	s.Equal(int64(0), env.Get("data.#").Int())

	code, _ = s.do(http.MethodDelete, "/orders/"+id, "")
	s.Equal(http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/orders/"+id, "")
	s.Equal(http.StatusNotFound, code)
}

func (s *ServerTestSuite) TestOrderPending() {
	s.seed()
	s.store.on = true
	code, env := s.do(http.MethodPost, "/orders", `{"customerId":"C1","productId":"P1","quantity":1}`)
	s.Equal(http.StatusAccepted, code)
	s.False(env.Get("success").Bool())
	s.True(strings.HasPrefix(env.Get("message").String(), "order placed, inventory pending: "), env.Get("message").String())
	s.NotEmpty(env.Get("data.orderId").String())
	s.Equal("Submitted", env.Get("data.status").String())
}

func (s *ServerTestSuite) TestUpload() {
	code, env := s.do(http.MethodPost, "/upload/payment-proofs", `{"fileName":"receipt.pdf","data":"JVBERi0xLjQ="}`)
	s.Equal(http.StatusCreated, code)
	s.True(strings.HasPrefix(env.Get("data.reference").String(), "payment-proofs/"))
	s.Equal("receipt.pdf", env.Get("data.fileName").String())

	code, _ = s.do(http.MethodPost, "/upload/secrets", `{"fileName":"a.txt","data":"YQ=="}`)
	s.Equal(http.StatusBadRequest, code)
	code, _ = s.do(http.MethodPost, "/upload/product-images", `{"fileName":"a.png","data":"%%%"}`)
	s.Equal(http.StatusBadRequest, code)
	code, _ = s.do(http.MethodPost, "/upload/product-images", `{"fileName":"a.png","data":""}`)
	s.Equal(http.StatusBadRequest, code)
}

func (s *ServerTestSuite) TestAudit() {
	code, env := s.do(http.MethodGet, "/audit", "")
	s.Equal(http.StatusOK, code)
	s.True(env.Get("data").IsArray())
	s.Equal(int64(0), env.Get("data.#").Int())
}

func TestUnify(t *testing.T) {
	params, err := unify(map[string]string{"id": "1"}, map[string][]string{"status": {"a", "b"}, "empty": {}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "1", "status": "a"}, params)

	_, err = unify(map[string]string{"id": "1"}, map[string][]string{"id": {"2"}})
	assert.ErrorIs(t, err, errBadRequest)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", store.ErrNotFound), http.StatusNotFound},
		{order.ErrReferenceNotFound, http.StatusNotFound},
		{store.ErrVersionConflict, http.StatusConflict},
		{order.ErrInsufficientStock, http.StatusConflict},
		{entity.ErrInvalidTransition, http.StatusConflict},
		{order.ErrInvalidQuantity, http.StatusBadRequest},
		{blob.ErrUnknownContainer, http.StatusBadRequest},
		{&order.PendingError{Err: order.ErrStockUpdateFailed}, http.StatusAccepted},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, statusOf(test.err), test.err.Error())
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := HTTPHandler("martini", NewHandler(nil, nil))
	assert.Error(t, err)
}
