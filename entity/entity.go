package entity

import "time"

// Categories partition the entity store.
const (
	CustomerCategory = "Customer"
	ProductCategory  = "Product"
	OrderCategory    = "Order"
	AuditCategory    = "Audit"
)

// Entity defines the contract for models kept in the entity store. E is the implementing type
// itself so that WithVersion can return a concrete value.
type Entity[E any] interface {
	Category() string
	Key() string
	Version() string
	WithVersion(v string) E
	WithKey(id string) E
}

var (
	_ Entity[Customer]   = Customer{}
	_ Entity[Product]    = Product{}
	_ Entity[Order]      = Order{}
	_ Entity[AuditEntry] = AuditEntry{}
)

type Customer struct {
	ID              string `json:"customerId"`
	Name            string `json:"name"`
	Surname         string `json:"surname"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	ShippingAddress string `json:"shippingAddress"`
	ETag            string `json:"version,omitempty"`
}

func (c Customer) Category() string { return CustomerCategory }
func (c Customer) Key() string      { return c.ID }
func (c Customer) Version() string  { return c.ETag }

func (c Customer) WithVersion(v string) Customer {
	c.ETag = v
	return c
}

func (c Customer) WithKey(id string) Customer {
	c.ID = id
	return c
}

// Product is a catalog item. Stock is never negative once committed.
type Product struct {
	ID             string `json:"productId"`
	Name           string `json:"productName"`
	Description    string `json:"description"`
	Price          Money  `json:"price"`
	StockAvailable int    `json:"stockAvailable"`
	ImageURL       string `json:"imageUrl,omitempty"`
	ETag           string `json:"version,omitempty"`
}

func (p Product) Category() string { return ProductCategory }
func (p Product) Key() string      { return p.ID }
func (p Product) Version() string  { return p.ETag }

func (p Product) WithVersion(v string) Product {
	p.ETag = v
	return p
}

func (p Product) WithKey(id string) Product {
	p.ID = id
	return p
}

// Order snapshots the customer username, product name and prices at placement time.
type Order struct {
	ID          string    `json:"orderId"`
	CustomerID  string    `json:"customerId"`
	Username    string    `json:"username"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	OrderDate   time.Time `json:"orderDate"`
	Quantity    int       `json:"quantity"`
	UnitPrice   Money     `json:"unitPrice"`
	TotalPrice  Money     `json:"totalPrice"`
	Status      Status    `json:"status"`
	ETag        string    `json:"version,omitempty"`
}

func (o Order) Category() string { return OrderCategory }
func (o Order) Key() string      { return o.ID }
func (o Order) Version() string  { return o.ETag }

func (o Order) WithVersion(v string) Order {
	o.ETag = v
	return o
}

func (o Order) WithKey(id string) Order {
	o.ID = id
	return o
}

// Audit statuses.
const (
	AuditNotificationProcessed = "NotificationProcessed"
	AuditStockUpdateProcessed  = "StockUpdateProcessed"
)

// AuditEntry is an append-only record of a delivered notification.
type AuditEntry struct {
	ID          string `json:"auditId"`
	Topic       string `json:"topic"`
	MessageID   string `json:"messageId"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Attempt     int    `json:"attempt"`
	RecordedAt  string `json:"recordedAt"`
	ETag        string `json:"version,omitempty"`
}

func (a AuditEntry) Category() string { return AuditCategory }
func (a AuditEntry) Key() string      { return a.ID }
func (a AuditEntry) Version() string  { return a.ETag }

func (a AuditEntry) WithVersion(v string) AuditEntry {
	a.ETag = v
	return a
}

func (a AuditEntry) WithKey(id string) AuditEntry {
	a.ID = id
	return a
}
