package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/queue"
)

// Notification is the order-notifications payload.
type Notification struct {
	OrderID    string       `json:"orderId"`
	CustomerID string       `json:"customerId"`
	Username   string       `json:"username"`
	TotalPrice entity.Money `json:"totalPrice"`
	Message    string       `json:"message"`
}

// StockUpdate is the stock-updates payload.
type StockUpdate struct {
	ProductID      string `json:"productId"`
	StockAvailable int    `json:"stockAvailable"`
	Message        string `json:"message"`
}

func NotificationOf(o entity.Order) Notification {
	return Notification{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Username:   o.Username,
		TotalPrice: o.TotalPrice,
		Message:    fmt.Sprintf("New order: %s for %s - Total: %s", o.ID, o.Username, o.TotalPrice),
	}
}

// NewProduct is the stock update announced when a product is created.
func NewProduct(p entity.Product) StockUpdate {
	return StockUpdate{
		ProductID:      p.ID,
		StockAvailable: p.StockAvailable,
		Message:        fmt.Sprintf("New product: %s with stock: %d", p.Name, p.StockAvailable),
	}
}

// StockTaken is the stock update announced after an order decremented stock.
func StockTaken(p entity.Product, o entity.Order) StockUpdate {
	return StockUpdate{
		ProductID:      p.ID,
		StockAvailable: p.StockAvailable,
		Message:        fmt.Sprintf("Order %s took %d of %s, %d left", o.ID, o.Quantity, p.Name, p.StockAvailable),
	}
}

// Publish JSON encodes v onto topic.
func Publish(ctx context.Context, p queue.Producer, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := p.Send(ctx, topic, data); err != nil {
		return fmt.Errorf("send %s: %w", topic, err)
	}
	return nil
}
