package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jcmexdev/orderledger/internal/store"
)

// ExchangeName is the topic exchange committed sale records are mirrored to.
const ExchangeName = "sales.history"

// saleMessage is the wire shape of a mirrored ledger record.
type saleMessage struct {
	ID          string `json:"id"`
	OrderLineID string `json:"order_line_id"`
	OrderID     string `json:"order_id"`
	CustomerID  string `json:"customer_id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalAmount string `json:"total_amount"`
	OrderDate   string `json:"order_date"`
}

// AMQPPublisher mirrors appended sale-history records to RabbitMQ so
// downstream consumers (reconciliation dashboards, exports) can follow the
// ledger without polling the database. The database row is the source of
// truth; this mirror is best-effort.
type AMQPPublisher struct {
	ch *amqp.Channel
}

// NewAMQPPublisher opens a channel on conn and declares the topic exchange.
func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("projection: open amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("projection: declare exchange %q: %w", ExchangeName, err)
	}

	return &AMQPPublisher{ch: ch}, nil
}

// PublishSale publishes one record with routing key "sale.<product_id>".
func (p *AMQPPublisher) PublishSale(ctx context.Context, r *store.SaleHistoryRecord) error {
	body, err := json.Marshal(saleMessage{
		ID:          r.ID,
		OrderLineID: r.OrderLineID,
		OrderID:     r.OrderID,
		CustomerID:  r.CustomerID,
		ProductID:   r.ProductID,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice.StringFixed(2),
		TotalAmount: r.TotalAmount.StringFixed(2),
		OrderDate:   r.OrderDate.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("projection: marshal sale %q: %w", r.ID, err)
	}

	routingKey := fmt.Sprintf("sale.%s", r.ProductID)

	return p.ch.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Close releases the channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}
