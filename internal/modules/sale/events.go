package sale

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// SaleRecordedEvent is published after a sale commits.
type SaleRecordedEvent struct {
	SaleID     int64           `json:"sale_id"`
	StoreID    int64           `json:"store_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Remaining  int             `json:"remaining_stock"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// LowStockEvent is published when a sale leaves stock at or under the threshold.
type LowStockEvent struct {
	StoreID    int64     `json:"store_id"`
	ProductID  int64     `json:"product_id"`
	Remaining  int       `json:"remaining_stock"`
	Threshold  int       `json:"threshold"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher announces committed sales. Errors never undo a sale.
type Publisher interface {
	SaleRecorded(ctx context.Context, e SaleRecordedEvent) error
	LowStock(ctx context.Context, e LowStockEvent) error
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaPublisher struct {
	writer         MessageWriter
	salesTopic     string
	inventoryTopic string
}

// NewKafkaPublisher writes events keyed by product id so each product's
// events stay ordered within a partition.
func NewKafkaPublisher(w MessageWriter, salesTopic, inventoryTopic string) Publisher {
	return &kafkaPublisher{writer: w, salesTopic: salesTopic, inventoryTopic: inventoryTopic}
}

// NewKafkaWriter builds a writer that takes the topic from each message.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func (p *kafkaPublisher) SaleRecorded(ctx context.Context, e SaleRecordedEvent) error {
	return p.write(ctx, p.salesTopic, e.ProductID, e)
}

func (p *kafkaPublisher) LowStock(ctx context.Context, e LowStockEvent) error {
	return p.write(ctx, p.inventoryTopic, e.ProductID, e)
}

func (p *kafkaPublisher) write(ctx context.Context, topic string, productID int64, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(productID, 10)),
		Value: payload,
	})
	return errors.Wrapf(err, "publish to %s", topic)
}

type noopPublisher struct{}

// NoopPublisher drops every event. It is used when no brokers are configured.
func NoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) SaleRecorded(context.Context, SaleRecordedEvent) error { return nil }
func (noopPublisher) LowStock(context.Context, LowStockEvent) error         { return nil }
