package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventPublisher 销售事件发布端口
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

const (
	TopicOrderCreated = "erp.sale_order.created"
	TopicOrderDeleted = "erp.sale_order.deleted"
)

// OrderCreatedEvent 销售单创建事件
type OrderCreatedEvent struct {
	OrderID    string          `json:"order_id"`
	ConsumerID string          `json:"consumer_id"`
	Price      decimal.Decimal `json:"price"`
	ItemCount  int             `json:"item_count"`
	Timestamp  time.Time       `json:"timestamp"`
}

// OrderDeletedEvent 销售单删除事件
type OrderDeletedEvent struct {
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}
