package checkout

import (
	"context"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/events"
)

// EventSaleCompleted is published once per committed sale.
const EventSaleCompleted = "pos.sale.completed"

// SaleEvents publishes sale events through the shared Kafka publisher.
type SaleEvents struct {
	publisher *events.Publisher
}

// NewSaleEvents wraps publisher.
func NewSaleEvents(publisher *events.Publisher) *SaleEvents {
	return &SaleEvents{publisher: publisher}
}

// PublishSaleCompleted keys the message by store so a store's sales stay ordered.
func (e *SaleEvents) PublishSaleCompleted(ctx context.Context, sale Sale) error {
	if e == nil {
		return nil
	}
	return e.publisher.Publish(ctx, EventSaleCompleted, sale.StoreID.String(), sale)
}
