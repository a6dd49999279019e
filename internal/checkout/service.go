package checkout

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// SaleReader reads persisted sales.
type SaleReader interface {
	GetSale(ctx context.Context, storeID, saleID uuid.UUID) (Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]Sale, int, error)
}

// Service exposes checkout and sale queries to the HTTP layer.
type Service struct {
	coordinator *Coordinator
	reader      SaleReader
}

// NewService builds Service.
func NewService(coordinator *Coordinator, reader SaleReader) *Service {
	return &Service{coordinator: coordinator, reader: reader}
}

// Checkout delegates to the coordinator.
func (s *Service) Checkout(ctx context.Context, req Request) (*Sale, error) {
	return s.coordinator.Checkout(ctx, req)
}

// Quote prices a cart without persisting it.
func (s *Service) Quote(ctx context.Context, storeID uuid.UUID, items []cart.Item) (Quote, error) {
	return s.coordinator.Quote(ctx, storeID, items)
}

// GetSale returns a hydrated sale.
func (s *Service) GetSale(ctx context.Context, storeID, saleID uuid.UUID) (Sale, error) {
	return s.reader.GetSale(ctx, storeID, saleID)
}

// ListSales returns a page of sales with pagination metadata.
func (s *Service) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, shared.Pagination, error) {
	if filter.PaymentMethod != "" && !filter.PaymentMethod.Valid() {
		return nil, shared.Pagination{}, ErrInvalidPaymentMethod
	}
	sales, total, err := s.reader.ListSales(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return sales, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}
