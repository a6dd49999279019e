package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-pos/internal/checkout"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// SalesSource loads persisted sales with their items.
type SalesSource interface {
	SalesBetween(ctx context.Context, storeID uuid.UUID, from, to time.Time) ([]checkout.Sale, error)
}

// CatalogSource provides store settings and live product costs.
type CatalogSource interface {
	Store(ctx context.Context, storeID uuid.UUID) (inventory.Store, error)
	ProductCosts(ctx context.Context, storeID uuid.UUID) (map[uuid.UUID]int64, error)
}

// DaySummary is the aggregate of one calendar day in the store timezone.
type DaySummary struct {
	Date string `json:"date"`
	Summary
}

// Service loads sales and costs and aggregates them.
type Service struct {
	sales   SalesSource
	catalog CatalogSource
}

// NewService builds Service.
func NewService(sales SalesSource, catalog CatalogSource) *Service {
	return &Service{sales: sales, catalog: catalog}
}

type snapshot struct {
	store inventory.Store
	sales []checkout.Sale
	costs map[uuid.UUID]int64
}

func (s *Service) load(ctx context.Context, storeID uuid.UUID, window shared.Window) (snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store, err := s.catalog.Store(ctx, storeID)
		if err != nil {
			return err
		}
		snap.store = store
		return nil
	})
	g.Go(func() error {
		sales, err := s.sales.SalesBetween(ctx, storeID, window.From, window.To)
		if err != nil {
			return err
		}
		snap.sales = sales
		return nil
	})
	g.Go(func() error {
		costs, err := s.catalog.ProductCosts(ctx, storeID)
		if err != nil {
			return err
		}
		snap.costs = costs
		return nil
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("reports: load: %w", err)
	}
	return snap, nil
}

// Period aggregates a store's sales over the window.
func (s *Service) Period(ctx context.Context, storeID uuid.UUID, window shared.Window) (Summary, error) {
	snap, err := s.load(ctx, storeID, window)
	if err != nil {
		return Summary{}, err
	}
	return Aggregate(snap.sales, snap.costs, window.From, window.To), nil
}

// Daily splits the window into calendar days of the store timezone; the
// first and last buckets are clipped to the window.
func (s *Service) Daily(ctx context.Context, storeID uuid.UUID, window shared.Window) ([]DaySummary, error) {
	snap, err := s.load(ctx, storeID, window)
	if err != nil {
		return nil, err
	}
	return bucketDays(snap.sales, snap.costs, window, snap.store.Location()), nil
}

func bucketDays(sales []checkout.Sale, costs map[uuid.UUID]int64, window shared.Window, loc *time.Location) []DaySummary {
	var days []DaySummary
	local := window.From.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	for !dayStart.After(window.To) {
		next := dayStart.AddDate(0, 0, 1)
		from, to := dayStart, next.Add(-time.Nanosecond)
		if from.Before(window.From) {
			from = window.From
		}
		if to.After(window.To) {
			to = window.To
		}
		days = append(days, DaySummary{Date: dayStart.Format("2006-01-02"), Summary: Aggregate(sales, costs, from, to)})
		dayStart = next
	}
	return days
}
