// Package report computes read-only views over the active inventory. Nothing
// here is cached; every call reads the record store afresh.
package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/vbonduro/invtrack/internal/domain"
)

// DefaultLowStockThreshold is used when callers do not supply one.
const DefaultLowStockThreshold = 10

// itemReader is the subset of store.ItemStore the aggregator reads from.
type itemReader interface {
	GetAll(ctx context.Context) ([]*domain.Item, error)
	ListCreatedBetween(ctx context.Context, start, end time.Time) ([]*domain.Item, error)
}

type InventorySummary struct {
	TotalItems    int
	TotalQuantity int
	TotalValue    decimal.Decimal
	CategoryCount int
	LocationCount int
}

type CategorySummary struct {
	Category      string
	ItemCount     int
	TotalQuantity int
	TotalValue    decimal.Decimal
	AveragePrice  decimal.Decimal
}

type LocationSummary struct {
	Location      string
	ItemCount     int
	TotalQuantity int
	TotalValue    decimal.Decimal
}

type LowStockItem struct {
	ID       int64
	Name     string
	SKU      string
	Quantity int
	Price    decimal.Decimal
	Category string
	Location string
}

type Aggregator struct {
	items itemReader
}

func NewAggregator(items itemReader) *Aggregator {
	return &Aggregator{items: items}
}

func (a *Aggregator) InventorySummary(ctx context.Context) (*InventorySummary, error) {
	items, err := a.items.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	categories := map[string]struct{}{}
	locations := map[string]struct{}{}
	summary := &InventorySummary{TotalValue: decimal.Zero}
	for _, item := range items {
		summary.TotalItems++
		summary.TotalQuantity += item.Quantity
		summary.TotalValue = summary.TotalValue.Add(item.Value())
		if item.Category != "" {
			categories[item.Category] = struct{}{}
		}
		if item.Location != "" {
			locations[item.Location] = struct{}{}
		}
	}
	summary.CategoryCount = len(categories)
	summary.LocationCount = len(locations)
	return summary, nil
}

// CategorySummaries groups active items by category, highest total value first.
func (a *Aggregator) CategorySummaries(ctx context.Context) ([]CategorySummary, error) {
	items, err := a.items.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	index := map[string]int{}
	var out []CategorySummary
	priceSums := map[string]decimal.Decimal{}
	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			i = len(out)
			index[item.Category] = i
			out = append(out, CategorySummary{Category: item.Category, TotalValue: decimal.Zero})
		}
		out[i].ItemCount++
		out[i].TotalQuantity += item.Quantity
		out[i].TotalValue = out[i].TotalValue.Add(item.Value())
		priceSums[item.Category] = priceSums[item.Category].Add(item.Price)
	}
	for i := range out {
		out[i].AveragePrice = priceSums[out[i].Category].Div(decimal.NewFromInt(int64(out[i].ItemCount)))
	}

	slices.SortStableFunc(out, func(x, y CategorySummary) int {
		if c := y.TotalValue.Cmp(x.TotalValue); c != 0 {
			return c
		}
		return cmp.Compare(x.Category, y.Category)
	})
	return out, nil
}

// LocationSummaries groups active items by location, highest total value first.
func (a *Aggregator) LocationSummaries(ctx context.Context) ([]LocationSummary, error) {
	items, err := a.items.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	index := map[string]int{}
	var out []LocationSummary
	for _, item := range items {
		i, ok := index[item.Location]
		if !ok {
			i = len(out)
			index[item.Location] = i
			out = append(out, LocationSummary{Location: item.Location, TotalValue: decimal.Zero})
		}
		out[i].ItemCount++
		out[i].TotalQuantity += item.Quantity
		out[i].TotalValue = out[i].TotalValue.Add(item.Value())
	}

	slices.SortStableFunc(out, func(x, y LocationSummary) int {
		if c := y.TotalValue.Cmp(x.TotalValue); c != 0 {
			return c
		}
		return cmp.Compare(x.Location, y.Location)
	})
	return out, nil
}

// LowStockItems returns active items with quantity <= threshold, lowest first.
func (a *Aggregator) LowStockItems(ctx context.Context, threshold int) ([]LowStockItem, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold must not be negative", domain.ErrValidation)
	}
	items, err := a.items.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	var out []LowStockItem
	for _, item := range items {
		if item.Quantity > threshold {
			continue
		}
		out = append(out, LowStockItem{
			ID:       item.ID,
			Name:     item.Name,
			SKU:      item.SKU,
			Quantity: item.Quantity,
			Price:    item.Price,
			Category: item.Category,
			Location: item.Location,
		})
	}
	// Stable: equal quantities keep the store's name order.
	slices.SortStableFunc(out, func(x, y LowStockItem) int {
		return cmp.Compare(x.Quantity, y.Quantity)
	})
	return out, nil
}

// SearchItems matches term case-insensitively against name, description,
// SKU, category and location. Results keep the store's name order.
func (a *Aggregator) SearchItems(ctx context.Context, term string) ([]*domain.Item, error) {
	items, err := a.items.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))
	if needle == "" {
		return items, nil
	}

	var out []*domain.Item
	for _, item := range items {
		for _, field := range []string{item.Name, item.Description, item.SKU, item.Category, item.Location} {
			if strings.Contains(fold.String(field), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out, nil
}

// ItemsCreatedInPeriod returns active items created in [start, end], newest first.
func (a *Aggregator) ItemsCreatedInPeriod(ctx context.Context, start, end time.Time) ([]*domain.Item, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: period end is before start", domain.ErrValidation)
	}
	items, err := a.items.ListCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	return items, nil
}
