package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a unit of stock. SKU and QRCode are reserved for the lifetime of
// the row, including after a soft delete.
type Item struct {
	ID          int64
	Name        string
	Description string
	SKU         string
	QRCode      string
	Quantity    int
	Price       decimal.Decimal
	Category    string
	Location    string
	CreatedDate time.Time
	LastUpdated *time.Time
	IsActive    bool
}

// Value returns quantity × price.
func (i *Item) Value() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the required fields and numeric bounds.
func (i *Item) Validate() error {
	var missing []string
	if strings.TrimSpace(i.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(i.SKU) == "" {
		missing = append(missing, "sku")
	}
	if strings.TrimSpace(i.QRCode) == "" {
		missing = append(missing, "qr code")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if i.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return nil
}

type ActionKind string

const (
	ActionCreate         ActionKind = "CREATE"
	ActionUpdate         ActionKind = "UPDATE"
	ActionDelete         ActionKind = "DELETE"
	ActionQuantityAdd    ActionKind = "QUANTITY_ADD"
	ActionQuantityRemove ActionKind = "QUANTITY_REMOVE"
	ActionPriceChange    ActionKind = "PRICE_CHANGE"
	ActionLocationChange ActionKind = "LOCATION_CHANGE"
	ActionCategoryChange ActionKind = "CATEGORY_CHANGE"
)

// ActionKinds lists every action kind in declaration order.
var ActionKinds = []ActionKind{
	ActionCreate,
	ActionUpdate,
	ActionDelete,
	ActionQuantityAdd,
	ActionQuantityRemove,
	ActionPriceChange,
	ActionLocationChange,
	ActionCategoryChange,
}

func ParseActionKind(s string) (ActionKind, error) {
	for _, k := range ActionKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, s)
}

// HistoryRecord is an append-only audit entry. ItemName, ItemSKU, Category
// and Location are snapshots taken when the action was recorded.
type HistoryRecord struct {
	ID             int64
	ItemID         int64
	ItemName       string
	ItemSKU        string
	Action         ActionKind
	Timestamp      time.Time
	Actor          string
	Details        string
	OldValue       string
	NewValue       string
	QuantityChange int
	PriceChange    decimal.Decimal
	Category       string
	Location       string
	OperationID    string
}

// Change describes what a single audit entry records beyond the item snapshot.
type Change struct {
	Details        string
	OldValue       string
	NewValue       string
	QuantityChange int
	PriceChange    decimal.Decimal
}

type ActionCount struct {
	Action ActionKind
	Count  int
}
