package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vbonduro/invtrack/internal/db"
	"github.com/vbonduro/invtrack/internal/domain"
	"github.com/vbonduro/invtrack/internal/store"
)

// InventoryService applies item mutations and their audit entries as a
// single transaction. Every entry written by one call shares an operation id.
type InventoryService struct {
	db      *sql.DB
	items   *store.ItemStore
	history *store.HistoryStore
	logger  *slog.Logger
}

func NewInventoryService(d *sql.DB, items *store.ItemStore, history *store.HistoryStore, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		db:      d,
		items:   items,
		history: history,
		logger:  logger,
	}
}

// unitOfWork holds the transaction-bound stores for one call.
type unitOfWork struct {
	items       *store.ItemStore
	history     *store.HistoryStore
	actor       string
	operationID string
}

func (u *unitOfWork) record(ctx context.Context, item *domain.Item, action domain.ActionKind, change domain.Change) error {
	rec := store.NewHistoryRecord(u.actor, item, action, change, u.operationID)
	if _, err := u.history.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to record %s for item %d: %w", action, item.ID, err)
	}
	return nil
}

func (s *InventoryService) run(ctx context.Context, actor string, fn func(u *unitOfWork) error) error {
	return db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&unitOfWork{
			items:       s.items.WithTx(tx),
			history:     s.history.WithTx(tx),
			actor:       actor,
			operationID: uuid.NewString(),
		})
	})
}

func (s *InventoryService) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

func (s *InventoryService) GetItemBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	item, err := s.items.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("sku %q: %w", sku, domain.ErrNotFound)
	}
	return item, nil
}

func (s *InventoryService) GetItemByQRCode(ctx context.Context, code string) (*domain.Item, error) {
	item, err := s.items.GetByQRCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("qr code %q: %w", code, domain.ErrNotFound)
	}
	return item, nil
}

// AddItem creates item and records a CREATE entry. A SKU or QR code that
// was ever used, even by a deleted item, is rejected with ErrDuplicate.
func (s *InventoryService) AddItem(ctx context.Context, actor string, item *domain.Item) (*domain.Item, error) {
	var created *domain.Item
	err := s.run(ctx, actor, func(u *unitOfWork) error {
		var err error
		if created, err = u.items.Add(ctx, item); err != nil {
			return err
		}
		return u.record(ctx, created, domain.ActionCreate, domain.Change{
			Details:        "item created",
			NewValue:       describe(created),
			QuantityChange: created.Quantity,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item created", "item_id", created.ID, "sku", created.SKU, "actor", actor)
	return created, nil
}

// ImportItem inserts item keeping its creation date and records a CREATE
// entry naming source.
func (s *InventoryService) ImportItem(ctx context.Context, actor string, item *domain.Item, source string) (*domain.Item, error) {
	var created *domain.Item
	err := s.run(ctx, actor, func(u *unitOfWork) error {
		toInsert := *item
		toInsert.IsActive = true
		var err error
		if created, err = u.items.Insert(ctx, &toInsert); err != nil {
			return err
		}
		return u.record(ctx, created, domain.ActionCreate, domain.Change{
			Details:        "imported from " + source,
			NewValue:       describe(created),
			QuantityChange: created.Quantity,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateItem replaces the stored fields of item.ID and records one entry per
// kind of change: quantity, price, location, category, and a generic UPDATE
// for everything else.
func (s *InventoryService) UpdateItem(ctx context.Context, actor string, item *domain.Item) (*domain.Item, error) {
	var updated *domain.Item
	err := s.run(ctx, actor, func(u *unitOfWork) error {
		before, err := u.items.GetByID(ctx, item.ID)
		if err != nil {
			return err
		}
		if before == nil {
			return fmt.Errorf("item %d: %w", item.ID, domain.ErrNotFound)
		}
		if err := u.items.Update(ctx, item); err != nil {
			return err
		}
		if updated, err = u.items.GetByID(ctx, item.ID); err != nil {
			return err
		}
		for _, c := range diff(before, updated) {
			if err := u.record(ctx, updated, c.action, c.change); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item updated", "item_id", updated.ID, "sku", updated.SKU, "actor", actor)
	return updated, nil
}

// AdjustQuantity adds delta (which may be negative) to the item's quantity.
func (s *InventoryService) AdjustQuantity(ctx context.Context, actor string, id int64, delta int, reason string) (*domain.Item, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: quantity change must not be zero", domain.ErrValidation)
	}

	var updated *domain.Item
	err := s.run(ctx, actor, func(u *unitOfWork) error {
		item, err := u.items.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}
		if item.Quantity+delta < 0 {
			return fmt.Errorf("%w: cannot remove %d from quantity %d", domain.ErrValidation, -delta, item.Quantity)
		}

		old := item.Quantity
		item.Quantity += delta
		if err := u.items.Update(ctx, item); err != nil {
			return err
		}
		if updated, err = u.items.GetByID(ctx, id); err != nil {
			return err
		}
		return u.record(ctx, updated, quantityAction(delta), domain.Change{
			Details:        reason,
			OldValue:       strconv.Itoa(old),
			NewValue:       strconv.Itoa(updated.Quantity),
			QuantityChange: delta,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item quantity adjusted", "item_id", id, "delta", delta, "quantity", updated.Quantity, "actor", actor)
	return updated, nil
}

// DeleteItem soft-deletes the item and records a DELETE entry.
func (s *InventoryService) DeleteItem(ctx context.Context, actor string, id int64) error {
	err := s.run(ctx, actor, func(u *unitOfWork) error {
		item, err := u.items.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}
		ok, err := u.items.SoftDelete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}
		item.IsActive = false
		return u.record(ctx, item, domain.ActionDelete, domain.Change{
			Details:        "item deleted",
			OldValue:       describe(item),
			QuantityChange: -item.Quantity,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("item deleted", "item_id", id, "actor", actor)
	return nil
}

type fieldChange struct {
	action domain.ActionKind
	change domain.Change
}

func diff(before, after *domain.Item) []fieldChange {
	var changes []fieldChange

	if delta := after.Quantity - before.Quantity; delta != 0 {
		changes = append(changes, fieldChange{quantityAction(delta), domain.Change{
			Details:        "quantity changed",
			OldValue:       strconv.Itoa(before.Quantity),
			NewValue:       strconv.Itoa(after.Quantity),
			QuantityChange: delta,
		}})
	}
	if !before.Price.Equal(after.Price) {
		changes = append(changes, fieldChange{domain.ActionPriceChange, domain.Change{
			Details:     "price changed",
			OldValue:    before.Price.StringFixed(2),
			NewValue:    after.Price.StringFixed(2),
			PriceChange: after.Price.Sub(before.Price),
		}})
	}
	if before.Location != after.Location {
		changes = append(changes, fieldChange{domain.ActionLocationChange, domain.Change{
			Details:  "location changed",
			OldValue: before.Location,
			NewValue: after.Location,
		}})
	}
	if before.Category != after.Category {
		changes = append(changes, fieldChange{domain.ActionCategoryChange, domain.Change{
			Details:  "category changed",
			OldValue: before.Category,
			NewValue: after.Category,
		}})
	}

	var fields []string
	if before.Name != after.Name {
		fields = append(fields, "name")
	}
	if before.Description != after.Description {
		fields = append(fields, "description")
	}
	if before.SKU != after.SKU {
		fields = append(fields, "sku")
	}
	if before.QRCode != after.QRCode {
		fields = append(fields, "qr code")
	}
	if len(fields) > 0 || len(changes) == 0 {
		details := "no fields changed"
		if len(fields) > 0 {
			details = "updated " + strings.Join(fields, ", ")
		}
		changes = append(changes, fieldChange{domain.ActionUpdate, domain.Change{
			Details:  details,
			OldValue: describe(before),
			NewValue: describe(after),
		}})
	}
	return changes
}

func quantityAction(delta int) domain.ActionKind {
	if delta > 0 {
		return domain.ActionQuantityAdd
	}
	return domain.ActionQuantityRemove
}

func describe(item *domain.Item) string {
	return fmt.Sprintf("%s (%s) qty=%d price=%s", item.Name, item.SKU, item.Quantity, item.Price.StringFixed(2))
}
