package service

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/invtrack/internal/db"
	"github.com/vbonduro/invtrack/internal/domain"
	"github.com/vbonduro/invtrack/internal/store"
)

type testEnv struct {
	db      *sql.DB
	svc     *InventoryService
	items   *store.ItemStore
	history *store.HistoryStore
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	items := store.NewItemStore(d)
	history := store.NewHistoryStore(d)
	return &testEnv{
		db:      d,
		svc:     NewInventoryService(d, items, history, slog.Default()),
		items:   items,
		history: history,
	}
}

func hammer(sku string) *domain.Item {
	return &domain.Item{
		Name:     "Hammer",
		SKU:      sku,
		QRCode:   "QR-" + sku,
		Quantity: 5,
		Price:    decimal.RequireFromString("10.00"),
		Category: "Tools",
		Location: "Aisle 1",
	}
}

func TestInventoryServiceAddItem_RecordsCreate(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	item, err := env.svc.AddItem(ctx, "alice", hammer("A1"))
	require.NoError(t, err)

	recs, err := env.history.GetByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ActionCreate, recs[0].Action)
	assert.Equal(t, "alice", recs[0].Actor)
	assert.Equal(t, 5, recs[0].QuantityChange)
	assert.Equal(t, "A1", recs[0].ItemSKU)
}

func TestInventoryServiceAddItem_DuplicateLeavesNoHistory(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	first, err := env.svc.AddItem(ctx, "alice", hammer("A1"))
	require.NoError(t, err)
	require.NoError(t, env.svc.DeleteItem(ctx, "alice", first.ID))

	_, err = env.svc.AddItem(ctx, "bob", hammer("A1"))
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	all, err := env.history.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "only CREATE and DELETE of the first item")
}

func TestInventoryServiceAddItem_ConcurrentSameSKU(t *testing.T) {
	d, err := db.Open(t.TempDir() + "/inv.db")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	svc := NewInventoryService(d, store.NewItemStore(d), store.NewHistoryStore(d), slog.Default())

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := svc.AddItem(context.Background(), "racer", hammer("RACE"))
			errs <- err
		}()
	}

	var ok, dup int
	for i := 0; i < workers; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, domain.ErrDuplicate):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)
}

func TestInventoryServiceUpdateItem_EmitsPerKindEntries(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	item, err := env.svc.AddItem(ctx, "alice", hammer("A1"))
	require.NoError(t, err)

	changed := *item
	changed.Quantity = 2
	changed.Price = decimal.RequireFromString("12.50")
	changed.Location = "Aisle 9"
	changed.Category = "Hardware"
	changed.Name = "Claw Hammer"

	updated, err := env.svc.UpdateItem(ctx, "bob", &changed)
	require.NoError(t, err)
	assert.Equal(t, "Claw Hammer", updated.Name)
	require.NotNil(t, updated.LastUpdated)

	recs, err := env.history.GetByItem(ctx, item.ID)
	require.NoError(t, err)

	byAction := map[domain.ActionKind]*domain.HistoryRecord{}
	var opID string
	for _, r := range recs {
		if r.Action == domain.ActionCreate {
			continue
		}
		byAction[r.Action] = r
		if opID == "" {
			opID = r.OperationID
		}
		assert.Equal(t, opID, r.OperationID, "entries from one update share an operation id")
		assert.Equal(t, "bob", r.Actor)
	}
	require.Len(t, byAction, 5)

	assert.Equal(t, -3, byAction[domain.ActionQuantityRemove].QuantityChange)
	assert.True(t, decimal.RequireFromString("2.5").Equal(byAction[domain.ActionPriceChange].PriceChange))
	assert.Equal(t, "Aisle 1", byAction[domain.ActionLocationChange].OldValue)
	assert.Equal(t, "Aisle 9", byAction[domain.ActionLocationChange].NewValue)
	assert.Equal(t, "Hardware", byAction[domain.ActionCategoryChange].NewValue)
	assert.Equal(t, "updated name", byAction[domain.ActionUpdate].Details)
}

func TestInventoryServiceUpdateItem_NoChanges(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	item, err := env.svc.AddItem(ctx, "alice", hammer("A1"))
	require.NoError(t, err)

	_, err = env.svc.UpdateItem(ctx, "alice", item)
	require.NoError(t, err)

	recs, err := env.history.GetByAction(ctx, domain.ActionUpdate)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "no fields changed", recs[0].Details)
}

func TestInventoryServiceUpdateItem_NotFound(t *testing.T) {
	env := newTestService(t)

	item := hammer("A1")
	item.ID = 404
	_, err := env.svc.UpdateItem(context.Background(), "alice", item)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventoryServiceUpdateItem_DuplicateRollsBack(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.AddItem(ctx, "alice", hammer("A1"))
	require.NoError(t, err)
	second, err := env.svc.AddItem(ctx, "alice", hammer("B2"))
	require.NoError(t, err)

	second.SKU = "A1"
	second.Quantity = 100
	_, err = env.svc.UpdateItem(ctx, "alice", second)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	stored, err := env.items.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "B2", stored.SKU)
	assert.Equal(t, 5, stored.Quantity)

	recs, err := env.history.GetByItem(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestInventoryServiceAdjustQuantity(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	item, err := env.svc.AddItem(ctx, "alice", hammer("A1"))
	require.NoError(t, err)

	updated, err := env.svc.AdjustQuantity(ctx, "alice", item.ID, 7, "restock")
	require.NoError(t, err)
	assert.Equal(t, 12, updated.Quantity)

	updated, err = env.svc.AdjustQuantity(ctx, "alice", item.ID, -12, "sold out")
	require.NoError(t, err)
	assert.Zero(t, updated.Quantity)

	_, err = env.svc.AdjustQuantity(ctx, "alice", item.ID, -1, "oversell")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.AdjustQuantity(ctx, "alice", item.ID, 0, "noop")
	assert.ErrorIs(t, err, domain.ErrValidation)

	adds, err := env.history.GetByAction(ctx, domain.ActionQuantityAdd)
	require.NoError(t, err)
	require.Len(t, adds, 1)
	assert.Equal(t, "restock", adds[0].Details)
	assert.Equal(t, "5", adds[0].OldValue)
	assert.Equal(t, "12", adds[0].NewValue)

	removes, err := env.history.GetByAction(ctx, domain.ActionQuantityRemove)
	require.NoError(t, err)
	require.Len(t, removes, 1)
	assert.Equal(t, -12, removes[0].QuantityChange)
}

func TestInventoryServiceDeleteItem(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	item, err := env.svc.AddItem(ctx, "alice", hammer("A1"))
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteItem(ctx, "carol", item.ID))

	_, err = env.svc.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.GetItemBySKU(ctx, "A1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.GetItemByQRCode(ctx, "QR-A1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, env.svc.DeleteItem(ctx, "carol", item.ID), domain.ErrNotFound)

	deletes, err := env.history.GetByAction(ctx, domain.ActionDelete)
	require.NoError(t, err)
	require.Len(t, deletes, 1)
	assert.Equal(t, "carol", deletes[0].Actor)
}

func TestInventoryServiceImportItem_KeepsCreatedDate(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	item := hammer("IMP")
	item.CreatedDate = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	created, err := env.svc.ImportItem(ctx, "importer", item, "stock.csv")
	require.NoError(t, err)
	assert.True(t, item.CreatedDate.Equal(created.CreatedDate))
	assert.True(t, created.IsActive)

	recs, err := env.history.GetByItem(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "imported from stock.csv", recs[0].Details)
}
