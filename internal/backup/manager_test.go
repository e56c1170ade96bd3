package backup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/invtrack/internal/db"
	"github.com/vbonduro/invtrack/internal/domain"
	"github.com/vbonduro/invtrack/internal/filestore/local"
	"github.com/vbonduro/invtrack/internal/service"
	"github.com/vbonduro/invtrack/internal/store"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	clock   *fakeClock
	items   *store.ItemStore
	history *store.HistoryStore
	svc     *service.InventoryService
	mgr     *Manager
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	items := store.NewItemStore(d, store.WithClock(clock.Now))
	history := store.NewHistoryStore(d, store.WithClock(clock.Now))
	svc := service.NewInventoryService(d, items, history, slog.Default())
	return &testEnv{
		clock:   clock,
		items:   items,
		history: history,
		svc:     svc,
		mgr:     NewManager(items, svc, local.NewLocalFileStore(), slog.Default(), WithClock(clock.Now)),
		dir:     t.TempDir(),
	}
}

func (e *testEnv) add(t *testing.T, name, sku string, qty int, price, category, location string) *domain.Item {
	t.Helper()
	item, err := e.svc.AddItem(context.Background(), "tester", &domain.Item{
		Name:     name,
		SKU:      sku,
		QRCode:   "QR-" + sku,
		Quantity: qty,
		Price:    decimal.RequireFromString(price),
		Category: category,
		Location: location,
	})
	require.NoError(t, err)
	return item
}

type itemKey struct {
	SKU      string
	Quantity int
	Price    string
	Category string
	Location string
}

func keys(items []*domain.Item) []itemKey {
	var out []itemKey
	for _, it := range items {
		out = append(out, itemKey{it.SKU, it.Quantity, it.Price.StringFixed(2), it.Category, it.Location})
	}
	return out
}

func TestExportToCSV_Golden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.items.Add(ctx, &domain.Item{
		Name:        "Hammer",
		Description: `Steel, 16 oz "claw"`,
		SKU:         "TL-001",
		QRCode:      "QR-TL-001",
		Quantity:    5,
		Price:       decimal.RequireFromString("10.00"),
		Category:    "Herramientas",
		Location:    "Almacén Norte",
	})
	require.NoError(t, err)

	updated := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	_, err = env.items.Insert(ctx, &domain.Item{
		Name:        "Nails",
		SKU:         "FS-002",
		QRCode:      "QR-FS-002",
		Quantity:    200,
		Price:       decimal.RequireFromString("0.05"),
		Category:    "Fasteners",
		Location:    "Aisle 1",
		CreatedDate: env.clock.Now(),
		LastUpdated: &updated,
		IsActive:    true,
	})
	require.NoError(t, err)

	path := filepath.Join(env.dir, "export.csv")
	n, err := env.mgr.ExportToCSV(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "export", data)
}

func TestCSVRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()

	hammer := src.add(t, "Hammer, claw", "TL-001", 5, "10.00", "Tools", "Aisle 1")
	hammer.Description = "line one\nline \"two\""
	_, err := src.svc.UpdateItem(ctx, "tester", hammer)
	require.NoError(t, err)
	src.add(t, "Nails", "FS-002", 200, "0.05", "Fasteners", "Aisle 2")
	src.add(t, "Paint", "PT-003", 0, "19.99", "", "")

	path := filepath.Join(src.dir, "export.csv")
	_, err = src.mgr.ExportToCSV(ctx, path)
	require.NoError(t, err)

	dst := newTestEnv(t)
	result, err := dst.mgr.ImportFromCSV(ctx, "importer", path)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.NoError(t, result.Err())

	want, err := src.items.GetAll(ctx)
	require.NoError(t, err)
	got, err := dst.items.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, keys(want), keys(got))

	imported, err := dst.svc.GetItemBySKU(ctx, "TL-001")
	require.NoError(t, err)
	assert.Equal(t, "Hammer, claw", imported.Name)
	assert.Equal(t, "line one\nline \"two\"", imported.Description)
	assert.True(t, hammer.CreatedDate.Equal(imported.CreatedDate))

	creates, err := dst.history.GetByAction(ctx, domain.ActionCreate)
	require.NoError(t, err)
	assert.Len(t, creates, 3)
	assert.Equal(t, "importer", creates[0].Actor)
	assert.Equal(t, "imported from export.csv", creates[0].Details)
}

func TestImportFromCSV_CorruptedRow(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()
	src.add(t, "Anvil", "A1", 1, "100.00", "Tools", "Floor")
	src.add(t, "Bolts", "B2", 50, "0.20", "Fasteners", "Bin 3")
	src.add(t, "Chisel", "C3", 4, "12.00", "Tools", "Aisle 1")

	path := filepath.Join(src.dir, "stock.csv")
	_, err := src.mgr.ExportToCSV(ctx, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.Contains(t, lines[2], ",QR-B2,")
	lines[2] = strings.Replace(lines[2], ",QR-B2", "", 1)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

	dst := newTestEnv(t)
	result, err := dst.mgr.ImportFromCSV(ctx, "importer", path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Line)
	assert.ErrorIs(t, result.Err(), domain.ErrPartialImport)
	assert.Equal(t, "imported 2 items, 1 rows failed", result.Message())

	assert.Equal(t, src.dir, filepath.Dir(result.SafetyBackup))
	assert.FileExists(t, result.SafetyBackup)
	assert.Contains(t, filepath.Base(result.SafetyBackup), FileMarker)

	count, err := dst.items.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestImportFromCSV_RowErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "Existing", "DUP", 1, "1.00", "", "")

	rows := []string{
		csvHeader,
		`1,"Good","",G1,QR-G1,3,2.50,"Tools","A",2025-01-02 03:04:05,`,
		`2,"Dup","",DUP,QR-OTHER,3,2.50,"Tools","A",,`,
		`3,"Negative","",N1,QR-N1,-1,2.50,"Tools","A",,`,
		`4,"BadPrice","",P1,QR-P1,1,abc,"Tools","A",,`,
		`5,"BadDate","",D1,QR-D1,1,1.00,"Tools","A",yesterday,`,
		`6,"","",E1,QR-E1,1,1.00,"Tools","A",,`,
		``,
		`7,"NoDate","",ND,QR-ND,1,1.00,"Tools","A",,`,
		`8,"Bad quote,"",BQ,QR-BQ,1,1.00,"Tools","A",,`,
		`9,"After quote","",G2,QR-G2,1,1.00,"Tools","A",,`,
		`10,"Also after","",G3,QR-G3,2,1.00,"Tools","A",,`,
	}
	path := filepath.Join(env.dir, "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))

	result, err := env.mgr.ImportFromCSV(ctx, "importer", path)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 6, result.Failed)

	var lines []int
	for _, e := range result.Errors {
		lines = append(lines, e.Line)
	}
	assert.Equal(t, []int{3, 4, 5, 6, 7, 10}, lines)

	for _, sku := range []string{"G2", "G3"} {
		_, err := env.svc.GetItemBySKU(ctx, sku)
		assert.NoError(t, err, "row after the stray quote is imported: %s", sku)
	}

	good, err := env.svc.GetItemBySKU(ctx, "G1")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).Equal(good.CreatedDate))

	noDate, err := env.svc.GetItemBySKU(ctx, "ND")
	require.NoError(t, err)
	assert.True(t, env.clock.Now().Equal(noDate.CreatedDate))
}

func TestImportFromCSV_StrayQuoteOnlyRejectsItsLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rows := []string{
		csvHeader,
		`1,"Bad quote,"",B1,QR-B1,1,1.00,"Tools","A",,`,
		`2,"One","",G1,QR-G1,1,1.00,"Tools","A",,`,
		`3,"Two","multi` + "\n" + `line",G2,QR-G2,1,1.00,"Tools","A",,`,
		`4,"Three","",G3,QR-G3,1,1.00,"Tools","A",,`,
	}
	path := filepath.Join(env.dir, "stray.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")), 0o644))

	result, err := env.mgr.ImportFromCSV(ctx, "importer", path)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Line)

	two, err := env.svc.GetItemBySKU(ctx, "G2")
	require.NoError(t, err)
	assert.Equal(t, "multi\nline", two.Description)
}

func TestImportFromCSV_FileErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.ImportFromCSV(ctx, "importer", filepath.Join(env.dir, "missing.csv"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	headerOnly := filepath.Join(env.dir, "header.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte(csvHeader+"\n\n"), 0o644))
	_, err = env.mgr.ImportFromCSV(ctx, "importer", headerOnly)
	assert.ErrorIs(t, err, domain.ErrValidation)

	files, err := env.mgr.GetBackupFiles(ctx, env.dir)
	require.NoError(t, err)
	assert.Empty(t, files, "no safety snapshot for an unusable file")
}

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.add(t, "Anvil", "A1", 1, "100.00", "Tools", "Floor")
	env.add(t, "Bolts", "B2", 50, "0.20", "Fasteners", "Bin 3")
	env.add(t, "Chisel", "C3", 4, "12.00", "Tools", "Aisle 1")

	want, err := env.items.GetAll(ctx)
	require.NoError(t, err)

	path := filepath.Join(env.dir, "inventory_backup.json")
	n, err := env.mgr.CreateBackup(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, it := range want {
		require.NoError(t, env.svc.DeleteItem(ctx, "tester", it.ID))
	}
	historyBefore, err := env.history.GetAll(ctx)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	result, err := env.mgr.RestoreBackup(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Restored)
	assert.FileExists(t, result.SafetyBackup)
	assert.Equal(t, env.dir, filepath.Dir(result.SafetyBackup))

	got, err := env.items.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, keys(want), keys(got))
	for _, it := range got {
		assert.NotEqual(t, a.ID, it.ID, "restore assigns new ids")
		assert.True(t, a.CreatedDate.Equal(it.CreatedDate))
	}

	historyAfter, err := env.history.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, historyAfter, len(historyBefore))
}

func TestRestoreBackup_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "Anvil", "A1", 1, "100.00", "Tools", "Floor")

	_, err := env.mgr.RestoreBackup(ctx, filepath.Join(env.dir, "nope.json"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for name, body := range map[string]string{
		"garbage.json":   "not json",
		"noitems.json":   `{"version":"1.0","backupDate":"2026-03-01 09:00:00"}`,
		"nullitems.json": `{"version":"1.0","items":null}`,
		"baddate.json":   `{"version":"1.0","items":[{"name":"X","sku":"X","qrCode":"X","price":"1","createdDate":"soon"}]}`,
		"nosku.json":     `{"version":"1.0","items":[{"name":"X","sku":"","qrCode":"X","price":"1","createdDate":"2026-01-01 00:00:00"}]}`,
		"negative.json":  `{"version":"1.0","items":[{"name":"X","sku":"X","qrCode":"X","quantity":-4,"price":"1","createdDate":"2026-01-01 00:00:00"}]}`,
	} {
		path := filepath.Join(env.dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := env.mgr.RestoreBackup(ctx, path)
		assert.ErrorIs(t, err, domain.ErrCorruptBackup, name)
	}

	count, err := env.items.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	files, err := env.mgr.GetBackupFiles(ctx, env.dir)
	require.NoError(t, err)
	assert.Empty(t, files, "rejected snapshots never get a safety copy")
}

func TestRestoreBackup_FailureLeavesStoreUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "Anvil", "A1", 1, "100.00", "Tools", "Floor")

	body := `{"version":"1.0","items":[
		{"name":"X","sku":"X1","qrCode":"QX","quantity":1,"price":"1","createdDate":"2026-01-01 00:00:00"},
		{"name":"Y","sku":"X1","qrCode":"QY","quantity":1,"price":"1","createdDate":"2026-01-01 00:00:00"}
	]}`
	path := filepath.Join(env.dir, "dupes.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := env.mgr.RestoreBackup(ctx, path)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	items, err := env.items.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A1", items[0].SKU)
}

func TestRestoreBackup_EmptySnapshotClearsStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	path := filepath.Join(env.dir, "empty_backup.json")
	_, err := env.mgr.CreateBackup(ctx, path)
	require.NoError(t, err)

	env.add(t, "Anvil", "A1", 1, "100.00", "Tools", "Floor")
	result, err := env.mgr.RestoreBackup(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, result.Restored)

	count, err := env.items.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetBackupFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "Anvil", "A1", 1, "100.00", "Tools", "Floor")

	backupPath := filepath.Join(env.dir, "inventory_backup_manual.json")
	_, err := env.mgr.CreateBackup(ctx, backupPath)
	require.NoError(t, err)
	_, err = env.mgr.ExportToCSV(ctx, filepath.Join(env.dir, "stock.csv"))
	require.NoError(t, err)
	result, err := env.mgr.RestoreBackup(ctx, backupPath)
	require.NoError(t, err)

	files, err := env.mgr.GetBackupFiles(ctx, env.dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
		assert.False(t, f.CreatedAt.IsZero())
	}
	assert.ElementsMatch(t, []string{"inventory_backup_manual.json", filepath.Base(result.SafetyBackup)}, names)

	files, err = env.mgr.GetBackupFiles(ctx, filepath.Join(env.dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
