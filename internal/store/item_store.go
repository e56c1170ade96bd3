package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vbonduro/invtrack/internal/db"
	"github.com/vbonduro/invtrack/internal/domain"
)

const itemColumns = `id, name, description, sku, qr_code, quantity, price, category, location, created_date, last_updated, is_active`

// ItemStore is the record store for inventory items. Reads only ever see
// active rows; deleted rows keep their SKU and QR code reserved.
type ItemStore struct {
	db  *sql.DB
	q   querier
	now func() time.Time
}

func NewItemStore(d *sql.DB, opts ...Option) *ItemStore {
	o := buildOptions(opts)
	return &ItemStore{db: d, q: d, now: o.now}
}

// WithTx returns a copy of the store whose statements run inside tx.
func (s *ItemStore) WithTx(tx *sql.Tx) *ItemStore {
	return &ItemStore{db: s.db, q: tx, now: s.now}
}

// Add persists item as a new active row, assigning its ID and CreatedDate.
func (s *ItemStore) Add(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	created := *item
	created.CreatedDate = s.now()
	created.LastUpdated = nil
	created.IsActive = true
	return s.Insert(ctx, &created)
}

// Insert persists item as a new row keeping its CreatedDate, LastUpdated and
// IsActive values. A zero CreatedDate is replaced with the current time.
func (s *ItemStore) Insert(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	created := item.CreatedDate
	if created.IsZero() {
		created = s.now()
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO items (name, description, sku, qr_code, quantity, price, category, location, created_date, last_updated, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Name, item.Description, item.SKU, item.QRCode, item.Quantity, item.Price.String(),
		item.Category, item.Location, formatTime(created), formatNullTime(item.LastUpdated), boolToInt(item.IsActive))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create item %q: %w", item.SKU, domain.ErrDuplicate)
		}
		return nil, domain.Storage("create item", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, domain.Storage("get last insert id", err)
	}

	return s.get(ctx, `WHERE id = ?`, id)
}

// GetAll returns every active item ordered by name.
func (s *ItemStore) GetAll(ctx context.Context) ([]*domain.Item, error) {
	return s.list(ctx, `WHERE is_active = 1 ORDER BY name COLLATE NOCASE ASC, id ASC`)
}

func (s *ItemStore) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	return s.get(ctx, `WHERE id = ? AND is_active = 1`, id)
}

func (s *ItemStore) GetBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	return s.get(ctx, `WHERE sku = ? AND is_active = 1`, sku)
}

func (s *ItemStore) GetByQRCode(ctx context.Context, code string) (*domain.Item, error) {
	return s.get(ctx, `WHERE qr_code = ? AND is_active = 1`, code)
}

// ListCreatedBetween returns active items created within [start, end], newest first.
func (s *ItemStore) ListCreatedBetween(ctx context.Context, start, end time.Time) ([]*domain.Item, error) {
	return s.list(ctx, `WHERE is_active = 1 AND created_date BETWEEN ? AND ? ORDER BY created_date DESC, id DESC`,
		formatTime(start), formatTime(end))
}

// Update replaces every mutable field of the active item with item.ID and
// stamps LastUpdated.
func (s *ItemStore) Update(ctx context.Context, item *domain.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE items
		SET name = ?, description = ?, sku = ?, qr_code = ?, quantity = ?, price = ?,
		    category = ?, location = ?, last_updated = ?
		WHERE id = ? AND is_active = 1
	`, item.Name, item.Description, item.SKU, item.QRCode, item.Quantity, item.Price.String(),
		item.Category, item.Location, formatTime(s.now()), item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to update item %d: %w", item.ID, domain.ErrDuplicate)
		}
		return domain.Storage("update item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.Storage("get rows affected", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item %d: %w", item.ID, domain.ErrNotFound)
	}
	return nil
}

// SoftDelete marks the item inactive. It reports false if no active item
// had that id.
func (s *ItemStore) SoftDelete(ctx context.Context, id int64) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE items SET is_active = 0, last_updated = ? WHERE id = ? AND is_active = 1
	`, formatTime(s.now()), id)
	if err != nil {
		return false, domain.Storage("delete item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, domain.Storage("get rows affected", err)
	}
	return rowsAffected > 0, nil
}

// Categories returns the distinct non-empty categories of active items.
func (s *ItemStore) Categories(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "category")
}

// Locations returns the distinct non-empty locations of active items.
func (s *ItemStore) Locations(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "location")
}

// Count returns the number of active items.
func (s *ItemStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE is_active = 1`).Scan(&n); err != nil {
		return 0, domain.Storage("count items", err)
	}
	return n, nil
}

// ReplaceAll removes every row, active or not, and inserts items in their
// place as one transaction. New ids are assigned. On error nothing changes.
func (s *ItemStore) ReplaceAll(ctx context.Context, items []*domain.Item) (int, error) {
	if tx, ok := s.q.(*sql.Tx); ok {
		return s.WithTx(tx).replaceAll(ctx, items)
	}

	var n int
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		n, err = s.WithTx(tx).replaceAll(ctx, items)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *ItemStore) replaceAll(ctx context.Context, items []*domain.Item) (int, error) {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return 0, domain.Storage("clear items", err)
	}
	for i, item := range items {
		if _, err := s.Insert(ctx, item); err != nil {
			return 0, fmt.Errorf("item %d (%s): %w", i+1, item.SKU, err)
		}
	}
	return len(items), nil
}

func (s *ItemStore) get(ctx context.Context, where string, args ...any) (*domain.Item, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items `+where, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Storage("get item", err)
	}
	return item, nil
}

func (s *ItemStore) list(ctx context.Context, clause string, args ...any) ([]*domain.Item, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items `+clause, args...)
	if err != nil {
		return nil, domain.Storage("list items", err)
	}
	defer closeRows(rows)

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, domain.Storage("scan item", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate items", err)
	}
	return items, nil
}

func (s *ItemStore) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT `+column+` FROM items
		WHERE is_active = 1 AND `+column+` <> ''
		ORDER BY `+column+` COLLATE NOCASE ASC
	`)
	if err != nil {
		return nil, domain.Storage("list "+column, err)
	}
	defer closeRows(rows)

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, domain.Storage("scan "+column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate "+column, err)
	}
	return values, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (*domain.Item, error) {
	var (
		item        domain.Item
		created     string
		lastUpdated sql.NullString
		active      int
	)
	if err := r.Scan(&item.ID, &item.Name, &item.Description, &item.SKU, &item.QRCode, &item.Quantity,
		&item.Price, &item.Category, &item.Location, &created, &lastUpdated, &active); err != nil {
		return nil, err
	}

	var err error
	if item.CreatedDate, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("invalid created_date %q: %w", created, err)
	}
	if item.LastUpdated, err = parseNullTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("invalid last_updated %q: %w", lastUpdated.String, err)
	}
	item.IsActive = active != 0
	return &item, nil
}
