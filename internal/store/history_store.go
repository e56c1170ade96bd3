package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/invtrack/internal/domain"
)

const historyColumns = `id, item_id, item_name, item_sku, action, timestamp, actor, details, old_value, new_value,
	quantity_change, price_change, category, location, operation_id`

// HistoryStore is the append-only audit log. Entries are never updated; the
// only delete is the retention sweep in CleanOldHistory.
type HistoryStore struct {
	q   querier
	now func() time.Time
}

func NewHistoryStore(d *sql.DB, opts ...Option) *HistoryStore {
	o := buildOptions(opts)
	return &HistoryStore{q: d, now: o.now}
}

// WithTx returns a copy of the store whose statements run inside tx.
func (s *HistoryStore) WithTx(tx *sql.Tx) *HistoryStore {
	return &HistoryStore{q: tx, now: s.now}
}

// RecordAction appends one entry for item, stamped with the current time and
// the given actor.
func (s *HistoryStore) RecordAction(ctx context.Context, actor string, item *domain.Item, action domain.ActionKind, change domain.Change) (*domain.HistoryRecord, error) {
	return s.Append(ctx, NewHistoryRecord(actor, item, action, change, uuid.NewString()))
}

// NewHistoryRecord builds an unsaved entry carrying a snapshot of item.
func NewHistoryRecord(actor string, item *domain.Item, action domain.ActionKind, change domain.Change, operationID string) *domain.HistoryRecord {
	return &domain.HistoryRecord{
		ItemID:         item.ID,
		ItemName:       item.Name,
		ItemSKU:        item.SKU,
		Action:         action,
		Actor:          actor,
		Details:        change.Details,
		OldValue:       change.OldValue,
		NewValue:       change.NewValue,
		QuantityChange: change.QuantityChange,
		PriceChange:    change.PriceChange,
		Category:       item.Category,
		Location:       item.Location,
		OperationID:    operationID,
	}
}

// Append persists rec. A zero Timestamp is set to the current time.
func (s *HistoryStore) Append(ctx context.Context, rec *domain.HistoryRecord) (*domain.HistoryRecord, error) {
	saved := *rec
	if saved.Timestamp.IsZero() {
		saved.Timestamp = s.now()
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO item_history (item_id, item_name, item_sku, action, timestamp, actor, details, old_value, new_value,
			quantity_change, price_change, category, location, operation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, saved.ItemID, saved.ItemName, saved.ItemSKU, string(saved.Action), formatTime(saved.Timestamp), saved.Actor,
		saved.Details, saved.OldValue, saved.NewValue, saved.QuantityChange, saved.PriceChange.String(),
		saved.Category, saved.Location, saved.OperationID)
	if err != nil {
		return nil, domain.Storage("record history", err)
	}

	saved.ID, err = result.LastInsertId()
	if err != nil {
		return nil, domain.Storage("get last insert id", err)
	}
	saved.Timestamp = saved.Timestamp.UTC()
	return &saved, nil
}

// GetAll returns every entry, newest first.
func (s *HistoryStore) GetAll(ctx context.Context) ([]*domain.HistoryRecord, error) {
	return s.list(ctx, `ORDER BY timestamp DESC, id DESC`)
}

// GetByItem returns the entries for one item, newest first.
func (s *HistoryStore) GetByItem(ctx context.Context, itemID int64) ([]*domain.HistoryRecord, error) {
	return s.list(ctx, `WHERE item_id = ? ORDER BY timestamp DESC, id DESC`, itemID)
}

// GetByDateRange returns entries with a timestamp in [start, end], newest first.
func (s *HistoryStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.HistoryRecord, error) {
	return s.list(ctx, `WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp DESC, id DESC`,
		formatTime(start), formatTime(end))
}

func (s *HistoryStore) GetByAction(ctx context.Context, action domain.ActionKind) ([]*domain.HistoryRecord, error) {
	return s.list(ctx, `WHERE action = ? ORDER BY timestamp DESC, id DESC`, string(action))
}

// GetStats counts entries per action kind, most frequent first.
func (s *HistoryStore) GetStats(ctx context.Context) ([]domain.ActionCount, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT action, COUNT(*) FROM item_history GROUP BY action ORDER BY COUNT(*) DESC, action ASC
	`)
	if err != nil {
		return nil, domain.Storage("count history", err)
	}
	defer closeRows(rows)

	var stats []domain.ActionCount
	for rows.Next() {
		var (
			action string
			count  int
		)
		if err := rows.Scan(&action, &count); err != nil {
			return nil, domain.Storage("scan history stats", err)
		}
		stats = append(stats, domain.ActionCount{Action: domain.ActionKind(action), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate history stats", err)
	}
	return stats, nil
}

// CleanOldHistory deletes entries strictly older than before and reports
// whether anything was removed.
func (s *HistoryStore) CleanOldHistory(ctx context.Context, before time.Time) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM item_history WHERE timestamp < ?`, formatTime(before))
	if err != nil {
		return false, domain.Storage("clean history", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, domain.Storage("get rows affected", err)
	}
	return rowsAffected > 0, nil
}

// CleanOlderThan applies CleanOldHistory with a cutoff of days before now.
func (s *HistoryStore) CleanOlderThan(ctx context.Context, days int) (bool, error) {
	if days < 0 {
		return false, fmt.Errorf("%w: retention days must not be negative", domain.ErrValidation)
	}
	return s.CleanOldHistory(ctx, s.now().AddDate(0, 0, -days))
}

func (s *HistoryStore) list(ctx context.Context, clause string, args ...any) ([]*domain.HistoryRecord, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+historyColumns+` FROM item_history `+clause, args...)
	if err != nil {
		return nil, domain.Storage("list history", err)
	}
	defer closeRows(rows)

	var records []*domain.HistoryRecord
	for rows.Next() {
		var (
			rec    domain.HistoryRecord
			action string
			ts     string
		)
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.ItemName, &rec.ItemSKU, &action, &ts, &rec.Actor,
			&rec.Details, &rec.OldValue, &rec.NewValue, &rec.QuantityChange, &rec.PriceChange,
			&rec.Category, &rec.Location, &rec.OperationID); err != nil {
			return nil, domain.Storage("scan history", err)
		}
		rec.Action = domain.ActionKind(action)
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, domain.Storage("parse history timestamp", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate history", err)
	}
	return records, nil
}
