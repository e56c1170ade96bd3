package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/invtrack/internal/domain"
)

const (
	snapshotVersion = "1.0"
	// dateLayout is shared by snapshot and CSV files.
	dateLayout = "2006-01-02 15:04:05"
)

type snapshot struct {
	BackupID   string         `json:"backupId"`
	BackupDate string         `json:"backupDate"`
	Version    string         `json:"version"`
	Items      []snapshotItem `json:"items"`
}

type snapshotItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SKU         string          `json:"sku"`
	QRCode      string          `json:"qrCode"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Location    string          `json:"location"`
	CreatedDate string          `json:"createdDate"`
	LastUpdated *string         `json:"lastUpdated"`
	IsActive    bool            `json:"isActive"`
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func toSnapshotItem(item *domain.Item) snapshotItem {
	out := snapshotItem{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		SKU:         item.SKU,
		QRCode:      item.QRCode,
		Quantity:    item.Quantity,
		Price:       item.Price,
		Category:    item.Category,
		Location:    item.Location,
		CreatedDate: formatDate(item.CreatedDate),
		IsActive:    item.IsActive,
	}
	if item.LastUpdated != nil {
		s := formatDate(*item.LastUpdated)
		out.LastUpdated = &s
	}
	return out
}

func (si snapshotItem) toItem() (*domain.Item, error) {
	created, err := parseDate(si.CreatedDate)
	if err != nil {
		return nil, fmt.Errorf("item %q: invalid createdDate: %w", si.SKU, err)
	}
	item := &domain.Item{
		Name:        si.Name,
		Description: si.Description,
		SKU:         si.SKU,
		QRCode:      si.QRCode,
		Quantity:    si.Quantity,
		Price:       si.Price,
		Category:    si.Category,
		Location:    si.Location,
		CreatedDate: created,
		IsActive:    true,
	}
	if si.LastUpdated != nil && *si.LastUpdated != "" {
		updated, err := parseDate(*si.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("item %q: invalid lastUpdated: %w", si.SKU, err)
		}
		item.LastUpdated = &updated
	}
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("item %q: %w", si.SKU, err)
	}
	return item, nil
}

func encodeSnapshot(w io.Writer, snap *snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// decodeSnapshot fails with domain.ErrCorruptBackup when r is not a snapshot
// or has no item list.
func decodeSnapshot(r io.Reader) ([]*domain.Item, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptBackup, err)
	}
	if snap.Items == nil {
		return nil, fmt.Errorf("%w: missing item list", domain.ErrCorruptBackup)
	}

	items := make([]*domain.Item, 0, len(snap.Items))
	for _, si := range snap.Items {
		item, err := si.toItem()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCorruptBackup, err)
		}
		items = append(items, item)
	}
	return items, nil
}
