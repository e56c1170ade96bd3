package backup

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/invtrack/internal/domain"
)

const csvHeader = "ID,Nombre,Descripción,SKU,Código QR,Cantidad,Precio,Categoría,Ubicación,Fecha Creación,Última Actualización"

const csvFieldCount = 11

// writeCSV writes the header and one line per item. Text columns are always
// quoted; the rest only when they contain a separator or quote.
func writeCSV(w io.Writer, items []*domain.Item) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(csvHeader + "\n"); err != nil {
		return err
	}
	for _, item := range items {
		lastUpdated := ""
		if item.LastUpdated != nil {
			lastUpdated = formatDate(*item.LastUpdated)
		}
		fields := []string{
			strconv.FormatInt(item.ID, 10),
			quote(item.Name),
			quote(item.Description),
			quoteIfNeeded(item.SKU),
			quoteIfNeeded(item.QRCode),
			strconv.Itoa(item.Quantity),
			item.Price.StringFixed(2),
			quote(item.Category),
			quote(item.Location),
			formatDate(item.CreatedDate),
			lastUpdated,
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}

type csvLine struct {
	no   int
	text string
}

func readLines(r io.Reader) ([]csvLine, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []csvLine
	for no := 1; sc.Scan(); no++ {
		out = append(out, csvLine{no: no, text: strings.TrimSuffix(sc.Text(), "\r")})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func countNonBlank(lines []csvLine) int {
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l.text) != "" {
			n++
		}
	}
	return n
}

// csvRecord is one logical row made of lines[first:next].
type csvRecord struct {
	line  int
	first int
	next  int
	text  string
}

func (r csvRecord) multiLine() bool {
	return r.next-r.first > 1
}

// nextRecord returns the record starting at or after lines[i], skipping blank
// lines. A line with an open quoted field continues onto the next one.
func nextRecord(lines []csvLine, i int) (csvRecord, bool) {
	for i < len(lines) && strings.TrimSpace(lines[i].text) == "" {
		i++
	}
	if i >= len(lines) {
		return csvRecord{}, false
	}

	rec := csvRecord{line: lines[i].no, first: i}
	var b strings.Builder
	quotes := 0
	for j := i; j < len(lines); j++ {
		if j > i {
			b.WriteByte('\n')
		}
		b.WriteString(lines[j].text)
		quotes += strings.Count(lines[j].text, `"`)
		rec.next = j + 1
		if quotes%2 == 0 {
			break
		}
	}
	rec.text = b.String()
	return rec, true
}

// singleLine narrows rec to its first physical line.
func singleLine(lines []csvLine, rec csvRecord) csvRecord {
	return csvRecord{line: rec.line, first: rec.first, next: rec.first + 1, text: lines[rec.first].text}
}

func isMalformed(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe)
}

// parseRow turns one data record into an item. The ID column is ignored; a
// blank creation date falls back to now.
func parseRow(text string, now time.Time) (*domain.Item, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = csvFieldCount
	fields, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	qty, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid quantity %q", domain.ErrValidation, fields[5])
	}
	price, err := decimal.NewFromString(fields[6])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid price %q", domain.ErrValidation, fields[6])
	}

	created := now
	if fields[9] != "" {
		if created, err = parseDate(fields[9]); err != nil {
			return nil, fmt.Errorf("%w: invalid creation date %q", domain.ErrValidation, fields[9])
		}
	}
	var lastUpdated *time.Time
	if fields[10] != "" {
		t, err := parseDate(fields[10])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid update date %q", domain.ErrValidation, fields[10])
		}
		lastUpdated = &t
	}

	item := &domain.Item{
		Name:        fields[1],
		Description: fields[2],
		SKU:         fields[3],
		QRCode:      fields[4],
		Quantity:    qty,
		Price:       price,
		Category:    fields[7],
		Location:    fields[8],
		CreatedDate: created,
		LastUpdated: lastUpdated,
		IsActive:    true,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}
