package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	"github.com/angelmondragon/tirestore-backend/pkg/sheets"
)

const (
	dateLayout  = "2006-01-02"
	headerCell  = "entry_id"
	columnCount = 8
)

// Entry is one row of the ledger sheet.
type Entry struct {
	ID          string                `json:"entry_id"`
	Date        time.Time             `json:"date"`
	Type        enums.LedgerEntryType `json:"type"`
	Category    string                `json:"category"`
	Amount      decimal.Decimal       `json:"amount"`
	Description string                `json:"description"`
	OrderNumber string                `json:"order_number,omitempty"`
	RecordedBy  string                `json:"recorded_by"`
}

// Repository persists ledger entries.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
}

type sheetRepository struct {
	rows sheets.RowStore
}

// NewSheetRepository stores entries as rows of a spreadsheet range.
func NewSheetRepository(rows sheets.RowStore) (Repository, error) {
	if rows == nil {
		return nil, fmt.Errorf("sheet row store required")
	}
	return &sheetRepository{rows: rows}, nil
}

func (r *sheetRepository) Append(ctx context.Context, entry Entry) error {
	return r.rows.AppendRow(ctx, encodeRow(entry))
}

// List parses every data row. The header and malformed rows are skipped.
func (r *sheetRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.rows.ReadRows(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry, ok := decodeRow(row)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func encodeRow(e Entry) []any {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return []any{
		e.ID,
		e.Date.UTC().Format(dateLayout),
		e.Type.String(),
		e.Category,
		e.Amount.StringFixed(2),
		e.Description,
		e.OrderNumber,
		e.RecordedBy,
	}
}

func decodeRow(row []any) (Entry, bool) {
	cells := make([]string, columnCount)
	for i := 0; i < columnCount && i < len(row); i++ {
		cells[i] = strings.TrimSpace(fmt.Sprint(row[i]))
	}
	if cells[0] == "" || strings.EqualFold(cells[0], headerCell) {
		return Entry{}, false
	}
	date, err := time.Parse(dateLayout, cells[1])
	if err != nil {
		return Entry{}, false
	}
	typ, err := enums.ParseLedgerEntryType(cells[2])
	if err != nil {
		return Entry{}, false
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(cells[4], ",", ""))
	if err != nil {
		return Entry{}, false
	}
	return Entry{
		ID:          cells[0],
		Date:        date,
		Type:        typ,
		Category:    cells[3],
		Amount:      amount,
		Description: cells[5],
		OrderNumber: cells[6],
		RecordedBy:  cells[7],
	}, true
}
