package extract

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/collections-cli/internal/model"
)

// Spreadsheet column headers recognized by the tabular fast path, matched
// case-insensitively and in any order.
var xlsxColumns = map[string]string{
	"customer":      "customer",
	"customer_name": "customer",
	"name":          "customer",
	"amount":        "amount",
	"amt":           "amount",
	"address":       "address",
	"addr":          "address",
	"phone":         "phone",
	"email":         "email",
	"due_date":      "due",
	"due":           "due",
}

// FromXLSX parses a spreadsheet document into draft rows without an AI round
// trip. The first row must be a header addressing the columns; rows that are
// entirely blank are skipped.
func FromXLSX(doc []byte) ([]model.DraftRow, error) {
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}

	f, err := xlsx.OpenBinary(doc)
	if err != nil {
		return nil, eris.Wrap(err, "extract: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("extract: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("extract: xlsx sheet is empty")
	}

	// Map header cells to canonical column names.
	cols := make(map[int]string)
	for j, cell := range sheet.Rows[0].Cells {
		key := strings.ToLower(strings.TrimSpace(cell.String()))
		if canonical, ok := xlsxColumns[key]; ok {
			cols[j] = canonical
		}
	}
	if len(cols) == 0 {
		return nil, eris.New("extract: xlsx header row has no recognized columns")
	}

	var rows []model.DraftRow
	for _, r := range sheet.Rows[1:] {
		row := model.DraftRow{
			ID:     uuid.New().String(),
			Origin: model.OriginExtracted,
		}
		for j, cell := range r.Cells {
			val := strings.TrimSpace(cell.String())
			switch cols[j] {
			case "customer":
				row.CustomerName = val
			case "amount":
				row.Amount = val
			case "address":
				row.Address = val
			case "phone":
				row.Phone = val
			case "email":
				row.Email = val
			case "due":
				row.DueDate = val
			}
		}
		if row.Empty() {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}
