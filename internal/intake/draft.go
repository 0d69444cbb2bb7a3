package intake

import (
	"github.com/google/uuid"

	"github.com/sells-group/collections-cli/internal/model"
)

// DraftTable holds the ordered, mutable set of draft rows for one intake
// session. Order is insertion-stable except that extracted rows are always
// surfaced at the front for review. The table performs no validation; that
// belongs to the Coordinator.
type DraftTable struct {
	rows []model.DraftRow
}

// NewDraftTable returns an empty table.
func NewDraftTable() *DraftTable {
	return &DraftTable{}
}

// AddBlankRows appends n empty manual-origin rows and returns their IDs.
func (t *DraftTable) AddBlankRows(n int) []string {
	if n <= 0 {
		return nil
	}
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		row := model.DraftRow{
			ID:     uuid.New().String(),
			Origin: model.OriginManual,
		}
		t.rows = append(t.rows, row)
		ids = append(ids, row.ID)
	}
	return ids
}

// AddExtractedRows prepends rows so AI output is reviewed first. Rows
// without an ID get one; origin is forced to extracted.
func (t *DraftTable) AddExtractedRows(rows []model.DraftRow) {
	if len(rows) == 0 {
		return
	}
	prefix := make([]model.DraftRow, len(rows))
	copy(prefix, rows)
	for i := range prefix {
		if prefix[i].ID == "" {
			prefix[i].ID = uuid.New().String()
		}
		prefix[i].Origin = model.OriginExtracted
	}
	t.rows = append(prefix, t.rows...)
}

// AddRows appends rows preserving the origin the caller declared. Rows
// without an ID get one; an empty origin defaults to manual.
func (t *DraftTable) AddRows(rows []model.DraftRow) {
	for _, row := range rows {
		if row.ID == "" {
			row.ID = uuid.New().String()
		}
		if row.Origin == "" {
			row.Origin = model.OriginManual
		}
		t.rows = append(t.rows, row)
	}
}

// DraftField names an editable column of a draft row.
type DraftField string

const (
	FieldCustomerName DraftField = "customer_name"
	FieldAmount       DraftField = "amount"
	FieldAddress      DraftField = "address"
	FieldPhone        DraftField = "phone"
	FieldEmail        DraftField = "email"
	FieldDueDate      DraftField = "due_date"
	FieldCurrency     DraftField = "currency"
)

// UpdateField edits a row in place and bumps its revision. Returns false if
// the row or field is unknown.
func (t *DraftTable) UpdateField(rowID string, field DraftField, value string) bool {
	idx := t.index(rowID)
	if idx < 0 {
		return false
	}
	if !t.setField(idx, field, value) {
		return false
	}
	t.rows[idx].Revision++
	return true
}

// UpdateFieldRev is the optimistic-versioning variant of UpdateField: the
// write is rejected when rev does not match the row's current revision.
func (t *DraftTable) UpdateFieldRev(rowID string, field DraftField, value string, rev int) error {
	idx := t.index(rowID)
	if idx < 0 {
		return &ValidationError{RowID: rowID, Field: string(field), Kind: MissingField, Reason: "unknown row"}
	}
	if t.rows[idx].Revision != rev {
		return &StaleRevisionError{RowID: rowID, Expected: rev, Actual: t.rows[idx].Revision}
	}
	if !t.setField(idx, field, value) {
		return &ValidationError{RowID: rowID, Field: string(field), Kind: MissingField, Reason: "unknown field"}
	}
	t.rows[idx].Revision++
	return nil
}

func (t *DraftTable) setField(idx int, field DraftField, value string) bool {
	row := &t.rows[idx]
	switch field {
	case FieldCustomerName:
		row.CustomerName = value
	case FieldAmount:
		row.Amount = value
	case FieldAddress:
		row.Address = value
	case FieldPhone:
		row.Phone = value
	case FieldEmail:
		row.Email = value
	case FieldDueDate:
		row.DueDate = value
	case FieldCurrency:
		row.Currency = value
	default:
		return false
	}
	return true
}

// DeleteRow removes a row by ID; absent rows are a no-op.
func (t *DraftTable) DeleteRow(rowID string) {
	idx := t.index(rowID)
	if idx < 0 {
		return
	}
	t.rows = append(t.rows[:idx], t.rows[idx+1:]...)
}

// Clear empties the table. Caller confirmation is a UI concern.
func (t *DraftTable) Clear() {
	t.rows = nil
}

// Rows returns a copy of the table in display order.
func (t *DraftTable) Rows() []model.DraftRow {
	out := make([]model.DraftRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Len reports the number of rows.
func (t *DraftTable) Len() int {
	return len(t.rows)
}

// Get returns a row by ID.
func (t *DraftTable) Get(rowID string) (model.DraftRow, bool) {
	idx := t.index(rowID)
	if idx < 0 {
		return model.DraftRow{}, false
	}
	return t.rows[idx], true
}

func (t *DraftTable) index(rowID string) int {
	for i := range t.rows {
		if t.rows[i].ID == rowID {
			return i
		}
	}
	return -1
}
