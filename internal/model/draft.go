package model

// RowOrigin tags how a draft row entered the intake table.
type RowOrigin string

const (
	OriginManual    RowOrigin = "manual"
	OriginExtracted RowOrigin = "ai_extracted"
)

// DraftRow is an unsubmitted, freely editable case candidate. Field values
// are kept as entered; the submission coordinator owns validation.
type DraftRow struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	Amount       string    `json:"amount"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	DueDate      string    `json:"due_date"`
	Currency     string    `json:"currency,omitempty"`
	Origin       RowOrigin `json:"origin"`

	// Revision increments on every field edit. Writers holding a stale
	// revision are rejected when using the optimistic update path.
	Revision int `json:"revision"`
}

// Empty reports whether every user-editable field is blank.
func (r DraftRow) Empty() bool {
	return r.CustomerName == "" && r.Amount == "" && r.Address == "" &&
		r.Phone == "" && r.Email == "" && r.DueDate == ""
}
