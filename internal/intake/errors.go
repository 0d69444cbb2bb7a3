package intake

import (
	"fmt"
	"strings"
)

// ValidationKind classifies why a draft row failed submission.
type ValidationKind string

const (
	MissingField     ValidationKind = "missing_field"
	InvalidAmount    ValidationKind = "invalid_amount"
	InvalidDate      ValidationKind = "invalid_date"
	AlreadySubmitted ValidationKind = "already_submitted"
)

// ValidationError reports one failing field on one draft row.
type ValidationError struct {
	RowID  string
	Field  string
	Kind   ValidationKind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %s: %s %s: %s", e.RowID, e.Field, e.Kind, e.Reason)
}

// ValidationErrors aggregates every failing row of a submission attempt so
// callers can surface all offending rows at once.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(msgs, "; "))
}

// ForRow returns the errors recorded against a single row ID.
func (e ValidationErrors) ForRow(rowID string) []*ValidationError {
	var out []*ValidationError
	for _, ve := range e {
		if ve.RowID == rowID {
			out = append(out, ve)
		}
	}
	return out
}

// WorkflowError rejects a transition not present in the transition table.
// The attempted transition leaves all state untouched.
type WorkflowError struct {
	Op   string
	From string
	To   string
}

func (e *WorkflowError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("illegal transition: %s from %s", e.Op, e.From)
	}
	return fmt.Sprintf("illegal transition: %s %s -> %s", e.Op, e.From, e.To)
}

// StaleRevisionError rejects an optimistic field update whose revision no
// longer matches the row.
type StaleRevisionError struct {
	RowID    string
	Expected int
	Actual   int
}

func (e *StaleRevisionError) Error() string {
	return fmt.Sprintf("row %s: stale revision %d (current %d)", e.RowID, e.Expected, e.Actual)
}
