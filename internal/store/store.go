// Package store persists case records, agencies, and submission receipts.
// Persistence is an optional collaborator of the intake engine: the workflow
// runs entirely in memory and sinks converted cases here when configured.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/collections-cli/internal/model"
)

// ErrNotFound reports a lookup that matched no record.
var ErrNotFound = errors.New("store: not found")

// CaseFilter specifies criteria for listing cases.
type CaseFilter struct {
	Status   model.CaseStatus `json:"status,omitempty"`
	AgencyID string           `json:"agency_id,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the intake engine.
type Store interface {
	// Cases
	CreateCase(ctx context.Context, c model.CaseRecord) error
	GetCase(ctx context.Context, id string) (*model.CaseRecord, error)
	ListCases(ctx context.Context, filter CaseFilter) ([]model.CaseRecord, error)
	UpdateCase(ctx context.Context, c model.CaseRecord) error

	// Agencies
	UpsertAgency(ctx context.Context, a model.Agency) error
	ListAgencies(ctx context.Context) ([]model.Agency, error)

	// Submission receipts (row-level idempotency across restarts)
	RecordReceipt(ctx context.Context, receiptID string, caseIDs []string) error
	ReceiptExists(ctx context.Context, receiptID string) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// CaseSink adapts a Store to the submission coordinator's sink contract.
type CaseSink struct {
	Store Store
}

// EmitCases persists each converted case.
func (s CaseSink) EmitCases(ctx context.Context, cases []model.CaseRecord) error {
	for _, c := range cases {
		if err := s.Store.CreateCase(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
