package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/collections-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testCase(id string) model.CaseRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return model.CaseRecord{
		ID:           id,
		CustomerName: "Acme GmbH",
		Amount:       1250.75,
		Currency:     "EUR",
		DueDate:      now.Add(30 * 24 * time.Hour),
		Status:       model.CaseStatusNew,
		Priority:     model.PriorityMedium,
		SLADueDate:   now.Add(72 * time.Hour),
		Phone:        "555-0100",
		Email:        "ap@acme.example",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSQLiteCaseLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	c := testCase("case-1")
	c.Logs = []model.ActivityEntry{{
		ID: "a1", Text: "Submitted", Actor: "intake",
		DeliveryState: model.DeliverySent, Timestamp: c.CreatedAt,
	}}
	require.NoError(t, s.CreateCase(ctx, c))

	got, err := s.GetCase(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme GmbH", got.CustomerName)
	assert.Equal(t, 1250.75, got.Amount)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, model.CaseStatusNew, got.Status)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.Empty(t, got.AssignedAgencyID)
	assert.False(t, got.Locked)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, "Submitted", got.Logs[0].Text)

	got.Status = model.CaseStatusContacted
	got.Locked = true
	got.Remarks = "left voicemail"
	got.AppendLog(model.ActivityEntry{ID: "a2", Text: "Status updated to Contacted", Timestamp: time.Now().UTC()})
	require.NoError(t, s.UpdateCase(ctx, *got))

	got, err = s.GetCase(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusContacted, got.Status)
	assert.True(t, got.Locked)
	assert.Equal(t, "left voicemail", got.Remarks)
	assert.Len(t, got.Logs, 2)
}

func TestSQLiteGetCaseNotFound(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	_, err := s.GetCase(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteUpdateCaseNotFound(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	err := s.UpdateCase(context.Background(), testCase("ghost"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteListCasesFilter(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	a := testCase("case-a")
	b := testCase("case-b")
	b.Status = model.CaseStatusContacted
	b.AssignedAgencyID = "dca-1"
	require.NoError(t, s.CreateCase(ctx, a))
	require.NoError(t, s.CreateCase(ctx, b))

	all, err := s.ListCases(ctx, CaseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	contacted, err := s.ListCases(ctx, CaseFilter{Status: model.CaseStatusContacted})
	require.NoError(t, err)
	require.Len(t, contacted, 1)
	assert.Equal(t, "case-b", contacted[0].ID)

	byAgency, err := s.ListCases(ctx, CaseFilter{AgencyID: "dca-1"})
	require.NoError(t, err)
	require.Len(t, byAgency, 1)
	assert.Equal(t, "case-b", byAgency[0].ID)

	limited, err := s.ListCases(ctx, CaseFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.ListCases(ctx, CaseFilter{Status: model.CaseStatusPaid})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteAgencies(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	a := model.Agency{
		ID: "dca-1", Name: "Nordwind Collections", Region: "EMEA",
		Status: model.AgencyActive, ComplianceScore: 92, RecoveryRate: 78,
		ActiveCases: 12, ContactEmail: "ops@nordwind.example",
	}
	require.NoError(t, s.UpsertAgency(ctx, a))

	// Upsert overwrites in place.
	a.Status = model.AgencyProbation
	a.ComplianceScore = 70
	require.NoError(t, s.UpsertAgency(ctx, a))

	require.NoError(t, s.UpsertAgency(ctx, model.Agency{
		ID: "dca-2", Name: "Atlas Recovery", Status: model.AgencyOnboarding,
	}))

	agencies, err := s.ListAgencies(ctx)
	require.NoError(t, err)
	require.Len(t, agencies, 2)

	// Ordered by name.
	assert.Equal(t, "Atlas Recovery", agencies[0].Name)
	assert.Equal(t, "Nordwind Collections", agencies[1].Name)
	assert.Equal(t, model.AgencyProbation, agencies[1].Status)
	assert.Equal(t, 70.0, agencies[1].ComplianceScore)
}

func TestSQLiteReceipts(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	exists, err := s.ReceiptExists(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.RecordReceipt(ctx, "r1", []string{"case-1", "case-2"}))

	exists, err = s.ReceiptExists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, exists)

	// Receipt IDs are unique.
	require.Error(t, s.RecordReceipt(ctx, "r1", []string{"case-3"}))
}

func TestCaseSinkPersistsBatch(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	sink := CaseSink{Store: s}
	require.NoError(t, sink.EmitCases(ctx, []model.CaseRecord{testCase("s1"), testCase("s2")}))

	cases, err := s.ListCases(ctx, CaseFilter{})
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}
