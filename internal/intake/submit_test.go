package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/collections-cli/internal/model"
)

// captureSink records emitted cases and optionally fails.
type captureSink struct {
	cases []model.CaseRecord
	err   error
}

func (s *captureSink) EmitCases(_ context.Context, cases []model.CaseRecord) error {
	if s.err != nil {
		return s.err
	}
	s.cases = append(s.cases, cases...)
	return nil
}

var submitNow = time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC)

func newTestCoordinator(t *testing.T, sinks ...RecordSink) (*Coordinator, *Session) {
	t.Helper()
	session := NewSession(model.RoleAdmin)
	coord := NewCoordinator(session, CoordinatorOpts{
		Sinks:        sinks,
		FirstContact: 72 * time.Hour,
		Now:          func() time.Time { return submitNow },
	})
	return coord, session
}

func validRow(id string) model.DraftRow {
	return model.DraftRow{
		ID:           id,
		CustomerName: "Acme GmbH",
		Amount:       "1250.75",
		DueDate:      "2025-08-01",
		Phone:        "+49 30 1234567",
		Email:        "ap@acme.example",
	}
}

func TestSubmitConvertsValidRows(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	coord, session := newTestCoordinator(t, sink)
	session.TargetAgencyID = "dca-7"
	session.Drafts.AddExtractedRows([]model.DraftRow{validRow("r1")})

	receipt, err := coord.Submit(context.Background(), session.Drafts.Rows())
	require.NoError(t, err)
	require.Len(t, receipt.Cases, 1)
	assert.Empty(t, receipt.Failed)

	c := receipt.Cases[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Acme GmbH", c.CustomerName)
	assert.Equal(t, 1250.75, c.Amount)
	assert.Equal(t, "USD", c.Currency, "currency defaults when the row leaves it blank")
	assert.Equal(t, model.CaseStatusNew, c.Status)
	assert.Equal(t, submitNow.Add(72*time.Hour), c.SLADueDate)
	assert.Equal(t, "dca-7", c.AssignedAgencyID)
	assert.False(t, c.Locked)

	assert.Equal(t, 0, session.Drafts.Len(), "converted rows leave the draft table")
	assert.Equal(t, receipt.Cases, sink.cases)
	assert.Equal(t, "dca-7", receipt.TargetAgencyID)
	assert.Contains(t, receipt.Audit.Text, "1 case(s)")
}

func TestSubmitAggregatesAllRowErrors(t *testing.T) {
	t.Parallel()

	coord, session := newTestCoordinator(t)
	session.Drafts.AddExtractedRows([]model.DraftRow{{
		ID:      "bad",
		Amount:  "-50",
		DueDate: "tomorrow",
	}})

	receipt, err := coord.Submit(context.Background(), session.Drafts.Rows())
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)

	rowErrs := verrs.ForRow("bad")
	require.Len(t, rowErrs, 3, "every failing field is reported, not just the first")

	kinds := make(map[ValidationKind]bool)
	for _, ve := range rowErrs {
		kinds[ve.Kind] = true
	}
	assert.True(t, kinds[MissingField])
	assert.True(t, kinds[InvalidAmount])
	assert.True(t, kinds[InvalidDate])

	assert.Empty(t, receipt.Cases)
	assert.Equal(t, 1, session.Drafts.Len(), "failed rows stay in the table for correction")
}

func TestSubmitPartialSuccess(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	coord, session := newTestCoordinator(t, sink)
	session.Drafts.AddExtractedRows([]model.DraftRow{
		validRow("ok"),
		{ID: "broken", CustomerName: "Beta", Amount: "not a number", DueDate: "2025-08-01"},
	})

	receipt, err := coord.Submit(context.Background(), session.Drafts.Rows())
	require.NoError(t, err, "a batch with at least one conversion succeeds")
	require.Len(t, receipt.Cases, 1)
	require.Len(t, receipt.Failed, 1)
	assert.Equal(t, "broken", receipt.Failed[0].RowID)
	assert.Equal(t, InvalidAmount, receipt.Failed[0].Kind)

	assert.Equal(t, 1, session.Drafts.Len())
	_, stillThere := session.Drafts.Get("broken")
	assert.True(t, stillThere)
	assert.Len(t, sink.cases, 1)
}

func TestSubmitRejectsResubmission(t *testing.T) {
	t.Parallel()

	coord, session := newTestCoordinator(t)
	row := validRow("r1")
	session.Drafts.AddExtractedRows([]model.DraftRow{row})

	first, err := coord.Submit(context.Background(), session.Drafts.Rows())
	require.NoError(t, err)
	require.Len(t, first.Cases, 1)

	caseID, ok := coord.Converted("r1")
	require.True(t, ok)
	assert.Equal(t, first.Cases[0].ID, caseID)

	// The same row submitted again is refused at the row level.
	second, err := coord.Submit(context.Background(), []model.DraftRow{row})
	require.Error(t, err)
	require.Len(t, second.Failed, 1)
	assert.Equal(t, AlreadySubmitted, second.Failed[0].Kind)
	assert.Empty(t, second.Cases)
}

func TestSubmitValidatesCurrency(t *testing.T) {
	t.Parallel()

	coord, _ := newTestCoordinator(t)

	row := validRow("r1")
	row.Currency = "EUR"
	assert.Empty(t, coord.ValidateRow(row))

	row.Currency = "EURO"
	errs := coord.ValidateRow(row)
	require.Len(t, errs, 1)
	assert.Equal(t, string(FieldCurrency), errs[0].Field)
}

func TestSubmitSinkFailureIsReportedNotFatal(t *testing.T) {
	t.Parallel()

	good := &captureSink{}
	bad := &captureSink{err: errors.New("system of record unreachable")}
	coord, session := newTestCoordinator(t, bad, good)
	session.Drafts.AddExtractedRows([]model.DraftRow{validRow("r1")})

	receipt, err := coord.Submit(context.Background(), session.Drafts.Rows())
	require.NoError(t, err, "sink failures never undo the conversion")
	require.Len(t, receipt.Cases, 1)
	require.Len(t, receipt.SinkErrors, 1)
	assert.Contains(t, receipt.SinkErrors[0], "unreachable")
	assert.Len(t, good.cases, 1, "remaining sinks still receive the batch")
}

func TestAmountPrioritizer(t *testing.T) {
	t.Parallel()

	p := AmountPrioritizer{}
	ctx := context.Background()

	assert.Equal(t, model.PriorityHigh, p.Prioritize(ctx, model.CaseRecord{Amount: 30000}))
	assert.Equal(t, model.PriorityHigh, p.Prioritize(ctx, model.CaseRecord{Amount: 25000}))
	assert.Equal(t, model.PriorityMedium, p.Prioritize(ctx, model.CaseRecord{Amount: 5000}))
	assert.Equal(t, model.PriorityLow, p.Prioritize(ctx, model.CaseRecord{Amount: 4999.99}))

	custom := AmountPrioritizer{HighAbove: 100, MediumAbove: 10}
	assert.Equal(t, model.PriorityHigh, custom.Prioritize(ctx, model.CaseRecord{Amount: 150}))
	assert.Equal(t, model.PriorityLow, custom.Prioritize(ctx, model.CaseRecord{Amount: 5}))
}
