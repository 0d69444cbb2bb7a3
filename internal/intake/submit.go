package intake

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/sells-group/collections-cli/internal/model"
)

const dateLayout = "2006-01-02"

// Prioritizer assigns a priority to a freshly converted case. The default
// buckets on amount; an AI-backed collaborator can replace it.
type Prioritizer interface {
	Prioritize(ctx context.Context, c model.CaseRecord) model.Priority
}

// AmountPrioritizer buckets priority by outstanding amount.
type AmountPrioritizer struct {
	HighAbove   float64 // default 25000
	MediumAbove float64 // default 5000
}

func (p AmountPrioritizer) Prioritize(_ context.Context, c model.CaseRecord) model.Priority {
	high, med := p.HighAbove, p.MediumAbove
	if high == 0 {
		high = 25000
	}
	if med == 0 {
		med = 5000
	}
	switch {
	case c.Amount >= high:
		return model.PriorityHigh
	case c.Amount >= med:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// RecordSink receives converted cases. Sinks are optional collaborators
// (store, system of record); their failures are reported on the receipt but
// never undo the conversion.
type RecordSink interface {
	EmitCases(ctx context.Context, cases []model.CaseRecord) error
}

// SubmissionReceipt summarizes one submission batch.
type SubmissionReceipt struct {
	ID             string                `json:"id"`
	SubmittedAt    time.Time             `json:"submitted_at"`
	Cases          []model.CaseRecord    `json:"cases"`
	Failed         ValidationErrors      `json:"failed,omitempty"`
	TargetAgencyID string                `json:"target_agency_id,omitempty"`
	Audit          model.ActivityEntry   `json:"audit"`
	SinkErrors     []string              `json:"sink_errors,omitempty"`
}

// CoordinatorOpts configures a Coordinator.
type CoordinatorOpts struct {
	Prioritizer     Prioritizer
	Sinks           []RecordSink
	FirstContact    time.Duration // SLA window for the first contact
	DefaultCurrency string
	Now             func() time.Time
}

// Coordinator validates draft rows, converts them into case records, and
// tracks which rows have already been converted so resubmission is rejected
// at the row level.
type Coordinator struct {
	session   *Session
	opts      CoordinatorOpts
	converted map[string]string // draft row ID -> case ID
}

// NewCoordinator creates a coordinator bound to one intake session.
func NewCoordinator(session *Session, opts CoordinatorOpts) *Coordinator {
	if opts.Prioritizer == nil {
		opts.Prioritizer = AmountPrioritizer{}
	}
	if opts.FirstContact == 0 {
		opts.FirstContact = 72 * time.Hour
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		session:   session,
		opts:      opts,
		converted: make(map[string]string),
	}
}

// ValidateRow checks a single draft row without converting it.
func (c *Coordinator) ValidateRow(row model.DraftRow) ValidationErrors {
	var errs ValidationErrors

	if _, done := c.converted[row.ID]; done {
		errs = append(errs, &ValidationError{
			RowID: row.ID, Field: "id", Kind: AlreadySubmitted,
			Reason: "row was already converted to case " + c.converted[row.ID],
		})
		return errs
	}

	if strings.TrimSpace(row.CustomerName) == "" {
		errs = append(errs, &ValidationError{
			RowID: row.ID, Field: string(FieldCustomerName), Kind: MissingField,
			Reason: "customer name is required",
		})
	}

	amt, err := strconv.ParseFloat(strings.TrimSpace(row.Amount), 64)
	if err != nil {
		errs = append(errs, &ValidationError{
			RowID: row.ID, Field: string(FieldAmount), Kind: InvalidAmount,
			Reason: "amount must be numeric",
		})
	} else if amt <= 0 {
		errs = append(errs, &ValidationError{
			RowID: row.ID, Field: string(FieldAmount), Kind: InvalidAmount,
			Reason: "amount must be positive",
		})
	}

	if _, err := time.Parse(dateLayout, strings.TrimSpace(row.DueDate)); err != nil {
		errs = append(errs, &ValidationError{
			RowID: row.ID, Field: string(FieldDueDate), Kind: InvalidDate,
			Reason: "due date must be a calendar date (YYYY-MM-DD)",
		})
	}

	if cur := strings.TrimSpace(row.Currency); cur != "" {
		if _, err := currency.ParseISO(cur); err != nil {
			errs = append(errs, &ValidationError{
				RowID: row.ID, Field: string(FieldCurrency), Kind: InvalidAmount,
				Reason: "unknown ISO 4217 currency code",
			})
		}
	}

	return errs
}

// Submit validates each row, converts the valid ones into case records with
// status New, clears converted rows from the session's draft table, and
// appends one batch audit entry. Invalid rows are reported in full on the
// receipt and remain in the table; they never abort the batch.
func (c *Coordinator) Submit(ctx context.Context, rows []model.DraftRow) (*SubmissionReceipt, error) {
	now := c.opts.Now().UTC()
	log := zap.L().With(zap.String("session", c.session.ID))

	receipt := &SubmissionReceipt{
		ID:             uuid.New().String(),
		SubmittedAt:    now,
		TargetAgencyID: c.session.TargetAgencyID,
	}

	for _, row := range rows {
		if errs := c.ValidateRow(row); len(errs) > 0 {
			receipt.Failed = append(receipt.Failed, errs...)
			continue
		}
		rec := c.convert(ctx, row, now)
		c.converted[row.ID] = rec.ID
		c.session.Drafts.DeleteRow(row.ID)
		receipt.Cases = append(receipt.Cases, rec)
	}

	receipt.Audit = model.ActivityEntry{
		ID:            uuid.New().String(),
		Text:          "Submitted batch of " + strconv.Itoa(len(receipt.Cases)) + " case(s)",
		Actor:         "intake",
		DeliveryState: model.DeliverySent,
		Timestamp:     now,
	}

	for _, sink := range c.opts.Sinks {
		if len(receipt.Cases) == 0 {
			break
		}
		if err := sink.EmitCases(ctx, receipt.Cases); err != nil {
			log.Warn("record sink failed", zap.Error(err))
			receipt.SinkErrors = append(receipt.SinkErrors, err.Error())
		}
	}

	log.Info("submission complete",
		zap.Int("converted", len(receipt.Cases)),
		zap.Int("failed_rows", len(rowIDs(receipt.Failed))),
		zap.String("target_agency", receipt.TargetAgencyID),
	)

	if len(receipt.Cases) == 0 && len(receipt.Failed) > 0 {
		return receipt, receipt.Failed
	}
	return receipt, nil
}

// convert builds the case record for a validated row. Validation has already
// guaranteed the parses succeed.
func (c *Coordinator) convert(ctx context.Context, row model.DraftRow, now time.Time) model.CaseRecord {
	amt, _ := strconv.ParseFloat(strings.TrimSpace(row.Amount), 64)
	due, _ := time.Parse(dateLayout, strings.TrimSpace(row.DueDate))

	cur := strings.TrimSpace(row.Currency)
	if cur == "" {
		cur = c.opts.DefaultCurrency
	}

	rec := model.CaseRecord{
		ID:               uuid.New().String(),
		CustomerName:     strings.TrimSpace(row.CustomerName),
		Amount:           amt,
		Currency:         cur,
		DueDate:          due,
		Status:           model.CaseStatusNew,
		SLADueDate:       now.Add(c.opts.FirstContact),
		AssignedAgencyID: c.session.TargetAgencyID,
		Phone:            row.Phone,
		Email:            row.Email,
		Address:          row.Address,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	rec.Priority = c.opts.Prioritizer.Prioritize(ctx, rec)
	return rec
}

// Converted returns the case ID a draft row was converted to, if any.
func (c *Coordinator) Converted(rowID string) (string, bool) {
	id, ok := c.converted[rowID]
	return id, ok
}

func rowIDs(errs ValidationErrors) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range errs {
		if !seen[e.RowID] {
			seen[e.RowID] = true
			ids = append(ids, e.RowID)
		}
	}
	return ids
}
