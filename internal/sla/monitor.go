package sla

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/collections-cli/internal/model"
)

// Breach describes one SLA violation found during evaluation.
type Breach struct {
	CaseID string
	Reason string
}

// Monitor evaluates cases against a policy. Evaluation is a pure function of
// its inputs; scheduling cadence belongs to the caller.
type Monitor struct {
	policy Policy
}

// NewMonitor creates a monitor for the given policy.
func NewMonitor(policy Policy) *Monitor {
	return &Monitor{policy: policy}
}

// Evaluate marks breached cases and appends an escalation entry to each.
// A case breaches when first contact has not happened by its SLA deadline,
// or when its last activity is older than the inactivity threshold. Cases
// already Breached, Paid, or locked are left untouched, so evaluation is
// idempotent over a fixed input.
func (m *Monitor) Evaluate(cases []*model.CaseRecord, now time.Time) []Breach {
	var breaches []Breach

	inactivity := time.Duration(m.policy.EscalationInactivityDays) * 24 * time.Hour

	for _, c := range cases {
		if c.Locked || c.Status.Terminal() || c.Status == model.CaseStatusBreached {
			continue
		}

		var reason string
		switch {
		case c.Status == model.CaseStatusNew && now.After(c.SLADueDate):
			reason = "first contact window elapsed"
		case inactivity > 0 && now.Sub(c.LastActivity()) > inactivity:
			reason = "no activity within escalation window"
		default:
			continue
		}

		c.Status = model.CaseStatusBreached
		c.AppendLog(model.ActivityEntry{
			ID:            uuid.New().String(),
			Text:          "SLA breach: " + reason,
			Actor:         "sla-monitor",
			DeliveryState: model.DeliverySent,
			Timestamp:     now,
		})
		breaches = append(breaches, Breach{CaseID: c.ID, Reason: reason})
	}

	if len(breaches) > 0 {
		zap.L().Warn("sla breaches detected", zap.Int("count", len(breaches)))
	}
	return breaches
}
