package intake

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/collections-cli/internal/model"
)

// ViewState is one screen of the intake navigation loop.
type ViewState string

const (
	ViewHub       ViewState = "hub"
	ViewManualAdd ViewState = "manual_add"
	ViewSLAConfig ViewState = "sla_config"
	ViewDCASelect ViewState = "dca_select"
)

// viewTransitions is the intake navigation table. Anything not listed is an
// illegal transition.
var viewTransitions = map[ViewState][]ViewState{
	ViewHub:       {ViewManualAdd, ViewSLAConfig, ViewDCASelect},
	ViewManualAdd: {ViewHub},
	ViewSLAConfig: {ViewHub},
	ViewDCASelect: {ViewHub},
}

// Session owns all workflow state for one intake sitting: the current view,
// the draft table, and the pending blank-row count input. Sessions are
// created on role entry and discarded on navigation away; they are never
// shared between users.
type Session struct {
	ID     string
	Role   model.Role
	Drafts *DraftTable

	view ViewState

	// PendingRowCount mirrors the numeric "add N rows" input; it is reset
	// by Cancel along with the drafts.
	PendingRowCount int

	// TargetAgencyID is the agency chosen on the DCA-select view, if any.
	TargetAgencyID string
}

// NewSession creates a session positioned at the hub.
func NewSession(role model.Role) *Session {
	return &Session{
		ID:     uuid.New().String(),
		Role:   role,
		Drafts: NewDraftTable(),
		view:   ViewHub,
	}
}

// View returns the current intake view.
func (s *Session) View() ViewState {
	return s.view
}

// Navigate moves to another view. Entering ManualAdd never clears prior
// drafts. Unlisted transitions are rejected without state changes.
func (s *Session) Navigate(to ViewState) error {
	for _, allowed := range viewTransitions[s.view] {
		if allowed == to {
			s.view = to
			return nil
		}
	}
	return &WorkflowError{Op: "navigate", From: string(s.view), To: string(to)}
}

// Cancel abandons the current sub-view: drafts and the pending row-count
// input are cleared and the session returns to the hub.
func (s *Session) Cancel() error {
	if s.view == ViewHub {
		return &WorkflowError{Op: "cancel", From: string(ViewHub)}
	}
	s.Drafts.Clear()
	s.PendingRowCount = 0
	s.view = ViewHub
	return nil
}

// BackToHub leaves the current sub-view without discarding drafts.
func (s *Session) BackToHub() error {
	if s.view == ViewHub {
		return &WorkflowError{Op: "back_to_hub", From: string(ViewHub)}
	}
	s.view = ViewHub
	return nil
}

// UpdateStage is the per-case status-update sub-state.
type UpdateStage string

const (
	StageEditing UpdateStage = "editing"
	StagePreview UpdateStage = "preview"
	StageLocked  UpdateStage = "locked"
)

// StatusUpdate drives one status change of a case through editing, preview,
// and locked confirmation. Once confirmed, the underlying case is locked and
// only audit appends (and an explicit reopen) are allowed.
type StatusUpdate struct {
	Case *model.CaseRecord

	stage       UpdateStage
	Status      model.CaseStatus
	PromiseDate string
	Remarks     string
}

// NewStatusUpdate starts an update cycle for an unlocked case.
func NewStatusUpdate(c *model.CaseRecord) (*StatusUpdate, error) {
	if c.Locked {
		return nil, &WorkflowError{Op: "start_update", From: string(StageLocked)}
	}
	return &StatusUpdate{Case: c, stage: StageEditing}, nil
}

// Stage returns the current sub-state.
func (u *StatusUpdate) Stage() UpdateStage {
	return u.stage
}

// SubmitUpdate moves Editing -> Preview. A status must be selected, and
// Promise to Pay requires a promise date before preview is reachable.
func (u *StatusUpdate) SubmitUpdate() error {
	if u.stage != StageEditing {
		return &WorkflowError{Op: "submit_update", From: string(u.stage), To: string(StagePreview)}
	}
	if u.Status == "" || !u.Status.Valid() {
		return &WorkflowError{Op: "submit_update", From: string(StageEditing)}
	}
	if u.Status == model.CaseStatusPromiseToPay && u.PromiseDate == "" {
		return &WorkflowError{Op: "submit_update", From: string(StageEditing), To: string(StagePreview)}
	}
	u.stage = StagePreview
	return nil
}

// Edit moves Preview -> Editing for further changes.
func (u *StatusUpdate) Edit() error {
	if u.stage != StagePreview {
		return &WorkflowError{Op: "edit", From: string(u.stage), To: string(StageEditing)}
	}
	u.stage = StageEditing
	return nil
}

// ConfirmSubmit moves Preview -> Locked: the case takes the new status, is
// locked against further edits, and exactly one audit entry (Sent) is
// appended. A second confirm is rejected.
func (u *StatusUpdate) ConfirmSubmit(actor string, now time.Time) error {
	if u.stage != StagePreview {
		return &WorkflowError{Op: "confirm_submit", From: string(u.stage), To: string(StageLocked)}
	}

	u.Case.Status = u.Status
	if u.Status == model.CaseStatusPromiseToPay {
		u.Case.PromiseDate = u.PromiseDate
	}
	if u.Remarks != "" {
		u.Case.Remarks = u.Remarks
	}
	u.Case.Locked = true
	u.Case.AppendLog(model.ActivityEntry{
		ID:            uuid.New().String(),
		Text:          "Status updated to " + string(u.Status),
		Actor:         actor,
		DeliveryState: model.DeliverySent,
		Timestamp:     now,
	})
	u.stage = StageLocked
	return nil
}

// Reopen unlocks a locked case for a new authorized update cycle. Only the
// admin role may reopen; the unlock itself is audited.
func Reopen(c *model.CaseRecord, role model.Role, actor string, now time.Time) error {
	if !role.CanManageCases() {
		return &WorkflowError{Op: "reopen", From: "role:" + string(role)}
	}
	if !c.Locked {
		return &WorkflowError{Op: "reopen", From: string(StageEditing)}
	}
	c.Locked = false
	c.AppendLog(model.ActivityEntry{
		ID:            uuid.New().String(),
		Text:          "Case reopened for update",
		Actor:         actor,
		DeliveryState: model.DeliverySent,
		Timestamp:     now,
	})
	return nil
}
