package model

import (
	"time"
)

// CaseStatus represents the collection state of a case.
type CaseStatus string

const (
	CaseStatusNew          CaseStatus = "New"
	CaseStatusContacted    CaseStatus = "Contacted"
	CaseStatusNotReachable CaseStatus = "Not Reachable"
	CaseStatusPromiseToPay CaseStatus = "Promise to Pay"
	CaseStatusPaid         CaseStatus = "Paid"
	CaseStatusBreached     CaseStatus = "SLA Breached"
)

// Valid reports whether s is a known case status.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusNew, CaseStatusContacted, CaseStatusNotReachable,
		CaseStatusPromiseToPay, CaseStatusPaid, CaseStatusBreached:
		return true
	}
	return false
}

// Terminal reports whether the status ends the collection lifecycle.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusPaid
}

// Priority ranks cases for agent attention.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// DeliveryState tracks whether an activity notification reached the agency.
type DeliveryState string

const (
	DeliverySent      DeliveryState = "Sent"
	DeliveryDelivered DeliveryState = "Delivered"
	DeliveryViewed    DeliveryState = "Viewed"
)

// ActivityEntry is one append-only audit record on a case.
type ActivityEntry struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	Actor         string        `json:"actor"`
	DeliveryState DeliveryState `json:"delivery_state"`
	Timestamp     time.Time     `json:"timestamp"`
}

// CaseRecord is a collection case after it has passed intake validation.
// Status changes flow through the submission coordinator; once a submission
// is confirmed the record is locked and rejects field mutation until an
// explicit reopen.
type CaseRecord struct {
	ID               string          `json:"id"`
	CustomerName     string          `json:"customer_name"`
	Amount           float64         `json:"amount"`
	Currency         string          `json:"currency"`
	DueDate          time.Time       `json:"due_date"`
	Status           CaseStatus      `json:"status"`
	Priority         Priority        `json:"priority"`
	SLADueDate       time.Time       `json:"sla_due_date"`
	AssignedAgencyID string          `json:"assigned_agency_id,omitempty"`
	PromiseDate      string          `json:"promise_date,omitempty"`
	Remarks          string          `json:"remarks,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Email            string          `json:"email,omitempty"`
	Address          string          `json:"address,omitempty"`
	Locked           bool            `json:"locked"`
	Logs             []ActivityEntry `json:"logs,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AppendLog adds an audit entry. Logs are append-only and survive locking.
func (c *CaseRecord) AppendLog(e ActivityEntry) {
	c.Logs = append(c.Logs, e)
	c.UpdatedAt = e.Timestamp
}

// LastActivity returns the timestamp of the most recent audit entry,
// falling back to CreatedAt for cases with no activity yet.
func (c *CaseRecord) LastActivity() time.Time {
	if len(c.Logs) == 0 {
		return c.CreatedAt
	}
	return c.Logs[len(c.Logs)-1].Timestamp
}
