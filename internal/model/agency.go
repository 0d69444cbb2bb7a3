package model

import "time"

// AgencyStatus represents the engagement state of a collection agency.
type AgencyStatus string

const (
	AgencyActive     AgencyStatus = "Active"
	AgencyProbation  AgencyStatus = "Probation"
	AgencySuspended  AgencyStatus = "Suspended"
	AgencyOnboarding AgencyStatus = "Onboarding"
)

// Agency is an external debt collection agency cases may be assigned to.
// Compliance and recovery scores feed recommendation ranking only; this
// engine never mutates them.
type Agency struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Region          string       `json:"region"`
	Status          AgencyStatus `json:"status"`
	ComplianceScore float64      `json:"compliance_score"` // 0..100
	RecoveryRate    float64      `json:"recovery_rate"`    // 0..100
	ActiveCases     int          `json:"active_cases"`
	ContactEmail    string       `json:"contact_email,omitempty"`
	LastAuditDate   time.Time    `json:"last_audit_date,omitempty"`
}

// Assignable reports whether new cases may be routed to the agency.
func (a Agency) Assignable() bool {
	return a.Status == AgencyActive || a.Status == AgencyProbation
}

// RankAgencies orders agencies for assignment recommendation: assignable
// first, then by a blended compliance/recovery score, descending. The input
// slice is not modified.
func RankAgencies(agencies []Agency) []Agency {
	ranked := make([]Agency, len(agencies))
	copy(ranked, agencies)

	score := func(a Agency) float64 {
		s := 0.6*a.ComplianceScore + 0.4*a.RecoveryRate
		if !a.Assignable() {
			s -= 1000
		}
		return s
	}

	// Insertion sort keeps ties insertion-stable.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && score(ranked[j]) > score(ranked[j-1]); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}
