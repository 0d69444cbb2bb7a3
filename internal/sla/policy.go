// Package sla holds the service-level policy governing case-handling
// timeliness and the breach evaluator derived from it.
package sla

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Policy is the SLA threshold set, all in whole days.
type Policy struct {
	FirstContactDays         int `yaml:"first_contact_days"`
	UpdateFrequencyDays      int `yaml:"update_frequency_days"`
	MaxCaseDurationDays      int `yaml:"max_case_duration_days"`
	PromiseFollowUpDays      int `yaml:"promise_follow_up_days"`
	EscalationInactivityDays int `yaml:"escalation_inactivity_days"`
}

// DefaultPolicy returns the stock thresholds applied when no policy file
// exists.
func DefaultPolicy() Policy {
	return Policy{
		FirstContactDays:         3,
		UpdateFrequencyDays:      7,
		MaxCaseDurationDays:      90,
		PromiseFollowUpDays:      5,
		EscalationInactivityDays: 14,
	}
}

// LoadPolicy reads a policy file, falling back to defaults when the file
// does not exist.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return Policy{}, eris.Wrap(err, "sla: read policy")
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, eris.Wrap(err, "sla: parse policy")
	}
	return p, nil
}

// SavePolicy writes the policy file.
func SavePolicy(path string, p Policy) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sla: marshal policy")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "sla: write policy")
	}
	return nil
}

// FirstContactWindow returns the first-contact SLA window as a duration.
func (p Policy) FirstContactWindow() time.Duration {
	return time.Duration(p.FirstContactDays) * 24 * time.Hour
}

// DueDate computes the first-contact SLA deadline for a case created at t.
func (p Policy) DueDate(t time.Time) time.Time {
	return t.Add(p.FirstContactWindow())
}
