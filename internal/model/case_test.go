package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCaseStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []CaseStatus{
		CaseStatusNew, CaseStatusContacted, CaseStatusNotReachable,
		CaseStatusPromiseToPay, CaseStatusPaid, CaseStatusBreached,
	} {
		assert.True(t, s.Valid(), string(s))
	}

	assert.False(t, CaseStatus("").Valid())
	assert.False(t, CaseStatus("Closed").Valid())
	assert.False(t, CaseStatus("new").Valid(), "statuses are case sensitive")
}

func TestCaseStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, CaseStatusPaid.Terminal())
	assert.False(t, CaseStatusNew.Terminal())
	assert.False(t, CaseStatusBreached.Terminal())
}

func TestAppendLogUpdatesTimestamp(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := CaseRecord{ID: "c1", CreatedAt: created, UpdatedAt: created}

	assert.Equal(t, created, c.LastActivity(), "no logs falls back to creation time")

	first := created.Add(2 * time.Hour)
	c.AppendLog(ActivityEntry{ID: "a1", Text: "Called customer", Timestamp: first})
	assert.Equal(t, first, c.LastActivity())
	assert.Equal(t, first, c.UpdatedAt)

	second := created.Add(48 * time.Hour)
	c.AppendLog(ActivityEntry{ID: "a2", Text: "Left voicemail", Timestamp: second})
	assert.Len(t, c.Logs, 2)
	assert.Equal(t, second, c.LastActivity())
}
