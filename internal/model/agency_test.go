package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgencyAssignable(t *testing.T) {
	t.Parallel()

	assert.True(t, Agency{Status: AgencyActive}.Assignable())
	assert.True(t, Agency{Status: AgencyProbation}.Assignable())
	assert.False(t, Agency{Status: AgencySuspended}.Assignable())
	assert.False(t, Agency{Status: AgencyOnboarding}.Assignable())
}

func TestRankAgencies(t *testing.T) {
	t.Parallel()

	agencies := []Agency{
		{ID: "low", Status: AgencyActive, ComplianceScore: 50, RecoveryRate: 40},
		{ID: "suspended", Status: AgencySuspended, ComplianceScore: 99, RecoveryRate: 99},
		{ID: "high", Status: AgencyActive, ComplianceScore: 95, RecoveryRate: 80},
		{ID: "mid", Status: AgencyProbation, ComplianceScore: 70, RecoveryRate: 75},
	}

	ranked := RankAgencies(agencies)
	require.Len(t, ranked, 4)

	assert.Equal(t, "high", ranked[0].ID)
	assert.Equal(t, "mid", ranked[1].ID)
	assert.Equal(t, "low", ranked[2].ID)
	assert.Equal(t, "suspended", ranked[3].ID, "unassignable agencies sort last regardless of score")

	// Input order untouched.
	assert.Equal(t, "low", agencies[0].ID)
}

func TestRankAgenciesWeightsComplianceOverRecovery(t *testing.T) {
	t.Parallel()

	ranked := RankAgencies([]Agency{
		{ID: "recovers", Status: AgencyActive, ComplianceScore: 60, RecoveryRate: 90},
		{ID: "complies", Status: AgencyActive, ComplianceScore: 90, RecoveryRate: 60},
	})
	assert.Equal(t, "complies", ranked[0].ID)
}
