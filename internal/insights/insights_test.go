package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/collections-cli/internal/model"
	"github.com/sells-group/collections-cli/pkg/anthropic"
)

type fakeClient struct {
	text string
	err  error
	last anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Text: f.text, Model: req.Model}, nil
}

func TestAskReturnsAnswer(t *testing.T) {
	t.Parallel()

	client := &fakeClient{text: "  Focus on the three cases past their SLA deadline.  "}
	svc := NewService(client, Options{Model: "test-model"})

	got := svc.Ask(context.Background(), "What should I do first today?", "role: admin")
	assert.Equal(t, "Focus on the three cases past their SLA deadline.", got)
	assert.Contains(t, client.last.Parts[0].Text, "role: admin")
	assert.Contains(t, client.last.Parts[0].Text, "What should I do first today?")
}

func TestAskDegradesOnError(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeClient{err: errors.New("api quota exceeded")}, Options{})
	got := svc.Ask(context.Background(), "anything", "")
	assert.Equal(t, Unavailable, got)
}

func TestAskDegradesOnEmptyAnswer(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeClient{text: "   \n  "}, Options{})
	got := svc.Ask(context.Background(), "anything", "")
	assert.Equal(t, Unavailable, got)
}

func TestAnalyzeAgencyRisk(t *testing.T) {
	t.Parallel()

	client := &fakeClient{text: "Low risk."}
	svc := NewService(client, Options{})

	got := svc.AnalyzeAgencyRisk(context.Background(), model.Agency{
		Name: "Nordwind Collections", Region: "EMEA", Status: model.AgencyActive,
		ComplianceScore: 92, RecoveryRate: 78, ActiveCases: 12,
	})
	assert.Equal(t, "Low risk.", got)

	prompt := client.last.Parts[0].Text
	assert.Contains(t, prompt, "Nordwind Collections")
	assert.Contains(t, prompt, "EMEA")
	assert.Contains(t, prompt, "12 active cases")
}

func TestPrioritizeAndSLAInsights(t *testing.T) {
	t.Parallel()

	client := &fakeClient{text: "Triage by amount."}
	svc := NewService(client, Options{})

	require.Equal(t, "Triage by amount.", svc.PrioritizeCases(context.Background(), 40))
	assert.Contains(t, client.last.Parts[0].Text, "40 open collection cases")

	require.Equal(t, "Triage by amount.", svc.SLAInsights(context.Background(), 3, 14))
	assert.Contains(t, client.last.Parts[0].Text, "first contact within 3 days")
}
