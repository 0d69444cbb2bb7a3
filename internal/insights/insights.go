// Package insights is the chat/analysis service boundary consumed by the
// dashboard and agency-risk surfaces. Answers are short free text; every
// failure mode degrades to a fixed unavailable string so the caller never
// sees an error from this package.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/collections-cli/internal/model"
	"github.com/sells-group/collections-cli/pkg/anthropic"
)

// Unavailable is the degraded answer returned on any service failure.
const Unavailable = "AI service unavailable — please retry later."

const systemPrompt = `You are an analyst for a debt-collection operations
team. Answer in at most three sentences of plain prose.`

// Options configures the service.
type Options struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

// Service answers analysis queries over the AI boundary.
type Service struct {
	client anthropic.Client
	opts   Options
}

// NewService creates an insights service.
func NewService(client anthropic.Client, opts Options) *Service {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 512
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Service{client: client, opts: opts}
}

// Ask answers a free-text query with a role-specific context string.
func (s *Service) Ask(ctx context.Context, query, roleContext string) string {
	prompt := query
	if roleContext != "" {
		prompt = "Context: " + roleContext + "\n\n" + query
	}
	return s.ask(ctx, prompt, "chat")
}

// AnalyzeAgencyRisk summarizes an agency's risk posture.
func (s *Service) AnalyzeAgencyRisk(ctx context.Context, a model.Agency) string {
	prompt := fmt.Sprintf(
		"Assess the operational risk of collection agency %q (region %s, status %s, compliance score %.0f/100, recovery rate %.0f%%, %d active cases).",
		a.Name, a.Region, a.Status, a.ComplianceScore, a.RecoveryRate, a.ActiveCases,
	)
	return s.ask(ctx, prompt, "agency_risk")
}

// PrioritizeCases summarizes how a caseload should be triaged.
func (s *Service) PrioritizeCases(ctx context.Context, caseCount int) string {
	prompt := fmt.Sprintf(
		"We have %d open collection cases. Suggest how to split them into high, medium, and low priority buckets.",
		caseCount,
	)
	return s.ask(ctx, prompt, "prioritize")
}

// SLAInsights summarizes improvement opportunities for an SLA policy.
func (s *Service) SLAInsights(ctx context.Context, firstContactDays, escalationDays int) string {
	prompt := fmt.Sprintf(
		"Our SLA requires first contact within %d days and escalates after %d days of inactivity. Suggest one concrete improvement.",
		firstContactDays, escalationDays,
	)
	return s.ask(ctx, prompt, "sla_insight")
}

func (s *Service) ask(ctx context.Context, prompt, phase string) string {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.opts.Model,
		MaxTokens: s.opts.MaxTokens,
		System:    systemPrompt,
		Parts:     []anthropic.ContentPart{{Kind: anthropic.PartText, Text: prompt}},
	})
	if err != nil {
		zap.L().Warn("insights query failed", zap.String("phase", phase), zap.Error(err))
		return Unavailable
	}
	resp.Usage.Log(resp.Model, phase)

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return Unavailable
	}
	return answer
}
