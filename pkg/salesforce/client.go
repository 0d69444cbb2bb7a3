// Package salesforce emits submitted collection cases to the system of
// record over the rate-limited go-salesforce REST client.
package salesforce

import (
	"context"
	"fmt"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/collections-cli/internal/model"
)

const maxBatchSize = 200

// Client defines the Salesforce operations the intake engine uses.
type Client interface {
	InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
}

// CollectionResult is the outcome of a single record in a collection insert.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for SF API calls.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// sfClient wraps the go-salesforce/v3 Salesforce struct.
//
// NOTE: go-salesforce/v3 does not accept context.Context; ctx is used only
// for rate-limiter waiting so callers can still cancel that wait.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewClient creates a Salesforce Client wrapping a go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *sfClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sf: rate limit")
	}
	sfResults, err := c.sf.InsertCollection(sObjectName, records, maxBatchSize)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: insert collection %s", sObjectName))
	}

	results := make([]CollectionResult, len(sfResults.Results))
	for i, r := range sfResults.Results {
		var errs []string
		for _, e := range r.Errors {
			errs = append(errs, e.Message)
		}
		results[i] = CollectionResult{ID: r.Id, Success: r.Success, Errors: errs}
	}
	return results, nil
}

// CaseWriter sinks converted case records into a Salesforce custom object.
type CaseWriter struct {
	Client  Client
	SObject string // default "Collection_Case__c"
}

// EmitCases writes the batch; per-record failures are aggregated into one
// error so the caller can surface them without losing local state.
func (w CaseWriter) EmitCases(ctx context.Context, cases []model.CaseRecord) error {
	if len(cases) == 0 {
		return nil
	}
	sobject := w.SObject
	if sobject == "" {
		sobject = "Collection_Case__c"
	}

	records := make([]map[string]any, len(cases))
	for i, c := range cases {
		records[i] = map[string]any{
			"External_Id__c":   c.ID,
			"Customer_Name__c": c.CustomerName,
			"Amount__c":        c.Amount,
			"CurrencyIsoCode":  c.Currency,
			"Due_Date__c":      c.DueDate.Format("2006-01-02"),
			"Status__c":        string(c.Status),
			"Priority__c":      string(c.Priority),
			"SLA_Due_Date__c":  c.SLADueDate.Format("2006-01-02"),
			"Agency_Id__c":     c.AssignedAgencyID,
		}
	}

	results, err := w.Client.InsertCollection(ctx, sobject, records)
	if err != nil {
		return err
	}

	var failed []string
	for i, r := range results {
		if !r.Success {
			failed = append(failed, fmt.Sprintf("%s: %v", cases[i].ID, r.Errors))
		}
	}
	if len(failed) > 0 {
		return eris.Errorf("sf: %d case(s) rejected: %v", len(failed), failed)
	}
	return nil
}
