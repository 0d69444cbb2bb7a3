package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/collections-cli/internal/docsource"
	"github.com/sells-group/collections-cli/internal/extract"
	"github.com/sells-group/collections-cli/internal/insights"
	"github.com/sells-group/collections-cli/internal/intake"
	"github.com/sells-group/collections-cli/internal/model"
	"github.com/sells-group/collections-cli/internal/sla"
	"github.com/sells-group/collections-cli/internal/store"
	anthropicpkg "github.com/sells-group/collections-cli/pkg/anthropic"
	salesforcepkg "github.com/sells-group/collections-cli/pkg/salesforce"
)

// intakeEnv holds the initialized store, clients, and engine components
// shared by the intake/cases/agencies/sla/serve commands.
type intakeEnv struct {
	Store    store.Store
	Insights *insights.Service
	Fetcher  *docsource.Fetcher
	Policy   sla.Policy
	Sinks    []intake.RecordSink

	anthropic   anthropicpkg.Client
	extractOpts extract.Options
}

// newExtractAdapter builds a fresh extraction adapter. Each document upload
// gets its own adapter so the in-flight gate applies per upload control, not
// across a whole batch.
func (e *intakeEnv) newExtractAdapter() *extract.Adapter {
	return extract.NewAdapter(e.anthropic, e.extractOpts)
}

// Close releases resources held by the environment.
func (e *intakeEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, the Anthropic-backed adapter and insights
// service, the document fetcher, and the configured record sinks. Callers
// should defer env.Close().
func initEnv(ctx context.Context) (*intakeEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	extractOpts := extract.Options{
		Model:     cfg.Anthropic.ExtractModel,
		MaxTokens: cfg.Extraction.MaxTokens,
		Timeout:   time.Duration(cfg.Extraction.TimeoutSecs) * time.Second,
	}

	insightsSvc := insights.NewService(anthropicClient, insights.Options{
		Model: cfg.Anthropic.InsightsModel,
	})

	fetcher := docsource.NewFetcher(docsource.Options{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RequestsPerS: cfg.Fetch.RequestsPerS,
	})

	policy, err := sla.LoadPolicy(cfg.SLA.PolicyPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	sinks := []intake.RecordSink{store.CaseSink{Store: st}}
	if sf := initSalesforce(); sf != nil {
		sinks = append(sinks, salesforcepkg.CaseWriter{Client: sf, SObject: cfg.Salesforce.SObject})
	}

	return &intakeEnv{
		Store:       st,
		Insights:    insightsSvc,
		Fetcher:     fetcher,
		Policy:      policy,
		Sinks:       sinks,
		anthropic:   anthropicClient,
		extractOpts: extractOpts,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initSalesforce builds the system-of-record client, or nil when the
// engine runs without one (local-only intake).
func initSalesforce() salesforcepkg.Client {
	sc := cfg.Salesforce
	if sc.ClientID == "" || sc.Username == "" || sc.KeyPath == "" {
		return nil
	}

	pemData, err := os.ReadFile(sc.KeyPath)
	if err != nil {
		zap.L().Warn("read salesforce JWT private key failed; continuing without system of record", zap.Error(err))
		return nil
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         sc.LoginURL,
		Username:       sc.Username,
		ConsumerKey:    sc.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		// The system of record is an optional collaborator; intake proceeds
		// without it.
		zap.L().Warn("salesforce init failed; continuing without system of record", zap.Error(err))
		return nil
	}
	return salesforcepkg.NewClient(sf, salesforcepkg.WithRateLimit(sc.RPS))
}

// newCoordinator builds a submission coordinator for a session using the
// environment's policy and sinks.
func (e *intakeEnv) newCoordinator(session *intake.Session) *intake.Coordinator {
	return intake.NewCoordinator(session, intake.CoordinatorOpts{
		Prioritizer: intake.AmountPrioritizer{
			HighAbove:   cfg.Intake.HighAmount,
			MediumAbove: cfg.Intake.MediumAmount,
		},
		Sinks:           e.Sinks,
		FirstContact:    e.Policy.FirstContactWindow(),
		DefaultCurrency: cfg.Intake.DefaultCurrency,
	})
}

// loadCases fetches open cases as pointers for in-place evaluation.
func loadCases(ctx context.Context, st store.Store, filter store.CaseFilter) ([]*model.CaseRecord, error) {
	cases, err := st.ListCases(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*model.CaseRecord, len(cases))
	for i := range cases {
		out[i] = &cases[i]
	}
	return out, nil
}
