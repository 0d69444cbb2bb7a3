package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/collections-cli/internal/config"
	"github.com/sells-group/collections-cli/internal/docsource"
	"github.com/sells-group/collections-cli/internal/extract"
	"github.com/sells-group/collections-cli/internal/intake"
	"github.com/sells-group/collections-cli/internal/model"
	"github.com/sells-group/collections-cli/pkg/anthropic"
)

// slowExtractClient holds every call open long enough that batch documents
// overlap in flight.
type slowExtractClient struct {
	calls atomic.Int32
}

func (c *slowExtractClient) CreateMessage(ctx context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.calls.Add(1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	return &anthropic.MessageResponse{
		Text: `[{"name":"Acme GmbH","amt":1200,"due":"2025-09-01"}]`,
	}, nil
}

func newExtractTestCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd
}

func TestExtractDocumentsConcurrentBatch(t *testing.T) {
	cfg = &config.Config{}
	cfg.Extraction.Concurrency = 4

	dir := t.TempDir()
	refs := []string{filepath.Join(dir, "doca.txt"), filepath.Join(dir, "docb.txt")}
	for _, ref := range refs {
		require.NoError(t, os.WriteFile(ref, []byte("invoice for Acme GmbH"), 0o644))
	}

	client := &slowExtractClient{}
	env := &intakeEnv{
		Fetcher:     docsource.NewFetcher(docsource.Options{}),
		anthropic:   client,
		extractOpts: extract.Options{Timeout: 5 * time.Second},
	}

	session := intake.NewSession(model.RoleAdmin)
	cmd := newExtractTestCmd(t)

	require.NoError(t, extractDocuments(cmd, env, session, refs))

	// Every document in an overlapping batch yields its rows; none is lost
	// to a busy rejection from a sibling extraction.
	assert.Equal(t, 2, session.Drafts.Len())
	assert.Equal(t, int32(2), client.calls.Load())
	for _, row := range session.Drafts.Rows() {
		assert.Equal(t, model.OriginExtracted, row.Origin)
		assert.Equal(t, "Acme GmbH", row.CustomerName)
	}
}

func TestExtractDocumentsMissingDocumentIsNonFatal(t *testing.T) {
	cfg = &config.Config{}
	cfg.Extraction.Concurrency = 2

	dir := t.TempDir()
	ok := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(ok, []byte("invoice"), 0o644))

	client := &slowExtractClient{}
	env := &intakeEnv{
		Fetcher:     docsource.NewFetcher(docsource.Options{}),
		anthropic:   client,
		extractOpts: extract.Options{Timeout: 5 * time.Second},
	}

	session := intake.NewSession(model.RoleAdmin)
	cmd := newExtractTestCmd(t)

	require.NoError(t, extractDocuments(cmd, env, session, []string{ok, filepath.Join(dir, "absent.txt")}))
	assert.Equal(t, 1, session.Drafts.Len())
}
