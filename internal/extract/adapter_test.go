package extract

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/collections-cli/internal/model"
	"github.com/sells-group/collections-cli/pkg/anthropic"
)

// fakeClient returns a scripted response, or blocks until the context ends.
type fakeClient struct {
	text  string
	err   error
	block bool

	mu    sync.Mutex
	calls int
	last  anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Text: f.text, Model: req.Model}, nil
}

func TestExtractFencedJSON(t *testing.T) {
	t.Parallel()

	client := &fakeClient{text: "```json\n[{\"name\":\"X\",\"amt\":100,\"due\":\"2024-02-01\"}]\n```"}
	a := NewAdapter(client, Options{Model: "test-model"})

	rows, err := a.Extract(context.Background(), []byte("invoice"), "text/plain")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "X", rows[0].CustomerName)
	assert.Equal(t, "100", rows[0].Amount)
	assert.Equal(t, "2024-02-01", rows[0].DueDate)
	assert.Equal(t, model.OriginExtracted, rows[0].Origin)
	assert.NotEmpty(t, rows[0].ID)
}

func TestExtractMalformedResponseYieldsNoRows(t *testing.T) {
	t.Parallel()

	client := &fakeClient{text: "Sorry, I could not find any structured data here."}
	a := NewAdapter(client, Options{})

	rows, err := a.Extract(context.Background(), []byte("doc"), "text/plain")
	require.NoError(t, err, "unparsable output is not an extraction failure")
	assert.Empty(t, rows)
}

func TestExtractEmptyDocument(t *testing.T) {
	t.Parallel()

	a := NewAdapter(&fakeClient{}, Options{})
	_, err := a.Extract(context.Background(), nil, "application/pdf")
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestExtractServiceError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: context.Canceled}
	a := NewAdapter(client, Options{})

	_, err := a.Extract(context.Background(), []byte("doc"), "text/plain")
	require.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestExtractTimeout(t *testing.T) {
	t.Parallel()

	client := &fakeClient{block: true}
	a := NewAdapter(client, Options{Timeout: 20 * time.Millisecond})

	_, err := a.Extract(context.Background(), []byte("doc"), "text/plain")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestExtractSingleFlight(t *testing.T) {
	t.Parallel()

	client := &fakeClient{block: true}
	a := NewAdapter(client, Options{Timeout: 200 * time.Millisecond})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = a.Extract(context.Background(), []byte("doc"), "text/plain")
	}()

	// Wait for the first extraction to reach the service.
	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := a.Extract(context.Background(), []byte("second"), "text/plain")
	require.ErrorIs(t, err, ErrExtractionBusy)
	wg.Wait()

	// Once the first finishes the adapter accepts work again.
	client.block = false
	client.text = "[]"
	rows, err := a.Extract(context.Background(), []byte("third"), "text/plain")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExtractBuildsPartsByMimeType(t *testing.T) {
	t.Parallel()

	client := &fakeClient{text: "[]"}
	a := NewAdapter(client, Options{})

	_, err := a.Extract(context.Background(), []byte{0x89, 0x50}, "image/png")
	require.NoError(t, err)
	require.Len(t, client.last.Parts, 2)
	assert.Equal(t, anthropic.PartImage, client.last.Parts[0].Kind)
	assert.Equal(t, "image/png", client.last.Parts[0].MediaType)

	_, err = a.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, anthropic.PartPDF, client.last.Parts[0].Kind)

	_, err = a.Extract(context.Background(), []byte("a,b,c"), "text/csv")
	require.NoError(t, err)
	require.Len(t, client.last.Parts, 1)
	assert.Equal(t, anthropic.PartText, client.last.Parts[0].Kind)
	assert.Contains(t, client.last.Parts[0].Text, "a,b,c")
}

func TestParseRows(t *testing.T) {
	t.Parallel()

	t.Run("PlainArray", func(t *testing.T) {
		rows := ParseRows(`[{"name":"Acme","amt":"1200.50","addr":"1 Main St","phone":"555","email":"a@b.c","due":"2025-01-31"}]`)
		require.Len(t, rows, 1)
		assert.Equal(t, "Acme", rows[0].CustomerName)
		assert.Equal(t, "1200.50", rows[0].Amount)
		assert.Equal(t, "1 Main St", rows[0].Address)
	})

	t.Run("NumericAmount", func(t *testing.T) {
		rows := ParseRows(`[{"name":"Acme","amt":1250.75}]`)
		require.Len(t, rows, 1)
		assert.Equal(t, "1250.75", rows[0].Amount)
	})

	t.Run("ProseAroundArray", func(t *testing.T) {
		rows := ParseRows("Here are the cases I found: [{\"name\":\"Acme\"}] Let me know if you need more.")
		require.Len(t, rows, 1)
		assert.Equal(t, "Acme", rows[0].CustomerName)
	})

	t.Run("BracketsInsideValues", func(t *testing.T) {
		rows := ParseRows(`[{"name":"Acme [Holdings]","amt":10}]`)
		require.Len(t, rows, 1)
		assert.Equal(t, "Acme [Holdings]", rows[0].CustomerName)
	})

	t.Run("EmptyArray", func(t *testing.T) {
		assert.Empty(t, ParseRows("```json\n[]\n```"))
	})

	t.Run("Garbage", func(t *testing.T) {
		assert.Empty(t, ParseRows("no json at all"))
		assert.Empty(t, ParseRows(""))
		assert.Empty(t, ParseRows("[{\"name\": truncated"))
	})
}
