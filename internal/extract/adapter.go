// Package extract turns source documents into draft case rows: binary
// documents go through the AI extraction service, spreadsheets are parsed
// locally. Service output is untrusted text and is never allowed to abort
// an intake session.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/collections-cli/internal/model"
	"github.com/sells-group/collections-cli/pkg/anthropic"
)

// Extraction failure conditions. Unparsable service output is deliberately
// absent: it degrades to an empty row set instead of an error.
var (
	ErrEmptyDocument      = errors.New("extract: empty document")
	ErrServiceUnavailable = errors.New("extract: extraction service unavailable")
	ErrTimeout            = errors.New("extract: extraction timed out")
	ErrExtractionBusy     = errors.New("extract: extraction already in flight")
)

const extractionInstruction = `You are a debt-collection intake assistant.
Read the attached document and extract every receivable case you can find.
Respond with ONLY a JSON array of objects with these keys:
  name  - customer or debtor name
  amt   - outstanding amount (number)
  addr  - postal address
  phone - phone number
  email - email address
  due   - due date in YYYY-MM-DD form
Use an empty string for anything the document does not state. Respond with
[] if the document contains no receivables.`

// Options configures the adapter.
type Options struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration // bound on one extraction call; default 60s
}

// Adapter sends documents to the extraction service and maps the response
// into draft rows. At most one extraction may be in flight per adapter; the
// draft table stays editable while one is outstanding.
type Adapter struct {
	client anthropic.Client
	opts   Options
	busy   atomic.Bool
}

// NewAdapter creates an extraction adapter.
func NewAdapter(client anthropic.Client, opts Options) *Adapter {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Adapter{client: client, opts: opts}
}

// Extract sends the document to the AI service and returns zero or more
// draft rows tagged OriginExtracted. Malformed service output yields an
// empty slice and nil error. The adapter never touches draft-table state.
func (a *Adapter) Extract(ctx context.Context, doc []byte, mimeType string) ([]model.DraftRow, error) {
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}
	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrExtractionBusy
	}
	defer a.busy.Store(false)

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	parts := buildParts(doc, mimeType)
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.opts.Model,
		MaxTokens: a.opts.MaxTokens,
		System:    extractionInstruction,
		Parts:     parts,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, eris.Wrap(ErrTimeout, err.Error())
		}
		return nil, eris.Wrap(ErrServiceUnavailable, err.Error())
	}
	resp.Usage.Log(resp.Model, "extract")

	rows := ParseRows(resp.Text)
	zap.L().Info("document extraction complete",
		zap.String("mime_type", mimeType),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// buildParts chooses the content representation for the document. Images and
// PDFs upload natively; tabular text is inlined; anything unrecognized is
// forwarded best-effort as an octet stream in a text block.
func buildParts(doc []byte, mimeType string) []anthropic.ContentPart {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return []anthropic.ContentPart{
			{Kind: anthropic.PartImage, MediaType: mimeType, Data: doc},
			{Kind: anthropic.PartText, Text: "Extract all receivable cases from this image."},
		}
	case mimeType == "application/pdf":
		return []anthropic.ContentPart{
			{Kind: anthropic.PartPDF, Data: doc},
			{Kind: anthropic.PartText, Text: "Extract all receivable cases from this document."},
		}
	case strings.HasPrefix(mimeType, "text/"):
		return []anthropic.ContentPart{
			{Kind: anthropic.PartText, Text: "Document (" + mimeType + "):\n\n" + string(doc)},
		}
	default:
		// Best-effort octet stream: forward as text and let the model try.
		return []anthropic.ContentPart{
			{Kind: anthropic.PartText, Text: "Document (" + mimeType + ", raw):\n\n" + string(doc)},
		}
	}
}

// rawDraft mirrors the wire keys the extraction instruction asks for.
type rawDraft struct {
	Name  string `json:"name"`
	Amt   any    `json:"amt"`
	Addr  string `json:"addr"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Due   string `json:"due"`
}

// ParseRows parses untrusted service output into draft rows: markdown fences
// are stripped, then a strict array unmarshal is attempted, then the first
// balanced array-like substring. Total failure returns nil, never an error.
func ParseRows(text string) []model.DraftRow {
	cleaned := cleanJSONArray(text)
	if cleaned == "" {
		return nil
	}

	var raws []rawDraft
	if err := json.Unmarshal([]byte(cleaned), &raws); err != nil {
		if inner := balancedArray(cleaned); inner != "" && inner != cleaned {
			if err := json.Unmarshal([]byte(inner), &raws); err != nil {
				zap.L().Warn("unparsable extraction response", zap.Error(err))
				return nil
			}
		} else {
			zap.L().Warn("unparsable extraction response", zap.Error(err))
			return nil
		}
	}

	rows := make([]model.DraftRow, 0, len(raws))
	for _, r := range raws {
		rows = append(rows, model.DraftRow{
			ID:           uuid.New().String(),
			CustomerName: r.Name,
			Amount:       formatAmount(r.Amt),
			Address:      r.Addr,
			Phone:        r.Phone,
			Email:        r.Email,
			DueDate:      r.Due,
			Origin:       model.OriginExtracted,
		})
	}
	return rows
}

// cleanJSONArray strips markdown fences and trims to the array body.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	return strings.TrimSpace(text)
}

// balancedArray returns the first balanced [...] substring, tracking JSON
// strings so brackets inside values do not break the depth count.
func balancedArray(text string) string {
	start := strings.Index(text, "[")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// formatAmount renders a wire amount (number or string) as entered text.
func formatAmount(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case json.Number:
		return n.String()
	default:
		return fmt.Sprintf("%v", n)
	}
}
