// Package docsource resolves document references (local paths, http(s) and
// ftp URLs) into bytes plus a mime type for the extraction adapter.
package docsource

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/collections-cli/internal/resilience"
)

// Document is a fetched document ready for extraction.
type Document struct {
	Ref      string
	MimeType string
	Data     []byte
}

// Fetcher resolves document references into bytes.
type Fetcher struct {
	http    *http.Client
	limiter *rate.Limiter
	ftp     *ftpFetcher
	maxSize int64
	retry   resilience.RetryConfig
}

// Options configures the fetcher.
type Options struct {
	Timeout      time.Duration // per fetch; default 30s
	RequestsPerS float64       // HTTP rate limit; default 4
	MaxSizeBytes int64         // default 32 MiB
}

// NewFetcher creates a document fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerS == 0 {
		opts.RequestsPerS = 4
	}
	if opts.MaxSizeBytes == 0 {
		opts.MaxSizeBytes = 32 << 20
	}
	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = 250 * time.Millisecond
	retry.MaxBackoff = 5 * time.Second

	return &Fetcher{
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerS), 1),
		ftp:     &ftpFetcher{timeout: opts.Timeout},
		maxSize: opts.MaxSizeBytes,
		retry:   retry,
	}
}

// Fetch resolves ref: a local path, or an http(s)/ftp URL.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Document, error) {
	u, err := url.Parse(ref)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.fetchHTTP(ctx, ref)
		case "ftp":
			return f.fetchFTP(ctx, ref)
		}
	}
	return f.fetchFile(ref)
}

func (f *Fetcher) fetchFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "docsource: read %s", path)
	}
	return &Document{Ref: path, MimeType: MimeFromName(path), Data: data}, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (*Document, error) {
	var data []byte
	var contentType string

	err := resilience.Do(ctx, f.retry, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "docsource: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return eris.Wrap(err, "docsource: build request")
		}

		resp, err := f.http.Do(req)
		if err != nil {
			return eris.Wrapf(err, "docsource: get %s", rawURL)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("docsource: get %s: status %d", rawURL, resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return statusErr
		}

		data, err = io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
		if err != nil {
			return eris.Wrapf(err, "docsource: read body %s", rawURL)
		}
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return nil, err
	}

	mt := contentType
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = mt[:idx]
	}
	mt = strings.TrimSpace(mt)
	if mt == "" || mt == "application/octet-stream" {
		mt = MimeFromName(rawURL)
	}

	zap.L().Debug("document fetched",
		zap.String("url", rawURL),
		zap.String("mime_type", mt),
		zap.Int("bytes", len(data)),
	)
	return &Document{Ref: rawURL, MimeType: mt, Data: data}, nil
}

func (f *Fetcher) fetchFTP(ctx context.Context, rawURL string) (*Document, error) {
	rc, err := f.ftp.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, f.maxSize))
	if err != nil {
		return nil, eris.Wrapf(err, "docsource: read ftp %s", rawURL)
	}
	return &Document{Ref: rawURL, MimeType: MimeFromName(rawURL), Data: data}, nil
}

// MimeFromName derives a mime type from a reference's extension, defaulting
// to an octet stream for unknown extensions (forwarded best-effort).
func MimeFromName(ref string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(ref, "/")))
	switch ext {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if idx := strings.Index(mt, ";"); idx >= 0 {
			mt = mt[:idx]
		}
		return mt
	}
	return "application/octet-stream"
}
