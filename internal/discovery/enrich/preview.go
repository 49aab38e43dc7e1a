// Package enrich fetches live previews from node endpoints.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	PreviewPath = "/api/preview"

	// DefaultMaxBodyBytes caps how much of a node's answer is read.
	DefaultMaxBodyBytes = 64 << 10
)

var (
	ErrBadStatus   = errors.New("node preview returned non-2xx status")
	ErrInvalidBody = errors.New("node preview is not a JSON document")
	ErrTooLarge    = errors.New("node preview exceeds size limit")
)

// PreviewClient calls GET {endpoint}/api/preview?q= on nodes.
type PreviewClient struct {
	client       *http.Client
	maxBodyBytes int64
	userAgent    string
}

type Option func(*PreviewClient)

func WithHTTPClient(c *http.Client) Option {
	return func(p *PreviewClient) {
		p.client = c
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(p *PreviewClient) {
		if n > 0 {
			p.maxBodyBytes = n
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(p *PreviewClient) {
		p.userAgent = ua
	}
}

func NewPreviewClient(opts ...Option) *PreviewClient {
	p := &PreviewClient{
		// Deadlines come from the caller's context; this is a backstop.
		client:       &http.Client{Timeout: 10 * time.Second},
		maxBodyBytes: DefaultMaxBodyBytes,
		userAgent:    "beacon-registry",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preview returns the node's JSON answer for query, unmodified.
func (p *PreviewClient) Preview(ctx context.Context, endpoint, query string) (json.RawMessage, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/") + PreviewPath)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = url.Values{"q": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build preview request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, p.maxBodyBytes))
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read preview: %w", err)
	}
	if int64(len(body)) > p.maxBodyBytes {
		return nil, ErrTooLarge
	}
	if !json.Valid(body) {
		return nil, ErrInvalidBody
	}
	return json.RawMessage(body), nil
}
