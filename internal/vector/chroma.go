package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// OwnerMetadataKey is the document metadata field naming the owning handle.
const OwnerMetadataKey = "owner_handle"

// ChromaIndex talks to a ChromaDB server over its REST API.
type ChromaIndex struct {
	baseURL    string
	collection string
	client     *http.Client

	mu           sync.RWMutex
	collectionID string
	lookups      singleflight.Group
}

type ChromaOption func(*ChromaIndex)

func WithHTTPClient(c *http.Client) ChromaOption {
	return func(ci *ChromaIndex) {
		ci.client = c
	}
}

func NewChromaIndex(baseURL, collection string, opts ...ChromaOption) *ChromaIndex {
	ci := &ChromaIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(ci)
	}
	return ci
}

// Health pings the Chroma heartbeat endpoint.
func (c *ChromaIndex) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/heartbeat", nil, nil)
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float64        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

// Query returns the topK nearest documents to embedding. Documents without an
// owner are dropped.
func (c *ChromaIndex) Query(ctx context.Context, embedding []float32, topK int) ([]Hit, error) {
	id, err := c.resolveCollection(ctx)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	req := queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "distances"},
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+url.PathEscape(id)+"/query", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}
	if len(resp.Distances) == 0 || len(resp.Metadatas) == 0 {
		return nil, fmt.Errorf("chroma query response is missing distances or metadatas")
	}

	ids := resp.IDs[0]
	hits := make([]Hit, 0, len(ids))
	for i, docID := range ids {
		if i >= len(resp.Distances[0]) || i >= len(resp.Metadatas[0]) {
			break
		}
		owner, _ := resp.Metadatas[0][i][OwnerMetadataKey].(string)
		if owner == "" {
			continue
		}
		hits = append(hits, Hit{DocumentID: docID, Owner: owner, Distance: resp.Distances[0][i]})
	}
	return hits, nil
}

// resolveCollection looks the collection id up once and caches it. Concurrent
// callers share one lookup; each still honors its own ctx.
func (c *ChromaIndex) resolveCollection(ctx context.Context) (string, error) {
	c.mu.RLock()
	id := c.collectionID
	c.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	ch := c.lookups.DoChan(c.collection, func() (any, error) {
		// Shared by every waiter, so one caller giving up must not cancel it.
		// The HTTP client timeout bounds it instead.
		return c.fetchCollectionID(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *ChromaIndex) fetchCollectionID(ctx context.Context) (string, error) {
	var coll struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/collections/"+url.PathEscape(c.collection), nil, &coll); err != nil {
		return "", fmt.Errorf("resolve collection %s: %w", c.collection, err)
	}
	if coll.ID == "" {
		return "", fmt.Errorf("collection %s has no id", c.collection)
	}

	c.mu.Lock()
	c.collectionID = coll.ID
	c.mu.Unlock()
	return coll.ID, nil
}

func (c *ChromaIndex) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode chroma request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build chroma request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chroma %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chroma %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode chroma response: %w", err)
	}
	return nil
}
