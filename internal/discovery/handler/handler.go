// Package handler serves GET /search.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"beacon/internal/discovery/models"
	"beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/requestcontext"
)

const maxQueryTextLength = 1024

// Discoverer answers discovery queries for the caller in ctx.
type Discoverer interface {
	Discover(ctx context.Context, q models.Query) (*models.Result, error)
}

type Handler struct {
	discovery Discoverer
	logger    *slog.Logger
}

func New(discovery Discoverer, logger *slog.Logger) *Handler {
	return &Handler{discovery: discovery, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/search", h.HandleSearch)
}

// HandleSearch handles GET /search?tag=a&tag=b&q=...&limit=...
//
// Quota headers are written on every answer that reached the quota gate,
// including 429s.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	q, err := parseQuery(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid search query",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.discovery.Discover(ctx, q)
	if result != nil {
		writeQuotaHeaders(w, result)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSearchResponse(result))
}

func parseQuery(r *http.Request) (models.Query, error) {
	values := r.URL.Query()

	var raw []string
	for _, v := range values["tag"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				raw = append(raw, t)
			}
		}
	}
	tags, err := domain.ParseTags(raw)
	if err != nil {
		return models.Query{}, err
	}

	text := strings.TrimSpace(values.Get("q"))
	if len(text) > maxQueryTextLength {
		return models.Query{}, dErrors.New(dErrors.CodeInvalidInput, "query text too long")
	}
	if text == "" && len(tags) == 0 {
		return models.Query{}, dErrors.New(dErrors.CodeInvalidInput, "a query text or at least one tag is required")
	}

	limit := 0
	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return models.Query{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		limit = n
	}
	return models.Query{Text: text, Tags: tags, Limit: limit}, nil
}

func writeQuotaHeaders(w http.ResponseWriter, result *models.Result) {
	quota := result.Quota
	if quota.Limit == 0 && quota.ResetAt.IsZero() {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(quota.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(quota.ResetAt.Unix(), 10))
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Items             []ItemResponse `json:"items"`
	Degraded          bool           `json:"degraded"`
	PartialEnrichment bool           `json:"partial_enrichment"`
	Tier              string         `json:"tier"`
}

type ItemResponse struct {
	Handle          string          `json:"handle"`
	Endpoint        string          `json:"endpoint,omitempty"`
	MatchedTags     []string        `json:"matched_tags"`
	Similarity      *float64        `json:"similarity,omitempty"`
	Presence        string          `json:"presence"`
	LastHeartbeatAt time.Time       `json:"last_heartbeat_at"`
	Preview         json.RawMessage `json:"preview,omitempty"`
	Enrichment      string          `json:"enrichment"`
}

func toSearchResponse(result *models.Result) SearchResponse {
	items := make([]ItemResponse, len(result.Items))
	for i, it := range result.Items {
		matched := []string(it.MatchedTags)
		if matched == nil {
			matched = []string{}
		}
		items[i] = ItemResponse{
			Handle:          it.Handle.Display(),
			Endpoint:        it.Endpoint,
			MatchedTags:     matched,
			Similarity:      it.Similarity,
			Presence:        it.Presence.String(),
			LastHeartbeatAt: it.LastHeartbeatAt,
			Preview:         it.Preview,
			Enrichment:      string(it.Enrichment),
		}
	}
	return SearchResponse{
		Items:             items,
		Degraded:          result.Degraded,
		PartialEnrichment: result.PartialEnrichment,
		Tier:              result.Tier.String(),
	}
}
