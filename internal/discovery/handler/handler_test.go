package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	accessmodels "beacon/internal/access/models"
	"beacon/internal/discovery/models"
	"beacon/internal/presence"
	"beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/testutil"
)

type stubDiscoverer struct {
	got    models.Query
	calls  int
	result *models.Result
	err    error
}

func (d *stubDiscoverer) Discover(_ context.Context, q models.Query) (*models.Result, error) {
	d.calls++
	d.got = q
	return d.result, d.err
}

type SearchHandlerSuite struct {
	suite.Suite
	discovery *stubDiscoverer
	router    chi.Router
	resetAt   time.Time
}

func TestSearchHandlerSuite(t *testing.T) {
	suite.Run(t, new(SearchHandlerSuite))
}

func (s *SearchHandlerSuite) SetupTest() {
	s.discovery = &stubDiscoverer{}
	s.router = chi.NewRouter()
	New(s.discovery, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.resetAt = time.Now().Add(2 * time.Hour).Truncate(time.Second)
}

// =============================================================================
// Query parsing
// =============================================================================

func (s *SearchHandlerSuite) TestParsesQuery() {
	s.discovery.result = &models.Result{Items: []models.Item{}, Tier: domain.TierExplorer}

	req := testutil.NewRequest(s.T(), http.MethodGet, "/search?tag=Rust&tag=go,python&q=+raft+&limit=3")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	s.Equal(domain.Tags{"go", "python", "rust"}, s.discovery.got.Tags)
	s.Equal("raft", s.discovery.got.Text)
	s.Equal(3, s.discovery.got.Limit)
}

func (s *SearchHandlerSuite) TestRejectsInvalidQueries() {
	tests := []struct {
		name string
		path string
	}{
		{"no tag and no text", "/search"},
		{"blank tags", "/search?tag=+&tag=,"},
		{"zero limit", "/search?tag=go&limit=0"},
		{"non-numeric limit", "/search?tag=go&limit=ten"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, tt.path))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
		})
	}
	s.Zero(s.discovery.calls)
}

// =============================================================================
// Responses
// =============================================================================

func (s *SearchHandlerSuite) TestWritesItemsAndQuotaHeaders() {
	sim := 0.82
	s.discovery.result = &models.Result{
		Items: []models.Item{
			{
				Handle:     "alice",
				Endpoint:   "https://alice.example.com",
				Similarity: &sim,
				Presence:   presence.Online,
				Preview:    json.RawMessage(`{"notes":3}`),
				Enrichment: models.EnrichmentOK,
			},
			{
				Handle:      "bob",
				MatchedTags: domain.Tags{"go"},
				Presence:    presence.Away,
				Enrichment:  models.EnrichmentNotAttempted,
			},
		},
		Degraded: true,
		Tier:     domain.TierRecruiter,
		Quota:    accessmodels.RateLimitResult{Allowed: true, Limit: 500, Remaining: 499, ResetAt: s.resetAt},
	}

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/search?tag=go&q=raft"))

	testutil.AssertStatusOK(s.T(), rr)
	s.Equal("500", rr.Header().Get("X-RateLimit-Limit"))
	s.Equal("499", rr.Header().Get("X-RateLimit-Remaining"))
	s.Equal(strconv.FormatInt(s.resetAt.Unix(), 10), rr.Header().Get("X-RateLimit-Reset"))

	resp := testutil.UnmarshalResponse[SearchResponse](s.T(), rr)
	s.True(resp.Degraded)
	s.False(resp.PartialEnrichment)
	s.Equal("recruiter", resp.Tier)
	s.Require().Len(resp.Items, 2)
	s.Equal("@alice", resp.Items[0].Handle)
	s.Equal("ok", resp.Items[0].Enrichment)
	s.JSONEq(`{"notes":3}`, string(resp.Items[0].Preview))
	s.Empty(resp.Items[0].MatchedTags)
	s.Equal("@bob", resp.Items[1].Handle)
	s.Empty(resp.Items[1].Endpoint)
	s.Nil(resp.Items[1].Similarity)
}

func (s *SearchHandlerSuite) TestRateLimited() {
	s.discovery.result = &models.Result{
		Tier:  domain.TierExplorer,
		Quota: accessmodels.RateLimitResult{Allowed: false, Limit: 20, Remaining: 0, ResetAt: s.resetAt},
	}
	s.discovery.err = dErrors.RateLimited("daily search quota exhausted", s.resetAt)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/search?tag=go"))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limit_exceeded")
	s.Equal("20", rr.Header().Get("X-RateLimit-Limit"))
	s.Equal("0", rr.Header().Get("X-RateLimit-Remaining"))
	retry, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	s.Require().NoError(err)
	s.Greater(retry, 0)
}

func (s *SearchHandlerSuite) TestInternalErrorHidesDetails() {
	s.discovery.err = dErrors.New(dErrors.CodeInternal, "tag lookup failed: pq: connection refused")

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/search?tag=go"))

	s.NotContains(rr.Body.String(), "pq:")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
	s.Empty(rr.Header().Get("X-RateLimit-Limit"))
}
