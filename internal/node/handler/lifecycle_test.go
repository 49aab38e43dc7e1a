package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"beacon/internal/node/service"
	"beacon/internal/node/store"
	"beacon/internal/tagindex"
	"beacon/pkg/testutil"
)

func TestNodeLifecycle(t *testing.T) {
	svc, err := service.New(store.NewInMemoryStore(), tagindex.NewInMemoryIndex())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	router := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(router)
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	lookup := func(t *testing.T, at time.Time) NodeResponse {
		t.Helper()
		req := testutil.AtTime(testutil.NewRequest(t, http.MethodGet, "/node/@bob"), at)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		return *testutil.UnmarshalResponse[NodeResponse](t, rr)
	}

	testutil.Given(t, "a node registered at 09:00", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/register", map[string]any{
			"handle":   "bob",
			"endpoint": "https://bob.example.com",
			"tags":     []string{"go"},
		})
		testutil.AssertStatus(t, testutil.DoRequest(router, testutil.AtTime(req, start)), http.StatusCreated)

		testutil.When(t, "it stays silent for six minutes", func(t *testing.T) {
			testutil.Then(t, "it is reported away", func(t *testing.T) {
				if got := lookup(t, start.Add(6*time.Minute)).Presence; got != "away" {
					t.Fatalf("expected away, got %s", got)
				}
			})
		})

		testutil.When(t, "it heartbeats again", func(t *testing.T) {
			at := start.Add(7 * time.Minute)
			req := testutil.NewJSONRequest(t, http.MethodPost, "/heartbeat", map[string]any{
				"handle":   "@bob",
				"endpoint": "https://bob.example.com",
				"tags":     []string{"go"},
			})
			testutil.AssertStatusOK(t, testutil.DoRequest(router, testutil.AtTime(req, at)))

			testutil.Then(t, "it is online again", func(t *testing.T) {
				resp := lookup(t, at)
				if resp.Presence != "online" {
					t.Fatalf("expected online, got %s", resp.Presence)
				}
				if !resp.LastHeartbeatAt.Equal(at) {
					t.Fatalf("expected last heartbeat %s, got %s", at, resp.LastHeartbeatAt)
				}
			})
		})

		testutil.When(t, "two hours pass without heartbeats", func(t *testing.T) {
			testutil.Then(t, "it is reported offline", func(t *testing.T) {
				if got := lookup(t, start.Add(2*time.Hour)).Presence; got != "offline" {
					t.Fatalf("expected offline, got %s", got)
				}
			})
		})
	})
}
