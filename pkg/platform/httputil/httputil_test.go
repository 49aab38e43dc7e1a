package httputil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dErrors "beacon/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})
}

func TestWriteError_RateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.RateLimited("daily quota exhausted", time.Now().Add(90*time.Second)))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestWriteError_UncodedErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errPlain("pq: connection reset"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if strings.Contains(w.Body.String(), "connection reset") {
		t.Fatalf("internal error leaked cause: %s", w.Body.String())
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Date(2026, 1, 1, 23, 59, 58, 500_000_000, time.UTC)
	if got := RetryAfterSeconds(now, now.Add(1500*time.Millisecond)); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := RetryAfterSeconds(now, now.Add(-time.Second)); got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

type pingRequest struct {
	Handle string `json:"handle"`
}

func (p *pingRequest) Validate() error {
	if p.Handle == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "handle is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	decode := func(body string) (*pingRequest, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/heartbeat", strings.NewReader(body))
		req, _ := DecodeAndPrepare[pingRequest](w, r, logger, r.Context(), "req-1")
		return req, w
	}

	t.Run("valid body", func(t *testing.T) {
		req, w := decode(`{"handle":"alice"}`)
		if req == nil || req.Handle != "alice" {
			t.Fatalf("expected decoded request, got %+v (status %d)", req, w.Code)
		}
	})

	t.Run("malformed JSON is bad_request", func(t *testing.T) {
		req, w := decode(`{"handle":`)
		if req != nil || w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_request") {
			t.Fatalf("expected bad_request, got %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("validation error keeps its code", func(t *testing.T) {
		req, w := decode(`{}`)
		if req != nil || !strings.Contains(w.Body.String(), "invalid_input") {
			t.Fatalf("expected invalid_input, got %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		req, w := decode(`{"handle":"` + strings.Repeat("a", maxBodyBytes) + `"}`)
		if req != nil || w.Code != http.StatusBadRequest {
			t.Fatalf("expected rejection, got %d", w.Code)
		}
	})
}
