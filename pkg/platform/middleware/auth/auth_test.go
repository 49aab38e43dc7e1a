package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"beacon/pkg/requestcontext"
)

func TestCredentialFromRequest(t *testing.T) {
	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		req.Header.Set("Authorization", "Bearer abc.def.ghi")
		cred := CredentialFromRequest(req)
		assert.Equal(t, requestcontext.SchemeBearer, cred.Scheme)
		assert.Equal(t, "abc.def.ghi", cred.Secret)
	})

	t.Run("api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		req.Header.Set(HeaderAPIKey, "bk_live_123")
		cred := CredentialFromRequest(req)
		assert.Equal(t, requestcontext.SchemeAPIKey, cred.Scheme)
	})

	t.Run("bearer wins over api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		req.Header.Set("Authorization", "Bearer tok")
		req.Header.Set(HeaderAPIKey, "key")
		assert.Equal(t, requestcontext.SchemeBearer, CredentialFromRequest(req).Scheme)
	})

	t.Run("basic auth is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		assert.True(t, CredentialFromRequest(req).IsZero())
	})
}

func TestExtractCredentialNeverRejects(t *testing.T) {
	called := false
	h := ExtractCredential(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.True(t, requestcontext.CallerCredential(r.Context()).IsZero())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
