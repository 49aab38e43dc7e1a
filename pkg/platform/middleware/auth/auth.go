// Package auth extracts caller credentials from requests.
//
// Extraction never rejects a request: verification and tier resolution happen in
// the access gate, which fails closed to the least privileged tier.
package auth

import (
	"net/http"
	"strings"

	"beacon/pkg/requestcontext"
)

// HeaderAPIKey carries a static API key.
const HeaderAPIKey = "X-API-Key"

const bearerPrefix = "Bearer "

// ExtractCredential stores the presented credential, if any, in the context.
// A bearer token wins over an API key when both are sent.
func ExtractCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred := CredentialFromRequest(r)
		if cred.IsZero() {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithCredential(r.Context(), cred)))
	})
}

// CredentialFromRequest reads the Authorization bearer token or the API key header.
func CredentialFromRequest(r *http.Request) requestcontext.Credential {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok {
		if token = strings.TrimSpace(token); token != "" {
			return requestcontext.Credential{Scheme: requestcontext.SchemeBearer, Secret: token}
		}
	}
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return requestcontext.Credential{Scheme: requestcontext.SchemeAPIKey, Secret: key}
	}
	return requestcontext.Credential{}
}
