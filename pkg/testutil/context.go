package testutil

import (
	"net/http"
	"time"

	"beacon/pkg/requestcontext"
)

// AtTime pins the request time used by handlers and services.
func AtTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
