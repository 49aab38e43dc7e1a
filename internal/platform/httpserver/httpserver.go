package httpserver

import (
	"net/http"
	"time"
)

const minWriteTimeout = 30 * time.Second

// New builds the public server. The write timeout always leaves headroom over
// the slowest handler budget (the enrichment deadline on /search).
func New(addr string, handler http.Handler, handlerBudget time.Duration) *http.Server {
	write := handlerBudget + 10*time.Second
	if write < minWriteTimeout {
		write = minWriteTimeout
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       120 * time.Second,
	}
}
