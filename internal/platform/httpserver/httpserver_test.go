package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteTimeoutCoversHandlerBudget(t *testing.T) {
	h := http.NotFoundHandler()

	assert.Equal(t, minWriteTimeout, New(":0", h, 2*time.Second).WriteTimeout)
	assert.Equal(t, 70*time.Second, New(":0", h, time.Minute).WriteTimeout)
}
