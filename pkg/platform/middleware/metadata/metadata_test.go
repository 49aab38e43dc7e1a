package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.9"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		trusted TrustedProxies
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded header ignored without trusted proxies", nil, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "198.51.100.20:5000", "198.51.100.20"},
		{"forwarded header ignored from untrusted peer", proxies, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "198.51.100.20:5000", "198.51.100.20"},
		{"real ip ignored from untrusted peer", proxies, map[string]string{"X-Real-IP": "203.0.113.7"}, "198.51.100.20:5000", "198.51.100.20"},
		{"rightmost untrusted hop", proxies, map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.7, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"single trusted address", proxies, map[string]string{"X-Forwarded-For": "203.0.113.8"}, "192.0.2.9:5000", "203.0.113.8"},
		{"all hops trusted", proxies, map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.1"}, "10.0.0.2:5000", "10.1.1.1"},
		{"unparsable hop", proxies, map[string]string{"X-Forwarded-For": "nonsense, 10.0.0.1"}, "10.0.0.2:5000", "10.0.0.1"},
		{"real ip from trusted peer", proxies, map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.2:5000", "198.51.100.4"},
		{"remote addr ipv4", nil, nil, "192.0.2.1:41234", "192.0.2.1"},
		{"remote addr ipv6", nil, nil, "[::1]:41234", "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(req, tt.trusted))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.9 ", ""})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got.contains("10.200.0.1"))
	assert.True(t, got.contains("192.0.2.9"))
	assert.False(t, got.contains("192.0.2.10"))

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestClientMetadataPopulatesContext(t *testing.T) {
	var gotIP, gotAgent string
	h := ClientMetadata(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotAgent = requestcontext.ClientAgent(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.RemoteAddr = "192.0.2.1:41234"
	req.Header.Set("User-Agent", "beacon-cli/0.3")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.1", gotIP)
	assert.Equal(t, "beacon-cli/0.3", gotAgent)
}

func TestDescribeAgent(t *testing.T) {
	firefox := "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	assert.Contains(t, DescribeAgent(firefox), "Firefox 120.0")
	assert.Equal(t, "", DescribeAgent(""))
	assert.Equal(t, "curl/8.4.0", DescribeAgent("curl/8.4.0"))
}
