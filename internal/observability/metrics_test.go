package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasure(t *testing.T) {
	h := Measure(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))

	tests := []struct {
		path string
		code int
	}{
		{"/", http.StatusOK},
		{"/missing", http.StatusNotFound},
		{"/broken", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
		})
	}

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `campaign_requests_total{code="200"}`)
	assert.Contains(t, body, `campaign_requests_total{code="404"}`)
	assert.Contains(t, body, `campaign_request_errors_total{type="client"}`)
	assert.Contains(t, body, `campaign_request_errors_total{type="server"}`)
	assert.Contains(t, body, "campaign_in_flight 0")
}
