package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"famledger/internal/metrics"
)

func metricsBody(t *testing.T, rec *metrics.Recorder) string {
	t.Helper()
	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }
