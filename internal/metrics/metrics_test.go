package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /home/admin/{page}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := m.Middleware(mux)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/home/admin/groupPermission", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "GET /home/admin/{page}", "418"))
	assert.Equal(t, 1.0, got)
}

func TestObserveUpstream_Outcomes(t *testing.T) {
	m := New()
	m.ObserveUpstream("permissions.list", 200, nil, 10*time.Millisecond)
	m.ObserveUpstream("permissions.list", 500, nil, time.Millisecond)
	m.ObserveUpstream("permissions.list", 0, errors.New("dial"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamCalls.WithLabelValues("permissions.list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamCalls.WithLabelValues("permissions.list", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamCalls.WithLabelValues("permissions.list", "transport_error")))
}

func TestObserveCache(t *testing.T) {
	m := New()
	m.ObserveCache("groups", true)
	m.ObserveCache("groups", false)
	m.ObserveCache("groups", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("groups", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("groups", "miss")))
}

func TestNilMetrics_IsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCache("groups", true)
	m.ObserveUpstream("x", 200, nil, 0)
	m.LiveOpened()
	m.LiveClosed()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rr := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_ExposesInstruments(t *testing.T) {
	m := New()
	m.LiveOpened()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "rbac_console_live_connections 1"))
}
