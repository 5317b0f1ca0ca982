package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/diewo77/rbac-console/httpx"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Health answers /healthz from a set of named checks.
type Health struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewHealth returns a handler running checks.
func NewHealth(checks map[string]Check) *Health {
	return &Health{checks: checks, timeout: 2 * time.Second}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	httpx.JSON(w, status, map[string]any{"status": state, "checks": results})
}
