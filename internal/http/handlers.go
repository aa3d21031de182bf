package http

import (
	"context"
	"net/http"
	"time"

	"tripledger/internal/core"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status, code := "ready", http.StatusOK

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			checks["store"] = "unavailable"
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	limits := s.limiter.GetMetrics()
	reqs := s.tracer.GetMetrics()
	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
		"metrics": map[string]any{
			"requests_total":       reqs.TotalRequests,
			"server_errors":        reqs.ServerErrors,
			"avg_response_us":      reqs.AverageResponseTime(),
			"rate_limited":         limits.TotalHits,
			"rate_limited_clients": limits.ClientCount,
		},
	}).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := core.Categories()
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{ID: c.ID, Label: c.Label, Color: c.Color})
	}
	NewJSONResponse().Header("Cache-Control", "public, max-age=3600").Body(out).Write(w)
}
