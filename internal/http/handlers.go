package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})
	fail := func(name, reason string) {
		checks[name] = "failed: " + reason
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	if s.store == nil {
		fail("store", "not configured")
	} else if err := s.store.Ping(ctx); err != nil {
		fail("store", err.Error())
	} else {
		checks["store"] = "ok"
	}

	// The broker is optional: a broken one degrades publishing but does not
	// make the service unready.
	switch {
	case s.broker == nil:
		checks["amqp"] = "disabled"
	case s.broker.Healthy():
		checks["amqp"] = "ok"
	default:
		checks["amqp"] = "degraded"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.Metrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	m := s.appMetrics

	running := 0
	if s.timer != nil {
		if _, ok := s.timer.Active(); ok {
			running = 1
		}
	}

	w.WriteHeader(http.StatusOK)
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "HTTP responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric("timers_started_total", "counter", "Timers started through the web UI", atomic.LoadInt64(&m.timersStarted))
	metric("timers_stopped_total", "counter", "Timers stopped through the web UI", atomic.LoadInt64(&m.timersStopped))
	metric("entries_updated_total", "counter", "Time entries edited", atomic.LoadInt64(&m.entriesUpdated))
	metric("entries_deleted_total", "counter", "Time entries deleted", atomic.LoadInt64(&m.entriesDeleted))
	metric("csv_exports_total", "counter", "CSV reports downloaded", atomic.LoadInt64(&m.exports))
	metric("timer_running", "gauge", "1 while a time entry is running", running)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", s.rateLimiter.Hits())
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", s.rateLimiter.ActiveClients())
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(m.uptime).Seconds()))
}

type indexPage struct {
	Nav   string
	Timer timerView
	Day   dayView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	tv, err := s.loadTimerView(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		s.writeError(w, r, err, "load_timer")
		return
	}
	dv, err := s.loadDayView(r.Context(), ParseDayParam(r.URL.Query(), s.now()))
	if err != nil {
		s.writeError(w, r, err, "load_day")
		return
	}
	s.render(w, r, "index.html", indexPage{Nav: "tracker", Timer: tv, Day: dv}, nil)
}
