// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cobaltcore-dev/hostselect/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

// Collection of Prometheus metrics to monitor the scheduler api.
type APIMonitor struct {
	// A histogram to measure how long the API requests take to run.
	ApiRequestsTimer *prometheus.HistogramVec
}

// Create a new api monitor and register the necessary Prometheus metrics.
func NewAPIMonitor(registry *monitoring.Registry) APIMonitor {
	apiRequestsTimer := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hostselect_api_request_duration_seconds",
		Help:    "Duration of API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status", "error"})
	if registry != nil {
		registry.MustRegister(apiRequestsTimer)
	}
	return APIMonitor{ApiRequestsTimer: apiRequestsTimer}
}

// Helper to respond to the request with the given code and error.
// Adds monitoring for the time it took to handle the request.
type MonitoredCallback struct {
	apiMonitor *APIMonitor
	w          http.ResponseWriter
	r          *http.Request
	pattern    string
	t          time.Time
}

func (m *APIMonitor) Callback(w http.ResponseWriter, r *http.Request, pattern string) MonitoredCallback {
	return MonitoredCallback{apiMonitor: m, w: w, r: r, pattern: pattern, t: time.Now()}
}

// Respond to the request with the given code and error.
// The text is user-facing, the error is only logged.
func (c MonitoredCallback) Respond(code int, err error, text string) {
	c.RespondWithDetail(code, err, text, "")
}

// Like Respond, but appends the detail to the response body. The text must
// be a fixed message since it is used as metric label, the detail may vary
// per request.
func (c MonitoredCallback) RespondWithDetail(code int, err error, text, detail string) {
	if c.apiMonitor != nil && c.apiMonitor.ApiRequestsTimer != nil {
		c.apiMonitor.ApiRequestsTimer.WithLabelValues(
			c.r.Method,
			c.pattern,
			strconv.Itoa(code),
			text, // Internal error messages should not face the monitor.
		).Observe(time.Since(c.t).Seconds())
	}
	if err != nil {
		slog.Error("failed to handle request", "path", c.pattern, "error", err)
		body := text
		if detail != "" {
			body += ": " + detail
		}
		http.Error(c.w, body, code)
	}
}
