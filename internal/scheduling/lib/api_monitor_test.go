// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMonitoredCallback_Respond(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		err          error
		text         string
		expectedBody string
	}{
		{"success", http.StatusOK, nil, "Success", ""},
		{"bad request", http.StatusBadRequest, errors.New("internal detail"), "invalid request", "invalid request\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := NewAPIMonitor(nil)
			req := httptest.NewRequest(http.MethodPost, "/test", http.NoBody)
			w := httptest.NewRecorder()
			monitor.Callback(w, req, "/test").Respond(tt.code, tt.err, tt.text)

			if w.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, w.Code)
			}
			if w.Body.String() != tt.expectedBody {
				t.Errorf("expected body %q, got %q", tt.expectedBody, w.Body.String())
			}
			if strings.Contains(w.Body.String(), "internal detail") {
				t.Error("expected internal error to stay out of the response")
			}
			if n := testutil.CollectAndCount(monitor.ApiRequestsTimer); n != 1 {
				t.Errorf("expected 1 observed series, got %d", n)
			}
		})
	}
}

func TestMonitoredCallback_NilMonitor(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	callback := MonitoredCallback{w: w, r: req, pattern: "/test"}
	callback.Respond(http.StatusInternalServerError, errors.New("boom"), "failed")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestMonitoredCallback_RespondWithDetail(t *testing.T) {
	monitor := NewAPIMonitor(nil)
	req := httptest.NewRequest(http.MethodPost, "/test", http.NoBody)
	w := httptest.NewRecorder()
	monitor.Callback(w, req, "/test").RespondWithDetail(
		http.StatusBadRequest, errors.New("internal detail"),
		"invalid request", "duplicate host host1",
	)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if body := w.Body.String(); body != "invalid request: duplicate host host1\n" {
		t.Errorf("expected detailed body, got %q", body)
	}
	if n := testutil.CollectAndCount(monitor.ApiRequestsTimer); n != 1 {
		t.Fatalf("expected 1 observed series, got %d", n)
	}
	// Only the fixed text is used as label.
	if !monitor.ApiRequestsTimer.DeleteLabelValues(http.MethodPost, "/test", "400", "invalid request") {
		t.Error("expected series labeled with the fixed text")
	}
}
