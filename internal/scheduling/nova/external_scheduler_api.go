// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package nova

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/cobaltcore-dev/hostselect/internal/conf"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/lib"
	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Pipeline evaluated for each external scheduler request.
type Pipeline interface {
	Run(
		traceLog *slog.Logger,
		hosts iter.Seq[*api.HostState],
		props api.FilterProperties,
	) (lib.FilterWeigherPipelineDecision, error)
}

type HTTPAPI interface {
	// Bind the server handlers.
	Init(*http.ServeMux)
}

type httpAPI struct {
	config   conf.APIConfig
	pipeline Pipeline
	monitor  lib.APIMonitor
	// Bounds the number of concurrent pipeline runs, nil if unbounded.
	slots *semaphore.Weighted
}

func NewAPI(config conf.APIConfig, pipeline Pipeline, monitor lib.APIMonitor) HTTPAPI {
	httpAPI := &httpAPI{
		config:   config,
		pipeline: pipeline,
		monitor:  monitor,
	}
	if config.MaxConcurrentRequests > 0 {
		httpAPI.slots = semaphore.NewWeighted(int64(config.MaxConcurrentRequests))
	}
	return httpAPI
}

// Init the API mux and bind the handlers.
func (httpAPI *httpAPI) Init(mux *http.ServeMux) {
	mux.HandleFunc("/scheduler/nova/external", httpAPI.NovaExternalScheduler)
}

// Check that the host states can be used by the pipeline.
// Note: messages returned here are user-facing and should not contain internal details.
func (httpAPI *httpAPI) canRunScheduler(requestData api.ExternalSchedulerRequest) (ok bool, reason string) {
	seen := make(map[string]bool, len(requestData.Hosts))
	for _, host := range requestData.Hosts {
		if err := host.Validate(); err != nil {
			return false, err.Error()
		}
		if seen[host.Host] {
			return false, fmt.Sprintf("duplicate host %s", host.Host)
		}
		seen[host.Host] = true
	}
	if requestData.Spec.TotalHosts < 0 {
		return false, "negative total hosts"
	}
	return true, ""
}

// Check if the request body sets the total hosts explicitly. An explicit
// zero means no spare hosts are reserved, while an absent value defaults
// to the number of hosts in the request.
func totalHostsGiven(body []byte) bool {
	var presence struct {
		Spec struct {
			TotalHosts *int `json:"total_hosts"`
		} `json:"spec"`
	}
	if err := json.Unmarshal(body, &presence); err != nil {
		return false
	}
	return presence.Spec.TotalHosts != nil
}

// Handle the POST request from the Nova scheduler.
// The request contains the properties of the instance to be placed and the host
// states to choose from. The response contains the admissible hosts in
// order of preference.
func (httpAPI *httpAPI) NovaExternalScheduler(w http.ResponseWriter, r *http.Request) {
	c := httpAPI.monitor.Callback(w, r, "/scheduler/nova/external")

	// Exit early if the request method is not POST.
	if r.Method != http.MethodPost {
		internalErr := fmt.Errorf("invalid request method: %s", r.Method)
		c.Respond(http.StatusMethodNotAllowed, internalErr, "invalid request method")
		return
	}

	// Ensure body is closed after reading.
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		c.Respond(http.StatusInternalServerError, err, "failed to read request body")
		return
	}
	// If configured, log out the complete request body.
	if httpAPI.config.LogRequestBodies {
		slog.Info("request body", "body", string(body))
	}
	var requestData api.ExternalSchedulerRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&requestData); err != nil {
		c.Respond(http.StatusBadRequest, err, "failed to decode request body")
		return
	}
	if requestData.Context.RequestID == "" && requestData.Spec.RequestID == "" {
		requestData.Spec.RequestID = "req-" + uuid.NewString()
	}
	if !totalHostsGiven(body) {
		requestData.Spec.TotalHosts = len(requestData.Hosts)
	}

	slogArgs := requestData.GetTraceLogArgs()
	slogArgsAny := make([]any, 0, len(slogArgs))
	for _, arg := range slogArgs {
		slogArgsAny = append(slogArgsAny, arg)
	}
	traceLog := slog.With(slogArgsAny...)
	traceLog.Info(
		"handling POST request", "url", "/scheduler/nova/external",
		"hosts", len(requestData.Hosts), "totalHosts", requestData.Spec.TotalHosts,
	)

	if ok, reason := httpAPI.canRunScheduler(requestData); !ok {
		internalErr := fmt.Errorf("cannot run scheduler: %s", reason)
		c.RespondWithDetail(http.StatusBadRequest, internalErr, "invalid host states", reason)
		return
	}

	if httpAPI.slots != nil {
		if err := httpAPI.slots.Acquire(r.Context(), 1); err != nil {
			c.Respond(http.StatusServiceUnavailable, err, "request cancelled while waiting for the scheduler")
			return
		}
		defer httpAPI.slots.Release(1)
	}

	hosts := func(yield func(*api.HostState) bool) {
		for i := range requestData.Hosts {
			if !yield(&requestData.Hosts[i]) {
				return
			}
		}
	}
	decision, err := httpAPI.pipeline.Run(traceLog, hosts, requestData.Spec)
	if err != nil {
		c.RespondWithDetail(http.StatusBadRequest, err, "failed to run scheduler pipeline", err.Error())
		return
	}
	response := api.ExternalSchedulerResponse{Hosts: decision.OrderedHosts()}
	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(response); err != nil {
		c.Respond(http.StatusInternalServerError, err, "failed to encode response")
		return
	}
	c.Respond(http.StatusOK, nil, "Success")
}
