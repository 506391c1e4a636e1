// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"fmt"
	"iter"
	"log/slog"

	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

// Interface for a filter stage as part of the scheduling pipeline.
type Filter interface {
	// Reduce the incoming host stream to the admissible hosts.
	//
	// Filters are chained lazily: the returned sequence pulls from the
	// given one, which may only be iterated once. Implementations must
	// keep the relative order of the hosts they yield and must stop
	// pulling when the consumer stops.
	//
	// Invalid requests are reported through the error before any host is
	// pulled, so failures surface synchronously to the pipeline caller.
	FilterAll(
		traceLog *slog.Logger,
		hosts iter.Seq[*api.HostState],
		props api.FilterProperties,
	) (iter.Seq[*api.HostState], error)
}

// Predicate deciding whether a single host is admissible for a request.
type HostCheck interface {
	// Name of the check, used for logging and metrics.
	Name() string
	// Check if the host passes for the given request.
	HostPasses(traceLog *slog.Logger, host *api.HostState, props api.FilterProperties) bool
}

// Optionally implemented by host checks that need certain request fields.
type RequestValidator interface {
	// Check that the request carries everything the check needs.
	ValidateRequest(props api.FilterProperties) error
}

// Ordered list of host checks combined with a logical AND.
type FilterChain struct {
	checks  []HostCheck
	monitor FilterWeigherPipelineMonitor
}

// Create a new filter chain that evaluates the checks in the given order.
func NewFilterChain(monitor FilterWeigherPipelineMonitor, checks ...HostCheck) FilterChain {
	return FilterChain{checks: checks, monitor: monitor}
}

// Names of the checks in this chain, in evaluation order.
func (c FilterChain) Names() []string {
	names := make([]string, 0, len(c.checks))
	for _, check := range c.checks {
		names = append(names, check.Name())
	}
	return names
}

// Validate the request against all checks that need request fields.
func (c FilterChain) ValidateRequest(props api.FilterProperties) error {
	for _, check := range c.checks {
		validator, ok := check.(RequestValidator)
		if !ok {
			continue
		}
		if err := validator.ValidateRequest(props); err != nil {
			return fmt.Errorf("%s: %w", check.Name(), err)
		}
	}
	return nil
}

// Check if the host passes all checks. Evaluation stops at the first
// check that fails.
func (c FilterChain) HostPasses(traceLog *slog.Logger, host *api.HostState, props api.FilterProperties) bool {
	for _, check := range c.checks {
		if !check.HostPasses(traceLog, host, props) {
			c.monitor.ObserveRejectedHost(check.Name())
			return false
		}
	}
	return true
}
