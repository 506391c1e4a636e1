// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// Returned when a request needs the instance type but none was given.
	ErrMissingInstanceType = errors.New("request has no instance type")
	// Returned when the target host scheduler hint is not a string.
	ErrMalformedSchedulerHint = errors.New("malformed scheduler hint")
)

// Flavor ids below this value belong to paravirtualized flavors.
const hvmFlavorIDThreshold = 100

// Nova instance type (flavor) of the requested instance.
type InstanceType struct {
	ID       int    `json:"id"`
	Name     string `json:"name,omitempty"`
	FlavorID string `json:"flavorid,omitempty"`
	MemoryMB int    `json:"memory_mb"`
}

// Placement request context handed to the filters and weighers.
// It is immutable for the duration of one scheduling cycle.
type FilterProperties struct {
	InstanceType *InstanceType `json:"instance_type,omitempty"`
	// Hints given by the user, e.g. to force a target host.
	SchedulerHints map[string]any `json:"scheduler_hints,omitempty"`
	// Number of hosts presented to this scheduling cycle. The external
	// scheduler api defaults it to the number of request hosts when absent.
	TotalHosts int    `json:"total_hosts"`
	ProjectID  string `json:"project_id,omitempty"`
	OSType     string `json:"os_type,omitempty"`
	// Identifies the request in the trace log.
	RequestID string `json:"request_id,omitempty"`
}

// Derive the vm type needed by the requested flavor.
// Flavors don't carry this as a property, so it is encoded in the id range.
func (p FilterProperties) RequestedVMType() (VMType, error) {
	if p.InstanceType == nil {
		return "", ErrMissingInstanceType
	}
	if p.InstanceType.ID < hvmFlavorIDThreshold {
		return VMTypePV, nil
	}
	return VMTypeHVM, nil
}

// Get the hosts the request is explicitly targeted at through the given
// scheduler hint. If the hint is not set, ok is false.
func (p FilterProperties) TargetHosts(hintKey string) (hosts []string, ok bool, err error) {
	raw, exists := p.SchedulerHints[hintKey]
	if !exists || raw == nil {
		return nil, false, nil
	}
	value, isString := raw.(string)
	if !isString {
		return nil, false, fmt.Errorf("%w: %s must be a string, got %T", ErrMalformedSchedulerHint, hintKey, raw)
	}
	if value == "" {
		return nil, false, nil
	}
	for host := range strings.SplitSeq(value, ",") {
		hosts = append(hosts, strings.TrimSpace(host))
	}
	return hosts, true, nil
}

// Nova request context object, reduced to the fields used for tracing.
type NovaRequestContext struct {
	UserID          string  `json:"user"`
	ProjectID       string  `json:"project_id"`
	RequestID       string  `json:"request_id"`
	GlobalRequestID *string `json:"global_request_id"`
}

// Request generated by the Nova scheduler when calling the external scheduler.
type ExternalSchedulerRequest struct {
	Context NovaRequestContext `json:"context"`
	// Properties of the instance to be placed.
	Spec FilterProperties `json:"spec"`
	// Host state snapshots to choose from.
	Hosts []HostState `json:"hosts"`
}

func (r ExternalSchedulerRequest) GetTraceLogArgs() []slog.Attr {
	greq := ""
	if r.Context.GlobalRequestID != nil {
		greq = *r.Context.GlobalRequestID
	}
	req := r.Context.RequestID
	if req == "" {
		req = r.Spec.RequestID
	}
	return []slog.Attr{
		slog.String("greq", greq),
		slog.String("req", req),
		slog.String("user", r.Context.UserID),
		slog.String("project", r.Context.ProjectID),
	}
}

// Response returned to the Nova scheduler.
type ExternalSchedulerResponse struct {
	// Hosts in order of preference, best first.
	Hosts []string `json:"hosts"`
}
