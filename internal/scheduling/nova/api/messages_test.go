// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"slices"
	"testing"
)

func TestFilterProperties_RequestedVMType(t *testing.T) {
	tests := []struct {
		name     string
		instance *InstanceType
		expected VMType
		wantErr  error
	}{
		{"pv flavor", &InstanceType{ID: 2}, VMTypePV, nil},
		{"last pv flavor", &InstanceType{ID: 99}, VMTypePV, nil},
		{"first hvm flavor", &InstanceType{ID: 100}, VMTypeHVM, nil},
		{"missing instance type", nil, "", ErrMissingInstanceType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterProperties{InstanceType: tt.instance}.RequestedVMType()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestFilterProperties_TargetHosts(t *testing.T) {
	const hint = "0z0ne_target_host"
	tests := []struct {
		name     string
		hints    map[string]any
		expected []string
		ok       bool
		wantErr  error
	}{
		{"no hints", nil, nil, false, nil},
		{"other hint", map[string]any{"group": "g1"}, nil, false, nil},
		{"null hint", map[string]any{hint: nil}, nil, false, nil},
		{"empty hint", map[string]any{hint: ""}, nil, false, nil},
		{"single host", map[string]any{hint: "host1"}, []string{"host1"}, true, nil},
		{"host list", map[string]any{hint: "host1, host2,host3"}, []string{"host1", "host2", "host3"}, true, nil},
		{"list value", map[string]any{hint: []any{"host1"}}, nil, false, ErrMalformedSchedulerHint},
		{"number value", map[string]any{hint: 42.0}, nil, false, ErrMalformedSchedulerHint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, ok, err := FilterProperties{SchedulerHints: tt.hints}.TargetHosts(hint)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if ok != tt.ok {
				t.Errorf("expected ok %v, got %v", tt.ok, ok)
			}
			if !slices.Equal(hosts, tt.expected) {
				t.Errorf("expected hosts %v, got %v", tt.expected, hosts)
			}
		})
	}
}

func TestExternalSchedulerRequest_GetTraceLogArgs(t *testing.T) {
	greq := "greq-1"
	request := ExternalSchedulerRequest{
		Context: NovaRequestContext{UserID: "u1", ProjectID: "p1", GlobalRequestID: &greq},
		Spec:    FilterProperties{RequestID: "req-spec"},
	}
	expected := map[string]string{"greq": "greq-1", "req": "req-spec", "user": "u1", "project": "p1"}
	args := request.GetTraceLogArgs()
	if len(args) != len(expected) {
		t.Fatalf("expected %d args, got %d", len(expected), len(args))
	}
	for _, arg := range args {
		if arg.Value.String() != expected[arg.Key] {
			t.Errorf("expected %s=%s, got %s", arg.Key, expected[arg.Key], arg.Value.String())
		}
	}

	request.Context.RequestID = "req-context"
	for _, arg := range request.GetTraceLogArgs() {
		if arg.Key == "req" && arg.Value.String() != "req-context" {
			t.Errorf("expected context request id to win, got %s", arg.Value.String())
		}
	}
}
