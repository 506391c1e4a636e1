// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/cobaltcore-dev/hostselect/internal/conf"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/lib"
	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

func TestRAMCheck_HostPasses(t *testing.T) {
	tests := []struct {
		name      string
		freeRAMMB int
		memoryMB  int
		expected  bool
	}{
		{"small instance with reserve left", 3072, 2048, true},
		{"small instance without reserve", 2560, 2048, false},
		{"large instance needs no reserve", 8192, 8192, true},
		{"large instance does not fit", 8191, 8192, false},
		{"exactly the reserve for a small instance", 8191, 7167, true},
		{"1g instance on 1g host", 1024, 1024, false},
		{"1g instance on 2g host", 2048, 1024, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &api.HostState{Host: "host1", FreeRAMMB: tt.freeRAMMB}
			props := api.FilterProperties{InstanceType: &api.InstanceType{MemoryMB: tt.memoryMB}}
			if got := (RAMCheck{}).HostPasses(slog.Default(), host, props); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRAMCheck_ValidateRequest(t *testing.T) {
	err := RAMCheck{}.ValidateRequest(api.FilterProperties{})
	if !errors.Is(err, api.ErrMissingInstanceType) {
		t.Errorf("expected missing instance type error, got %v", err)
	}
	err = RAMCheck{}.ValidateRequest(api.FilterProperties{InstanceType: &api.InstanceType{}})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestIOOpsCheck_HostPasses(t *testing.T) {
	check := IOOpsCheck{MaxIOOpsPerHost: 8}
	tests := []struct {
		numIOOps int
		expected bool
	}{
		{0, true},
		{7, true},
		{8, false},
		{20, false},
	}
	for _, tt := range tests {
		host := &api.HostState{Host: "host1", NumIOOps: tt.numIOOps}
		if got := check.HostPasses(slog.Default(), host, api.FilterProperties{}); got != tt.expected {
			t.Errorf("io ops %d: expected %v, got %v", tt.numIOOps, tt.expected, got)
		}
	}
}

func TestInstanceCountCheck_HostPasses(t *testing.T) {
	check := InstanceCountCheck{MaxInstancesPerHost: 50}
	tests := []struct {
		numInstances int
		expected     bool
	}{
		{0, true},
		{49, true},
		{50, false},
		{51, false},
	}
	for _, tt := range tests {
		host := &api.HostState{Host: "host1", NumInstances: tt.numInstances}
		if got := check.HostPasses(slog.Default(), host, api.FilterProperties{}); got != tt.expected {
			t.Errorf("instances %d: expected %v, got %v", tt.numInstances, tt.expected, got)
		}
	}
}

func TestVMTypeCheck_HostPasses(t *testing.T) {
	pvFlavor := &api.InstanceType{ID: 5}
	hvmFlavor := &api.InstanceType{ID: 105}
	tests := []struct {
		name     string
		allowed  api.VMType
		flavor   *api.InstanceType
		expected bool
	}{
		{"pv flavor on pv host", api.VMTypePV, pvFlavor, true},
		{"pv flavor on hvm host", api.VMTypeHVM, pvFlavor, false},
		{"hvm flavor on hvm host", api.VMTypeHVM, hvmFlavor, true},
		{"hvm flavor on pv host", api.VMTypePV, hvmFlavor, false},
		{"pv flavor on mixed host", api.VMTypeAll, pvFlavor, true},
		{"hvm flavor on mixed host", api.VMTypeAll, hvmFlavor, true},
		{"flavor 50 on hvm host", api.VMTypeHVM, &api.InstanceType{ID: 50}, false},
		{"flavor 150 on hvm host", api.VMTypeHVM, &api.InstanceType{ID: 150}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &api.HostState{Host: "host1", AllowedVMType: tt.allowed}
			props := api.FilterProperties{InstanceType: tt.flavor}
			if got := (VMTypeCheck{}).HostPasses(slog.Default(), host, props); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNewHardRuleChain(t *testing.T) {
	config := conf.DefaultSchedulerConfig().Filters
	chain := NewHardRuleChain(config, lib.FilterWeigherPipelineMonitor{})
	expected := []string{"io_ops_check", "instance_count_check", "vm_type_check"}
	if !slices.Equal(chain.Names(), expected) {
		t.Errorf("expected checks %v, got %v", expected, chain.Names())
	}

	config.RAMCheckEnabled = true
	chain = NewHardRuleChain(config, lib.FilterWeigherPipelineMonitor{})
	expected = append([]string{"ram_check"}, expected...)
	if !slices.Equal(chain.Names(), expected) {
		t.Errorf("expected checks %v, got %v", expected, chain.Names())
	}
	err := chain.ValidateRequest(api.FilterProperties{})
	if !errors.Is(err, api.ErrMissingInstanceType) {
		t.Errorf("expected missing instance type error, got %v", err)
	}
}
