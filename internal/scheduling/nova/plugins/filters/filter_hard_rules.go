// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"log/slog"

	"github.com/cobaltcore-dev/hostselect/internal/conf"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/lib"
	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

const (
	// Instances below this size get an extra memory reserve.
	smallInstanceMemoryMB = 8 * 1024
	// Extra memory reserved on the host for small instances, to account for
	// the hypervisor overhead per vm and races on nearly full hosts.
	smallInstanceReserveMB = 1024
)

// Only pass hosts with enough free memory, including an extra reserve
// for small instances.
type RAMCheck struct{}

func (RAMCheck) Name() string { return "ram_check" }

func (RAMCheck) ValidateRequest(props api.FilterProperties) error {
	if props.InstanceType == nil {
		return api.ErrMissingInstanceType
	}
	return nil
}

func (RAMCheck) HostPasses(traceLog *slog.Logger, host *api.HostState, props api.FilterProperties) bool {
	requestedRAM := props.InstanceType.MemoryMB
	extraReserve := 0
	if requestedRAM < smallInstanceMemoryMB {
		extraReserve = smallInstanceReserveMB
	}
	passes := host.FreeRAMMB >= requestedRAM+extraReserve
	if !passes {
		traceLog.Debug(
			"scheduler: host fails ram check", "host", host,
			"requestedRAM", requestedRAM, "extraReserve", extraReserve,
		)
	}
	return passes
}

// Only pass hosts that don't have too many io heavy operations running.
type IOOpsCheck struct {
	MaxIOOpsPerHost int
}

func (IOOpsCheck) Name() string { return "io_ops_check" }

func (c IOOpsCheck) HostPasses(traceLog *slog.Logger, host *api.HostState, _ api.FilterProperties) bool {
	passes := host.NumIOOps < c.MaxIOOpsPerHost
	if !passes {
		traceLog.Debug(
			"scheduler: host fails io ops check", "host", host,
			"maxIOOps", c.MaxIOOpsPerHost,
		)
	}
	return passes
}

// Only pass hosts that don't have too many instances.
type InstanceCountCheck struct {
	MaxInstancesPerHost int
}

func (InstanceCountCheck) Name() string { return "instance_count_check" }

func (c InstanceCountCheck) HostPasses(traceLog *slog.Logger, host *api.HostState, _ api.FilterProperties) bool {
	passes := host.NumInstances < c.MaxInstancesPerHost
	if !passes {
		traceLog.Debug(
			"scheduler: host fails num instances check", "host", host,
			"maxInstances", c.MaxInstancesPerHost,
		)
	}
	return passes
}

// Only pass hosts that allow the vm type of the requested flavor.
type VMTypeCheck struct{}

func (VMTypeCheck) Name() string { return "vm_type_check" }

func (VMTypeCheck) ValidateRequest(props api.FilterProperties) error {
	_, err := props.RequestedVMType()
	return err
}

func (VMTypeCheck) HostPasses(traceLog *slog.Logger, host *api.HostState, props api.FilterProperties) bool {
	if host.AllowedVMType == api.VMTypeAll {
		return true
	}
	vmType, err := props.RequestedVMType()
	if err != nil {
		// Rejected by ValidateRequest before any host is checked.
		return false
	}
	passes := host.AllowedVMType == vmType
	if !passes {
		traceLog.Debug(
			"scheduler: host fails vm type check", "host", host,
			"allowed", host.AllowedVMType, "requested", vmType,
		)
	}
	return passes
}

// Build the hard rule chain from the configuration.
// The ram check is only part of the chain when it is enabled.
func NewHardRuleChain(config conf.FiltersConfig, monitor lib.FilterWeigherPipelineMonitor) lib.FilterChain {
	checks := []lib.HostCheck{}
	if config.RAMCheckEnabled {
		checks = append(checks, RAMCheck{})
	}
	checks = append(checks,
		IOOpsCheck{MaxIOOpsPerHost: config.MaxIOOpsPerHost},
		InstanceCountCheck{MaxInstancesPerHost: config.MaxInstancesPerHost},
		VMTypeCheck{},
	)
	return lib.NewFilterChain(monitor, checks...)
}
