// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"slices"
)

// Virtualization mode a host accepts, or the mode a flavor needs.
type VMType string

const (
	// Paravirtualized guests.
	VMTypePV VMType = "pv"
	// Hardware virtualized guests.
	VMTypeHVM VMType = "hvm"
	// Hosts that accept both pv and hvm guests.
	VMTypeAll VMType = "all"
)

// Task states of an instance that count as an io heavy operation on its host.
var ioOpsTaskStates = []string{
	"spawning",
	"resize_migrating",
	"resize_finish",
	"image_snapshot",
	"image_backup",
	"rescuing",
	"unshelving",
}

// Point-in-time snapshot of one compute host, as delivered by the inventory.
//
// The scheduling pipeline only reads host states and never modifies them.
type HostState struct {
	// Compute host name, unique in one scheduling cycle.
	Host string `json:"host"`
	// Hypervisor node name below the compute host.
	Node string `json:"nodename"`
	// Free memory on the host in MB.
	FreeRAMMB int `json:"free_ram_mb"`
	// Number of instances currently running on the host.
	NumInstances int `json:"num_instances"`
	// Number of concurrent builds, resizes, snapshots and migrations.
	NumIOOps int `json:"num_io_ops"`
	// Number of instances on this host by openstack project id.
	NumInstancesByProject map[string]int `json:"num_instances_by_project,omitempty"`
	// Number of instances on this host by guest os type.
	NumInstancesByOSType map[string]int `json:"num_instances_by_os_type,omitempty"`
	// Which vm types are allowed to run on this host.
	AllowedVMType VMType `json:"allowed_vm_type"`
}

// Instance that was (hypothetically) placed on a host.
type Instance struct {
	ProjectID string `json:"project_id"`
	OSType    string `json:"os_type"`
	MemoryMB  int    `json:"memory_mb"`
	TaskState string `json:"task_state,omitempty"`
}

func (h *HostState) String() string {
	return fmt.Sprintf("(%s, %s)", h.Host, h.Node)
}

// Check that the host state was delivered with sane values.
func (h *HostState) Validate() error {
	if h.Host == "" {
		return errors.New("host state without host name")
	}
	if h.FreeRAMMB < 0 || h.NumInstances < 0 || h.NumIOOps < 0 {
		return fmt.Errorf("host %s has negative resource counters", h.Host)
	}
	for project, n := range h.NumInstancesByProject {
		if n < 0 {
			return fmt.Errorf("host %s has negative instance count for project %s", h.Host, project)
		}
	}
	for osType, n := range h.NumInstancesByOSType {
		if n < 0 {
			return fmt.Errorf("host %s has negative instance count for os type %s", h.Host, osType)
		}
	}
	switch h.AllowedVMType {
	case VMTypePV, VMTypeHVM, VMTypeAll:
		return nil
	default:
		return fmt.Errorf("host %s has unsupported allowed vm type %q", h.Host, h.AllowedVMType)
	}
}

// Account for an instance placed on this host during the current cycle.
//
// This is used by the inventory side when it places several instances in one
// cycle. The pipeline itself never calls it.
func (h *HostState) ConsumeFromInstance(instance Instance) {
	h.FreeRAMMB -= instance.MemoryMB
	h.NumInstances++
	if h.NumInstancesByProject == nil {
		h.NumInstancesByProject = make(map[string]int)
	}
	h.NumInstancesByProject[instance.ProjectID]++
	if h.NumInstancesByOSType == nil {
		h.NumInstancesByOSType = make(map[string]int)
	}
	h.NumInstancesByOSType[instance.OSType]++
	if slices.Contains(ioOpsTaskStates, instance.TaskState) {
		h.NumIOOps++
	}
}
