// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package weighers

import (
	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

// Prefer hosts with fewer instances of the requesting project, to spread
// a single project's instances across hosts.
type ProjectAffinityWeigher struct{}

func (ProjectAffinityWeigher) Weigh(host *api.HostState, props api.FilterProperties) float64 {
	// Missing projects in the breakdown count as zero.
	return -float64(host.NumInstancesByProject[props.ProjectID])
}

func init() {
	Index["project_affinity"] = IndexEntry{
		New:               func() NovaWeigher { return ProjectAffinityWeigher{} },
		DefaultMultiplier: 20.0,
	}
}
