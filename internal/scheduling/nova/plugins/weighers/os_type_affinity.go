// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package weighers

import (
	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

// Prefer hosts whose instances already share the requested os type, by
// penalizing every instance of another os type on the host.
type OSTypeAffinityWeigher struct{}

func (OSTypeAffinityWeigher) Weigh(host *api.HostState, props api.FilterProperties) float64 {
	if host.NumInstancesByOSType == nil || props.OSType == "" {
		return 0
	}
	otherTypeInstances := 0
	for osType, n := range host.NumInstancesByOSType {
		if osType != props.OSType {
			otherTypeInstances += n
		}
	}
	return -float64(otherTypeInstances)
}

func init() {
	Index["os_type_affinity"] = IndexEntry{
		New:               func() NovaWeigher { return OSTypeAffinityWeigher{} },
		DefaultMultiplier: 200000.0,
	}
}
