// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package weighers

import (
	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

// Prefer hosts that already run more instances. This packs instances onto
// used hosts and keeps more hosts completely empty.
type InstanceCountWeigher struct{}

func (InstanceCountWeigher) Weigh(host *api.HostState, _ api.FilterProperties) float64 {
	return float64(host.NumInstances)
}

func init() {
	Index["instance_count"] = IndexEntry{
		New:               func() NovaWeigher { return InstanceCountWeigher{} },
		DefaultMultiplier: 5.0,
	}
}
