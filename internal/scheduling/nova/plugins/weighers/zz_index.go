// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package weighers

import (
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/lib"
)

type NovaWeigher = lib.Weigher

// A supported weigher with the multiplier it uses when none is configured.
type IndexEntry struct {
	New               func() NovaWeigher
	DefaultMultiplier float64
}

// Configuration of weighers supported by the nova scheduler.
var Index = map[string]IndexEntry{}
