// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"sync"
)

// Shuffles the best hosts among themselves, so that concurrent schedulers
// looking at the same snapshot don't all pick the same host.
//
// This only lowers the chance of such races. Callers still have to handle
// failed claims on the chosen host.
type TopKFuzzer struct {
	// Number of top hosts to shuffle. Zero disables fuzzing.
	topN int
	// Guards rng, which is not safe for concurrent use.
	mu  sync.Mutex
	rng *rand.Rand
}

// Create a fuzzer shuffling the top n hosts with the given random source.
// If rng is nil, the goroutine-safe global source is used.
func NewTopKFuzzer(topN int, rng *rand.Rand) *TopKFuzzer {
	return &TopKFuzzer{topN: topN, rng: rng}
}

// Shuffle the weights of the first k hosts of the weight-sorted list and
// restore the order from the new weights. Hosts below the top k are
// untouched and stay below all top k hosts. The slice is modified in place.
func (f *TopKFuzzer) Fuzz(weighed []WeighedHost) []WeighedHost {
	k := min(f.topN, len(weighed))
	if k <= 0 {
		return weighed
	}
	topWeights := make([]float64, k)
	for i := range k {
		topWeights[i] = weighed[i].Weight
	}
	f.shuffle(topWeights)
	for i := range k {
		weighed[i].Weight = topWeights[i]
	}
	slices.SortStableFunc(weighed[:k], func(a, b WeighedHost) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	return weighed
}

func (f *TopKFuzzer) shuffle(weights []float64) {
	swap := func(i, j int) { weights[i], weights[j] = weights[j], weights[i] }
	if f.rng == nil {
		rand.Shuffle(len(weights), swap)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rng.Shuffle(len(weights), swap)
}
