// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"

	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

func newWeighedHosts(weights ...float64) []WeighedHost {
	weighed := make([]WeighedHost, 0, len(weights))
	for i, weight := range weights {
		weighed = append(weighed, WeighedHost{
			Host:   &api.HostState{Host: string(rune('a' + i))},
			Weight: weight,
		})
	}
	return weighed
}

func TestTopKFuzzer_Disabled(t *testing.T) {
	for _, topN := range []int{0, -1} {
		weighed := newWeighedHosts(5, 4, 3)
		result := NewTopKFuzzer(topN, nil).Fuzz(weighed)
		if got := hostNames(result); !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("topN %d: expected unchanged order, got %v", topN, got)
		}
	}
}

func TestTopKFuzzer_Empty(t *testing.T) {
	if result := NewTopKFuzzer(5, nil).Fuzz(nil); len(result) != 0 {
		t.Errorf("expected no hosts, got %v", result)
	}
}

func TestTopKFuzzer_OnlyTopKMove(t *testing.T) {
	fuzzer := NewTopKFuzzer(3, rand.New(rand.NewPCG(1, 2)))
	for range 50 {
		weighed := newWeighedHosts(10, 9, 8, 2, 1)
		result := fuzzer.Fuzz(weighed)
		if len(result) != 5 {
			t.Fatalf("expected 5 hosts, got %d", len(result))
		}
		top := hostNames(result[:3])
		slices.Sort(top)
		if !slices.Equal(top, []string{"a", "b", "c"}) {
			t.Fatalf("expected the top 3 hosts to stay on top, got %v", top)
		}
		if got := hostNames(result[3:]); !slices.Equal(got, []string{"d", "e"}) {
			t.Fatalf("expected hosts below the top 3 untouched, got %v", got)
		}
		weights := []float64{}
		for _, w := range result[:3] {
			weights = append(weights, w.Weight)
		}
		if !slices.Equal(weights, []float64{10, 9, 8}) {
			t.Fatalf("expected the top weights to stay sorted, got %v", weights)
		}
	}
}

func TestTopKFuzzer_TopNLargerThanHosts(t *testing.T) {
	fuzzer := NewTopKFuzzer(10, rand.New(rand.NewPCG(3, 4)))
	result := fuzzer.Fuzz(newWeighedHosts(3, 2))
	names := hostNames(result)
	slices.Sort(names)
	if !slices.Equal(names, []string{"a", "b"}) {
		t.Errorf("expected both hosts, got %v", names)
	}
}

func TestTopKFuzzer_Shuffles(t *testing.T) {
	fuzzer := NewTopKFuzzer(2, nil)
	picked := map[string]int{}
	for range 200 {
		result := fuzzer.Fuzz(newWeighedHosts(2, 1, 0))
		picked[result[0].Host.Host]++
	}
	if picked["a"] == 0 || picked["b"] == 0 || picked["c"] != 0 {
		t.Errorf("expected only the top 2 hosts to be picked first, got %v", picked)
	}
}

func TestTopKFuzzer_ConcurrentSharedSource(t *testing.T) {
	fuzzer := NewTopKFuzzer(3, rand.New(rand.NewPCG(5, 6)))
	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for range 16 {
		wg.Go(func() {
			for range 100 {
				result := fuzzer.Fuzz(newWeighedHosts(10, 9, 8, 2, 1))
				top := hostNames(result[:3])
				slices.Sort(top)
				if !slices.Equal(top, []string{"a", "b", "c"}) {
					errs <- "top 3 hosts changed: " + strings.Join(top, ",")
					return
				}
				if got := hostNames(result[3:]); !slices.Equal(got, []string{"d", "e"}) {
					errs <- "hosts below the top 3 moved: " + strings.Join(got, ",")
					return
				}
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
