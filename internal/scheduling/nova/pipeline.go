// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package nova

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/cobaltcore-dev/hostselect/internal/conf"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/lib"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/plugins/filters"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/plugins/weighers"
)

// Returned when the configuration names a weigher that is not supported.
var ErrUnknownWeigher = errors.New("unknown weigher")

// Assemble the nova host selection pipeline from the configuration.
//
// The spare hosts filter is the only filter stage, with the hard rules
// evaluated inside it. Weighers are applied in the configured order.
func NewPipeline(config conf.SchedulerConfig, monitor lib.FilterWeigherPipelineMonitor) (*lib.FilterWeigherPipeline, error) {
	return newPipeline(config, monitor, nil)
}

// Assemble the pipeline with the given random source for the fuzzer.
// A nil source uses the global one.
func newPipeline(
	config conf.SchedulerConfig,
	monitor lib.FilterWeigherPipelineMonitor,
	rng *rand.Rand,
) (*lib.FilterWeigherPipeline, error) {

	monitor = monitor.SubPipeline(config.PipelineName)

	hardRules := filters.NewHardRuleChain(config.Filters, monitor)
	spareHosts := filters.NewSpareHostsFilter(hardRules, config.Filters, monitor)

	steps := make([]lib.WeigherStep, 0, len(config.Weighers))
	for _, weigherConfig := range config.Weighers {
		entry, ok := weighers.Index[weigherConfig.Name]
		if !ok {
			supported := slices.Sorted(maps.Keys(weighers.Index))
			return nil, fmt.Errorf("%w: %s (supported: %v)", ErrUnknownWeigher, weigherConfig.Name, supported)
		}
		multiplier := entry.DefaultMultiplier
		if weigherConfig.Multiplier != nil {
			multiplier = *weigherConfig.Multiplier
		}
		steps = append(steps, lib.WeigherStep{
			Name:       weigherConfig.Name,
			Weigher:    entry.New(),
			Multiplier: multiplier,
		})
	}
	weigherChain := lib.NewWeigherChain(monitor, steps...)

	slog.Info(
		"scheduler: assembled pipeline", "pipeline", config.PipelineName,
		"checks", hardRules.Names(), "weighers", weigherChain.Names(),
		"spareHostPercentage", config.Filters.SpareHostPercentage,
		"fuzzTopN", config.FuzzTopN,
	)
	return lib.NewFilterWeigherPipeline(
		[]lib.Filter{spareHosts},
		weigherChain,
		lib.NewTopKFuzzer(config.FuzzTopN, rng),
		monitor,
	), nil
}
