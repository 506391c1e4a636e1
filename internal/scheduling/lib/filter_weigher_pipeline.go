// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"iter"
	"log/slog"
	"slices"
	"time"

	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

type FilterWeigherPipelineDecision struct {
	// The admissible hosts with their aggregated weights, most preferred first.
	WeighedHosts []WeighedHost
}

// The host names in order of preference, with the most preferred host first.
func (d FilterWeigherPipelineDecision) OrderedHosts() []string {
	hosts := make([]string, 0, len(d.WeighedHosts))
	for _, weighed := range d.WeighedHosts {
		hosts = append(hosts, weighed.Host.Host)
	}
	return hosts
}

// Pipeline of filters, weighers and the top k fuzzer.
//
// A pipeline holds no mutable state besides its fuzzer's random source and
// may run concurrently for independent requests.
type FilterWeigherPipeline struct {
	// Filter stages in the order they are chained.
	filters []Filter
	// Weighers scoring the hosts that survived the filters.
	weighers WeigherChain
	// Optional fuzzer shuffling the top hosts.
	fuzzer *TopKFuzzer
	// Monitor to observe the pipeline.
	monitor FilterWeigherPipelineMonitor
}

// Create a new pipeline from its stages.
func NewFilterWeigherPipeline(
	filters []Filter,
	weighers WeigherChain,
	fuzzer *TopKFuzzer,
	monitor FilterWeigherPipelineMonitor,
) *FilterWeigherPipeline {

	return &FilterWeigherPipeline{
		filters:  filters,
		weighers: weighers,
		fuzzer:   fuzzer,
		monitor:  monitor,
	}
}

// Chain the filters lazily on top of the host source.
func (p *FilterWeigherPipeline) runFilters(
	traceLog *slog.Logger,
	hosts iter.Seq[*api.HostState],
	props api.FilterProperties,
) (iter.Seq[*api.HostState], error) {

	filtered := hosts
	for _, filter := range p.filters {
		var err error
		filtered, err = filter.FilterAll(traceLog, filtered, props)
		if err != nil {
			traceLog.Error("scheduler: failed to run filter", "error", err)
			return nil, err
		}
	}
	return filtered, nil
}

// Evaluate the pipeline and return the hosts in order of preference.
//
// An empty result is not an error. Errors are only returned for malformed
// requests, in which case no hosts are returned at all.
func (p *FilterWeigherPipeline) Run(
	traceLog *slog.Logger,
	hosts iter.Seq[*api.HostState],
	props api.FilterProperties,
) (FilterWeigherPipelineDecision, error) {

	if traceLog == nil {
		traceLog = slog.Default()
	}
	start := time.Now()

	// Count the hosts pulled from the source while they stream through.
	nHostsIn := 0
	counted := func(yield func(*api.HostState) bool) {
		for host := range hosts {
			nHostsIn++
			if !yield(host) {
				return
			}
		}
	}

	filtered, err := p.runFilters(traceLog, counted, props)
	if err != nil {
		return FilterWeigherPipelineDecision{}, err
	}
	remaining := slices.Collect(filtered)
	traceLog.Info(
		"scheduler: finished filters",
		"hostsIn", nHostsIn, "remainingHosts", len(remaining),
	)

	weighed := p.weighers.WeighAll(traceLog, remaining, props)
	if p.fuzzer != nil {
		weighed = p.fuzzer.Fuzz(weighed)
	}
	decision := FilterWeigherPipelineDecision{WeighedHosts: weighed}
	elapsed := time.Since(start)
	traceLog.Info(
		"scheduler: sorted hosts",
		"hosts", decision.OrderedHosts(), "duration", elapsed,
	)

	if p.monitor.pipelineRunTimer != nil {
		p.monitor.pipelineRunTimer.
			WithLabelValues(p.monitor.PipelineName).
			Observe(elapsed.Seconds())
	}
	p.monitor.observePipelineResult(nHostsIn, len(weighed))
	return decision, nil
}
