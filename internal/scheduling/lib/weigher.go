// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"cmp"
	"log/slog"
	"slices"
	"strconv"

	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
	"github.com/prometheus/client_golang/prometheus"
)

// Interface for a weigher as part of the scheduling pipeline.
type Weigher interface {
	// Calculate the raw score of the host for the given request.
	// Higher scores win.
	Weigh(host *api.HostState, props api.FilterProperties) float64
}

// A weigher together with its name and multiplier.
type WeigherStep struct {
	Name       string
	Weigher    Weigher
	Multiplier float64
}

// Host paired with its aggregated weight.
type WeighedHost struct {
	Host   *api.HostState
	Weight float64
}

// Ordered list of weighers whose multiplied scores are summed up.
type WeigherChain struct {
	steps   []WeigherStep
	monitor FilterWeigherPipelineMonitor
}

// Create a new weigher chain from the given steps.
func NewWeigherChain(monitor FilterWeigherPipelineMonitor, steps ...WeigherStep) WeigherChain {
	return WeigherChain{steps: steps, monitor: monitor}
}

// Names of the weighers in this chain, in the configured order.
func (c WeigherChain) Names() []string {
	names := make([]string, 0, len(c.steps))
	for _, step := range c.steps {
		names = append(names, step.Name)
	}
	return names
}

// Weigh all hosts and return them sorted by weight, highest first.
// Hosts with the same weight keep their relative input order.
func (c WeigherChain) WeighAll(traceLog *slog.Logger, hosts []*api.HostState, props api.FilterProperties) []WeighedHost {
	weighed := make([]WeighedHost, len(hosts))
	for i, host := range hosts {
		weighed[i] = WeighedHost{Host: host}
	}
	for _, step := range c.steps {
		var timer *prometheus.Timer
		if c.monitor.stepRunTimer != nil {
			timer = prometheus.NewTimer(c.monitor.stepRunTimer.
				WithLabelValues(c.monitor.PipelineName, step.Name))
		}
		for i := range weighed {
			weighed[i].Weight += step.Multiplier * step.Weigher.Weigh(weighed[i].Host, props)
		}
		if timer != nil {
			timer.ObserveDuration()
		}
		traceLog.Debug("scheduler: finished weigher", "weigher", step.Name, "multiplier", step.Multiplier)
	}
	slices.SortStableFunc(weighed, func(a, b WeighedHost) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	c.observeReorderings(traceLog, hosts, weighed)
	return weighed
}

// Observe where the first hosts of the sorted list were placed originally.
func (c WeigherChain) observeReorderings(traceLog *slog.Logger, in []*api.HostState, out []WeighedHost) {
	for idx := range min(len(out), 5) {
		originalIdx := slices.Index(in, out[idx].Host)
		if c.monitor.stepReorderingsObserver != nil {
			c.monitor.stepReorderingsObserver.
				WithLabelValues(c.monitor.PipelineName, "weighers", strconv.Itoa(idx)).
				Observe(float64(originalIdx))
		}
		traceLog.Debug(
			"scheduler: reordered host",
			"host", out[idx].Host.Host, "weight", out[idx].Weight,
			"originalIdx", originalIdx, "newIdx", idx,
		)
	}
}
