// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"iter"
	"log/slog"
	"slices"

	"github.com/cobaltcore-dev/hostselect/internal/conf"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/lib"
	api "github.com/cobaltcore-dev/hostselect/internal/scheduling/nova/api"
)

// Hard rules evaluated on each host before the spare logic.
type hardRules interface {
	ValidateRequest(props api.FilterProperties) error
	HostPasses(traceLog *slog.Logger, host *api.HostState, props api.FilterProperties) bool
}

// Filter that applies the hard rules and holds back a number of empty hosts
// as spares, to reduce races for resources on busy hosts.
//
// Requests carrying the target host scheduler hint bypass all rules and only
// get the targeted hosts.
type SpareHostsFilter struct {
	rules hardRules
	// The number of presented hosts divided by this value gives the number
	// of spares. Zero disables spares.
	spareHostPercentage int
	// Scheduler hint holding a comma separated list of forced hosts.
	targetHostHint string
	monitor        lib.FilterWeigherPipelineMonitor
}

// Create the spare hosts filter on top of the given hard rules.
func NewSpareHostsFilter(rules hardRules, config conf.FiltersConfig, monitor lib.FilterWeigherPipelineMonitor) *SpareHostsFilter {
	return &SpareHostsFilter{
		rules:               rules,
		spareHostPercentage: config.SpareHostPercentage,
		targetHostHint:      config.TargetHostHint,
		monitor:             monitor,
	}
}

// Number of empty hosts to hold back for a request.
func (f *SpareHostsFilter) targetSpares(props api.FilterProperties) int {
	if f.spareHostPercentage <= 0 {
		return 0
	}
	return props.TotalHosts / f.spareHostPercentage
}

// Filter the host stream. The returned sequence pulls every host from the
// input at most once and keeps the input order.
func (f *SpareHostsFilter) FilterAll(
	traceLog *slog.Logger,
	hosts iter.Seq[*api.HostState],
	props api.FilterProperties,
) (iter.Seq[*api.HostState], error) {

	targets, targeted, err := props.TargetHosts(f.targetHostHint)
	if err != nil {
		return nil, err
	}
	if targeted {
		// A specific target ignores all other checks.
		traceLog.Info("scheduler: filter forcing target(s)", "targets", targets)
		f.monitor.ObserveTargetedRequest()
		return func(yield func(*api.HostState) bool) {
			for host := range hosts {
				if slices.Contains(targets, host.Host) && !yield(host) {
					return
				}
			}
		}, nil
	}
	if err := f.rules.ValidateRequest(props); err != nil {
		return nil, err
	}

	targetSpares := f.targetSpares(props)
	return func(yield func(*api.HostState) bool) {
		remainingSpares := targetSpares
		// Keep track of an empty host in case we have no choice
		// but to use a spare.
		var lastSpare *api.HostState
		nReturned := 0
		defer func() { f.monitor.ObserveReservedSpares(targetSpares - remainingSpares) }()

		for host := range hosts {
			if !f.rules.HostPasses(traceLog, host, props) {
				continue
			}
			if remainingSpares > 0 && host.NumInstances == 0 {
				remainingSpares--
				lastSpare = host
				traceLog.Debug("scheduler: host reserved as spare", "host", host)
				continue
			}
			nReturned++
			if !yield(host) {
				return
			}
		}
		if nReturned == 0 && lastSpare != nil {
			traceLog.Info("scheduler: host unreserved as spare", "host", lastSpare)
			f.monitor.ObserveSpareFallback()
			yield(lastSpare)
		}
	}, nil
}
