// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"maps"
	"net/http"
	"slices"

	"github.com/cobaltcore-dev/hostselect/internal/conf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Custom prometheus registry that adds functionality to the default registry.
type Registry struct {
	// Inherited prometheus registry.
	*prometheus.Registry
	// Custom configuration for the monitoring.
	config conf.MonitoringConfig
}

// Create a new registry with the given configuration.
// This registry will include the default go collector and process collector.
func NewRegistry(config conf.MonitoringConfig) *Registry {
	registry := &Registry{
		Registry: prometheus.NewRegistry(),
		config:   config,
	}
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Custom gather method that adds the configured labels to all metrics.
// This is useful for distinguishing the metrics from other golang services
// that also use the default go collector metrics.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	families, err := r.Registry.Gather()
	if err != nil {
		return nil, err
	}
	// Sorted, so that the label order is stable across scrapes.
	names := slices.Sorted(maps.Keys(r.config.Labels))
	for _, name := range names {
		value := r.config.Labels[name]
		for _, family := range families {
			for _, metric := range family.Metric {
				metric.Label = append(metric.Label, &dto.LabelPair{
					Name:  &name,
					Value: &value,
				})
			}
		}
	}
	return families, nil
}

// Http handler exposing the gathered metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r, promhttp.HandlerOpts{})
}
