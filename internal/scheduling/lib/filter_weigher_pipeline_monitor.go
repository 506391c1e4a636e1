// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"github.com/cobaltcore-dev/hostselect/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

// Collection of Prometheus metrics to monitor the host selection pipeline.
//
// The zero value is a usable monitor that observes nothing.
type FilterWeigherPipelineMonitor struct {
	// The pipeline name is used to differentiate between different pipelines.
	PipelineName string

	// A histogram to measure how long each weigher takes to run.
	stepRunTimer *prometheus.HistogramVec
	// Histogram measuring where the host at a given index came from originally.
	stepReorderingsObserver *prometheus.HistogramVec
	// A histogram to measure how long the pipeline takes to run in total.
	pipelineRunTimer *prometheus.HistogramVec
	// A histogram to observe the number of hosts going into the pipeline.
	hostNumberInObserver *prometheus.HistogramVec
	// A histogram to observe the number of hosts coming out of the pipeline.
	hostNumberOutObserver *prometheus.HistogramVec
	// Counter for the number of requests processed by the pipeline.
	requestCounter *prometheus.CounterVec
	// Counter for hosts rejected by a hard rule check.
	rejectedHostsCounter *prometheus.CounterVec
	// A histogram to observe how many empty hosts were held back as spares.
	reservedSparesObserver *prometheus.HistogramVec
	// Counter for requests where a spare had to be handed out.
	spareFallbackCounter *prometheus.CounterVec
	// Counter for requests forced onto specific hosts by a scheduler hint.
	targetedRequestCounter *prometheus.CounterVec
}

// Create a new pipeline monitor and register the necessary Prometheus metrics.
func NewPipelineMonitor(registry *monitoring.Registry) FilterWeigherPipelineMonitor {
	buckets := []float64{}
	buckets = append(buckets, prometheus.LinearBuckets(0, 1, 10)...)
	buckets = append(buckets, prometheus.LinearBuckets(10, 10, 4)...)
	buckets = append(buckets, prometheus.LinearBuckets(50, 50, 6)...)
	m := FilterWeigherPipelineMonitor{
		stepRunTimer: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hostselect_pipeline_step_run_duration_seconds",
			Help:    "Duration of scheduler pipeline step run",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline", "step"}),
		stepReorderingsObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hostselect_pipeline_step_shift_origin",
			Help:    "From which index of the host list the host came from originally.",
			Buckets: buckets,
		}, []string{"pipeline", "step", "outidx"}),
		pipelineRunTimer: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hostselect_pipeline_run_duration_seconds",
			Help:    "Duration of scheduler pipeline run",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline"}),
		hostNumberInObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hostselect_pipeline_host_number_in",
			Help:    "Number of hosts going into the scheduler pipeline",
			Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
		}, []string{"pipeline"}),
		hostNumberOutObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hostselect_pipeline_host_number_out",
			Help:    "Number of hosts coming out of the scheduler pipeline",
			Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
		}, []string{"pipeline"}),
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostselect_pipeline_requests_total",
			Help: "Total number of requests processed by the scheduler.",
		}, []string{"pipeline"}),
		rejectedHostsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostselect_pipeline_rejected_hosts_total",
			Help: "Total number of hosts rejected by a hard rule check.",
		}, []string{"pipeline", "check"}),
		reservedSparesObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hostselect_pipeline_reserved_spare_hosts",
			Help:    "Number of empty hosts held back as spares per request",
			Buckets: buckets,
		}, []string{"pipeline"}),
		spareFallbackCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostselect_pipeline_spare_fallbacks_total",
			Help: "Total number of requests that could only be served by a spare host.",
		}, []string{"pipeline"}),
		targetedRequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostselect_pipeline_targeted_requests_total",
			Help: "Total number of requests forced onto specific hosts.",
		}, []string{"pipeline"}),
	}
	if registry != nil {
		registry.MustRegister(&m)
	}
	return m
}

// Get a copied pipeline monitor with the name set, after binding the metrics.
func (m FilterWeigherPipelineMonitor) SubPipeline(name string) FilterWeigherPipelineMonitor {
	cp := m
	cp.PipelineName = name
	return cp
}

// Observe a pipeline result: hosts going in, and hosts going out.
func (m *FilterWeigherPipelineMonitor) observePipelineResult(nHostsIn, nHostsOut int) {
	if m.hostNumberInObserver != nil {
		m.hostNumberInObserver.
			WithLabelValues(m.PipelineName).
			Observe(float64(nHostsIn))
	}
	if m.hostNumberOutObserver != nil {
		m.hostNumberOutObserver.
			WithLabelValues(m.PipelineName).
			Observe(float64(nHostsOut))
	}
	if m.requestCounter != nil {
		m.requestCounter.
			WithLabelValues(m.PipelineName).
			Inc()
	}
}

// Observe a host that was rejected by the given check.
func (m *FilterWeigherPipelineMonitor) ObserveRejectedHost(check string) {
	if m.rejectedHostsCounter != nil {
		m.rejectedHostsCounter.WithLabelValues(m.PipelineName, check).Inc()
	}
}

// Observe how many empty hosts were held back in one request.
func (m *FilterWeigherPipelineMonitor) ObserveReservedSpares(n int) {
	if m.reservedSparesObserver != nil {
		m.reservedSparesObserver.WithLabelValues(m.PipelineName).Observe(float64(n))
	}
}

// Observe that a spare host was handed out since nothing else was left.
func (m *FilterWeigherPipelineMonitor) ObserveSpareFallback() {
	if m.spareFallbackCounter != nil {
		m.spareFallbackCounter.WithLabelValues(m.PipelineName).Inc()
	}
}

// Observe a request that was forced onto specific hosts.
func (m *FilterWeigherPipelineMonitor) ObserveTargetedRequest() {
	if m.targetedRequestCounter != nil {
		m.targetedRequestCounter.WithLabelValues(m.PipelineName).Inc()
	}
}

func (m *FilterWeigherPipelineMonitor) Describe(ch chan<- *prometheus.Desc) {
	m.stepRunTimer.Describe(ch)
	m.stepReorderingsObserver.Describe(ch)
	m.pipelineRunTimer.Describe(ch)
	m.hostNumberInObserver.Describe(ch)
	m.hostNumberOutObserver.Describe(ch)
	m.requestCounter.Describe(ch)
	m.rejectedHostsCounter.Describe(ch)
	m.reservedSparesObserver.Describe(ch)
	m.spareFallbackCounter.Describe(ch)
	m.targetedRequestCounter.Describe(ch)
}

func (m *FilterWeigherPipelineMonitor) Collect(ch chan<- prometheus.Metric) {
	m.stepRunTimer.Collect(ch)
	m.stepReorderingsObserver.Collect(ch)
	m.pipelineRunTimer.Collect(ch)
	m.hostNumberInObserver.Collect(ch)
	m.hostNumberOutObserver.Collect(ch)
	m.requestCounter.Collect(ch)
	m.rejectedHostsCounter.Collect(ch)
	m.reservedSparesObserver.Collect(ch)
	m.spareFallbackCounter.Collect(ch)
	m.targetedRequestCounter.Collect(ch)
}
