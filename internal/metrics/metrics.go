// Package metrics exports scheduler and loader state to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

const namespace = "asyncload"

// Source is the read side of a scheduler.
type Source interface {
	Stats() loadlib.Stats
	ActiveCount() int
	PendingCount() int
	CancelledCount() int
	MaxConcurrentLoads() int
	CacheStats() loadlib.CacheStats
}

var _ Source = (*loadlib.Scheduler)(nil)

var (
	descRequests = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "scheduler", "requests_total"),
		"Requests accepted by the scheduler, by outcome.",
		[]string{"outcome"}, nil,
	)
	descActive = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "scheduler", "active_loads"),
		"Requests currently being loaded.",
		nil, nil,
	)
	descPending = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "scheduler", "pending_loads"),
		"Requests waiting for a load slot.",
		nil, nil,
	)
	descCancelledIDs = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "scheduler", "cancelled_ids"),
		"Size of the cancellation registry.",
		nil, nil,
	)
	descCapacity = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "scheduler", "max_concurrent_loads"),
		"Configured load capacity.",
		nil, nil,
	)
	descCacheEntries = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "entries"),
		"Resolved classes held in the class cache.",
		nil, nil,
	)
	descCacheBytes = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "approx_bytes"),
		"Approximate class cache footprint.",
		nil, nil,
	)
)

type schedulerCollector struct {
	src Source
}

var _ prometheus.Collector = &schedulerCollector{}

// NewSchedulerCollector returns a collector that reads src on every scrape.
func NewSchedulerCollector(src Source) prometheus.Collector {
	return &schedulerCollector{src: src}
}

// Describe implements the prometheus.Collector interface.
func (c *schedulerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descRequests
	ch <- descActive
	ch <- descPending
	ch <- descCancelledIDs
	ch <- descCapacity
	ch <- descCacheEntries
	ch <- descCacheBytes
}

// Collect implements the prometheus.Collector interface.
func (c *schedulerCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(descRequests, prometheus.CounterValue, float64(st.Total), "total")
	ch <- prometheus.MustNewConstMetric(descRequests, prometheus.CounterValue, float64(st.Completed), "completed")
	ch <- prometheus.MustNewConstMetric(descRequests, prometheus.CounterValue, float64(st.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(descRequests, prometheus.CounterValue, float64(st.Cancelled), "cancelled")
	ch <- prometheus.MustNewConstMetric(descActive, prometheus.GaugeValue, float64(c.src.ActiveCount()))
	ch <- prometheus.MustNewConstMetric(descPending, prometheus.GaugeValue, float64(c.src.PendingCount()))
	ch <- prometheus.MustNewConstMetric(descCancelledIDs, prometheus.GaugeValue, float64(c.src.CancelledCount()))
	ch <- prometheus.MustNewConstMetric(descCapacity, prometheus.GaugeValue, float64(c.src.MaxConcurrentLoads()))
	cs := c.src.CacheStats()
	ch <- prometheus.MustNewConstMetric(descCacheEntries, prometheus.GaugeValue, float64(cs.Count))
	ch <- prometheus.MustNewConstMetric(descCacheBytes, prometheus.GaugeValue, float64(cs.ApproxBytes))
}

// Metrics owns the registry served on the metrics endpoint.
type Metrics struct {
	Registry *prometheus.Registry

	resolveDuration *prometheus.HistogramVec
	resolveErrors   *prometheus.CounterVec
	rpcCalls        *prometheus.CounterVec
}

// New creates a registry with the process, Go and loader metrics.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving class identifiers, by scheme.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"scheme"}),
		resolveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "resolve_errors_total",
			Help:      "Failed resolutions, by scheme.",
		}, []string{"scheme"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "JSON-RPC calls served, by method and result.",
		}, []string{"method", "result"}),
	}
	m.Registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.resolveDuration,
		m.resolveErrors,
		m.rpcCalls,
	)
	return m
}

// RegisterScheduler adds a collector for src. Registering a second
// scheduler fails.
func (m *Metrics) RegisterScheduler(src Source) error {
	err := m.Registry.Register(NewSchedulerCollector(src))
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return errors.New("metrics: scheduler already registered")
	}
	return err
}

// ObserveResolve records one loader resolution. It matches
// loader.ObserveFunc.
func (m *Metrics) ObserveResolve(scheme string, d time.Duration, err error) {
	m.resolveDuration.WithLabelValues(scheme).Observe(d.Seconds())
	if err != nil {
		m.resolveErrors.WithLabelValues(scheme).Inc()
	}
}

// ObserveCall counts one RPC call.
func (m *Metrics) ObserveCall(method string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.rpcCalls.WithLabelValues(method, result).Inc()
}
