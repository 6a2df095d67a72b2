package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes transfer metrics.
type Collector struct {
	registry      *prometheus.Registry
	nodesTotal    *prometheus.CounterVec
	relsTotal     *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	duration      prometheus.Histogram
	inflightTasks prometheus.Gauge
}

// New creates a metrics collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		nodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_nodes_total",
				Help: "Total number of source nodes processed",
			},
			[]string{"status"},
		),
		relsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_relationships_total",
				Help: "Total number of source relationships processed",
			},
			[]string{"status"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_batches_total",
				Help: "Total number of batched statements issued",
			},
			[]string{"kind", "status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transfer_duration_seconds",
				Help:    "Time taken by a full transfer",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
			},
		),
		inflightTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "transfer_inflight_batches",
				Help: "Number of batch uploads currently in flight",
			},
		),
	}

	c.registry.MustRegister(c.nodesTotal)
	c.registry.MustRegister(c.relsTotal)
	c.registry.MustRegister(c.batchesTotal)
	c.registry.MustRegister(c.duration)
	c.registry.MustRegister(c.inflightTasks)

	return c
}

// AddNodesCreated counts nodes created on the target.
func (c *Collector) AddNodesCreated(n int) {
	c.nodesTotal.WithLabelValues("created").Add(float64(n))
}

// AddNodesSkipped counts source nodes skipped (missing identity property).
func (c *Collector) AddNodesSkipped(n int) {
	c.nodesTotal.WithLabelValues("skipped").Add(float64(n))
}

// AddRelationshipsCreated counts relationships created on the target.
func (c *Collector) AddRelationshipsCreated(n int) {
	c.relsTotal.WithLabelValues("created").Add(float64(n))
}

// AddRelationshipsDropped counts relationships dropped for unmapped endpoints.
func (c *Collector) AddRelationshipsDropped(n int) {
	c.relsTotal.WithLabelValues("dropped").Add(float64(n))
}

// AddRelationshipsSkipped counts relationships skipped (missing identity property).
func (c *Collector) AddRelationshipsSkipped(n int) {
	c.relsTotal.WithLabelValues("skipped").Add(float64(n))
}

// IncBatch counts one batched statement by kind and outcome.
func (c *Collector) IncBatch(kind, status string) {
	c.batchesTotal.WithLabelValues(kind, status).Inc()
}

// ObserveDuration observes a full transfer duration.
func (c *Collector) ObserveDuration(d time.Duration) {
	c.duration.Observe(d.Seconds())
}

// SetInflightBatches sets the number of in-flight batch uploads.
func (c *Collector) SetInflightBatches(n int) {
	c.inflightTasks.Set(float64(n))
}

// StartServer serves /metrics on addr; blocks until the server fails.
func (c *Collector) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
