// Package metrics exposes the store's live snapshot as Prometheus metrics.
// The collector reads what the schedulers already maintain; it never issues
// bridge requests of its own.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kestrel/internal/delay"
	"kestrel/internal/store"
)

// Collector implements prometheus.Collector over the central store and the
// delay tester's result cache.
type Collector struct {
	store  *store.Store
	tester *delay.Tester

	running            *prometheus.Desc
	up                 *prometheus.Desc
	down               *prometheus.Desc
	activeConnections  *prometheus.Desc
	totalUpload        *prometheus.Desc
	totalDownload      *prometheus.Desc
	connectionUpload   *prometheus.Desc
	connectionDownload *prometheus.Desc
	nodeDelay          *prometheus.Desc
	nodeAvailable      *prometheus.Desc
}

// NewCollector creates and initializes a Collector.
func NewCollector(st *store.Store, tester *delay.Tester) *Collector {
	fqName := func(name string) string {
		return prometheus.BuildFQName("kestrel", "", name)
	}
	return &Collector{
		store:  st,
		tester: tester,
		running: prometheus.NewDesc(
			fqName("engine_running"),
			"Whether the engine is running (1) or stopped (0).",
			nil, nil,
		),
		up: prometheus.NewDesc(
			fqName("traffic_upload_speed_bytes"),
			"Latest sampled upload speed in bytes per second.",
			nil, nil,
		),
		down: prometheus.NewDesc(
			fqName("traffic_download_speed_bytes"),
			"Latest sampled download speed in bytes per second.",
			nil, nil,
		),
		activeConnections: prometheus.NewDesc(
			fqName("connections_active_total"),
			"Number of live connections.",
			nil, nil,
		),
		totalUpload: prometheus.NewDesc(
			fqName("connections_upload_bytes_total"),
			"Summed upload bytes over live connections.",
			nil, nil,
		),
		totalDownload: prometheus.NewDesc(
			fqName("connections_download_bytes_total"),
			"Summed download bytes over live connections.",
			nil, nil,
		),
		connectionUpload: prometheus.NewDesc(
			fqName("connection_upload_bytes"),
			"Uploaded bytes for a specific live connection.",
			[]string{"host", "rule", "chain"}, nil,
		),
		connectionDownload: prometheus.NewDesc(
			fqName("connection_download_bytes"),
			"Downloaded bytes for a specific live connection.",
			[]string{"host", "rule", "chain"}, nil,
		),
		nodeDelay: prometheus.NewDesc(
			fqName("node_delay_ms"),
			"Cached delay of a node in milliseconds.",
			[]string{"node"}, nil,
		),
		nodeAvailable: prometheus.NewDesc(
			fqName("node_available"),
			"Availability of a node (1 passed its last delay test, 0 failed).",
			[]string{"node"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.running
	ch <- c.up
	ch <- c.down
	ch <- c.activeConnections
	ch <- c.totalUpload
	ch <- c.totalDownload
	ch <- c.connectionUpload
	ch <- c.connectionDownload
	ch <- c.nodeDelay
	ch <- c.nodeAvailable
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	status := c.store.Status()
	runningVal := 0.0
	if status.Running {
		runningVal = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, runningVal)

	samples := c.store.TrafficSamples()
	if len(samples) > 0 {
		latest := samples[len(samples)-1]
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, float64(latest.Up))
		ch <- prometheus.MustNewConstMetric(c.down, prometheus.GaugeValue, float64(latest.Down))
	}

	stats := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.activeConnections, prometheus.GaugeValue, float64(stats.Connections))
	ch <- prometheus.MustNewConstMetric(c.totalUpload, prometheus.GaugeValue, float64(stats.TotalUpload))
	ch <- prometheus.MustNewConstMetric(c.totalDownload, prometheus.GaugeValue, float64(stats.TotalDownload))

	for _, conn := range c.store.Live() {
		chain := ""
		if len(conn.Chains) > 0 {
			chain = conn.Chains[0]
		}
		ch <- prometheus.MustNewConstMetric(c.connectionUpload, prometheus.GaugeValue,
			float64(conn.Upload), conn.Host, conn.Rule, chain)
		ch <- prometheus.MustNewConstMetric(c.connectionDownload, prometheus.GaugeValue,
			float64(conn.Download), conn.Host, conn.Rule, chain)
	}

	if c.tester != nil {
		for name, result := range c.tester.Results() {
			available := 1.0
			delayMS := float64(result.DelayMS)
			if result.Failed() {
				available = 0.0
				delayMS = 0.0
			}
			ch <- prometheus.MustNewConstMetric(c.nodeDelay, prometheus.GaugeValue, delayMS, name)
			ch <- prometheus.MustNewConstMetric(c.nodeAvailable, prometheus.GaugeValue, available, name)
		}
	}
}

// Handler returns an http.Handler serving the collector on /metrics.
func Handler(c *Collector) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}
