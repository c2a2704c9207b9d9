package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace is prepended to every exported metric name.
const namespace = "ledger"

// collector adapts a Registry to the prometheus.Collector interface so its
// counters and gauges are scraped alongside the rest of the process's
// metrics without hand-rolling the text exposition format.
type collector struct {
	reg *Registry
}

var _ prometheus.Collector = (*collector)(nil)

// Describe implements prometheus.Collector. The metric set is dynamic (new
// counters/gauges can be registered at runtime), so no descriptors are sent
// up front; Prometheus's client library tolerates unchecked collectors.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector, emitting one counter-typed sample
// per registered counter and one gauge-typed sample per registered gauge.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	counters, gauges := c.reg.Snapshot()
	for name, v := range counters {
		desc := prometheus.NewDesc(namespace+"_"+name, "counter: "+name, nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}
	for name, v := range gauges {
		desc := prometheus.NewDesc(namespace+"_"+name, "gauge: "+name, nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v))
	}
}

// Exporter serves the Registry over HTTP in Prometheus text exposition
// format using the standard client_golang handler.
type Exporter struct {
	reg     *Registry
	promReg *prometheus.Registry
}

// NewExporter wraps reg for HTTP export. It registers a fresh
// prometheus.Registry rather than the global DefaultRegisterer so multiple
// shell instances in one process (e.g. in tests) don't collide.
func NewExporter(reg *Registry) *Exporter {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(&collector{reg: reg})
	return &Exporter{reg: reg, promReg: promReg}
}

// Handler returns the http.Handler to mount at /metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.promReg, promhttp.HandlerOpts{})
}
