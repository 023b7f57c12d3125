package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineStats provides the collector access to ingest state.
type PipelineStats interface {
	FramesProcessed() int64
	DriversInPit() int
}

// SubscriberStats provides the collector access to the fan-out hub.
type SubscriberStats interface {
	Count() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats PipelineStats
	subs  SubscriberStats

	framesProcessed *prometheus.Desc
	driversInPit    *prometheus.Desc
	subscribers     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// Either source may be nil (metrics will report 0).
func NewCollector(stats PipelineStats, subs SubscriberStats) *Collector {
	return &Collector{
		stats: stats,
		subs:  subs,
		framesProcessed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "frames_processed_total"),
			"Upstream frames handled by the ingest pipeline.",
			nil, nil,
		),
		driversInPit: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "drivers_in_pit"),
			"Drivers currently tracked in the pit lane.",
			nil, nil,
		),
		subscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "subscribers_connected"),
			"Currently connected WebSocket subscribers.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.framesProcessed
	ch <- c.driversInPit
	ch <- c.subscribers
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.stats != nil {
		ch <- prometheus.MustNewConstMetric(c.framesProcessed, prometheus.CounterValue, float64(c.stats.FramesProcessed()))
		ch <- prometheus.MustNewConstMetric(c.driversInPit, prometheus.GaugeValue, float64(c.stats.DriversInPit()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.framesProcessed, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.driversInPit, prometheus.GaugeValue, 0)
	}

	if c.subs != nil {
		ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(c.subs.Count()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, 0)
	}
}
