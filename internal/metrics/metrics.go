// prometheus exporter
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"dvb-tune/internal/status"
)

const namespace = "dvb"
const subsystem = "frontend"

var deviceLabelNames = []string{"device"}

func newFrontendMetric(metricName, docString string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, metricName), docString, deviceLabelNames, nil)
}

var (
	statusFlagsMetric = newFrontendMetric("status_flags", "FE_READ_STATUS bit mask.")
	lockedMetric      = newFrontendMetric("locked", "Frontend has lock.")

	optionalMetrics = []struct {
		metric status.Metric
		desc   *prometheus.Desc
		value  func(s status.Snapshot) float64
	}{
		{status.MetricSignal, newFrontendMetric("signal_strength", "Signal strength as reported by the driver."),
			func(s status.Snapshot) float64 { return float64(s.Signal) }},
		{status.MetricSNR, newFrontendMetric("snr_db", "Signal to noise ratio."),
			func(s status.Snapshot) float64 { return float64(s.SNR) / 10 }},
		{status.MetricBER, newFrontendMetric("bit_error_rate", "Bit error rate as reported by the driver."),
			func(s status.Snapshot) float64 { return float64(s.BER) }},
		{status.MetricUNC, newFrontendMetric("uncorrected_blocks", "Uncorrected block count."),
			func(s status.Snapshot) float64 { return float64(s.UNC) }},
	}
)

// Exporter publishes the last status snapshot of a frontend. Collect
// never touches the device.
type Exporter struct {
	device string
	mutex  sync.RWMutex
	last   status.Snapshot
	seen   bool

	totalPolls prometheus.Counter
}

func NewExporter(device string) *Exporter {
	return &Exporter{
		device: device,
		totalPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "polls_total",
			Help:        "Number of status polls of the frontend.",
			ConstLabels: prometheus.Labels{"device": device},
		}),
	}
}

// Observe records a new snapshot.
func (e *Exporter) Observe(s status.Snapshot) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.last = s
	e.seen = true
	e.totalPolls.Inc()
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- statusFlagsMetric
	ch <- lockedMetric
	for _, m := range optionalMetrics {
		ch <- m.desc
	}
	ch <- e.totalPolls.Desc()
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	ch <- e.totalPolls
	if !e.seen {
		return
	}

	s := e.last
	if s.FlagsErr == nil {
		ch <- prometheus.MustNewConstMetric(statusFlagsMetric, prometheus.GaugeValue, float64(s.Flags), e.device)
		locked := 0.0
		if s.Locked() {
			locked = 1
		}
		ch <- prometheus.MustNewConstMetric(lockedMetric, prometheus.GaugeValue, locked, e.device)
	}
	// unavailable readouts are left out rather than exported as the sentinel
	for _, m := range optionalMetrics {
		if s.Available(m.metric) {
			ch <- prometheus.MustNewConstMetric(m.desc, prometheus.GaugeValue, m.value(s), e.device)
		}
	}
}
