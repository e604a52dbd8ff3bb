// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/rainbow/internal/poller"
	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// PollMetrics exports poll traffic. It is both a poller.Observer and a
// rainbow.Listener.
type PollMetrics struct {
	Requests      *prometheus.CounterVec // labels: device, command
	Responses     *prometheus.CounterVec // labels: device, command
	FrameErrors   *prometheus.CounterVec // labels: kind
	Cycles        *prometheus.CounterVec // labels: result=complete|stalled
	CycleDuration prometheus.Histogram
	LastData      *prometheus.GaugeVec // labels: device, command
	Entries       prometheus.Gauge
}

var (
	_ poller.Observer  = (*PollMetrics)(nil)
	_ rainbow.Listener = (*PollMetrics)(nil)
)

// NewPollMetrics registers and returns the poll metrics.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	m := &PollMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rainbow_requests_total",
			Help: "Poll requests written to the bus.",
		}, []string{"device", "command"}),
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rainbow_responses_total",
			Help: "Valid responses dispatched.",
		}, []string{"device", "command"}),
		FrameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rainbow_frame_errors_total",
			Help: "Inbound frames rejected, by reason.",
		}, []string{"kind"}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rainbow_cycles_total",
			Help: "Poll cycles finished, by result.",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rainbow_cycle_duration_seconds",
			Help:    "Wall time of a poll cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		LastData: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rainbow_last_data_timestamp_seconds",
			Help: "Unix time of the last valid response per entry.",
		}, []string{"device", "command"}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rainbow_poll_entries",
			Help: "Entries in the poll table.",
		}),
	}
	reg.MustRegister(m.Requests, m.Responses, m.FrameErrors, m.Cycles, m.CycleDuration, m.LastData, m.Entries)
	return m
}

func hex3(v uint16) string { return fmt.Sprintf("%03X", v) }

// OnRequest implements poller.Observer.
func (m *PollMetrics) OnRequest(_ string, entry rainbow.CommandEntry, _ []byte) {
	m.Requests.WithLabelValues(hex3(entry.Device), hex3(entry.Command)).Inc()
}

// OnFrame implements poller.Observer.
func (m *PollMetrics) OnFrame(_ string, _ []byte, err error) {
	if err != nil {
		m.FrameErrors.WithLabelValues(rainbow.ErrorKind(err)).Inc()
	}
}

// OnCycle implements poller.Observer.
func (m *PollMetrics) OnCycle(res poller.CycleResult) {
	m.Cycles.WithLabelValues(res.Outcome()).Inc()
	m.CycleDuration.Observe(res.Duration.Seconds())
}

// OnData implements rainbow.Listener.
func (m *PollMetrics) OnData(entry rainbow.CommandEntry, _ []byte, ts time.Time) {
	dev, cmd := hex3(entry.Device), hex3(entry.Command)
	m.Responses.WithLabelValues(dev, cmd).Inc()
	m.LastData.WithLabelValues(dev, cmd).Set(float64(ts.UnixNano()) / 1e9)
}
