// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package metrics holds the prometheus counters of the relay bus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NewRegistry creates an empty registry. The CLI is short lived, so no Go or
// process collectors are registered.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// BusMetrics are the bus counters. A nil *BusMetrics is valid and records
// nothing.
type BusMetrics struct {
	FramesSent     *prometheus.CounterVec // labels: command
	ResponseErrors *prometheus.CounterVec // labels: rule
	InitDuration   prometheus.Histogram
	InitDiscarded  prometheus.Counter
	InitTimeouts   prometheus.Counter
}

// NewBusMetrics registers and returns the bus metrics.
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	m := &BusMetrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay8x_frames_sent_total",
			Help: "Frames written to the bus by command.",
		}, []string{"command"}),
		ResponseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay8x_response_errors_total",
			Help: "Failed responses by violated rule.",
		}, []string{"rule"}),
		InitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay8x_init_duration_seconds",
			Help:    "Duration of the init handshake poll loop.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		InitDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay8x_init_discarded_frames_total",
			Help: "Frames discarded while polling for the init loop-back.",
		}),
		InitTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay8x_init_timeouts_total",
			Help: "Init handshakes that ran out of time.",
		}),
	}
	reg.MustRegister(m.FramesSent, m.ResponseErrors, m.InitDuration, m.InitDiscarded, m.InitTimeouts)
	return m
}

func (m *BusMetrics) FrameSent(command string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(command).Inc()
}

func (m *BusMetrics) ResponseError(rule string) {
	if m == nil {
		return
	}
	m.ResponseErrors.WithLabelValues(rule).Inc()
}

// InitDone records one finished handshake.
func (m *BusMetrics) InitDone(elapsed time.Duration, discarded int, timedOut bool) {
	if m == nil {
		return
	}
	m.InitDuration.Observe(elapsed.Seconds())
	m.InitDiscarded.Add(float64(discarded))
	if timedOut {
		m.InitTimeouts.Inc()
	}
}

// WriteTextfile writes everything gathered by g to path in the text
// exposition format, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
