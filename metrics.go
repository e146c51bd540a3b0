// Copyright (c) 2025 SciGo HDF5 Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package h5writer

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "h5writer"
	metricsSubsystem = "file"
)

// metrics are the writer's Prometheus collectors. A nil *metrics records
// nothing.
type metrics struct {
	chunksWritten  prometheus.Counter
	rawBytes       prometheus.Counter
	metadataBytes  prometheus.Gauge
	passDuration   *prometheus.CounterVec
	filesCompleted *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &metrics{
		chunksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "chunks_written_total",
			Help:      "The number of raw data chunks written.",
		}),
		rawBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "raw_bytes_total",
			Help:      "The number of raw data bytes stored, after compression.",
		}),
		metadataBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "metadata_bytes",
			Help:      "The metadata length of the last formatting pass.",
		}),
		passDuration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "format_duration_seconds_total",
			Help:      "The total duration of metadata formatting. Broken down by pass.",
		}, []string{"pass"}),
		filesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "closed_total",
			Help:      "The number of files closed. Broken down by result.",
		}, []string{"result"}),
	}

	var err error
	m.chunksWritten, err = register(reg, m.chunksWritten)
	if err != nil {
		return nil, err
	}
	m.rawBytes, err = register(reg, m.rawBytes)
	if err != nil {
		return nil, err
	}
	m.metadataBytes, err = register(reg, m.metadataBytes)
	if err != nil {
		return nil, err
	}
	m.passDuration, err = register(reg, m.passDuration)
	if err != nil {
		return nil, err
	}
	m.filesCompleted, err = register(reg, m.filesCompleted)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, or returns the collector already registered under
// the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) chunkWritten(size int64) {
	if m == nil {
		return
	}
	m.chunksWritten.Inc()
	m.rawBytes.Add(float64(size))
}

func (m *metrics) passFormatted(pass string, size int64, start time.Time) {
	if m == nil {
		return
	}
	m.metadataBytes.Set(float64(size))
	m.passDuration.WithLabelValues(pass).Add(time.Since(start).Seconds())
}

func (m *metrics) fileClosed(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.filesCompleted.WithLabelValues(result).Inc()
}
