// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package randao

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for the mixer. A nil *Metrics records nothing.
type Metrics struct {
	reveals  prometheus.Counter
	rejected *prometheus.CounterVec
	epoch    prometheus.Gauge
}

func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reveals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "randao_reveals",
			Help:      "Number of reveals mixed into the randao beacon",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "randao_rejected",
			Help:      "Number of rejected randao commitments and reveals by reason",
		}, []string{"reason"}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "randao_epoch",
			Help:      "Current randao epoch",
		}),
	}
	err := errors.Join(
		registerer.Register(m.reveals),
		registerer.Register(m.rejected),
		registerer.Register(m.epoch),
	)
	return m, err
}

func (m *Metrics) markReveal() {
	if m != nil {
		m.reveals.Inc()
	}
}

func (m *Metrics) markRejected(err error) {
	if m != nil {
		m.rejected.WithLabelValues(err.Error()).Inc()
	}
}

func (m *Metrics) markFinalized(nextEpoch uint64) {
	if m != nil {
		m.epoch.Set(float64(nextEpoch))
	}
}
