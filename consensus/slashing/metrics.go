// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slashing

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for the slashing engine. A nil *Metrics records nothing.
type Metrics struct {
	slashes     *prometheus.CounterVec
	slashed     prometheus.Counter
	jailed      prometheus.Gauge
	unjailed    prometheus.Counter
	doubleSigns prometheus.Counter
	offline     prometheus.Counter
}

func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		slashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slashes",
			Help:      "Number of applied slashes by reason",
		}, []string{"reason"}),
		slashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slashed_stake",
			Help:      "Total stake removed by slashing",
		}),
		jailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jailed_validators",
			Help:      "Number of currently jailed validators",
		}),
		unjailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unjailed_validators",
			Help:      "Number of validators released from jail",
		}),
		doubleSigns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "double_signs_detected",
			Help:      "Number of double-signing offences detected",
		}),
		offline: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offline_detected",
			Help:      "Number of offline offences detected",
		}),
	}
	err := errors.Join(
		registerer.Register(m.slashes),
		registerer.Register(m.slashed),
		registerer.Register(m.jailed),
		registerer.Register(m.unjailed),
		registerer.Register(m.doubleSigns),
		registerer.Register(m.offline),
	)
	return m, err
}

func (m *Metrics) markSlash(reason Reason, amount uint64) {
	if m != nil {
		m.slashes.WithLabelValues(reason.Kind().String()).Inc()
		m.slashed.Add(float64(amount))
	}
}

func (m *Metrics) setJailed(n int) {
	if m != nil {
		m.jailed.Set(float64(n))
	}
}

func (m *Metrics) markUnjailed(n int) {
	if m != nil {
		m.unjailed.Add(float64(n))
	}
}

func (m *Metrics) markDoubleSigns(n int) {
	if m != nil {
		m.doubleSigns.Add(float64(n))
	}
}

func (m *Metrics) markOffline() {
	if m != nil {
		m.offline.Inc()
	}
}
