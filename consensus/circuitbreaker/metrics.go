// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package circuitbreaker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	nameLabel = "breaker"
	toLabel   = "to"
)

// Metrics is shared by every breaker of a process; series are labeled with the
// breaker name. A nil *Metrics is valid and records nothing.
type Metrics struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Current breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{nameLabel}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions",
			Help:      "Number of breaker state transitions",
		}, []string{nameLabel, toLabel}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_rejections",
			Help:      "Number of calls rejected while the breaker was open",
		}, []string{nameLabel}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_failures",
			Help:      "Number of failed calls observed by the breaker",
		}, []string{nameLabel}),
	}
	err := errors.Join(
		registerer.Register(m.state),
		registerer.Register(m.transitions),
		registerer.Register(m.rejections),
		registerer.Register(m.failures),
	)
	return m, err
}

func (m *Metrics) observeState(name string, s State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(name).Set(float64(s))
}

func (m *Metrics) observeTransition(name string, to State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name, to.String()).Inc()
	m.state.WithLabelValues(name).Set(float64(to))
}

func (m *Metrics) observeRejection(name string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(name).Inc()
}

func (m *Metrics) observeFailure(name string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(name).Inc()
}
