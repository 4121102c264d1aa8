// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package commitreveal

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for the commit-reveal manager. A nil *Metrics records nothing.
type Metrics struct {
	commits    prometheus.Counter
	reveals    prometheus.Counter
	rejected   *prometheus.CounterVec
	finalized  prometheus.Counter
	unrevealed prometheus.Counter
}

func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_commits",
			Help:      "Number of accepted weight commitments",
		}),
		reveals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_reveals",
			Help:      "Number of accepted weight reveals",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_submissions_rejected",
			Help:      "Number of rejected commits and reveals by reason",
		}, []string{"reason"}),
		finalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_epochs_finalized",
			Help:      "Number of finalized subnet epochs",
		}),
		unrevealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_commits_unrevealed",
			Help:      "Number of commitments that were never revealed",
		}),
	}
	err := errors.Join(
		registerer.Register(m.commits),
		registerer.Register(m.reveals),
		registerer.Register(m.rejected),
		registerer.Register(m.finalized),
		registerer.Register(m.unrevealed),
	)
	return m, err
}

func (m *Metrics) markCommit() {
	if m != nil {
		m.commits.Inc()
	}
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

func (m *Metrics) markFinalized(unrevealed int) {
	if m != nil {
		m.finalized.Inc()
		m.unrevealed.Add(float64(unrevealed))
	}
}
