// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package rest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks ceremony outcomes.
type Metrics struct {
	registrations   *prometheus.CounterVec
	authentications *prometheus.CounterVec
}

// NewMetrics registers the ceremony metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "definvoice_passkey_registrations_total",
			Help: "Completed passkey registration ceremonies by result.",
		}, []string{"result"}),
		authentications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "definvoice_passkey_authentications_total",
			Help: "Completed passkey authentication ceremonies by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) registration(ok bool) {
	m.registrations.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) authentication(ok bool) {
	m.authentications.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
