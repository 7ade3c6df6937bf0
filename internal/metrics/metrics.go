// Package metrics exposes the Prometheus instruments shared by the API and
// the notification worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts RFID scan ingestions by outcome.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_scans_total",
		Help: "RFID scan ingestions by outcome.",
	}, []string{"outcome"})

	// ManualWritesTotal counts manual attendance mutations by outcome.
	ManualWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_manual_writes_total",
		Help: "Manual attendance mutations by outcome.",
	}, []string{"op", "outcome"})

	// ClassificationsTotal counts derived statuses served on reads.
	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_classifications_total",
		Help: "Derived attendance statuses served.",
	}, []string{"status"})

	// CheckoutEmailsTotal counts notification workflow terminal states.
	CheckoutEmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_checkout_emails_total",
		Help: "Checkout notification outcomes.",
	}, []string{"state"})
)
