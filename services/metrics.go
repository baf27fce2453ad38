package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName names the spans emitted by this package
const tracerName = "github.com/girish1208dev/print-service/services"

var (
	ordersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "print_service",
		Name:      "orders_submitted_total",
		Help:      "Orders built and cached locally.",
	})

	reconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "print_service",
		Name:      "reconcile_outcomes_total",
		Help:      "Per-order reconciliation results.",
	}, []string{"result"})

	reconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "print_service",
		Name:      "reconcile_runs_total",
		Help:      "Reconciliation passes by trigger.",
	}, []string{"trigger"})

	notificationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "print_service",
		Name:      "notifications_total",
		Help:      "Operator notifications by result.",
	}, []string{"result"})

	previewFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "print_service",
		Name:      "preview_fallbacks_total",
		Help:      "Photo previews replaced by the placeholder image.",
	})
)
