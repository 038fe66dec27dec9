package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты оформления заказа для метки result.
const (
	CheckoutSuccess      = "success"
	CheckoutCartEmpty    = "cart_empty"
	CheckoutOutOfStock   = "out_of_stock"
	CheckoutGatewayError = "gateway_error"
	CheckoutInvalid      = "invalid"
	CheckoutError        = "error"
)

// Результаты исполнения платежа.
const (
	FulfillmentFulfilled        = "fulfilled"
	FulfillmentAlreadyFulfilled = "already_fulfilled"
	FulfillmentPaymentFailed    = "payment_failed"
	FulfillmentError            = "error"
)

// Источники подтверждения оплаты.
const (
	SourceClient  = "client"
	SourceWebhook = "webhook"
)

// Metrics: Prometheus-метрики checkout, исполнения платежей и фоновых воркеров.
// Методы безопасно вызывать на nil.
type Metrics struct {
	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
	gatewayDuration  *prometheus.HistogramVec

	fulfillments        *prometheus.CounterVec
	fulfillmentDuration prometheus.Histogram
	stockShortages      prometheus.Counter
	signatureRejected   *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec

	outboxPublishAttempts  *prometheus.CounterVec
	outboxPendingRecords   prometheus.Gauge
	outboxOldestPendingAge prometheus.Gauge

	idempotencyCleanupRuns    *prometheus.CounterVec
	idempotencyCleanupDeleted prometheus.Counter
	idempotencyReplays        prometheus.Counter
}

// New регистрирует метрики в prometheus.DefaultRegisterer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer регистрирует метрики в переданном registerer.
func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		checkouts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_checkout_total",
			Help: "Total number of checkout attempts grouped by result.",
		}, []string{"result"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "marketplace_checkout_duration_seconds",
			Help:    "Duration of checkout including the gateway call.",
			Buckets: prometheus.DefBuckets,
		}),
		gatewayDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "marketplace_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls grouped by result.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
		fulfillments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_fulfillment_total",
			Help: "Total number of fulfillment attempts grouped by source and result.",
		}, []string{"source", "result"}),
		fulfillmentDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "marketplace_fulfillment_duration_seconds",
			Help:    "Duration of the fulfillment transaction.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		stockShortages: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_fulfillment_stock_shortage_total",
			Help: "Total number of order items skipped during fulfillment because stock ran out.",
		}),
		signatureRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_signature_rejected_total",
			Help: "Total number of rejected payment signatures grouped by source.",
		}, []string{"source"}),
		webhookEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_webhook_events_total",
			Help: "Total number of gateway webhook deliveries grouped by event and result.",
		}, []string{"event", "result"}),
		outboxPublishAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		outboxPendingRecords: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "marketplace_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		}),
		outboxOldestPendingAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "marketplace_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
		idempotencyCleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "marketplace_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		idempotencyCleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}),
		idempotencyReplays: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_idempotency_replays_total",
			Help: "Total number of checkout responses served from the idempotency cache.",
		}),
	}
}

// RecordCheckout учитывает попытку оформления и её длительность.
func (m *Metrics) RecordCheckout(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordGatewayCall записывает длительность вызова шлюза.
func (m *Metrics) RecordGatewayCall(err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *Metrics) RecordFulfillment(source, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fulfillments.WithLabelValues(source, result).Inc()
	m.fulfillmentDuration.Observe(duration.Seconds())
}

// RecordStockShortage учитывает позиции, пропущенные из-за нехватки остатка.
func (m *Metrics) RecordStockShortage(items int) {
	if m == nil || items <= 0 {
		return
	}
	m.stockShortages.Add(float64(items))
}

func (m *Metrics) RecordSignatureRejected(source string) {
	if m == nil {
		return
	}
	m.signatureRejected.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordWebhookEvent(event, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, result).Inc()
}

func (m *Metrics) RecordOutboxPublish(result string) {
	if m == nil {
		return
	}
	m.outboxPublishAttempts.WithLabelValues(result).Inc()
}

// SetOutboxBacklog обновляет gauges очереди outbox.
func (m *Metrics) SetOutboxBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.outboxPendingRecords.Set(float64(pending))
	m.outboxOldestPendingAge.Set(oldestAge.Seconds())
}

func (m *Metrics) RecordIdempotencyCleanup(err error, deleted int) {
	if m == nil {
		return
	}
	if err != nil {
		m.idempotencyCleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.idempotencyCleanupRuns.WithLabelValues("ok").Inc()
	if deleted > 0 {
		m.idempotencyCleanupDeleted.Add(float64(deleted))
	}
}

func (m *Metrics) RecordIdempotencyReplay() {
	if m == nil {
		return
	}
	m.idempotencyReplays.Inc()
}
