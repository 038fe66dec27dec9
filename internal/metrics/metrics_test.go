package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewWithRegisterer_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg)

	m.RecordCheckout(CheckoutSuccess, 10*time.Millisecond)
	m.RecordFulfillment(SourceClient, FulfillmentFulfilled, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"marketplace_checkout_total",
		"marketplace_checkout_duration_seconds",
		"marketplace_fulfillment_total",
		"marketplace_outbox_pending_records",
		"marketplace_idempotency_cleanup_deleted_total",
	} {
		if !names[want] {
			t.Fatalf("metric %s is not registered", want)
		}
	}
}

func TestNewWithRegisterer_ReusesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewWithRegisterer(reg)
	second := NewWithRegisterer(reg)

	first.RecordCheckout(CheckoutCartEmpty, 0)
	second.RecordCheckout(CheckoutCartEmpty, 0)

	if got := counterValue(t, first.checkouts.WithLabelValues(CheckoutCartEmpty)); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestRecorders_UpdateValues(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordStockShortage(2)
	m.RecordStockShortage(0)
	if got := counterValue(t, m.stockShortages); got != 2 {
		t.Fatalf("stock shortages: got %v want 2", got)
	}

	m.RecordSignatureRejected(SourceWebhook)
	if got := counterValue(t, m.signatureRejected.WithLabelValues(SourceWebhook)); got != 1 {
		t.Fatalf("signature rejected: got %v want 1", got)
	}

	m.SetOutboxBacklog(3, -time.Second)
	if got := gaugeValue(t, m.outboxPendingRecords); got != 3 {
		t.Fatalf("outbox pending: got %v want 3", got)
	}
	if got := gaugeValue(t, m.outboxOldestPendingAge); got != 0 {
		t.Fatalf("negative age must clamp to 0, got %v", got)
	}

	m.RecordIdempotencyCleanup(nil, 5)
	m.RecordIdempotencyCleanup(errors.New("boom"), 0)
	if got := counterValue(t, m.idempotencyCleanupDeleted); got != 5 {
		t.Fatalf("cleanup deleted: got %v want 5", got)
	}
	if got := counterValue(t, m.idempotencyCleanupRuns.WithLabelValues("error")); got != 1 {
		t.Fatalf("cleanup error runs: got %v want 1", got)
	}
}

func TestRecordGatewayCall_ObservesByResult(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordGatewayCall(nil, 20*time.Millisecond)
	m.RecordGatewayCall(errors.New("timeout"), time.Second)

	metric := &dto.Metric{}
	observer, ok := m.gatewayDuration.WithLabelValues("error").(prometheus.Histogram)
	if !ok {
		t.Fatal("expected histogram observer")
	}
	if err := observer.Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected 1 error sample, got %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics

	m.RecordCheckout(CheckoutSuccess, time.Second)
	m.RecordGatewayCall(nil, time.Second)
	m.RecordFulfillment(SourceClient, FulfillmentFulfilled, time.Second)
	m.RecordStockShortage(1)
	m.RecordSignatureRejected(SourceClient)
	m.RecordWebhookEvent("payment.captured", "fulfilled")
	m.RecordOutboxPublish("sent")
	m.SetOutboxBacklog(1, time.Second)
	m.RecordIdempotencyCleanup(nil, 1)
	m.RecordIdempotencyReplay()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return metric.GetGauge().GetValue()
}
