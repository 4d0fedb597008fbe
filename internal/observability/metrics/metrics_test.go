package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("entity", "purchase_order"),
		attribute.String("company_id", "456"),
		attribute.String("action", "ISSUE_PO"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "company_id" {
			t.Fatalf("company_id must not be used as a label")
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordTransition(context.Background(), "invoice", "INVOICE_VERIFIED")
	m.RecordPaymentEvent(context.Background(), "razorpay", "payment.captured")
	m.RecordAuditFailure(context.Background(), "CREATE_PR")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "procura"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordTransition(context.Background(), "purchase_request", "APPROVE_PR")
}
