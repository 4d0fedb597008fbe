package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/clock"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
	"github.com/smallbiznis/procura/internal/testutil/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPayments struct {
	paymentdomain.Service

	cutoff time.Time
	limit  int
	block  bool
	err    error
}

func (s *stubPayments) ReconcileStale(ctx context.Context, createdBefore time.Time, limit int) (paymentdomain.ReconcileSummary, error) {
	s.cutoff = createdBefore
	s.limit = limit
	if s.block {
		<-ctx.Done()
		return paymentdomain.ReconcileSummary{}, ctx.Err()
	}
	return paymentdomain.ReconcileSummary{}, s.err
}

func newStubScheduler(t *testing.T, payments paymentdomain.Service, cfg Config) (*Scheduler, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC))
	sched, err := New(Params{
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Payments: payments,
		Config:   cfg,
	})
	require.NoError(t, err)
	return sched, clk
}

func TestNewRequiresPayments(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReconcileUsesStaleCutoffAndBatch(t *testing.T) {
	payments := &stubPayments{}
	sched, clk := newStubScheduler(t, payments, Config{StaleAfter: 20 * time.Minute, BatchSize: 7})

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, clk.Now().Add(-20*time.Minute), payments.cutoff)
	assert.Equal(t, 7, payments.limit)
}

func TestRunJobReturnsFailures(t *testing.T) {
	payments := &stubPayments{err: errors.New("db down")}
	sched, _ := newStubScheduler(t, payments, Config{})

	err := sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobReconcilePayments)
}

func TestRunJobTimeoutIsNotAnError(t *testing.T) {
	payments := &stubPayments{block: true}
	sched, _ := newStubScheduler(t, payments, Config{JobTimeout: 10 * time.Millisecond})

	assert.NoError(t, sched.RunOnce(context.Background()))
}

func TestReconcileSettlesCapturedPayment(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	invoice := env.VerifiedInvoice(t, tenant, "5000")

	initiated, err := env.Payments.Initiate(context.Background(), tenant.Finance, invoice.ID)
	require.NoError(t, err)
	env.Gateway.AddPayment(paymentdomain.GatewayPayment{
		ID:      "pay_late_1",
		OrderID: initiated.OrderID,
		Status:  paymentdomain.GatewayPaymentCaptured,
		Amount:  initiated.AmountMinor,
	})

	sched, err := New(Params{
		Log:      zap.NewNop(),
		GenID:    env.Node,
		Clock:    env.Clock,
		Payments: env.Payments,
		Config:   Config{StaleAfter: 15 * time.Minute},
	})
	require.NoError(t, err)

	// Too fresh to sweep.
	require.NoError(t, sched.RunOnce(context.Background()))
	payment, err := env.PaymentRepo.FindByID(context.Background(), tenant.CompanyID, initiated.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusInitiated, payment.Status)

	env.Clock.Advance(16 * time.Minute)
	require.NoError(t, sched.RunOnce(context.Background()))

	payment, err = env.PaymentRepo.FindByID(context.Background(), tenant.CompanyID, initiated.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusSuccess, payment.Status)

	paid, err := env.InvoiceRepo.FindByID(context.Background(), tenant.CompanyID, invoice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, "PAID", paid.Status)

	assert.Equal(t, []string{auditdomain.ActionPaymentInitiated, auditdomain.ActionPaymentSuccess}, env.AuditActions(t, payment.ID))
	var row auditdomain.AuditLog
	require.NoError(t, env.DB.Where("entity_id = ? AND action = ?", payment.ID.String(), auditdomain.ActionPaymentSuccess).Take(&row).Error)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), row.ActorType)
	assert.Nil(t, row.ActorID)
}

func TestReconcileLeavesUncapturedPaymentPending(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	invoice := env.VerifiedInvoice(t, tenant, "5000")

	initiated, err := env.Payments.Initiate(context.Background(), tenant.Finance, invoice.ID)
	require.NoError(t, err)
	env.Clock.Advance(time.Hour)

	summary, err := env.Payments.ReconcileStale(context.Background(), env.Clock.Now().Add(-15*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.ReconcileSummary{Checked: 1, Pending: 1}, summary)

	payment, err := env.PaymentRepo.FindByID(context.Background(), tenant.CompanyID, initiated.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusInitiated, payment.Status)
}
