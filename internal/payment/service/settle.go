package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/authorization"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	invoicedomain "github.com/smallbiznis/procura/internal/invoice/domain"
	"github.com/smallbiznis/procura/internal/notification"
	"github.com/smallbiznis/procura/internal/payment/domain"
	"github.com/smallbiznis/procura/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSweepLimit = 50

var errPaymentMoved = errors.New("payment status changed concurrently")

// Confirm settles a checkout callback after checking its signature.
// Repeating a confirmation for a settled payment reports ALREADY_PROCESSED and changes nothing.
func (s *Service) Confirm(ctx context.Context, actor identitydomain.Actor, req domain.ConfirmRequest) (*domain.ConfirmResult, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPayment, authorization.ActionPaymentConfirm); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	orderID := strings.TrimSpace(req.OrderID)
	gatewayPaymentID := strings.TrimSpace(req.PaymentID)
	signature := strings.TrimSpace(req.Signature)
	if orderID == "" || gatewayPaymentID == "" || signature == "" {
		return nil, domain.ErrInvalidConfirmation
	}
	if err := s.gateway.VerifyPaymentSignature(orderID, gatewayPaymentID, signature); err != nil {
		s.metrics.RecordPaymentEvent(ctx, s.gateway.Provider(), "signature_invalid")
		return nil, err
	}

	payment, err := s.repo.FindByOrderID(ctx, companyID, orderID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}

	actorID := actor.ProfileID
	return s.settle(ctx, payment, gatewayPaymentID, signature, &actorID)
}

// Reconcile asks the gateway about an order whose confirmation never arrived.
func (s *Service) Reconcile(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.ConfirmResult, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPayment, authorization.ActionPaymentConfirm); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	payment, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if payment.Status == domain.StatusSuccess {
		return &domain.ConfirmResult{Status: domain.OutcomeAlreadyProcessed, Payment: payment}, nil
	}

	actorID := actor.ProfileID
	return s.reconcile(ctx, payment, &actorID)
}

// ReconcileStale runs without an actor; settlements it makes are audited as system actions.
func (s *Service) ReconcileStale(ctx context.Context, createdBefore time.Time, limit int) (domain.ReconcileSummary, error) {
	var summary domain.ReconcileSummary
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	payments, err := s.repo.ListStaleInitiated(ctx, createdBefore, limit)
	if err != nil {
		return summary, apperror.Internal(err)
	}
	for _, payment := range payments {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++
		result, err := s.reconcile(ctx, payment, nil)
		if err != nil {
			summary.Failed++
			s.log.Warn("stale payment reconciliation failed",
				zap.String("payment_id", payment.ID.String()),
				zap.String("company_id", payment.CompanyID.String()),
				zap.Error(err),
			)
			continue
		}
		switch result.Status {
		case domain.OutcomeProcessed, domain.OutcomeAlreadyProcessed:
			summary.Settled++
		default:
			summary.Pending++
		}
	}
	return summary, nil
}

func (s *Service) reconcile(ctx context.Context, payment *domain.Payment, actorID *snowflake.ID) (*domain.ConfirmResult, error) {
	attempts, err := s.gateway.FetchOrderPayments(ctx, payment.RazorpayOrderID)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Internal(err)
	}
	for _, attempt := range attempts {
		if attempt.Status == domain.GatewayPaymentCaptured {
			return s.settle(ctx, payment, attempt.ID, "", actorID)
		}
	}

	outcome := domain.OutcomePending
	if payment.Status == domain.StatusFailed {
		outcome = domain.OutcomeFailed
	}
	return &domain.ConfirmResult{Status: outcome, Payment: payment}, nil
}

// settle marks the payment SUCCESS and the invoice PAID in one transaction.
// Audit and the vendor receipt follow the commit and never undo it.
func (s *Service) settle(ctx context.Context, payment *domain.Payment, gatewayPaymentID, signature string, actorID *snowflake.ID) (*domain.ConfirmResult, error) {
	if payment.Status == domain.StatusSuccess {
		return &domain.ConfirmResult{Status: domain.OutcomeAlreadyProcessed, Payment: payment}, nil
	}

	from := payment.Status
	now := s.clock.Now()
	fields := map[string]any{
		"status":         domain.StatusSuccess,
		"paid_at":        now,
		"updated_at":     now,
		"failure_reason": nil,
	}
	if gatewayPaymentID != "" {
		fields["razorpay_payment_id"] = gatewayPaymentID
	}
	if signature != "" {
		fields["razorpay_signature"] = signature
	}

	var invoice *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.WithTx(tx).UpdateWhereStatus(ctx, payment, from, fields)
		if err != nil {
			return err
		}
		if !changed {
			return errPaymentMoved
		}

		invoices := s.invoices.WithTx(tx)
		invoice, err = invoices.FindByID(ctx, payment.CompanyID, payment.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrInvoiceMissing
		}
		paid, err := invoices.UpdateWhereStatus(ctx, invoice, invoicedomain.StatusVerified, map[string]any{
			"status":     invoicedomain.StatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if !paid {
			return domain.ErrNotConfirmable
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errPaymentMoved):
		return s.afterRace(ctx, payment)
	case db.IsDuplicateKeyErr(err):
		return nil, domain.ErrAlreadyPaid
	default:
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Internal(err)
	}

	payment.Status = domain.StatusSuccess
	payment.PaidAt = &now
	payment.UpdatedAt = now
	payment.FailureReason = nil
	if gatewayPaymentID != "" {
		payment.RazorpayPaymentID = &gatewayPaymentID
	}
	if signature != "" {
		payment.RazorpaySignature = &signature
	}
	invoice.Status = invoicedomain.StatusPaid
	invoice.PaidAt = &now

	s.log.Info("payment settled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("from", string(from)),
	)
	s.metrics.RecordTransition(ctx, entityPayment, "confirm")
	s.metrics.RecordPaymentEvent(ctx, s.gateway.Provider(), "captured")
	s.record(ctx, payment.CompanyID, actorID, auditdomain.ActionPaymentSuccess, payment.ID, map[string]any{
		"invoice_id":          invoice.ID.String(),
		"razorpay_order_id":   payment.RazorpayOrderID,
		"razorpay_payment_id": gatewayPaymentID,
		"amount":              payment.Amount.String(),
	})
	s.sendReceipt(ctx, payment, invoice)

	return &domain.ConfirmResult{Status: domain.OutcomeProcessed, Payment: payment}, nil
}

func (s *Service) afterRace(ctx context.Context, payment *domain.Payment) (*domain.ConfirmResult, error) {
	current, err := s.repo.FindByID(ctx, payment.CompanyID, payment.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if current != nil && current.Status == domain.StatusSuccess {
		return &domain.ConfirmResult{Status: domain.OutcomeAlreadyProcessed, Payment: current}, nil
	}
	return nil, domain.ErrConcurrentTransition
}

func (s *Service) sendReceipt(ctx context.Context, payment *domain.Payment, invoice *invoicedomain.Invoice) {
	vendor, err := s.vendors.FindByID(ctx, invoice.CompanyID, invoice.VendorID)
	if err != nil || vendor == nil {
		s.log.Warn("skipping payment receipt, vendor not loaded",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return
	}

	poNumber := ""
	if po, err := s.pos.FindByID(ctx, invoice.CompanyID, invoice.PurchaseOrderID); err == nil && po != nil {
		poNumber = po.PONumber
	}
	reference := payment.RazorpayOrderID
	if payment.RazorpayPaymentID != nil {
		reference = *payment.RazorpayPaymentID
	}

	s.notifier.PaymentCompleted(ctx, notification.PaymentNotice{
		CompanyID:        payment.CompanyID,
		Vendor:           notification.ContactOf(vendor),
		PONumber:         poNumber,
		InvoiceNumber:    invoice.InvoiceNumber,
		Currency:         payment.Currency,
		Subtotal:         invoice.Subtotal,
		CGST:             invoice.CGST,
		SGST:             invoice.SGST,
		IGST:             invoice.IGST,
		Amount:           payment.Amount,
		PaymentReference: reference,
		PaidAt:           *payment.PaidAt,
	})
}
