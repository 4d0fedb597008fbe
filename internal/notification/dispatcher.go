package notification

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/procura/internal/config"
	"github.com/smallbiznis/procura/internal/observability/metrics"
	"github.com/smallbiznis/procura/internal/providers/email"
	"github.com/smallbiznis/procura/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	kindInvitation   = "invitation"
	kindPOIssued     = "purchase_order_issued"
	kindPaymentReceipt = "payment_receipt"
)

var errMissingRecipient = errors.New("notification: recipient has no email address")

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Log       *zap.Logger
	Email     email.Provider
	PDF       pdf.Provider
	Policy    *config.PolicyHolder
	Metrics   *metrics.Metrics `optional:"true"`
}

// Dispatcher sends notifications on background goroutines and drains them on shutdown.
type Dispatcher struct {
	db      *gorm.DB
	log     *zap.Logger
	email   email.Provider
	pdf     pdf.Provider
	policy  *config.PolicyHolder
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewDispatcher(p Params) *Dispatcher {
	d := &Dispatcher{
		db:      p.DB,
		log:     p.Log.Named("notification.dispatcher"),
		email:   p.Email,
		pdf:     p.PDF,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return d.Wait(ctx)
			},
		})
	}
	return d
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) InvitationCreated(ctx context.Context, notice InvitationNotice) {
	d.dispatch(ctx, kindInvitation, func(ctx context.Context) error {
		if strings.TrimSpace(notice.Email) == "" {
			return errMissingRecipient
		}
		return d.email.SendTemplate(ctx, []string{notice.Email}, "invite_member", map[string]any{
			"company_name": d.companyName(ctx, notice.CompanyID),
			"role":         notice.Role,
			"token":        notice.Token,
			"expires_at":   notice.ExpiresAt.Format("02 Jan 2006 15:04 MST"),
		})
	})
}

func (d *Dispatcher) PurchaseOrderIssued(ctx context.Context, notice PurchaseOrderNotice) {
	d.dispatch(ctx, kindPOIssued, func(ctx context.Context) error {
		if strings.TrimSpace(notice.Vendor.Email) == "" {
			return errMissingRecipient
		}
		companyName := d.companyName(ctx, notice.CompanyID)
		total := notice.TotalAmount.StringFixed(2)

		doc, err := d.pdf.GeneratePurchaseOrder(ctx, pdf.PurchaseOrderData{
			PONumber:     notice.PONumber,
			IssueDate:    notice.IssuedAt.Format("2006-01-02"),
			Buyer:        pdf.Party{Name: companyName},
			Vendor:       pdf.Party{Name: notice.Vendor.Name, Address: notice.Vendor.Address, Email: notice.Vendor.Email, TaxID: notice.Vendor.GSTIN},
			Currency:     notice.Currency,
			Items:        []pdf.LineItem{{Description: notice.Title, Amount: total}},
			Total:        total,
			PaymentTerms: notice.PaymentTerms,
			Notes:        notice.Notes,
		})
		if err != nil {
			return err
		}

		return d.email.SendTemplate(ctx, []string{notice.Vendor.Email}, "purchase_order_issued", map[string]any{
			"subject":       "Purchase order " + notice.PONumber + " from " + companyName,
			"vendor_name":   notice.Vendor.Name,
			"company_name":  companyName,
			"po_number":     notice.PONumber,
			"currency":      notice.Currency,
			"total_amount":  total,
			"payment_terms": notice.PaymentTerms,
			"notes":         notice.Notes,
		}, email.Attachment{Filename: notice.PONumber + ".pdf", ContentType: "application/pdf", Content: doc})
	})
}

func (d *Dispatcher) PaymentCompleted(ctx context.Context, notice PaymentNotice) {
	d.dispatch(ctx, kindPaymentReceipt, func(ctx context.Context) error {
		if strings.TrimSpace(notice.Vendor.Email) == "" {
			return errMissingRecipient
		}
		companyName := d.companyName(ctx, notice.CompanyID)
		receiptNumber := "RCPT-" + ulid.Make().String()
		paidAt := notice.PaidAt.Format("2006-01-02")

		doc, err := d.pdf.GenerateReceipt(ctx, pdf.ReceiptData{
			ReceiptNumber:    receiptNumber,
			InvoiceNumber:    notice.InvoiceNumber,
			PONumber:         notice.PONumber,
			DatePaid:         paidAt,
			PaymentReference: notice.PaymentReference,
			Payer:            pdf.Party{Name: companyName},
			Payee:            pdf.Party{Name: notice.Vendor.Name, Email: notice.Vendor.Email, TaxID: notice.Vendor.GSTIN},
			Currency:         notice.Currency,
			Subtotal:         notice.Subtotal.StringFixed(2),
			CGST:             nonZero(notice.CGST),
			SGST:             nonZero(notice.SGST),
			IGST:             nonZero(notice.IGST),
			Total:            notice.Amount.StringFixed(2),
		})
		if err != nil {
			return err
		}

		return d.email.SendTemplate(ctx, []string{notice.Vendor.Email}, "payment_receipt", map[string]any{
			"vendor_name":       notice.Vendor.Name,
			"invoice_number":    notice.InvoiceNumber,
			"po_number":         notice.PONumber,
			"currency":          notice.Currency,
			"amount":            notice.Amount.StringFixed(2),
			"paid_at":           paidAt,
			"payment_reference": notice.PaymentReference,
		}, email.Attachment{Filename: receiptNumber + ".pdf", ContentType: "application/pdf", Content: doc})
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, kind string, send func(context.Context) error) {
	timeout := d.policy.Get().NotificationSendTimeout
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("notification panicked", zap.String("kind", kind), zap.Any("panic", r))
				d.metrics.RecordNotificationFailure(base, kind)
			}
		}()

		sendCtx, cancel := context.WithTimeout(base, timeout)
		defer cancel()

		if err := send(sendCtx); err != nil {
			d.log.Warn("notification delivery failed", zap.String("kind", kind), zap.Error(err))
			d.metrics.RecordNotificationFailure(base, kind)
			return
		}
		d.log.Debug("notification delivered", zap.String("kind", kind))
	}()
}

func (d *Dispatcher) companyName(ctx context.Context, companyID snowflake.ID) string {
	var name string
	err := d.db.WithContext(ctx).Raw(`SELECT name FROM companies WHERE id = ?`, companyID).Scan(&name).Error
	if err != nil || name == "" {
		return "Procura customer"
	}
	return name
}

func nonZero(v decimal.Decimal) string {
	if v.IsZero() {
		return ""
	}
	return v.StringFixed(2)
}
