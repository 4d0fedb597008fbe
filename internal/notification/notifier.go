// Package notification delivers vendor and member notifications outside the request path.
// Every method returns immediately; delivery failures are logged and counted, never surfaced.
package notification

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Notifier interface {
	InvitationCreated(ctx context.Context, notice InvitationNotice)
	PurchaseOrderIssued(ctx context.Context, notice PurchaseOrderNotice)
	PaymentCompleted(ctx context.Context, notice PaymentNotice)
}

type VendorContact struct {
	Name    string
	Email   string
	GSTIN   string
	Address string
}

type InvitationNotice struct {
	CompanyID snowflake.ID
	Email     string
	Role      string
	Token     string
	ExpiresAt time.Time
}

type PurchaseOrderNotice struct {
	CompanyID    snowflake.ID
	PONumber     string
	Title        string
	Vendor       VendorContact
	Currency     string
	TotalAmount  decimal.Decimal
	PaymentTerms string
	Notes        string
	IssuedAt     time.Time
}

type PaymentNotice struct {
	CompanyID        snowflake.ID
	Vendor           VendorContact
	PONumber         string
	InvoiceNumber    string
	Currency         string
	Subtotal         decimal.Decimal
	CGST             decimal.Decimal
	SGST             decimal.Decimal
	IGST             decimal.Decimal
	Amount           decimal.Decimal
	PaymentReference string
	PaidAt           time.Time
}

type NoOpNotifier struct{}

func (NoOpNotifier) InvitationCreated(context.Context, InvitationNotice)      {}
func (NoOpNotifier) PurchaseOrderIssued(context.Context, PurchaseOrderNotice) {}
func (NoOpNotifier) PaymentCompleted(context.Context, PaymentNotice)          {}
