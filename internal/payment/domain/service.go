package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/pkg/db/pagination"
)

type Service interface {
	Initiate(ctx context.Context, actor identitydomain.Actor, invoiceID snowflake.ID) (*InitiateResult, error)
	Confirm(ctx context.Context, actor identitydomain.Actor, req ConfirmRequest) (*ConfirmResult, error)
	Reconcile(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*ConfirmResult, error)
	HandleWebhook(ctx context.Context, req WebhookRequest) error
	// ReconcileStale settles INITIATED payments older than createdBefore that the gateway reports captured.
	ReconcileStale(ctx context.Context, createdBefore time.Time, limit int) (ReconcileSummary, error)
	Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*Payment, error)
	List(ctx context.Context, actor identitydomain.Actor, req ListRequest) (ListResponse, error)
}

// InitiateResult carries what a checkout needs to open the gateway order.
type InitiateResult struct {
	Payment     *Payment `json:"payment"`
	OrderID     string   `json:"order_id"`
	AmountMinor int64    `json:"amount"`
	Currency    string   `json:"currency"`
	KeyID       string   `json:"key_id"`
	Reused      bool     `json:"reused"`
}

type ConfirmRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// WebhookRequest is the raw gateway callback. EventID comes from the delivery header when present.
type WebhookRequest struct {
	Payload   []byte
	Signature string
	EventID   string
}

type ConfirmResult struct {
	Status  string   `json:"status"`
	Payment *Payment `json:"payment"`
}

// ReconcileSummary counts the outcome of one stale-payment sweep.
type ReconcileSummary struct {
	Checked int
	Settled int
	Pending int
	Failed  int
}

type ListRequest struct {
	pagination.Pagination
	InvoiceID string `form:"invoice_id"`
	Status    string `form:"status"`
}

type ListResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

var (
	ErrInvalidConfirmation  = apperror.InvalidInput("invalid_confirmation", "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	ErrInvalidSignature     = apperror.InvalidInput("invalid_signature", "Payment signature verification failed")
	ErrInvalidWebhook       = apperror.InvalidInput("invalid_webhook_payload", "Webhook payload is malformed")
	ErrInvalidStatus        = apperror.InvalidInput("invalid_status", "Unknown payment status")
	ErrInvalidInvoice       = apperror.InvalidInput("invalid_invoice_id", "invoice_id is invalid")
	ErrInvalidPageToken     = apperror.InvalidInput("invalid_page_token", "Page token is invalid")
	ErrNotFound             = apperror.NotFound("payment_not_found", "Payment not found")
	ErrInvoiceMissing       = apperror.NotFound("invoice_not_found", "Invoice not found")
	ErrPurchaseOrderMissing = apperror.NotFound("purchase_order_not_found", "Purchase order not found")
	ErrInvoiceNotVerified   = apperror.InvalidTransition("invoice_not_verified", "Only VERIFIED invoices can be paid")
	ErrPONotIssued          = apperror.InvalidTransition("purchase_order_not_issued", "Payments require an ISSUED purchase order")
	ErrNotConfirmable       = apperror.InvalidTransition("payment_not_confirmable", "Payment can no longer be confirmed")
	ErrAlreadyPaid          = apperror.Conflict("invoice_already_paid", "Invoice already has a successful payment")
	ErrInitiationInProgress = apperror.Conflict("payment_initiation_in_progress", "A payment is already being initiated for this invoice")
	ErrConcurrentTransition = apperror.Conflict("payment_changed", "Payment was changed by another request, reload and retry")
	ErrGatewayNotConfigured = apperror.External("gateway_not_configured", "Payment gateway is not configured", nil)
)
