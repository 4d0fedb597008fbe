package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, actor identitydomain.Actor, req CreateRequest) (*Invoice, error)
	StartVerification(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*Invoice, error)
	Verify(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*Invoice, error)
	MarkMismatch(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, comment string) (*Invoice, error)
	Reject(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, reason string) (*Invoice, error)
	Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, actor identitydomain.Actor, req ListRequest) (ListResponse, error)
}

type CreateRequest struct {
	PurchaseOrderID snowflake.ID    `json:"purchase_order_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	InvoiceDate     *time.Time      `json:"invoice_date"`
	DueDate         *time.Time      `json:"due_date"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	CGST            decimal.Decimal `json:"cgst"`
	SGST            decimal.Decimal `json:"sgst"`
	IGST            decimal.Decimal `json:"igst"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Comments        string          `json:"comments"`
}

type ListRequest struct {
	pagination.Pagination
	Status   string `form:"status"`
	VendorID string `form:"vendor_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

var (
	ErrInvalidPurchaseOrder = apperror.InvalidInput("invalid_purchase_order", "purchase_order_id is required")
	ErrInvalidNumber        = apperror.InvalidInput("invalid_invoice_number", "Invoice number is required")
	ErrNegativeAmount       = apperror.InvalidInput("negative_amount", "Invoice amounts cannot be negative")
	ErrInvalidTotal         = apperror.InvalidInput("invalid_total_amount", "Invoice total must be greater than zero")
	ErrTaxConflict          = apperror.InvalidInput("tax_conflict", "CGST/SGST and IGST cannot both be applied")
	ErrExceedsPO            = apperror.InvalidInput("amount_exceeds_po", "Invoice amount cannot exceed PO amount")
	ErrCommentRequired      = apperror.InvalidInput("comment_required", "A comment is required")
	ErrInvalidStatus        = apperror.InvalidInput("invalid_status", "Unknown invoice status")
	ErrInvalidVendor        = apperror.InvalidInput("invalid_vendor_id", "vendor_id is invalid")
	ErrInvalidPageToken     = apperror.InvalidInput("invalid_page_token", "Page token is invalid")
	ErrNotFound             = apperror.NotFound("invoice_not_found", "Invoice not found")
	ErrPurchaseOrderMissing = apperror.NotFound("purchase_order_not_found", "Purchase order not found")
	ErrPONotIssued          = apperror.InvalidTransition("purchase_order_not_issued", "Invoices can only be uploaded against ISSUED purchase orders")
	ErrAlreadyExists        = apperror.Conflict("invoice_exists", "An invoice already exists for this purchase order")
	ErrDuplicateNumber      = apperror.Conflict("duplicate_invoice_number", "This vendor already has an invoice with this number")
	ErrConcurrentTransition = apperror.Conflict("invoice_changed", "Invoice was changed by another request, reload and retry")
	ErrVerifiedLocked       = apperror.InvalidTransition("invoice_verified", "Verified invoices cannot be marked as mismatch")
)

// ErrInvalidTransition describes a transition that the current status does not allow.
func ErrInvalidTransition(t Transition, current Status) error {
	return apperror.New(apperror.KindInvalidTransition, "invalid_transition",
		"Cannot "+string(t)+" an invoice in "+string(current)+" status")
}
