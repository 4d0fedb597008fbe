package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, actor identitydomain.Actor, req CreateRequest) (*PurchaseOrder, error)
	Edit(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, patch EditRequest) (*PurchaseOrder, error)
	Issue(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*PurchaseOrder, error)
	Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*PurchaseOrder, error)
	List(ctx context.Context, actor identitydomain.Actor, req ListRequest) (ListResponse, error)
}

type CreateRequest struct {
	PurchaseRequestID snowflake.ID `json:"purchase_request_id"`
	PaymentTerms      string       `json:"payment_terms"`
	Notes             string       `json:"notes"`
}

// EditRequest only carries paymentTerms and notes; nothing else on a PO is editable.
type EditRequest struct {
	PaymentTerms *string `json:"payment_terms"`
	Notes        *string `json:"notes"`
}

type ListRequest struct {
	pagination.Pagination
	Status   string `form:"status"`
	VendorID string `form:"vendor_id"`
}

type ListResponse struct {
	pagination.PageInfo
	PurchaseOrders []PurchaseOrder `json:"purchase_orders"`
}

var (
	ErrInvalidPurchaseRequest = apperror.InvalidInput("invalid_purchase_request", "purchase_request_id is required")
	ErrVendorRequired         = apperror.InvalidInput("vendor_required", "Purchase request has no preferred vendor")
	ErrInvalidStatus          = apperror.InvalidInput("invalid_status", "Unknown purchase order status")
	ErrInvalidVendor          = apperror.InvalidInput("invalid_vendor_id", "vendor_id is invalid")
	ErrInvalidPageToken       = apperror.InvalidInput("invalid_page_token", "Page token is invalid")
	ErrNotFound               = apperror.NotFound("purchase_order_not_found", "Purchase order not found")
	ErrPurchaseRequestMissing = apperror.NotFound("purchase_request_not_found", "Purchase request not found")
	ErrNotApproved            = apperror.InvalidTransition("purchase_request_not_approved", "Purchase orders can only be created from APPROVED purchase requests")
	ErrNotEditable            = apperror.InvalidTransition("purchase_order_not_editable", "Only DRAFT POs can be edited")
	ErrNotIssuable            = apperror.InvalidTransition("purchase_order_not_issuable", "Only DRAFT POs can be issued")
	ErrAlreadyExists          = apperror.Conflict("purchase_order_exists", "A purchase order already exists for this purchase request")
	ErrNumberExhausted        = apperror.Conflict("po_number_exhausted", "Could not allocate a unique PO number, retry the request")
)
