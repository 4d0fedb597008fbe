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
	Create(ctx context.Context, actor identitydomain.Actor, req CreateRequest) (*PurchaseRequest, error)
	Edit(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, patch EditRequest) (*PurchaseRequest, error)
	Submit(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*PurchaseRequest, error)
	Review(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*PurchaseRequest, error)
	Approve(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, comment string) (*PurchaseRequest, error)
	Reject(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, reason string) (*PurchaseRequest, error)
	Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*PurchaseRequest, error)
	List(ctx context.Context, actor identitydomain.Actor, req ListRequest) (ListResponse, error)
	ListApprovals(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) ([]Approval, error)
}

type CreateRequest struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Department        string          `json:"department"`
	Priority          string          `json:"priority"`
	EstimatedCost     decimal.Decimal `json:"estimated_cost"`
	BudgetCategory    string          `json:"budget_category"`
	RequiredBy        *time.Time      `json:"required_by"`
	PreferredVendorID *snowflake.ID   `json:"preferred_vendor_id"`
	// Submit creates the request directly in SUBMITTED.
	Submit bool `json:"submit"`
}

// EditRequest carries the whitelisted editable fields; nil leaves a field unchanged.
type EditRequest struct {
	Title             *string          `json:"title"`
	Description       *string          `json:"description"`
	Department        *string          `json:"department"`
	Priority          *string          `json:"priority"`
	EstimatedCost     *decimal.Decimal `json:"estimated_cost"`
	BudgetCategory    *string          `json:"budget_category"`
	RequiredBy        *time.Time       `json:"required_by"`
	PreferredVendorID *snowflake.ID    `json:"preferred_vendor_id"`
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
	Mine   bool   `form:"mine"`
}

type ListResponse struct {
	pagination.PageInfo
	PurchaseRequests []PurchaseRequest `json:"purchase_requests"`
}

var (
	ErrInvalidTitle         = apperror.InvalidInput("invalid_title", "Title is required")
	ErrInvalidDepartment    = apperror.InvalidInput("invalid_department", "Department is required")
	ErrInvalidCost          = apperror.InvalidInput("invalid_estimated_cost", "Estimated cost must be greater than zero")
	ErrInvalidPriority      = apperror.InvalidInput("invalid_priority", "Priority must be one of LOW, MEDIUM, HIGH, URGENT")
	ErrInvalidStatus        = apperror.InvalidInput("invalid_status", "Unknown purchase request status")
	ErrInvalidPageToken     = apperror.InvalidInput("invalid_page_token", "Page token is invalid")
	ErrNotFound             = apperror.NotFound("purchase_request_not_found", "Purchase request not found")
	ErrNotEditable          = apperror.InvalidTransition("purchase_request_not_editable", "Only DRAFT purchase requests can be edited")
	ErrEditForbidden        = apperror.Forbidden("purchase_request_edit_forbidden", "Only the creator or an ADMIN can edit this purchase request")
	ErrSelfApproval         = apperror.Forbidden("self_approval", "You cannot approve or reject your own purchase request")
	ErrConcurrentTransition = apperror.Conflict("purchase_request_changed", "Purchase request was changed by another request, reload and retry")
)

// ErrInvalidTransition describes a transition that the current status does not allow.
func ErrInvalidTransition(t Transition, current Status) error {
	return apperror.New(apperror.KindInvalidTransition, "invalid_transition",
		"Cannot "+string(t)+" a purchase request in "+string(current)+" status")
}

// ErrReasonTooShort reports a rejection reason under the configured minimum.
func ErrReasonTooShort(minLen int) error {
	return apperror.InvalidInputf("invalid_reason", "Rejection reason must be at least %d characters", minLen)
}
