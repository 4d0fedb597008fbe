package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, actor identitydomain.Actor, req CreateVendorRequest) (*Vendor, error)
	Update(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, req UpdateVendorRequest) (*Vendor, error)
	ToggleActive(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*Vendor, error)
	Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*Vendor, error)
	List(ctx context.Context, actor identitydomain.Actor, req ListVendorRequest) (ListVendorResponse, error)
	// RequireSelectable returns the vendor when it exists in the company and is active.
	RequireSelectable(ctx context.Context, companyID, id snowflake.ID) (*Vendor, error)
}

type CreateVendorRequest struct {
	Name          string  `json:"name"`
	ContactPerson *string `json:"contact_person"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	GSTIN         *string `json:"gstin"`
	PAN           *string `json:"pan"`
	BankAccount   *string `json:"bank_account"`
	IFSC          *string `json:"ifsc"`
	Address       *string `json:"address"`
	VendorType    string  `json:"vendor_type"`
}

// UpdateVendorRequest is a partial update; nil fields are left unchanged.
type UpdateVendorRequest struct {
	Name          *string `json:"name"`
	ContactPerson *string `json:"contact_person"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	GSTIN         *string `json:"gstin"`
	PAN           *string `json:"pan"`
	BankAccount   *string `json:"bank_account"`
	IFSC          *string `json:"ifsc"`
	Address       *string `json:"address"`
	VendorType    *string `json:"vendor_type"`
}

type ListVendorRequest struct {
	pagination.Pagination
	Search     string `form:"search"`
	ActiveOnly bool   `form:"active_only"`
}

type ListVendorResponse struct {
	pagination.PageInfo
	Vendors []Vendor `json:"vendors"`
}

var (
	ErrInvalidName        = apperror.InvalidInput("invalid_name", "Vendor name is required")
	ErrInvalidEmail       = apperror.InvalidInput("invalid_email", "Vendor email is not a valid address")
	ErrInvalidPhone       = apperror.InvalidInput("invalid_phone", "Vendor phone must contain 7 to 15 digits")
	ErrInvalidGSTIN       = apperror.InvalidInput("invalid_gstin", "GSTIN format is invalid")
	ErrInvalidPAN         = apperror.InvalidInput("invalid_pan", "PAN format is invalid")
	ErrInvalidIFSC        = apperror.InvalidInput("invalid_ifsc", "IFSC format is invalid")
	ErrInvalidBankAccount = apperror.InvalidInput("invalid_bank_account", "Bank account must contain 9 to 18 digits")
	ErrInvalidVendorType  = apperror.InvalidInput("invalid_vendor_type", "Vendor type must be one of GOODS, SERVICES, BOTH")
	ErrInvalidPageToken   = apperror.InvalidInput("invalid_page_token", "Page token is invalid")
	ErrVendorNotFound     = apperror.NotFound("vendor_not_found", "Vendor not found")
	ErrVendorInactive     = apperror.InvalidInput("vendor_inactive", "Vendor is inactive")
	ErrDuplicateVendor    = apperror.Conflict("duplicate_vendor", "A vendor with these details already exists")
)

// DuplicateFieldError names the identifier that collided.
func DuplicateFieldError(field string) error {
	return apperror.Conflict("duplicate_"+field, "A vendor with this "+field+" already exists")
}
