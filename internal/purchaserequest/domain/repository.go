package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	CompanyID   snowflake.ID
	Status      Status
	CreatedByID snowflake.ID
	Cursor      *pagination.KeysetCursor
	Limit       int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, pr *PurchaseRequest) error
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*PurchaseRequest, error)
	List(ctx context.Context, filter ListFilter) ([]*PurchaseRequest, error)
	// UpdateStatus moves the row only if it is still in from; it reports whether a row changed.
	UpdateStatus(ctx context.Context, pr *PurchaseRequest, from Status, fields map[string]any) (bool, error)
	InsertApproval(ctx context.Context, approval *Approval) error
	ListApprovals(ctx context.Context, companyID, prID snowflake.ID) ([]Approval, error)
}
