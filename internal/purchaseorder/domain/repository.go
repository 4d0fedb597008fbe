package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	CompanyID snowflake.ID
	Status    Status
	VendorID  snowflake.ID
	Cursor    *pagination.KeysetCursor
	Limit     int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, po *PurchaseOrder) error
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*PurchaseOrder, error)
	ExistsForPurchaseRequest(ctx context.Context, companyID, prID snowflake.ID) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*PurchaseOrder, error)
	// UpdateWhereStatus changes the row only while it is still in from.
	UpdateWhereStatus(ctx context.Context, po *PurchaseOrder, from Status, fields map[string]any) (bool, error)
}
