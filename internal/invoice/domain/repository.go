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
	Insert(ctx context.Context, invoice *Invoice) error
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*Invoice, error)
	ExistsForPurchaseOrder(ctx context.Context, companyID, poID snowflake.ID) (bool, error)
	CountForPurchaseOrder(ctx context.Context, companyID, poID snowflake.ID) (int64, error)
	NumberTaken(ctx context.Context, companyID, vendorID snowflake.ID, number string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*Invoice, error)
	// UpdateWhereStatus changes the row only while it is still in from.
	UpdateWhereStatus(ctx context.Context, invoice *Invoice, from Status, fields map[string]any) (bool, error)
}
