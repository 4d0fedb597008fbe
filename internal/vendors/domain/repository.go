package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	CompanyID  snowflake.ID
	Search     string
	ActiveOnly bool
	Cursor     *pagination.KeysetCursor
	Limit      int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, vendor *Vendor) error
	Update(ctx context.Context, vendor *Vendor) error
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*Vendor, error)
	List(ctx context.Context, filter ListFilter) ([]*Vendor, error)
	// FieldTaken reports whether another vendor in the company already uses value for column.
	FieldTaken(ctx context.Context, companyID snowflake.ID, column string, value string, excludeID snowflake.ID) (bool, error)
}
