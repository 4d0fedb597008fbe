package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	CompanyID snowflake.ID
	InvoiceID snowflake.ID
	Status    Status
	Cursor    *pagination.KeysetCursor
	Limit     int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*Payment, error)
	FindByOrderID(ctx context.Context, companyID snowflake.ID, orderID string) (*Payment, error)
	// FindByOrderIDAnyCompany is only for gateway callbacks that carry no tenant.
	FindByOrderIDAnyCompany(ctx context.Context, orderID string) (*Payment, error)
	LatestInitiated(ctx context.Context, companyID, invoiceID snowflake.ID) (*Payment, error)
	HasSuccess(ctx context.Context, companyID, invoiceID snowflake.ID) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*Payment, error)
	// ListStaleInitiated scans every tenant, oldest first.
	ListStaleInitiated(ctx context.Context, createdBefore time.Time, limit int) ([]*Payment, error)
	UpdateWhereStatus(ctx context.Context, payment *Payment, from Status, fields map[string]any) (bool, error)
	EventExists(ctx context.Context, provider, eventID string) (bool, error)
	// InsertEvent returns false when the event was already recorded.
	InsertEvent(ctx context.Context, event *Event) (bool, error)
}
