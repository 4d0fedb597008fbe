// Package domain contains the purchase order model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusIssued    Status = "ISSUED"
	StatusCancelled Status = "CANCELLED"
)

// PurchaseOrder is created 1:1 from an approved purchase request.
type PurchaseOrder struct {
	ID                snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID         snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_purchase_orders_company_po_number,priority:1" json:"company_id"`
	PurchaseRequestID snowflake.ID    `gorm:"not null;uniqueIndex:ux_purchase_orders_purchase_request" json:"purchase_request_id"`
	VendorID          snowflake.ID    `gorm:"not null;index" json:"vendor_id"`
	CreatedByID       snowflake.ID    `gorm:"not null" json:"created_by_id"`
	IssuedByID        *snowflake.ID   `json:"issued_by_id,omitempty"`
	IssuedAt          *time.Time      `json:"issued_at,omitempty"`
	PONumber          string          `gorm:"column:po_number;type:varchar(32);not null;uniqueIndex:ux_purchase_orders_company_po_number,priority:2" json:"po_number"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_amount"`
	Currency          string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status            Status          `gorm:"type:varchar(16);not null;index" json:"status"`
	PaymentTerms      string          `gorm:"type:text" json:"payment_terms"`
	Notes             string          `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }
