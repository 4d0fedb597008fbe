// Package domain contains the vendor invoice model and its verification states.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUploaded          Status = "UPLOADED"
	StatusUnderVerification Status = "UNDER_VERIFICATION"
	StatusVerified          Status = "VERIFIED"
	StatusMismatch          Status = "MISMATCH"
	StatusRejected          Status = "REJECTED"
	StatusPaid              Status = "PAID"
)

type Transition string

const (
	TransitionStartVerification Transition = "start_verification"
	TransitionVerify            Transition = "verify"
	TransitionMismatch          Transition = "mismatch"
	TransitionReject            Transition = "reject"
	TransitionPay               Transition = "pay"
)

var transitions = map[Transition]struct {
	from []Status
	to   Status
}{
	TransitionStartVerification: {from: []Status{StatusUploaded}, to: StatusUnderVerification},
	TransitionVerify:            {from: []Status{StatusUploaded, StatusUnderVerification}, to: StatusVerified},
	TransitionMismatch:          {from: []Status{StatusUploaded, StatusUnderVerification, StatusMismatch, StatusRejected}, to: StatusMismatch},
	TransitionReject:            {from: []Status{StatusUploaded, StatusUnderVerification, StatusMismatch}, to: StatusRejected},
	TransitionPay:               {from: []Status{StatusVerified}, to: StatusPaid},
}

// Next returns the status t leads to from current, or false when t is not allowed.
func Next(current Status, t Transition) (Status, bool) {
	rule, ok := transitions[t]
	if !ok {
		return "", false
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, true
		}
	}
	return "", false
}

type Invoice struct {
	ID              snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID       snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_invoices_company_vendor_number,priority:1" json:"company_id"`
	PurchaseOrderID snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoices_purchase_order" json:"purchase_order_id"`
	VendorID        snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_invoices_company_vendor_number,priority:2" json:"vendor_id"`
	UploadedByID    snowflake.ID    `gorm:"not null" json:"uploaded_by_id"`
	VerifiedByID    *snowflake.ID   `json:"verified_by_id,omitempty"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	InvoiceNumber   string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_invoices_company_vendor_number,priority:3" json:"invoice_number"`
	InvoiceDate     *time.Time      `json:"invoice_date,omitempty"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"subtotal"`
	CGST            decimal.Decimal `gorm:"column:cgst;type:numeric(18,2);not null" json:"cgst"`
	SGST            decimal.Decimal `gorm:"column:sgst;type:numeric(18,2);not null" json:"sgst"`
	IGST            decimal.Decimal `gorm:"column:igst;type:numeric(18,2);not null" json:"igst"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_amount"`
	Currency        string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status          Status          `gorm:"type:varchar(24);not null;index" json:"status"`
	Comments        *string         `gorm:"type:text" json:"comments,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }
