// Package domain contains invoice payments settled through the payment gateway.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
)

// Outcome values returned by confirmation and reconciliation.
const (
	OutcomeProcessed        = "PROCESSED"
	OutcomeAlreadyProcessed = "ALREADY_PROCESSED"
	OutcomePending          = "PENDING"
	OutcomeFailed           = "FAILED"
)

// Payment is one gateway order raised against a verified invoice.
// At most one row per invoice reaches SUCCESS, enforced by ux_payments_invoice_success.
type Payment struct {
	ID                snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID         snowflake.ID    `gorm:"not null;index" json:"company_id"`
	InvoiceID         snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	InitiatedByID     snowflake.ID    `gorm:"not null" json:"initiated_by_id"`
	Amount            decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Currency          string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status            Status          `gorm:"type:varchar(16);not null;index" json:"status"`
	RazorpayOrderID   string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_payments_razorpay_order" json:"razorpay_order_id"`
	RazorpayPaymentID *string         `gorm:"type:varchar(64)" json:"razorpay_payment_id,omitempty"`
	RazorpaySignature *string         `gorm:"type:varchar(128)" json:"-"`
	FailureReason     *string         `gorm:"type:text" json:"failure_reason,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// Event is a received gateway webhook, kept once per provider event id.
type Event struct {
	ID              snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Provider        string            `gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_event,priority:1" json:"provider"`
	ProviderEventID string            `gorm:"type:varchar(128);not null;uniqueIndex:ux_payment_events_provider_event,priority:2" json:"provider_event_id"`
	EventType       string            `gorm:"type:varchar(64);not null" json:"event_type"`
	OrderID         string            `gorm:"type:varchar(64);index" json:"order_id"`
	Payload         datatypes.JSONMap `gorm:"type:json" json:"payload"`
	ReceivedAt      time.Time         `gorm:"not null" json:"received_at"`
}

func (Event) TableName() string { return "payment_events" }
