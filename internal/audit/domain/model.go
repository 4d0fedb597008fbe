package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

const (
	ActionCreateCompany = "CREATE_COMPANY"
	ActionInviteMember  = "INVITE_MEMBER"
	ActionAcceptInvite  = "ACCEPT_INVITE"

	ActionCreateVendor = "CREATE_VENDOR"
	ActionUpdateVendor = "UPDATE_VENDOR"
	ActionToggleVendor = "TOGGLE_VENDOR"

	ActionCreatePR  = "CREATE_PR"
	ActionUpdatePR  = "UPDATE_PR"
	ActionSubmitPR  = "SUBMIT_PR"
	ActionReviewPR  = "REVIEW_PR"
	ActionApprovePR = "APPROVE_PR"
	ActionRejectPR  = "REJECT_PR"

	ActionCreatePO = "CREATE_PO"
	ActionUpdatePO = "UPDATE_PO"
	ActionIssuePO  = "ISSUE_PO"

	ActionInvoiceUploaded            = "INVOICE_UPLOADED"
	ActionInvoiceVerificationStarted = "INVOICE_VERIFICATION_STARTED"
	ActionInvoiceVerified            = "INVOICE_VERIFIED"
	ActionInvoiceMismatch            = "INVOICE_MISMATCH"
	ActionInvoiceRejected            = "INVOICE_REJECTED"

	ActionPaymentInitiated = "PAYMENT_INITIATED"
	ActionPaymentSuccess   = "PAYMENT_SUCCESS"
	ActionPaymentFailed    = "PAYMENT_FAILED"
)

// AuditLog rows are append-only.
type AuditLog struct {
	ID        snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID snowflake.ID      `gorm:"not null;index:idx_audit_logs_company_created,priority:1" json:"company_id"`
	ActorType string            `gorm:"type:varchar(16);not null" json:"actor_type"`
	ActorID   *snowflake.ID     `json:"actor_id,omitempty"`
	Action    string            `gorm:"type:varchar(64);not null;index" json:"action"`
	Entity    string            `gorm:"type:varchar(64);not null" json:"entity"`
	EntityID  string            `gorm:"type:varchar(32);not null;index" json:"entity_id"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	IPAddress *string           `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index:idx_audit_logs_company_created,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	CompanyID snowflake.ID
	Action    string
	Entity    string
	EntityID  string
	ActorType string
	ActorID   *snowflake.ID
	StartAt   *time.Time
	EndAt     *time.Time
	Cursor    *pagination.KeysetCursor
	Limit     int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
