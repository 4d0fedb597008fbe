// Package domain contains the purchase request state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func ParsePriority(raw string) (Priority, bool) {
	switch p := Priority(raw); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	case "":
		return PriorityMedium, true
	default:
		return "", false
	}
}

type Transition string

const (
	TransitionSubmit  Transition = "submit"
	TransitionReview  Transition = "review"
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
)

// transitions lists the statuses each transition may start from and where it lands.
var transitions = map[Transition]struct {
	from []Status
	to   Status
}{
	TransitionSubmit:  {from: []Status{StatusDraft}, to: StatusSubmitted},
	TransitionReview:  {from: []Status{StatusSubmitted}, to: StatusUnderReview},
	TransitionApprove: {from: []Status{StatusSubmitted, StatusUnderReview}, to: StatusApproved},
	TransitionReject:  {from: []Status{StatusSubmitted, StatusUnderReview}, to: StatusRejected},
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

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type PurchaseRequest struct {
	ID                snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID         snowflake.ID    `gorm:"not null;index:idx_purchase_requests_company_status,priority:1" json:"company_id"`
	CreatedByID       snowflake.ID    `gorm:"not null;index" json:"created_by_id"`
	Title             string          `gorm:"type:varchar(255);not null" json:"title"`
	Description       string          `gorm:"type:text" json:"description"`
	Department        string          `gorm:"type:varchar(128);not null" json:"department"`
	Priority          Priority        `gorm:"type:varchar(16);not null" json:"priority"`
	EstimatedCost     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"estimated_cost"`
	BudgetCategory    string          `gorm:"type:varchar(128)" json:"budget_category"`
	RequiredBy        *time.Time      `json:"required_by,omitempty"`
	PreferredVendorID *snowflake.ID   `gorm:"index" json:"preferred_vendor_id,omitempty"`
	Status            Status          `gorm:"type:varchar(16);not null;index:idx_purchase_requests_company_status,priority:2" json:"status"`
	RejectionReason   *string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	SubmittedAt       *time.Time      `json:"submitted_at,omitempty"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (PurchaseRequest) TableName() string { return "purchase_requests" }

type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Approval rows are appended with each decision and never updated.
type Approval struct {
	ID                snowflake.ID   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID         snowflake.ID   `gorm:"not null;index" json:"company_id"`
	PurchaseRequestID snowflake.ID   `gorm:"not null;index" json:"purchase_request_id"`
	ApproverID        snowflake.ID   `gorm:"not null" json:"approver_id"`
	Status            ApprovalStatus `gorm:"type:varchar(16);not null" json:"status"`
	Comment           *string        `gorm:"type:text" json:"comment,omitempty"`
	ApprovedAt        *time.Time     `json:"approved_at,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
}

func (Approval) TableName() string { return "approvals" }
