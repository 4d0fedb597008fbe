// Package domain contains the tenant, membership and invitation models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Company is the tenant boundary.
type Company struct {
	ID          snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Slug        string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_companies_slug" json:"slug"`
	CreatedByID snowflake.ID `gorm:"not null" json:"created_by_id"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

// CompanyMember binds a profile to a company with a fixed role.
type CompanyMember struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_company_members_company_profile,priority:1" json:"company_id"`
	ProfileID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_company_members_company_profile,priority:2" json:"profile_id"`
	Role      string       `gorm:"type:varchar(32);not null" json:"role"`
	IsActive  bool         `gorm:"not null" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (CompanyMember) TableName() string { return "company_members" }

// Invitation tokens are single use; accepted or expired invitations are inert.
type Invitation struct {
	ID           snowflake.ID  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID    snowflake.ID  `gorm:"not null;index" json:"company_id"`
	Email        string        `gorm:"type:varchar(320);not null" json:"email"`
	Role         string        `gorm:"type:varchar(32);not null" json:"role"`
	Token        string        `gorm:"type:varchar(64);not null;uniqueIndex:ux_invitations_token" json:"token"`
	InvitedByID  snowflake.ID  `gorm:"not null" json:"invited_by_id"`
	ExpiresAt    time.Time     `gorm:"not null" json:"expires_at"`
	AcceptedAt   *time.Time    `json:"accepted_at,omitempty"`
	AcceptedByID *snowflake.ID `json:"accepted_by_id,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
}

func (Invitation) TableName() string { return "invitations" }

func (i Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Member is a membership joined with its profile.
type Member struct {
	ID        snowflake.ID `json:"id"`
	ProfileID snowflake.ID `json:"profile_id"`
	Email     string       `json:"email"`
	FullName  string       `json:"full_name"`
	Role      string       `json:"role"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}
