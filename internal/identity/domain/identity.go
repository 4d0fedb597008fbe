// Package domain contains the resolved caller identity shared by every lifecycle engine.
package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleProcurement Role = "PROCUREMENT"
	RoleManager     Role = "MANAGER"
	RoleFinance     Role = "FINANCE"
)

var Roles = []Role{RoleAdmin, RoleProcurement, RoleManager, RoleFinance}

func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	for _, r := range Roles {
		if r == role {
			return role, true
		}
	}
	return "", false
}

// Principal is the authenticated subject handed over by the auth provider.
type Principal struct {
	UserID string
	Email  string
	Name   string
}

// Profile is the local record for a principal, created on first sight.
type Profile struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID    string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_profiles_user_id" json:"user_id"`
	Email     string       `gorm:"type:varchar(320);not null;index" json:"email"`
	FullName  string       `gorm:"type:text" json:"full_name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// Actor is the per-request resolved caller. It is built once and passed explicitly.
type Actor struct {
	UserID    string        `json:"user_id"`
	ProfileID snowflake.ID  `json:"profile_id"`
	Email     string        `json:"email"`
	CompanyID *snowflake.ID `json:"company_id"`
	Role      Role          `json:"role,omitempty"`
}

func (a Actor) HasCompany() bool {
	return a.CompanyID != nil && *a.CompanyID != 0
}

// Company returns the active company or ErrNeedsCompany.
func (a Actor) Company() (snowflake.ID, error) {
	if a.ProfileID == 0 {
		return 0, ErrUnauthenticated
	}
	if !a.HasCompany() {
		return 0, ErrNeedsCompany
	}
	return *a.CompanyID, nil
}

func (a Actor) IsProfile(id snowflake.ID) bool {
	return a.ProfileID != 0 && a.ProfileID == id
}

// Membership is the active (company, role) pair of a profile.
type Membership struct {
	CompanyID snowflake.ID
	Role      Role
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProfileByUserID(ctx context.Context, userID string) (*Profile, error)
	FindProfileByID(ctx context.Context, id snowflake.ID) (*Profile, error)
	InsertProfile(ctx context.Context, profile *Profile) error
	FindActiveMembership(ctx context.Context, profileID snowflake.ID) (*Membership, error)
}

type Service interface {
	EnsureProfile(ctx context.Context, principal Principal) (*Profile, error)
	Resolve(ctx context.Context, principal Principal) (Actor, error)
}

var (
	ErrUnauthenticated  = apperror.Unauthorized("unauthenticated", "Authentication required")
	ErrNeedsCompany     = apperror.Unauthorized("company_required", "Create or join a company to continue")
	ErrInvalidPrincipal = apperror.Unauthorized("invalid_principal", "Authenticated principal is missing a subject")
)
