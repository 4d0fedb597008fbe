package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateCompany(ctx context.Context, company *Company) error
	FindCompany(ctx context.Context, id snowflake.ID) (*Company, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	AddMember(ctx context.Context, member *CompanyMember) error
	ListMembers(ctx context.Context, companyID snowflake.ID) ([]Member, error)
	MemberEmailExists(ctx context.Context, companyID snowflake.ID, email string) (bool, error)
	CreateInvitation(ctx context.Context, invitation *Invitation) error
	FindInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	HasPendingInvitation(ctx context.Context, companyID snowflake.ID, email string, now time.Time) (bool, error)
	ListPendingInvitations(ctx context.Context, companyID snowflake.ID, now time.Time) ([]Invitation, error)
	// MarkInvitationAccepted consumes the invitation; it reports false when it was already consumed.
	MarkInvitationAccepted(ctx context.Context, id snowflake.ID, profileID snowflake.ID, acceptedAt time.Time) (bool, error)
}
