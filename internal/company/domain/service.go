package domain

import (
	"context"

	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
)

type Service interface {
	Create(ctx context.Context, actor identitydomain.Actor, req CreateCompanyRequest) (*Company, error)
	Get(ctx context.Context, actor identitydomain.Actor) (*Company, error)
	ListMembers(ctx context.Context, actor identitydomain.Actor) ([]Member, error)
	Invite(ctx context.Context, actor identitydomain.Actor, req InviteRequest) (*Invitation, error)
	ListInvitations(ctx context.Context, actor identitydomain.Actor) ([]Invitation, error)
	AcceptInvitation(ctx context.Context, actor identitydomain.Actor, token string) (*CompanyMember, error)
}

type CreateCompanyRequest struct {
	Name string `json:"name"`
}

type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

var (
	ErrInvalidName          = apperror.InvalidInput("invalid_name", "Company name is required")
	ErrInvalidEmail         = apperror.InvalidInput("invalid_email", "A valid email address is required")
	ErrInvalidRole          = apperror.InvalidInput("invalid_role", "Role must be one of ADMIN, PROCUREMENT, MANAGER, FINANCE")
	ErrInvalidToken         = apperror.InvalidInput("invalid_token", "Invitation token is required")
	ErrAlreadyMember        = apperror.Conflict("already_member", "You already belong to a company")
	ErrMemberExists         = apperror.Conflict("member_exists", "This email already belongs to a member of the company")
	ErrInvitationPending    = apperror.Conflict("invitation_pending", "An active invitation already exists for this email")
	ErrCompanyNotFound      = apperror.NotFound("company_not_found", "Company not found")
	ErrInvitationNotFound   = apperror.NotFound("invitation_not_found", "Invitation not found")
	ErrInvitationUsed       = apperror.InvalidTransition("invitation_used", "Invitation has already been used")
	ErrInvitationExpired    = apperror.InvalidTransition("invitation_expired", "Invitation has expired")
	ErrInvitationEmailMatch = apperror.Forbidden("invitation_email_mismatch", "This invitation was issued to a different email address")
)
