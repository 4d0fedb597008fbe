package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/company/domain"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/internal/testutil/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMakesCreatorAdmin(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	founder := env.Principal(t, "founder")
	assert.False(t, founder.HasCompany())

	company, err := env.Company.Create(ctx, founder, domain.CreateCompanyRequest{Name: "Acme Traders Pvt Ltd"})
	require.NoError(t, err)
	assert.Equal(t, "acme-traders-pvt-ltd", company.Slug)

	founder = env.Resolve(t, founder)
	require.True(t, founder.HasCompany())
	assert.Equal(t, company.ID, *founder.CompanyID)
	assert.Equal(t, identitydomain.RoleAdmin, founder.Role)

	_, err = env.Company.Create(ctx, founder, domain.CreateCompanyRequest{Name: "Second"})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	assert.Equal(t, []string{auditdomain.ActionCreateCompany}, env.AuditActions(t, company.ID))
}

func TestCreateDisambiguatesSlug(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	first, err := env.Company.Create(ctx, env.Principal(t, "a"), domain.CreateCompanyRequest{Name: "Globex"})
	require.NoError(t, err)
	second, err := env.Company.Create(ctx, env.Principal(t, "b"), domain.CreateCompanyRequest{Name: "Globex"})
	require.NoError(t, err)

	assert.Equal(t, "globex", first.Slug)
	assert.NotEqual(t, first.Slug, second.Slug)
	assert.Contains(t, second.Slug, "globex-")

	_, err = env.Company.Create(ctx, env.Principal(t, "c"), domain.CreateCompanyRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestInviteAndAccept(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	invitation, err := env.Company.Invite(ctx, tenant.Admin, domain.InviteRequest{
		Email: "New-Hire@Example.test",
		Role:  "finance",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-hire@example.test", invitation.Email)
	assert.Equal(t, string(identitydomain.RoleFinance), invitation.Role)
	assert.Equal(t, env.Clock.Now().Add(env.Policy.Get().InvitationTTL), invitation.ExpiresAt)

	notices := env.Notifier.Invitations()
	require.Len(t, notices, 1)
	assert.Equal(t, invitation.Token, notices[0].Token)

	_, err = env.Company.Invite(ctx, tenant.Admin, domain.InviteRequest{Email: "new-hire@example.test", Role: "MANAGER"})
	assert.ErrorIs(t, err, domain.ErrInvitationPending)

	pending, err := env.Company.ListInvitations(ctx, tenant.Admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	stranger := env.Principal(t, "stranger")
	_, err = env.Company.AcceptInvitation(ctx, stranger, invitation.Token)
	assert.ErrorIs(t, err, domain.ErrInvitationEmailMatch)

	hire := env.Principal(t, "new-hire")
	member, err := env.Company.AcceptInvitation(ctx, hire, invitation.Token)
	require.NoError(t, err)
	assert.Equal(t, tenant.CompanyID, member.CompanyID)
	assert.Equal(t, string(identitydomain.RoleFinance), member.Role)

	hire = env.Resolve(t, hire)
	assert.Equal(t, identitydomain.RoleFinance, hire.Role)

	_, err = env.Company.AcceptInvitation(ctx, env.Principal(t, "new-hire"), invitation.Token)
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	members, err := env.Company.ListMembers(ctx, hire)
	require.NoError(t, err)
	assert.Len(t, members, 5)

	_, err = env.Company.Invite(ctx, tenant.Admin, domain.InviteRequest{Email: "new-hire@example.test", Role: "MANAGER"})
	assert.ErrorIs(t, err, domain.ErrMemberExists)
}

func TestAcceptRejectsExpiredAndUsedTokens(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	invitation, err := env.Company.Invite(ctx, tenant.Admin, domain.InviteRequest{Email: "late@example.test", Role: "MANAGER"})
	require.NoError(t, err)

	env.Clock.Advance(env.Policy.Get().InvitationTTL + time.Second)
	_, err = env.Company.AcceptInvitation(ctx, env.Principal(t, "late"), invitation.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvitationExpired)
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidTransition))

	_, err = env.Company.AcceptInvitation(ctx, env.Principal(t, "late"), "no-such-token")
	assert.ErrorIs(t, err, domain.ErrInvitationNotFound)
}

func TestInviteRequiresAdmin(t *testing.T) {
	env := testenv.New(t)
	tenant := env.NewTenant(t, "acme")
	ctx := context.Background()

	_, err := env.Company.Invite(ctx, tenant.Manager, domain.InviteRequest{Email: "x@example.test", Role: "FINANCE"})
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = env.Company.Invite(ctx, tenant.Admin, domain.InviteRequest{Email: "not-an-email", Role: "FINANCE"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = env.Company.Invite(ctx, tenant.Admin, domain.InviteRequest{Email: "x@example.test", Role: "OWNER"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = env.Company.Get(ctx, env.Principal(t, "outsider"))
	assert.ErrorIs(t, err, identitydomain.ErrNeedsCompany)
}
