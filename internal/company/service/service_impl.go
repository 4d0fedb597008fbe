package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/company/domain"
	"github.com/smallbiznis/procura/internal/config"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/internal/notification"
	"github.com/smallbiznis/procura/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entityCompany = "company"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Authz    authorization.Service
	Audit    auditdomain.Service
	Notifier notification.Notifier
	Policy   *config.PolicyHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	authz    authorization.Service
	audit    auditdomain.Service
	notifier notification.Notifier
	policy   *config.PolicyHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("company.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		authz:    p.Authz,
		audit:    p.Audit,
		notifier: p.Notifier,
		policy:   p.Policy,
	}
}

// Create bootstraps a tenant; the creator becomes its ADMIN.
func (s *Service) Create(ctx context.Context, actor identitydomain.Actor, req domain.CreateCompanyRequest) (*domain.Company, error) {
	if actor.ProfileID == 0 {
		return nil, identitydomain.ErrUnauthenticated
	}
	if actor.HasCompany() {
		return nil, domain.ErrAlreadyMember
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	companyID := s.genID.Generate()
	companySlug, err := s.uniqueSlug(ctx, name, companyID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	company := &domain.Company{
		ID:          companyID,
		Name:        name,
		Slug:        companySlug,
		CreatedByID: actor.ProfileID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateCompany(ctx, company); err != nil {
			return err
		}
		return repo.AddMember(ctx, &domain.CompanyMember{
			ID:        s.genID.Generate(),
			CompanyID: companyID,
			ProfileID: actor.ProfileID,
			Role:      string(identitydomain.RoleAdmin),
			IsActive:  true,
			CreatedAt: now,
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyMember
		}
		return nil, apperror.Internal(err)
	}

	s.log.Info("company created",
		zap.String("company_id", companyID.String()),
		zap.String("profile_id", actor.ProfileID.String()),
	)
	s.record(ctx, companyID, actor.ProfileID, auditdomain.ActionCreateCompany, entityCompany, companyID, map[string]any{
		"name": name,
		"slug": companySlug,
	})
	return company, nil
}

func (s *Service) Get(ctx context.Context, actor identitydomain.Actor) (*domain.Company, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectCompany, authorization.ActionCompanyView); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	company, err := s.repo.FindCompany(ctx, companyID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if company == nil {
		return nil, domain.ErrCompanyNotFound
	}
	return company, nil
}

func (s *Service) ListMembers(ctx context.Context, actor identitydomain.Actor) ([]domain.Member, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectMember, authorization.ActionMemberView); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	members, err := s.repo.ListMembers(ctx, companyID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return members, nil
}

func (s *Service) Invite(ctx context.Context, actor identitydomain.Actor, req domain.InviteRequest) (*domain.Invitation, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectMember, authorization.ActionMemberInvite); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	email, ok := normalizeEmail(req.Email)
	if !ok {
		return nil, domain.ErrInvalidEmail
	}
	role, ok := identitydomain.ParseRole(req.Role)
	if !ok {
		return nil, domain.ErrInvalidRole
	}

	now := s.clock.Now()
	exists, err := s.repo.MemberEmailExists(ctx, companyID, email)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if exists {
		return nil, domain.ErrMemberExists
	}
	pending, err := s.repo.HasPendingInvitation(ctx, companyID, email, now)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if pending {
		return nil, domain.ErrInvitationPending
	}

	invitation := &domain.Invitation{
		ID:          s.genID.Generate(),
		CompanyID:   companyID,
		Email:       email,
		Role:        string(role),
		Token:       uuid.NewString(),
		InvitedByID: actor.ProfileID,
		ExpiresAt:   now.Add(s.policy.Get().InvitationTTL),
		CreatedAt:   now,
	}
	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		return nil, apperror.Internal(err)
	}

	s.record(ctx, companyID, actor.ProfileID, auditdomain.ActionInviteMember, "invitation", invitation.ID, map[string]any{
		"email": email,
		"role":  string(role),
	})
	s.notifier.InvitationCreated(ctx, notification.InvitationNotice{
		CompanyID: companyID,
		Email:     email,
		Role:      string(role),
		Token:     invitation.Token,
		ExpiresAt: invitation.ExpiresAt,
	})
	return invitation, nil
}

func (s *Service) ListInvitations(ctx context.Context, actor identitydomain.Actor) ([]domain.Invitation, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectMember, authorization.ActionMemberInvite); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	items, err := s.repo.ListPendingInvitations(ctx, companyID, s.clock.Now())
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

// AcceptInvitation consumes a token exactly once and creates the membership.
func (s *Service) AcceptInvitation(ctx context.Context, actor identitydomain.Actor, token string) (*domain.CompanyMember, error) {
	if actor.ProfileID == 0 {
		return nil, identitydomain.ErrUnauthenticated
	}
	if actor.HasCompany() {
		return nil, domain.ErrAlreadyMember
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	invitation, err := s.repo.FindInvitationByToken(ctx, token)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if invitation == nil {
		return nil, domain.ErrInvitationNotFound
	}

	now := s.clock.Now()
	if invitation.AcceptedAt != nil {
		return nil, domain.ErrInvitationUsed
	}
	if invitation.Expired(now) {
		return nil, domain.ErrInvitationExpired
	}
	if !strings.EqualFold(strings.TrimSpace(actor.Email), invitation.Email) {
		return nil, domain.ErrInvitationEmailMatch
	}

	member := &domain.CompanyMember{
		ID:        s.genID.Generate(),
		CompanyID: invitation.CompanyID,
		ProfileID: actor.ProfileID,
		Role:      invitation.Role,
		IsActive:  true,
		CreatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		consumed, err := repo.MarkInvitationAccepted(ctx, invitation.ID, actor.ProfileID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return domain.ErrInvitationUsed
		}
		return repo.AddMember(ctx, member)
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindInvalidTransition) {
			return nil, err
		}
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyMember
		}
		return nil, apperror.Internal(err)
	}

	s.record(ctx, invitation.CompanyID, actor.ProfileID, auditdomain.ActionAcceptInvite, "invitation", invitation.ID, map[string]any{
		"role":      invitation.Role,
		"member_id": member.ID.String(),
	})
	return member, nil
}

func (s *Service) uniqueSlug(ctx context.Context, name string, id snowflake.ID) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "company"
	}
	exists, err := s.repo.SlugExists(ctx, base)
	if err != nil {
		return "", err
	}
	if !exists {
		return base, nil
	}
	return base + "-" + strings.ToLower(id.Base36()), nil
}

func (s *Service) record(ctx context.Context, companyID, actorID snowflake.ID, action, entity string, entityID snowflake.ID, metadata map[string]any) {
	_ = s.audit.Record(ctx, auditdomain.Entry{
		CompanyID: companyID,
		ActorID:   &actorID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Metadata:  metadata,
	})
}

func normalizeEmail(raw string) (string, bool) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}
