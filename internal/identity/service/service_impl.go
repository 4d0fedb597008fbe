package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// EnsureProfile returns the principal's profile, creating it on first login.
// Concurrent first logins converge: the loser of the insert race refetches the winner's row.
func (s *Service) EnsureProfile(ctx context.Context, principal domain.Principal) (*domain.Profile, error) {
	userID := strings.TrimSpace(principal.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidPrincipal
	}

	existing, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	profile := &domain.Profile{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Email:     strings.ToLower(strings.TrimSpace(principal.Email)),
		FullName:  strings.TrimSpace(principal.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.InsertProfile(ctx, profile); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, apperror.Internal(err)
		}
		winner, findErr := s.repo.FindProfileByUserID(ctx, userID)
		if findErr != nil {
			return nil, apperror.Internal(findErr)
		}
		if winner == nil {
			return nil, apperror.Internal(err)
		}
		return winner, nil
	}

	s.log.Info("profile created", zap.String("profile_id", profile.ID.String()))
	return profile, nil
}

// Resolve builds the request actor. A principal without membership resolves with a nil company.
func (s *Service) Resolve(ctx context.Context, principal domain.Principal) (domain.Actor, error) {
	profile, err := s.EnsureProfile(ctx, principal)
	if err != nil {
		return domain.Actor{}, err
	}

	actor := domain.Actor{
		UserID:    profile.UserID,
		ProfileID: profile.ID,
		Email:     profile.Email,
	}

	membership, err := s.repo.FindActiveMembership(ctx, profile.ID)
	if err != nil {
		return domain.Actor{}, apperror.Internal(err)
	}
	if membership != nil {
		companyID := membership.CompanyID
		actor.CompanyID = &companyID
		actor.Role = membership.Role
	}
	return actor, nil
}
