package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/company/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateCompany(ctx context.Context, company *domain.Company) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO companies (id, name, slug, created_by_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.Name,
		company.Slug,
		company.CreatedByID,
		company.CreatedAt,
		company.UpdatedAt,
	).Error
}

func (r *repository) FindCompany(ctx context.Context, id snowflake.ID) (*domain.Company, error) {
	var company domain.Company
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Company{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *repository) AddMember(ctx context.Context, member *domain.CompanyMember) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO company_members (id, company_id, profile_id, role, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.CompanyID,
		member.ProfileID,
		member.Role,
		member.IsActive,
		member.CreatedAt,
	).Error
}

func (r *repository) ListMembers(ctx context.Context, companyID snowflake.ID) ([]domain.Member, error) {
	var items []domain.Member
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.id, m.profile_id, p.email, p.full_name, m.role, m.is_active, m.created_at
		 FROM company_members m
		 JOIN profiles p ON p.id = m.profile_id
		 WHERE m.company_id = ?
		 ORDER BY m.created_at ASC, m.id ASC`,
		companyID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) MemberEmailExists(ctx context.Context, companyID snowflake.ID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM company_members m
		 JOIN profiles p ON p.id = m.profile_id
		 WHERE m.company_id = ? AND m.is_active = ? AND LOWER(p.email) = ?`,
		companyID,
		true,
		email,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repository) CreateInvitation(ctx context.Context, invitation *domain.Invitation) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO invitations (id, company_id, email, role, token, invited_by_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		invitation.ID,
		invitation.CompanyID,
		invitation.Email,
		invitation.Role,
		invitation.Token,
		invitation.InvitedByID,
		invitation.ExpiresAt,
		invitation.CreatedAt,
	).Error
}

func (r *repository) FindInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).Where("token = ?", token).Take(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) HasPendingInvitation(ctx context.Context, companyID snowflake.ID, email string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("company_id = ? AND email = ? AND accepted_at IS NULL AND expires_at > ?", companyID, email, now).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListPendingInvitations(ctx context.Context, companyID snowflake.ID, now time.Time) ([]domain.Invitation, error) {
	var items []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND accepted_at IS NULL AND expires_at > ?", companyID, now).
		Order("created_at desc, id desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) MarkInvitationAccepted(ctx context.Context, id snowflake.ID, profileID snowflake.ID, acceptedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE invitations
		 SET accepted_at = ?, accepted_by_id = ?
		 WHERE id = ? AND accepted_at IS NULL`,
		acceptedAt,
		profileID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
