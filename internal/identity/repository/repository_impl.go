package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/identity/domain"
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

func (r *repository) FindProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindProfileByID(ctx context.Context, id snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) InsertProfile(ctx context.Context, profile *domain.Profile) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO profiles (id, user_id, email, full_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.UserID,
		profile.Email,
		profile.FullName,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Error
}

func (r *repository) FindActiveMembership(ctx context.Context, profileID snowflake.ID) (*domain.Membership, error) {
	var rows []struct {
		CompanyID snowflake.ID `gorm:"column:company_id"`
		Role      string       `gorm:"column:role"`
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT company_id, role
		 FROM company_members
		 WHERE profile_id = ? AND is_active = ?
		 ORDER BY created_at ASC
		 LIMIT 1`,
		profileID,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	role, ok := domain.ParseRole(rows[0].Role)
	if !ok {
		return nil, nil
	}
	return &domain.Membership{CompanyID: rows[0].CompanyID, Role: role}, nil
}
