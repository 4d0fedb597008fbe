package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/purchaserequest/domain"
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

func (r *repository) Insert(ctx context.Context, pr *domain.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*domain.PurchaseRequest, error) {
	var pr domain.PurchaseRequest
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Take(&pr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.PurchaseRequest, error) {
	var items []*domain.PurchaseRequest
	stmt := r.db.WithContext(ctx).Model(&domain.PurchaseRequest{}).
		Where("company_id = ?", filter.CompanyID)

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CreatedByID != 0 {
		stmt = stmt.Where("created_by_id = ?", filter.CreatedByID)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateStatus(ctx context.Context, pr *domain.PurchaseRequest, from domain.Status, fields map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.PurchaseRequest{}).
		Where("company_id = ? AND id = ? AND status = ?", pr.CompanyID, pr.ID, from).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) InsertApproval(ctx context.Context, approval *domain.Approval) error {
	return r.db.WithContext(ctx).Create(approval).Error
}

func (r *repository) ListApprovals(ctx context.Context, companyID, prID snowflake.ID) ([]domain.Approval, error) {
	var items []domain.Approval
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND purchase_request_id = ?", companyID, prID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
