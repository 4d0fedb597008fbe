package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/purchaseorder/domain"
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

func (r *repository) Insert(ctx context.Context, po *domain.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Take(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) ExistsForPurchaseRequest(ctx context.Context, companyID, prID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PurchaseOrder{}).
		Where("company_id = ? AND purchase_request_id = ?", companyID, prID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.PurchaseOrder, error) {
	var items []*domain.PurchaseOrder
	stmt := r.db.WithContext(ctx).Model(&domain.PurchaseOrder{}).
		Where("company_id = ?", filter.CompanyID)

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.VendorID != 0 {
		stmt = stmt.Where("vendor_id = ?", filter.VendorID)
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

func (r *repository) UpdateWhereStatus(ctx context.Context, po *domain.PurchaseOrder, from domain.Status, fields map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.PurchaseOrder{}).
		Where("company_id = ? AND id = ? AND status = ?", po.CompanyID, po.ID, from).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
