package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/invoice/domain"
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

func (r *repository) Insert(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ExistsForPurchaseOrder(ctx context.Context, companyID, poID snowflake.ID) (bool, error) {
	count, err := r.CountForPurchaseOrder(ctx, companyID, poID)
	return count > 0, err
}

func (r *repository) CountForPurchaseOrder(ctx context.Context, companyID, poID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("company_id = ? AND purchase_order_id = ?", companyID, poID).
		Count(&count).Error
	return count, err
}

func (r *repository) NumberTaken(ctx context.Context, companyID, vendorID snowflake.ID, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("company_id = ? AND vendor_id = ? AND invoice_number = ?", companyID, vendorID, number).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Invoice, error) {
	var items []*domain.Invoice
	stmt := r.db.WithContext(ctx).Model(&domain.Invoice{}).
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

func (r *repository) UpdateWhereStatus(ctx context.Context, invoice *domain.Invoice, from domain.Status, fields map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("company_id = ? AND id = ? AND status = ?", invoice.CompanyID, invoice.ID, from).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
