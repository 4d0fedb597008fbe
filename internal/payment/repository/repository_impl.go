package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/payment/domain"
	"github.com/smallbiznis/procura/pkg/db"
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

func (r *repository) Insert(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*domain.Payment, error) {
	return r.take(r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id))
}

func (r *repository) FindByOrderID(ctx context.Context, companyID snowflake.ID, orderID string) (*domain.Payment, error) {
	return r.take(r.db.WithContext(ctx).Where("company_id = ? AND razorpay_order_id = ?", companyID, orderID))
}

func (r *repository) FindByOrderIDAnyCompany(ctx context.Context, orderID string) (*domain.Payment, error) {
	return r.take(r.db.WithContext(ctx).Where("razorpay_order_id = ?", orderID))
}

func (r *repository) LatestInitiated(ctx context.Context, companyID, invoiceID snowflake.ID) (*domain.Payment, error) {
	return r.take(r.db.WithContext(ctx).
		Where("company_id = ? AND invoice_id = ? AND status = ?", companyID, invoiceID, domain.StatusInitiated).
		Order("created_at desc, id desc"))
}

func (r *repository) HasSuccess(ctx context.Context, companyID, invoiceID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("company_id = ? AND invoice_id = ? AND status = ?", companyID, invoiceID, domain.StatusSuccess).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Payment, error) {
	var items []*domain.Payment
	stmt := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("company_id = ?", filter.CompanyID)

	if filter.InvoiceID != 0 {
		stmt = stmt.Where("invoice_id = ?", filter.InvoiceID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
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

func (r *repository) ListStaleInitiated(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Payment, error) {
	var items []*domain.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.StatusInitiated, createdBefore).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repository) UpdateWhereStatus(ctx context.Context, payment *domain.Payment, from domain.Status, fields map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("company_id = ? AND id = ? AND status = ?", payment.CompanyID, payment.ID, from).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) EventExists(ctx context.Context, provider, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Event{}).
		Where("provider = ? AND provider_event_id = ?", provider, eventID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) InsertEvent(ctx context.Context, event *domain.Event) (bool, error) {
	err := r.db.WithContext(ctx).Create(event).Error
	if err == nil {
		return true, nil
	}
	if db.IsDuplicateKeyErr(err) {
		return false, nil
	}
	return false, err
}

func (r *repository) take(stmt *gorm.DB) (*domain.Payment, error) {
	var payment domain.Payment
	err := stmt.Take(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
