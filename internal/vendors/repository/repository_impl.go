package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/vendors/domain"
	"gorm.io/gorm"
)

var uniqueColumns = map[string]struct{}{
	"name":  {},
	"gstin": {},
	"pan":   {},
	"email": {},
	"phone": {},
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, vendor *domain.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

func (r *repository) Update(ctx context.Context, vendor *domain.Vendor) error {
	return r.db.WithContext(ctx).
		Model(&domain.Vendor{}).
		Where("company_id = ? AND id = ?", vendor.CompanyID, vendor.ID).
		Updates(map[string]any{
			"name":           vendor.Name,
			"contact_person": vendor.ContactPerson,
			"email":          vendor.Email,
			"phone":          vendor.Phone,
			"gstin":          vendor.GSTIN,
			"pan":            vendor.PAN,
			"bank_account":   vendor.BankAccount,
			"ifsc":           vendor.IFSC,
			"address":        vendor.Address,
			"vendor_type":    vendor.VendorType,
			"is_active":      vendor.IsActive,
			"updated_at":     vendor.UpdatedAt,
		}).Error
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*domain.Vendor, error) {
	var vendor domain.Vendor
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Take(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Vendor, error) {
	var vendors []*domain.Vendor
	stmt := r.db.WithContext(ctx).Model(&domain.Vendor{}).
		Where("company_id = ?", filter.CompanyID)

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+search+"%")
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
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

	if err := stmt.Find(&vendors).Error; err != nil {
		return nil, err
	}
	return vendors, nil
}

func (r *repository) FieldTaken(ctx context.Context, companyID snowflake.ID, column string, value string, excludeID snowflake.ID) (bool, error) {
	if _, ok := uniqueColumns[column]; !ok {
		return false, fmt.Errorf("vendor: %q is not a unique column", column)
	}

	stmt := r.db.WithContext(ctx).Model(&domain.Vendor{}).Where("company_id = ?", companyID)
	if column == "name" {
		stmt = stmt.Where("LOWER(name) = ?", strings.ToLower(value))
	} else {
		stmt = stmt.Where(column+" = ?", value)
	}
	if excludeID != 0 {
		stmt = stmt.Where("id <> ?", excludeID)
	}

	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
