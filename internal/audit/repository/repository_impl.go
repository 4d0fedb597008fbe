package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert runs on the supplied handle so entries commit with the state change they describe.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	err := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Where("company_id = ?", filter.CompanyID).
		Scopes(
			matching(filter),
			createdBetween(filter.StartAt, filter.EndAt),
			before(filter.Cursor),
			pageOf(filter.Limit),
		).
		Order("created_at desc, id desc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func matching(filter domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(stmt *gorm.DB) *gorm.DB {
		for column, value := range map[string]string{
			"action":     filter.Action,
			"entity":     filter.Entity,
			"entity_id":  filter.EntityID,
			"actor_type": filter.ActorType,
		} {
			if value = strings.TrimSpace(value); value != "" {
				stmt = stmt.Where(column+" = ?", value)
			}
		}
		if filter.ActorID != nil {
			stmt = stmt.Where("actor_id = ?", *filter.ActorID)
		}
		return stmt
	}
}

func createdBetween(start, end *time.Time) func(*gorm.DB) *gorm.DB {
	return func(stmt *gorm.DB) *gorm.DB {
		if start != nil {
			stmt = stmt.Where("created_at >= ?", start.UTC())
		}
		if end != nil {
			stmt = stmt.Where("created_at <= ?", end.UTC())
		}
		return stmt
	}
}

func before(cursor *pagination.KeysetCursor) func(*gorm.DB) *gorm.DB {
	return func(stmt *gorm.DB) *gorm.DB {
		if cursor == nil {
			return stmt
		}
		return stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
}

// pageOf fetches one extra row so the caller can tell whether another page exists.
func pageOf(limit int) func(*gorm.DB) *gorm.DB {
	return func(stmt *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return stmt
		}
		return stmt.Limit(limit + 1)
	}
}
