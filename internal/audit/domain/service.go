package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/pkg/db/pagination"
)

// Entry is one audit record as requested by a lifecycle engine.
type Entry struct {
	CompanyID snowflake.ID
	ActorID   *snowflake.ID
	Action    string
	Entity    string
	EntityID  snowflake.ID
	Metadata  map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action    string     `form:"action"`
	Entity    string     `form:"entity"`
	EntityID  string     `form:"entity_id"`
	ActorType string     `form:"actor_type"`
	ActorID   string     `form:"actor_id"`
	StartAt   *time.Time `form:"start_at" time_format:"2006-01-02T15:04:05Z07:00"`
	EndAt     *time.Time `form:"end_at" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record appends an entry. Failures are logged and counted; callers may ignore the error.
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, actor identitydomain.Actor, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidTimeRange = apperror.InvalidInput("invalid_time_range", "start_at must not be after end_at")
	ErrInvalidAction    = apperror.InvalidInput("invalid_action", "Audit action is required")
	ErrInvalidCompany   = apperror.InvalidInput("invalid_company", "Audit entry requires a company")
	ErrInvalidPageToken = apperror.InvalidInput("invalid_page_token", "Page token is invalid")
	ErrInvalidActorID   = apperror.InvalidInput("invalid_actor_id", "actor_id must be a profile id")
)
