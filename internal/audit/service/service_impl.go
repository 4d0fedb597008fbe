package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/auditcontext"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/internal/observability/metrics"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    auditdomain.Repository
	Authz   authorization.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    auditdomain.Repository
	authz   authorization.Service
	metrics *metrics.Metrics
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		authz:   p.Authz,
		metrics: p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if entry.CompanyID == 0 {
		return auditdomain.ErrInvalidCompany
	}

	entity := strings.TrimSpace(entry.Entity)
	if entity == "" {
		entity = "unknown"
	}

	actorType := auditdomain.ActorTypeSystem
	if entry.ActorID != nil && *entry.ActorID != 0 {
		actorType = auditdomain.ActorTypeUser
	} else {
		entry.ActorID = nil
	}

	payload := map[string]any{}
	for key, value := range entry.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	row := auditdomain.AuditLog{
		ID:        s.genID.Generate(),
		CompanyID: entry.CompanyID,
		ActorType: string(actorType),
		ActorID:   entry.ActorID,
		Action:    action,
		Entity:    entity,
		EntityID:  entry.EntityID.String(),
		Metadata:  datatypes.JSONMap(payload),
		CreatedAt: s.clock.Now(),
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		row.IPAddress = &ip
	}
	if ua := auditcontext.UserAgentFromContext(ctx); ua != "" {
		row.UserAgent = &ua
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entity),
			zap.String("entity_id", row.EntityID),
			zap.Error(err),
		)
		s.metrics.RecordAuditFailure(ctx, action)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, actor identitydomain.Actor, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectAuditLog, authorization.ActionAuditLogView); err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	companyID, _ := actor.Company()

	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	cursor, err := pagination.ParseToken(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}

	var actorID *snowflake.ID
	if raw := strings.TrimSpace(req.ActorID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidActorID
		}
		actorID = &parsed
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		CompanyID: companyID,
		Action:    req.Action,
		Entity:    req.Entity,
		EntityID:  req.EntityID,
		ActorType: req.ActorType,
		ActorID:   actorID,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
		Cursor:    cursor,
		Limit:     limit,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(item *auditdomain.AuditLog) (int64, time.Time) {
		return item.ID.Int64(), item.CreatedAt
	})

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}
