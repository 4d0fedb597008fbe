package service

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/config"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/internal/observability/metrics"
	"github.com/smallbiznis/procura/internal/purchaserequest/domain"
	vendordomain "github.com/smallbiznis/procura/internal/vendors/domain"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entityPurchaseRequest = "purchase_request"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Vendors vendordomain.Service
	Authz   authorization.Service
	Audit   auditdomain.Service
	Policy  *config.PolicyHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	vendors vendordomain.Service
	authz   authorization.Service
	audit   auditdomain.Service
	policy  *config.PolicyHolder
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("purchaserequest.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		vendors: p.Vendors,
		authz:   p.Authz,
		audit:   p.Audit,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, actor identitydomain.Actor, req domain.CreateRequest) (*domain.PurchaseRequest, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseRequest, authorization.ActionPurchaseRequestCreate); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	priority, ok := domain.ParsePriority(strings.ToUpper(strings.TrimSpace(req.Priority)))
	if !ok {
		return nil, domain.ErrInvalidPriority
	}

	now := s.clock.Now()
	pr := &domain.PurchaseRequest{
		ID:                s.genID.Generate(),
		CompanyID:         companyID,
		CreatedByID:       actor.ProfileID,
		Title:             strings.TrimSpace(req.Title),
		Description:       strings.TrimSpace(req.Description),
		Department:        strings.TrimSpace(req.Department),
		Priority:          priority,
		EstimatedCost:     req.EstimatedCost.Round(2),
		BudgetCategory:    strings.TrimSpace(req.BudgetCategory),
		RequiredBy:        req.RequiredBy,
		PreferredVendorID: req.PreferredVendorID,
		Status:            domain.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.Submit {
		pr.Status = domain.StatusSubmitted
		pr.SubmittedAt = &now
	}

	if err := validate(pr); err != nil {
		return nil, err
	}
	if err := s.checkVendor(ctx, companyID, pr.PreferredVendorID); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, pr); err != nil {
		return nil, apperror.Internal(err)
	}

	s.metrics.RecordTransition(ctx, entityPurchaseRequest, "create")
	s.record(ctx, actor, auditdomain.ActionCreatePR, pr.ID, map[string]any{
		"title":          pr.Title,
		"status":         string(pr.Status),
		"estimated_cost": pr.EstimatedCost.String(),
	})
	if req.Submit {
		s.metrics.RecordTransition(ctx, entityPurchaseRequest, string(domain.TransitionSubmit))
		s.record(ctx, actor, auditdomain.ActionSubmitPR, pr.ID, map[string]any{
			"from": string(domain.StatusDraft),
			"to":   string(domain.StatusSubmitted),
		})
	}
	return pr, nil
}

func (s *Service) Edit(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, patch domain.EditRequest) (*domain.PurchaseRequest, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseRequest, authorization.ActionPurchaseRequestEdit); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	pr, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsProfile(pr.CreatedByID) && actor.Role != identitydomain.RoleAdmin {
		return nil, domain.ErrEditForbidden
	}
	if pr.Status != domain.StatusDraft {
		return nil, domain.ErrNotEditable
	}

	fields := map[string]any{}
	if patch.Title != nil {
		pr.Title = strings.TrimSpace(*patch.Title)
		fields["title"] = pr.Title
	}
	if patch.Description != nil {
		pr.Description = strings.TrimSpace(*patch.Description)
		fields["description"] = pr.Description
	}
	if patch.Department != nil {
		pr.Department = strings.TrimSpace(*patch.Department)
		fields["department"] = pr.Department
	}
	if patch.Priority != nil {
		priority, ok := domain.ParsePriority(strings.ToUpper(strings.TrimSpace(*patch.Priority)))
		if !ok {
			return nil, domain.ErrInvalidPriority
		}
		pr.Priority = priority
		fields["priority"] = pr.Priority
	}
	if patch.EstimatedCost != nil {
		pr.EstimatedCost = patch.EstimatedCost.Round(2)
		fields["estimated_cost"] = pr.EstimatedCost
	}
	if patch.BudgetCategory != nil {
		pr.BudgetCategory = strings.TrimSpace(*patch.BudgetCategory)
		fields["budget_category"] = pr.BudgetCategory
	}
	if patch.RequiredBy != nil {
		pr.RequiredBy = patch.RequiredBy
		fields["required_by"] = pr.RequiredBy
	}
	if patch.PreferredVendorID != nil {
		if err := s.checkVendor(ctx, companyID, patch.PreferredVendorID); err != nil {
			return nil, err
		}
		pr.PreferredVendorID = patch.PreferredVendorID
		fields["preferred_vendor_id"] = pr.PreferredVendorID
	}
	if err := validate(pr); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return pr, nil
	}

	pr.UpdatedAt = s.clock.Now()
	fields["updated_at"] = pr.UpdatedAt
	changed, err := s.repo.UpdateStatus(ctx, pr, domain.StatusDraft, fields)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !changed {
		return nil, domain.ErrNotEditable
	}

	s.record(ctx, actor, auditdomain.ActionUpdatePR, pr.ID, map[string]any{"fields": fieldNames(fields)})
	return pr, nil
}

func (s *Service) Submit(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.PurchaseRequest, error) {
	return s.transition(ctx, actor, id, transitionRule{
		transition: domain.TransitionSubmit,
		action:     authorization.ActionPurchaseRequestSubmit,
		audit:      auditdomain.ActionSubmitPR,
		apply: func(pr *domain.PurchaseRequest, now time.Time, fields map[string]any) {
			pr.SubmittedAt = &now
			fields["submitted_at"] = now
		},
	})
}

func (s *Service) Review(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.PurchaseRequest, error) {
	return s.transition(ctx, actor, id, transitionRule{
		transition: domain.TransitionReview,
		action:     authorization.ActionPurchaseRequestReview,
		audit:      auditdomain.ActionReviewPR,
	})
}

func (s *Service) Approve(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, comment string) (*domain.PurchaseRequest, error) {
	comment = strings.TrimSpace(comment)
	return s.transition(ctx, actor, id, transitionRule{
		transition:      domain.TransitionApprove,
		action:          authorization.ActionPurchaseRequestApprove,
		audit:           auditdomain.ActionApprovePR,
		forbidOwnRecord: true,
		apply: func(pr *domain.PurchaseRequest, now time.Time, fields map[string]any) {
			pr.DecidedAt = &now
			fields["decided_at"] = now
		},
		approval: func(now time.Time) *domain.Approval {
			approval := &domain.Approval{Status: domain.ApprovalApproved, ApprovedAt: &now}
			if comment != "" {
				approval.Comment = &comment
			}
			return approval
		},
	})
}

func (s *Service) Reject(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, reason string) (*domain.PurchaseRequest, error) {
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, actor, id, transitionRule{
		transition:      domain.TransitionReject,
		action:          authorization.ActionPurchaseRequestReject,
		audit:           auditdomain.ActionRejectPR,
		forbidOwnRecord: true,
		precheck: func() error {
			minLen := s.policy.Get().MinRejectionReasonLen
			if utf8.RuneCountInString(reason) < minLen {
				return domain.ErrReasonTooShort(minLen)
			}
			return nil
		},
		apply: func(pr *domain.PurchaseRequest, now time.Time, fields map[string]any) {
			pr.RejectionReason = &reason
			pr.DecidedAt = &now
			fields["rejection_reason"] = reason
			fields["decided_at"] = now
		},
		approval: func(now time.Time) *domain.Approval {
			return &domain.Approval{Status: domain.ApprovalRejected, Comment: &reason}
		},
		metadata: map[string]any{"reason": reason},
	})
}

func (s *Service) Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.PurchaseRequest, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseRequest, authorization.ActionPurchaseRequestView); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()
	return s.find(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, actor identitydomain.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseRequest, authorization.ActionPurchaseRequestView); err != nil {
		return domain.ListResponse{}, err
	}
	companyID, _ := actor.Company()

	filter := domain.ListFilter{CompanyID: companyID, Limit: req.Limit()}
	if raw := strings.ToUpper(strings.TrimSpace(req.Status)); raw != "" {
		status := domain.Status(raw)
		switch status {
		case domain.StatusDraft, domain.StatusSubmitted, domain.StatusUnderReview, domain.StatusApproved, domain.StatusRejected:
			filter.Status = status
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}
	if req.Mine {
		filter.CreatedByID = actor.ProfileID
	}
	cursor, err := pagination.ParseToken(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, domain.ErrInvalidPageToken
	}
	filter.Cursor = cursor

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.ListResponse{}, apperror.Internal(err)
	}
	items, pageInfo := pagination.Trim(items, filter.Limit, func(pr *domain.PurchaseRequest) (int64, time.Time) {
		return pr.ID.Int64(), pr.CreatedAt
	})

	out := make([]domain.PurchaseRequest, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListResponse{PageInfo: pageInfo, PurchaseRequests: out}, nil
}

func (s *Service) ListApprovals(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) ([]domain.Approval, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseRequest, authorization.ActionPurchaseRequestView); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	if _, err := s.find(ctx, companyID, id); err != nil {
		return nil, err
	}
	approvals, err := s.repo.ListApprovals(ctx, companyID, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return approvals, nil
}

type transitionRule struct {
	transition domain.Transition
	action     string
	audit      string
	// forbidOwnRecord blocks the creator from deciding their own request.
	forbidOwnRecord bool
	precheck        func() error
	apply           func(pr *domain.PurchaseRequest, now time.Time, fields map[string]any)
	approval        func(now time.Time) *domain.Approval
	metadata        map[string]any
}

// transition applies one state change: status, dependent fields and the approval row commit together.
func (s *Service) transition(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, rule transitionRule) (*domain.PurchaseRequest, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseRequest, rule.action); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	pr, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if rule.forbidOwnRecord && actor.IsProfile(pr.CreatedByID) {
		return nil, domain.ErrSelfApproval
	}

	from := pr.Status
	next, ok := domain.Next(from, rule.transition)
	if !ok {
		return nil, domain.ErrInvalidTransition(rule.transition, from)
	}
	if rule.precheck != nil {
		if err := rule.precheck(); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	pr.Status = next
	pr.UpdatedAt = now
	fields := map[string]any{
		"status":     next,
		"updated_at": now,
	}
	if rule.apply != nil {
		rule.apply(pr, now, fields)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		changed, err := repo.UpdateStatus(ctx, pr, from, fields)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrConcurrentTransition
		}
		if rule.approval == nil {
			return nil
		}
		approval := rule.approval(now)
		approval.ID = s.genID.Generate()
		approval.CompanyID = companyID
		approval.PurchaseRequestID = pr.ID
		approval.ApproverID = actor.ProfileID
		approval.CreatedAt = now
		return repo.InsertApproval(ctx, approval)
	})
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Internal(err)
	}

	s.log.Info("purchase request transitioned",
		zap.String("purchase_request_id", pr.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	s.metrics.RecordTransition(ctx, entityPurchaseRequest, string(rule.transition))

	metadata := map[string]any{"from": string(from), "to": string(next)}
	for key, value := range rule.metadata {
		metadata[key] = value
	}
	s.record(ctx, actor, rule.audit, pr.ID, metadata)
	return pr, nil
}

func (s *Service) find(ctx context.Context, companyID, id snowflake.ID) (*domain.PurchaseRequest, error) {
	pr, err := s.repo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if pr == nil {
		return nil, domain.ErrNotFound
	}
	return pr, nil
}

func (s *Service) checkVendor(ctx context.Context, companyID snowflake.ID, vendorID *snowflake.ID) error {
	if vendorID == nil || *vendorID == 0 {
		return nil
	}
	_, err := s.vendors.RequireSelectable(ctx, companyID, *vendorID)
	return err
}

func (s *Service) record(ctx context.Context, actor identitydomain.Actor, action string, prID snowflake.ID, metadata map[string]any) {
	companyID, _ := actor.Company()
	actorID := actor.ProfileID
	_ = s.audit.Record(ctx, auditdomain.Entry{
		CompanyID: companyID,
		ActorID:   &actorID,
		Action:    action,
		Entity:    entityPurchaseRequest,
		EntityID:  prID,
		Metadata:  metadata,
	})
}

func validate(pr *domain.PurchaseRequest) error {
	if pr.Title == "" {
		return domain.ErrInvalidTitle
	}
	if pr.Department == "" {
		return domain.ErrInvalidDepartment
	}
	if !pr.EstimatedCost.IsPositive() {
		return domain.ErrInvalidCost
	}
	return nil
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if name == "updated_at" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
