package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/config"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/internal/notification"
	"github.com/smallbiznis/procura/internal/observability/metrics"
	"github.com/smallbiznis/procura/internal/purchaseorder/domain"
	prdomain "github.com/smallbiznis/procura/internal/purchaserequest/domain"
	vendordomain "github.com/smallbiznis/procura/internal/vendors/domain"
	"github.com/smallbiznis/procura/pkg/db"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entityPurchaseOrder = "purchase_order"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	PRRepo   prdomain.Repository
	Vendors  vendordomain.Repository
	Numbers  domain.NumberGenerator
	Authz    authorization.Service
	Audit    auditdomain.Service
	Notifier notification.Notifier
	Policy   *config.PolicyHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	prRepo   prdomain.Repository
	vendors  vendordomain.Repository
	numbers  domain.NumberGenerator
	authz    authorization.Service
	audit    auditdomain.Service
	notifier notification.Notifier
	policy   *config.PolicyHolder
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("purchaseorder.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		prRepo:   p.PRRepo,
		vendors:  p.Vendors,
		numbers:  p.Numbers,
		authz:    p.Authz,
		audit:    p.Audit,
		notifier: p.Notifier,
		policy:   p.Policy,
		metrics:  p.Metrics,
	}
}

// Create converts an APPROVED purchase request into a DRAFT purchase order.
// The unique index on purchase_request_id decides concurrent creators; a PO number
// collision is retried with a fresh candidate up to the configured bound.
func (s *Service) Create(ctx context.Context, actor identitydomain.Actor, req domain.CreateRequest) (*domain.PurchaseOrder, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseOrder, authorization.ActionPurchaseOrderCreate); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()
	if req.PurchaseRequestID == 0 {
		return nil, domain.ErrInvalidPurchaseRequest
	}

	policy := s.policy.Get()
	attempts := policy.PONumberMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		now := s.clock.Now()
		po := &domain.PurchaseOrder{
			ID:                s.genID.Generate(),
			CompanyID:         companyID,
			PurchaseRequestID: req.PurchaseRequestID,
			CreatedByID:       actor.ProfileID,
			PONumber:          s.numbers.Next(now),
			Currency:          policy.Currency,
			Status:            domain.StatusDraft,
			PaymentTerms:      strings.TrimSpace(req.PaymentTerms),
			Notes:             strings.TrimSpace(req.Notes),
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			pr, err := s.prRepo.WithTx(tx).FindByID(ctx, companyID, req.PurchaseRequestID)
			if err != nil {
				return err
			}
			if pr == nil {
				return domain.ErrPurchaseRequestMissing
			}
			if pr.Status != prdomain.StatusApproved {
				return domain.ErrNotApproved
			}

			repo := s.repo.WithTx(tx)
			exists, err := repo.ExistsForPurchaseRequest(ctx, companyID, pr.ID)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrAlreadyExists
			}
			if pr.PreferredVendorID == nil || *pr.PreferredVendorID == 0 {
				return domain.ErrVendorRequired
			}

			po.VendorID = *pr.PreferredVendorID
			po.TotalAmount = pr.EstimatedCost
			return repo.Insert(ctx, po)
		})
		if err == nil {
			s.log.Info("purchase order created",
				zap.String("purchase_order_id", po.ID.String()),
				zap.String("po_number", po.PONumber),
				zap.Int("attempt", attempt),
			)
			s.metrics.RecordTransition(ctx, entityPurchaseOrder, "create")
			s.record(ctx, actor, auditdomain.ActionCreatePO, po.ID, map[string]any{
				"po_number":           po.PONumber,
				"purchase_request_id": po.PurchaseRequestID.String(),
				"total_amount":        po.TotalAmount.String(),
			})
			return po, nil
		}
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, apperror.Internal(err)
		}

		exists, findErr := s.repo.ExistsForPurchaseRequest(ctx, companyID, req.PurchaseRequestID)
		if findErr != nil {
			return nil, apperror.Internal(findErr)
		}
		if exists {
			return nil, domain.ErrAlreadyExists
		}
		s.log.Warn("po number collision, retrying",
			zap.String("po_number", po.PONumber),
			zap.Int("attempt", attempt),
		)
	}
	return nil, domain.ErrNumberExhausted
}

func (s *Service) Edit(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, patch domain.EditRequest) (*domain.PurchaseOrder, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseOrder, authorization.ActionPurchaseOrderEdit); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	po, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if po.Status != domain.StatusDraft {
		return nil, domain.ErrNotEditable
	}

	fields := map[string]any{}
	if patch.PaymentTerms != nil {
		po.PaymentTerms = strings.TrimSpace(*patch.PaymentTerms)
		fields["payment_terms"] = po.PaymentTerms
	}
	if patch.Notes != nil {
		po.Notes = strings.TrimSpace(*patch.Notes)
		fields["notes"] = po.Notes
	}
	if len(fields) == 0 {
		return po, nil
	}

	po.UpdatedAt = s.clock.Now()
	fields["updated_at"] = po.UpdatedAt
	changed, err := s.repo.UpdateWhereStatus(ctx, po, domain.StatusDraft, fields)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !changed {
		return nil, domain.ErrNotEditable
	}

	metadata := map[string]any{}
	if patch.PaymentTerms != nil {
		metadata["payment_terms"] = po.PaymentTerms
	}
	if patch.Notes != nil {
		metadata["notes"] = po.Notes
	}
	s.record(ctx, actor, auditdomain.ActionUpdatePO, po.ID, metadata)
	return po, nil
}

// Issue moves a DRAFT PO to ISSUED and notifies the vendor without waiting on delivery.
func (s *Service) Issue(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.PurchaseOrder, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseOrder, authorization.ActionPurchaseOrderIssue); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	po, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if po.Status != domain.StatusDraft {
		return nil, domain.ErrNotIssuable
	}

	now := s.clock.Now()
	issuedBy := actor.ProfileID
	changed, err := s.repo.UpdateWhereStatus(ctx, po, domain.StatusDraft, map[string]any{
		"status":       domain.StatusIssued,
		"issued_by_id": issuedBy,
		"issued_at":    now,
		"updated_at":   now,
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !changed {
		return nil, domain.ErrNotIssuable
	}
	po.Status = domain.StatusIssued
	po.IssuedByID = &issuedBy
	po.IssuedAt = &now
	po.UpdatedAt = now

	s.metrics.RecordTransition(ctx, entityPurchaseOrder, "issue")
	s.record(ctx, actor, auditdomain.ActionIssuePO, po.ID, map[string]any{
		"po_number": po.PONumber,
		"vendor_id": po.VendorID.String(),
	})
	s.notifyVendor(ctx, po)
	return po, nil
}

func (s *Service) Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.PurchaseOrder, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseOrder, authorization.ActionPurchaseOrderView); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()
	return s.find(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, actor identitydomain.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPurchaseOrder, authorization.ActionPurchaseOrderView); err != nil {
		return domain.ListResponse{}, err
	}
	companyID, _ := actor.Company()

	filter := domain.ListFilter{CompanyID: companyID, Limit: req.Limit()}
	if raw := strings.ToUpper(strings.TrimSpace(req.Status)); raw != "" {
		status := domain.Status(raw)
		switch status {
		case domain.StatusDraft, domain.StatusIssued, domain.StatusCancelled:
			filter.Status = status
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}
	if raw := strings.TrimSpace(req.VendorID); raw != "" {
		vendorID, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidVendor
		}
		filter.VendorID = vendorID
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
	items, pageInfo := pagination.Trim(items, filter.Limit, func(po *domain.PurchaseOrder) (int64, time.Time) {
		return po.ID.Int64(), po.CreatedAt
	})

	out := make([]domain.PurchaseOrder, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListResponse{PageInfo: pageInfo, PurchaseOrders: out}, nil
}

func (s *Service) notifyVendor(ctx context.Context, po *domain.PurchaseOrder) {
	vendor, err := s.vendors.FindByID(ctx, po.CompanyID, po.VendorID)
	if err != nil || vendor == nil {
		s.log.Warn("skipping vendor notification, vendor not loaded",
			zap.String("purchase_order_id", po.ID.String()),
			zap.Error(err),
		)
		return
	}

	title := po.PONumber
	if pr, err := s.prRepo.FindByID(ctx, po.CompanyID, po.PurchaseRequestID); err == nil && pr != nil {
		title = pr.Title
	}

	s.notifier.PurchaseOrderIssued(ctx, notification.PurchaseOrderNotice{
		CompanyID:    po.CompanyID,
		PONumber:     po.PONumber,
		Title:        title,
		Vendor:       notification.ContactOf(vendor),
		Currency:     po.Currency,
		TotalAmount:  po.TotalAmount,
		PaymentTerms: po.PaymentTerms,
		Notes:        po.Notes,
		IssuedAt:     *po.IssuedAt,
	})
}

func (s *Service) find(ctx context.Context, companyID, id snowflake.ID) (*domain.PurchaseOrder, error) {
	po, err := s.repo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if po == nil {
		return nil, domain.ErrNotFound
	}
	return po, nil
}

func (s *Service) record(ctx context.Context, actor identitydomain.Actor, action string, poID snowflake.ID, metadata map[string]any) {
	companyID, _ := actor.Company()
	actorID := actor.ProfileID
	_ = s.audit.Record(ctx, auditdomain.Entry{
		CompanyID: companyID,
		ActorID:   &actorID,
		Action:    action,
		Entity:    entityPurchaseOrder,
		EntityID:  poID,
		Metadata:  metadata,
	})
}
