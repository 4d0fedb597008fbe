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
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/internal/invoice/domain"
	"github.com/smallbiznis/procura/internal/observability/metrics"
	podomain "github.com/smallbiznis/procura/internal/purchaseorder/domain"
	"github.com/smallbiznis/procura/pkg/db"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entityInvoice = "invoice"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	PORepo  podomain.Repository
	Authz   authorization.Service
	Audit   auditdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	poRepo  podomain.Repository
	authz   authorization.Service
	audit   auditdomain.Service
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		poRepo:  p.PORepo,
		authz:   p.Authz,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

// Create records the vendor invoice for an ISSUED purchase order.
// Amount validation runs before any state check so a capped invoice never reaches storage.
func (s *Service) Create(ctx context.Context, actor identitydomain.Actor, req domain.CreateRequest) (*domain.Invoice, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceUpload); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	if req.PurchaseOrderID == 0 {
		return nil, domain.ErrInvalidPurchaseOrder
	}
	number := strings.TrimSpace(req.InvoiceNumber)
	if number == "" {
		return nil, domain.ErrInvalidNumber
	}

	po, err := s.poRepo.FindByID(ctx, companyID, req.PurchaseOrderID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if po == nil {
		return nil, domain.ErrPurchaseOrderMissing
	}

	amounts := domain.Amounts{
		Subtotal:    req.Subtotal,
		CGST:        req.CGST,
		SGST:        req.SGST,
		IGST:        req.IGST,
		TotalAmount: req.TotalAmount,
	}
	if err := domain.ValidateAmounts(amounts, po.TotalAmount); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	invoice := &domain.Invoice{
		ID:              s.genID.Generate(),
		CompanyID:       companyID,
		PurchaseOrderID: po.ID,
		VendorID:        po.VendorID,
		UploadedByID:    actor.ProfileID,
		InvoiceNumber:   number,
		InvoiceDate:     req.InvoiceDate,
		DueDate:         req.DueDate,
		Subtotal:        req.Subtotal,
		CGST:            req.CGST,
		SGST:            req.SGST,
		IGST:            req.IGST,
		TotalAmount:     req.TotalAmount,
		Currency:        po.Currency,
		Status:          domain.StatusUploaded,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if comments := strings.TrimSpace(req.Comments); comments != "" {
		invoice.Comments = &comments
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.poRepo.WithTx(tx).FindByID(ctx, companyID, po.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrPurchaseOrderMissing
		}
		if current.Status != podomain.StatusIssued {
			return domain.ErrPONotIssued
		}

		repo := s.repo.WithTx(tx)
		exists, err := repo.ExistsForPurchaseOrder(ctx, companyID, po.ID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyExists
		}
		taken, err := repo.NumberTaken(ctx, companyID, po.VendorID, number)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrDuplicateNumber
		}
		return repo.Insert(ctx, invoice)
	})
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, apperror.Internal(err)
	}

	s.log.Info("invoice uploaded",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("purchase_order_id", po.ID.String()),
		zap.String("total_amount", invoice.TotalAmount.String()),
	)
	s.metrics.RecordTransition(ctx, entityInvoice, "upload")
	s.record(ctx, actor, auditdomain.ActionInvoiceUploaded, invoice.ID, map[string]any{
		"invoice_number":    invoice.InvoiceNumber,
		"purchase_order_id": po.ID.String(),
		"po_number":         po.PONumber,
		"total_amount":      invoice.TotalAmount.String(),
	})
	return invoice, nil
}

func (s *Service) StartVerification(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.Invoice, error) {
	return s.transition(ctx, actor, id, transitionRule{
		transition: domain.TransitionStartVerification,
		action:     authorization.ActionInvoiceStartVerification,
		audit:      auditdomain.ActionInvoiceVerificationStarted,
	})
}

func (s *Service) Verify(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.Invoice, error) {
	return s.transition(ctx, actor, id, transitionRule{
		transition:    domain.TransitionVerify,
		action:        authorization.ActionInvoiceVerify,
		audit:         auditdomain.ActionInvoiceVerified,
		stampVerifier: true,
	})
}

// MarkMismatch flags a discrepancy. verified_by_id records the last finance actor to adjudicate.
func (s *Service) MarkMismatch(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, comment string) (*domain.Invoice, error) {
	comment = strings.TrimSpace(comment)
	return s.transition(ctx, actor, id, transitionRule{
		transition:    domain.TransitionMismatch,
		action:        authorization.ActionInvoiceMismatch,
		audit:         auditdomain.ActionInvoiceMismatch,
		stampVerifier: true,
		comment:       comment,
		precheck: func(current domain.Status) error {
			if current == domain.StatusVerified {
				return domain.ErrVerifiedLocked
			}
			if comment == "" {
				return domain.ErrCommentRequired
			}
			return nil
		},
	})
}

func (s *Service) Reject(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, reason string) (*domain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, actor, id, transitionRule{
		transition:    domain.TransitionReject,
		action:        authorization.ActionInvoiceReject,
		audit:         auditdomain.ActionInvoiceRejected,
		stampVerifier: true,
		comment:       reason,
		precheck: func(domain.Status) error {
			if reason == "" {
				return domain.ErrCommentRequired
			}
			return nil
		},
	})
}

func (s *Service) Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.Invoice, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceView); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()
	return s.find(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, actor identitydomain.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, authorization.ActionInvoiceView); err != nil {
		return domain.ListResponse{}, err
	}
	companyID, _ := actor.Company()

	filter := domain.ListFilter{CompanyID: companyID, Limit: req.Limit()}
	if raw := strings.ToUpper(strings.TrimSpace(req.Status)); raw != "" {
		status := domain.Status(raw)
		switch status {
		case domain.StatusUploaded, domain.StatusUnderVerification, domain.StatusVerified,
			domain.StatusMismatch, domain.StatusRejected, domain.StatusPaid:
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
	items, pageInfo := pagination.Trim(items, filter.Limit, func(inv *domain.Invoice) (int64, time.Time) {
		return inv.ID.Int64(), inv.CreatedAt
	})

	out := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListResponse{PageInfo: pageInfo, Invoices: out}, nil
}

type transitionRule struct {
	transition    domain.Transition
	action        string
	audit         string
	stampVerifier bool
	comment       string
	precheck      func(current domain.Status) error
}

func (s *Service) transition(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, rule transitionRule) (*domain.Invoice, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectInvoice, rule.action); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	invoice, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	from := invoice.Status
	if rule.precheck != nil {
		if err := rule.precheck(from); err != nil {
			return nil, err
		}
	}
	next, ok := domain.Next(from, rule.transition)
	if !ok {
		return nil, domain.ErrInvalidTransition(rule.transition, from)
	}

	now := s.clock.Now()
	fields := map[string]any{
		"status":     next,
		"updated_at": now,
	}
	if rule.stampVerifier {
		verifier := actor.ProfileID
		invoice.VerifiedByID = &verifier
		invoice.VerifiedAt = &now
		fields["verified_by_id"] = verifier
		fields["verified_at"] = now
	}
	if rule.comment != "" {
		comment := rule.comment
		invoice.Comments = &comment
		fields["comments"] = comment
	}

	changed, err := s.repo.UpdateWhereStatus(ctx, invoice, from, fields)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !changed {
		return nil, domain.ErrConcurrentTransition
	}
	invoice.Status = next
	invoice.UpdatedAt = now

	s.log.Info("invoice transitioned",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	s.metrics.RecordTransition(ctx, entityInvoice, string(rule.transition))

	metadata := map[string]any{
		"from": string(from),
		"to":   string(next),
	}
	if rule.comment != "" {
		metadata["comment"] = rule.comment
	}
	s.record(ctx, actor, rule.audit, invoice.ID, metadata)
	return invoice, nil
}

func (s *Service) find(ctx context.Context, companyID, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) record(ctx context.Context, actor identitydomain.Actor, action string, invoiceID snowflake.ID, metadata map[string]any) {
	companyID, _ := actor.Company()
	actorID := actor.ProfileID
	_ = s.audit.Record(ctx, auditdomain.Entry{
		CompanyID: companyID,
		ActorID:   &actorID,
		Action:    action,
		Entity:    entityInvoice,
		EntityID:  invoiceID,
		Metadata:  metadata,
	})
}
