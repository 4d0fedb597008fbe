package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/config"
	"github.com/smallbiznis/procura/internal/distlock"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	invoicedomain "github.com/smallbiznis/procura/internal/invoice/domain"
	"github.com/smallbiznis/procura/internal/notification"
	"github.com/smallbiznis/procura/internal/observability/metrics"
	"github.com/smallbiznis/procura/internal/payment/domain"
	podomain "github.com/smallbiznis/procura/internal/purchaseorder/domain"
	vendordomain "github.com/smallbiznis/procura/internal/vendors/domain"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityPayment     = "payment"
	initiateLockKey   = "procura:payment:initiate:%s"
	supersededMessage = "superseded by a newer payment attempt"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Invoices invoicedomain.Repository
	POs      podomain.Repository
	Vendors  vendordomain.Repository
	Gateway  domain.Gateway
	Locker   *distlock.Locker
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
	invoices invoicedomain.Repository
	pos      podomain.Repository
	vendors  vendordomain.Repository
	gateway  domain.Gateway
	locker   *distlock.Locker
	authz    authorization.Service
	audit    auditdomain.Service
	notifier notification.Notifier
	policy   *config.PolicyHolder
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		invoices: p.Invoices,
		pos:      p.POs,
		vendors:  p.Vendors,
		gateway:  p.Gateway,
		locker:   p.Locker,
		authz:    p.Authz,
		audit:    p.Audit,
		notifier: p.Notifier,
		policy:   p.Policy,
		metrics:  p.Metrics,
	}
}

// Initiate opens a gateway order for a VERIFIED invoice.
// A recent INITIATED payment for the same amount is handed back instead of creating a second order;
// an older one is marked FAILED before the new order is created.
func (s *Service) Initiate(ctx context.Context, actor identitydomain.Actor, invoiceID snowflake.ID) (*domain.InitiateResult, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPayment, authorization.ActionPaymentInitiate); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	invoice, err := s.invoices.FindByID(ctx, companyID, invoiceID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceMissing
	}
	switch invoice.Status {
	case invoicedomain.StatusVerified:
	case invoicedomain.StatusPaid:
		return nil, domain.ErrAlreadyPaid
	default:
		return nil, domain.ErrInvoiceNotVerified
	}

	po, err := s.pos.FindByID(ctx, companyID, invoice.PurchaseOrderID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if po == nil {
		return nil, domain.ErrPurchaseOrderMissing
	}
	if po.Status != podomain.StatusIssued {
		return nil, domain.ErrPONotIssued
	}

	paid, err := s.repo.HasSuccess(ctx, companyID, invoice.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if paid {
		return nil, domain.ErrAlreadyPaid
	}

	policy := s.policy.Get()
	release, err := s.lock(ctx, invoice.ID, policy.PaymentInitiateLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	currency := strings.ToUpper(strings.TrimSpace(invoice.Currency))
	if currency == "" {
		currency = policy.Currency
	}
	amountMinor := invoice.TotalAmount.Round(2).Shift(2).IntPart()
	now := s.clock.Now()

	existing, err := s.repo.LatestInitiated(ctx, companyID, invoice.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if existing != nil {
		if now.Sub(existing.CreatedAt) < policy.PaymentReuseWindow && existing.Amount.Equal(invoice.TotalAmount) {
			s.log.Info("reusing initiated payment",
				zap.String("payment_id", existing.ID.String()),
				zap.String("invoice_id", invoice.ID.String()),
			)
			return &domain.InitiateResult{
				Payment:     existing,
				OrderID:     existing.RazorpayOrderID,
				AmountMinor: amountMinor,
				Currency:    existing.Currency,
				KeyID:       s.gateway.KeyID(),
				Reused:      true,
			}, nil
		}
		actorID := actor.ProfileID
		if err := s.markFailed(ctx, existing, supersededMessage, &actorID); err != nil {
			return nil, err
		}
	}

	paymentID := s.genID.Generate()
	order, err := s.gateway.CreateOrder(ctx, domain.OrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  paymentID.String(),
		Notes: map[string]string{
			"company_id":     companyID.String(),
			"invoice_id":     invoice.ID.String(),
			"invoice_number": invoice.InvoiceNumber,
			"payment_id":     paymentID.String(),
		},
	})
	if err != nil {
		s.metrics.RecordPaymentEvent(ctx, s.gateway.Provider(), "order_failed")
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Internal(err)
	}

	payment := &domain.Payment{
		ID:              paymentID,
		CompanyID:       companyID,
		InvoiceID:       invoice.ID,
		InitiatedByID:   actor.ProfileID,
		Amount:          invoice.TotalAmount,
		Currency:        currency,
		Status:          domain.StatusInitiated,
		RazorpayOrderID: order.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, payment); err != nil {
		s.log.Error("gateway order created but payment row not stored",
			zap.String("order_id", order.ID),
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}

	s.log.Info("payment initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", amountMinor),
	)
	s.metrics.RecordTransition(ctx, entityPayment, "initiate")
	s.metrics.RecordPaymentEvent(ctx, s.gateway.Provider(), "order_created")
	actorID := actor.ProfileID
	s.record(ctx, payment.CompanyID, &actorID, auditdomain.ActionPaymentInitiated, payment.ID, map[string]any{
		"invoice_id":        invoice.ID.String(),
		"razorpay_order_id": order.ID,
		"amount":            payment.Amount.String(),
		"currency":          currency,
	})

	return &domain.InitiateResult{
		Payment:     payment,
		OrderID:     order.ID,
		AmountMinor: amountMinor,
		Currency:    currency,
		KeyID:       s.gateway.KeyID(),
	}, nil
}

func (s *Service) Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.Payment, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPayment, authorization.ActionPaymentView); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()
	return s.find(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, actor identitydomain.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPayment, authorization.ActionPaymentView); err != nil {
		return domain.ListResponse{}, err
	}
	companyID, _ := actor.Company()

	filter := domain.ListFilter{CompanyID: companyID, Limit: req.Limit()}
	if raw := strings.ToUpper(strings.TrimSpace(req.Status)); raw != "" {
		status := domain.Status(raw)
		switch status {
		case domain.StatusInitiated, domain.StatusSuccess, domain.StatusFailed:
			filter.Status = status
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}
	if raw := strings.TrimSpace(req.InvoiceID); raw != "" {
		invoiceID, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidInvoice
		}
		filter.InvoiceID = invoiceID
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
	items, pageInfo := pagination.Trim(items, filter.Limit, func(p *domain.Payment) (int64, time.Time) {
		return p.ID.Int64(), p.CreatedAt
	})

	out := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListResponse{PageInfo: pageInfo, Payments: out}, nil
}

// lock serialises initiation per invoice across processes. Without redis it is a no-op.
func (s *Service) lock(ctx context.Context, invoiceID snowflake.ID, ttl time.Duration) (func(), error) {
	if !s.locker.Enabled() {
		return func() {}, nil
	}
	key := fmt.Sprintf(initiateLockKey, invoiceID.String())
	token, ok, err := s.locker.TryLock(ctx, key, ttl)
	if err != nil {
		return nil, apperror.External("lock_unavailable", "payment lock is unavailable", err)
	}
	if !ok {
		return nil, domain.ErrInitiationInProgress
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("release payment lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// markFailed moves an INITIATED payment to FAILED. A payment that already left INITIATED is left alone.
func (s *Service) markFailed(ctx context.Context, payment *domain.Payment, reason string, actorID *snowflake.ID) error {
	now := s.clock.Now()
	changed, err := s.repo.UpdateWhereStatus(ctx, payment, domain.StatusInitiated, map[string]any{
		"status":         domain.StatusFailed,
		"failure_reason": reason,
		"updated_at":     now,
	})
	if err != nil {
		return apperror.Internal(err)
	}
	if !changed {
		return nil
	}
	payment.Status = domain.StatusFailed
	payment.FailureReason = &reason
	payment.UpdatedAt = now

	s.log.Info("payment failed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reason", reason),
	)
	s.metrics.RecordTransition(ctx, entityPayment, "fail")
	s.record(ctx, payment.CompanyID, actorID, auditdomain.ActionPaymentFailed, payment.ID, map[string]any{
		"invoice_id":        payment.InvoiceID.String(),
		"razorpay_order_id": payment.RazorpayOrderID,
		"reason":            reason,
	})
	return nil
}

func (s *Service) find(ctx context.Context, companyID, id snowflake.ID) (*domain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}
	return payment, nil
}

func (s *Service) record(ctx context.Context, companyID snowflake.ID, actorID *snowflake.ID, action string, paymentID snowflake.ID, metadata map[string]any) {
	_ = s.audit.Record(ctx, auditdomain.Entry{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    entityPayment,
		EntityID:  paymentID,
		Metadata:  metadata,
	})
}
