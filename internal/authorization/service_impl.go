package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectCompany         = "company"
	ObjectMember          = "member"
	ObjectVendor          = "vendor"
	ObjectPurchaseRequest = "purchase_request"
	ObjectPurchaseOrder   = "purchase_order"
	ObjectInvoice         = "invoice"
	ObjectPayment         = "payment"
	ObjectAuditLog        = "audit_log"
)

const (
	ActionCompanyView = "company.view"

	ActionMemberView   = "member.view"
	ActionMemberInvite = "member.invite"

	ActionVendorView   = "vendor.view"
	ActionVendorCreate = "vendor.create"
	ActionVendorUpdate = "vendor.update"
	ActionVendorToggle = "vendor.toggle"

	ActionPurchaseRequestView    = "purchase_request.view"
	ActionPurchaseRequestCreate  = "purchase_request.create"
	ActionPurchaseRequestEdit    = "purchase_request.edit"
	ActionPurchaseRequestSubmit  = "purchase_request.submit"
	ActionPurchaseRequestReview  = "purchase_request.review"
	ActionPurchaseRequestApprove = "purchase_request.approve"
	ActionPurchaseRequestReject  = "purchase_request.reject"

	ActionPurchaseOrderView   = "purchase_order.view"
	ActionPurchaseOrderCreate = "purchase_order.create"
	ActionPurchaseOrderEdit   = "purchase_order.edit"
	ActionPurchaseOrderIssue  = "purchase_order.issue"

	ActionInvoiceView              = "invoice.view"
	ActionInvoiceUpload            = "invoice.upload"
	ActionInvoiceStartVerification = "invoice.start_verification"
	ActionInvoiceVerify            = "invoice.verify"
	ActionInvoiceMismatch          = "invoice.mismatch"
	ActionInvoiceReject            = "invoice.reject"

	ActionPaymentView     = "payment.view"
	ActionPaymentInitiate = "payment.initiate"
	ActionPaymentConfirm  = "payment.confirm"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the role table from casbin_rule, seeding the built-in policies.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Permits(role identitydomain.Role, object string, action string) bool {
	if role == "" {
		return false
	}
	allowed, err := s.enforcer.Enforce(subject(role), strings.TrimSpace(object), strings.TrimSpace(action))
	if err != nil {
		s.log.Error("policy evaluation failed", zap.String("action", action), zap.Error(err))
		return false
	}
	return allowed
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor identitydomain.Actor, object string, action string) error {
	if _, err := actor.Company(); err != nil {
		return err
	}
	if !s.Permits(actor.Role, object, action) {
		return apperror.Forbidden("forbidden", fmt.Sprintf("Role %s is not allowed to perform %s", actor.Role, action))
	}
	return nil
}

func subject(role identitydomain.Role) string {
	return "role:" + strings.ToLower(string(role))
}

// DefaultPolicies is the action-to-role table.
func DefaultPolicies() [][]string {
	admin := subject(identitydomain.RoleAdmin)
	procurement := subject(identitydomain.RoleProcurement)
	manager := subject(identitydomain.RoleManager)
	finance := subject(identitydomain.RoleFinance)
	everyone := []string{admin, procurement, manager, finance}

	policies := [][]string{
		{admin, ObjectMember, ActionMemberInvite},
		{admin, ObjectAuditLog, ActionAuditLogView},

		{admin, ObjectVendor, ActionVendorCreate},
		{procurement, ObjectVendor, ActionVendorCreate},
		{admin, ObjectVendor, ActionVendorUpdate},
		{procurement, ObjectVendor, ActionVendorUpdate},
		{admin, ObjectVendor, ActionVendorToggle},

		{admin, ObjectPurchaseRequest, ActionPurchaseRequestCreate},
		{procurement, ObjectPurchaseRequest, ActionPurchaseRequestCreate},
		{admin, ObjectPurchaseRequest, ActionPurchaseRequestSubmit},
		{procurement, ObjectPurchaseRequest, ActionPurchaseRequestSubmit},
		{admin, ObjectPurchaseRequest, ActionPurchaseRequestReview},
		{manager, ObjectPurchaseRequest, ActionPurchaseRequestReview},
		{admin, ObjectPurchaseRequest, ActionPurchaseRequestApprove},
		{manager, ObjectPurchaseRequest, ActionPurchaseRequestApprove},
		{admin, ObjectPurchaseRequest, ActionPurchaseRequestReject},
		{manager, ObjectPurchaseRequest, ActionPurchaseRequestReject},

		{admin, ObjectPurchaseOrder, ActionPurchaseOrderCreate},
		{procurement, ObjectPurchaseOrder, ActionPurchaseOrderCreate},
		{admin, ObjectPurchaseOrder, ActionPurchaseOrderEdit},
		{procurement, ObjectPurchaseOrder, ActionPurchaseOrderEdit},
		{admin, ObjectPurchaseOrder, ActionPurchaseOrderIssue},

		{admin, ObjectInvoice, ActionInvoiceUpload},
		{finance, ObjectInvoice, ActionInvoiceStartVerification},
		{finance, ObjectInvoice, ActionInvoiceVerify},
		{finance, ObjectInvoice, ActionInvoiceMismatch},
		{finance, ObjectInvoice, ActionInvoiceReject},

		{finance, ObjectPayment, ActionPaymentInitiate},
		{finance, ObjectPayment, ActionPaymentConfirm},
	}

	// PR edit is gated by ownership in the engine; every member may attempt it.
	for _, role := range everyone {
		policies = append(policies,
			[]string{role, ObjectCompany, ActionCompanyView},
			[]string{role, ObjectMember, ActionMemberView},
			[]string{role, ObjectVendor, ActionVendorView},
			[]string{role, ObjectPurchaseRequest, ActionPurchaseRequestView},
			[]string{role, ObjectPurchaseRequest, ActionPurchaseRequestEdit},
			[]string{role, ObjectPurchaseOrder, ActionPurchaseOrderView},
			[]string{role, ObjectInvoice, ActionInvoiceView},
			[]string{role, ObjectPayment, ActionPaymentView},
		)
	}
	return policies
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, policy := range DefaultPolicies() {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
