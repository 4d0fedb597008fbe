// Package testenv wires the procurement services over an in-memory database for service tests.
package testenv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	auditrepository "github.com/smallbiznis/procura/internal/audit/repository"
	auditservice "github.com/smallbiznis/procura/internal/audit/service"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	companydomain "github.com/smallbiznis/procura/internal/company/domain"
	companyrepository "github.com/smallbiznis/procura/internal/company/repository"
	companyservice "github.com/smallbiznis/procura/internal/company/service"
	"github.com/smallbiznis/procura/internal/config"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	identityrepository "github.com/smallbiznis/procura/internal/identity/repository"
	identityservice "github.com/smallbiznis/procura/internal/identity/service"
	invoicedomain "github.com/smallbiznis/procura/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/procura/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/procura/internal/invoice/service"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/procura/internal/payment/repository"
	paymentservice "github.com/smallbiznis/procura/internal/payment/service"
	podomain "github.com/smallbiznis/procura/internal/purchaseorder/domain"
	porepository "github.com/smallbiznis/procura/internal/purchaseorder/repository"
	poservice "github.com/smallbiznis/procura/internal/purchaseorder/service"
	prdomain "github.com/smallbiznis/procura/internal/purchaserequest/domain"
	prrepository "github.com/smallbiznis/procura/internal/purchaserequest/repository"
	prservice "github.com/smallbiznis/procura/internal/purchaserequest/service"
	"github.com/smallbiznis/procura/internal/testutil/dbtest"
	vendordomain "github.com/smallbiznis/procura/internal/vendors/domain"
	vendorrepository "github.com/smallbiznis/procura/internal/vendors/repository"
	vendorservice "github.com/smallbiznis/procura/internal/vendors/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var epoch = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

type Env struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Node     *snowflake.Node
	Clock    *clock.FakeClock
	Policy   *config.PolicyHolder
	Notifier *RecordingNotifier
	Gateway  *FakeGateway

	Authz    authorization.Service
	Audit    auditdomain.Service
	Identity identitydomain.Service
	Company  companydomain.Service
	Vendors  vendordomain.Service
	PRs      prdomain.Service
	POs      podomain.Service
	Invoices invoicedomain.Service
	Payments paymentdomain.Service

	AuditRepo   auditdomain.Repository
	VendorRepo  vendordomain.Repository
	PRRepo      prdomain.Repository
	PORepo      podomain.Repository
	InvoiceRepo invoicedomain.Repository
	PaymentRepo paymentdomain.Repository
}

type Option func(*options)

type options struct {
	log     *zap.Logger
	numbers podomain.NumberGenerator
	policy  *config.ProcurementPolicy
	audit   auditdomain.Service
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithNumberGenerator(gen podomain.NumberGenerator) Option {
	return func(o *options) { o.numbers = gen }
}

func WithPolicy(policy config.ProcurementPolicy) Option {
	return func(o *options) { o.policy = &policy }
}

// WithAudit replaces the audit recorder handed to the lifecycle services.
func WithAudit(svc auditdomain.Service) Option {
	return func(o *options) { o.audit = svc }
}

func New(t testing.TB, opts ...Option) *Env {
	t.Helper()
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	policy := config.DefaultProcurementPolicy()
	if o.policy != nil {
		policy = *o.policy
	}

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(epoch)

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: o.log, Enforcer: enforcer})

	env := &Env{
		DB:       db,
		Log:      o.log,
		Node:     node,
		Clock:    clk,
		Policy:   config.NewStaticPolicyHolder(policy),
		Notifier: &RecordingNotifier{},
		Gateway:  NewFakeGateway(),
		Authz:    authz,

		AuditRepo:   auditrepository.Provide(),
		VendorRepo:  vendorrepository.NewRepository(db),
		PRRepo:      prrepository.NewRepository(db),
		PORepo:      porepository.NewRepository(db),
		InvoiceRepo: invoicerepository.NewRepository(db),
		PaymentRepo: paymentrepository.NewRepository(db),
	}

	env.Audit = auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   o.log,
		GenID: node,
		Clock: clk,
		Repo:  env.AuditRepo,
		Authz: authz,
	})
	recorder := env.Audit
	if o.audit != nil {
		recorder = o.audit
	}

	env.Identity = identityservice.NewService(identityservice.Params{
		DB:    db,
		Log:   o.log,
		GenID: node,
		Clock: clk,
		Repo:  identityrepository.NewRepository(db),
	})
	env.Company = companyservice.NewService(companyservice.Params{
		DB:       db,
		Log:      o.log,
		GenID:    node,
		Clock:    clk,
		Repo:     companyrepository.NewRepository(db),
		Authz:    authz,
		Audit:    recorder,
		Notifier: env.Notifier,
		Policy:   env.Policy,
	})
	env.Vendors = vendorservice.NewService(vendorservice.Params{
		Log:   o.log,
		GenID: node,
		Clock: clk,
		Repo:  env.VendorRepo,
		Authz: authz,
		Audit: recorder,
	})
	env.PRs = prservice.NewService(prservice.Params{
		DB:      db,
		Log:     o.log,
		GenID:   node,
		Clock:   clk,
		Repo:    env.PRRepo,
		Vendors: env.Vendors,
		Authz:   authz,
		Audit:   recorder,
		Policy:  env.Policy,
	})

	numbers := o.numbers
	if numbers == nil {
		numbers = podomain.NewNumberGenerator()
	}
	env.POs = poservice.NewService(poservice.Params{
		DB:       db,
		Log:      o.log,
		GenID:    node,
		Clock:    clk,
		Repo:     env.PORepo,
		PRRepo:   env.PRRepo,
		Vendors:  env.VendorRepo,
		Numbers:  numbers,
		Authz:    authz,
		Audit:    recorder,
		Notifier: env.Notifier,
		Policy:   env.Policy,
	})
	env.Invoices = invoiceservice.NewService(invoiceservice.Params{
		DB:     db,
		Log:    o.log,
		GenID:  node,
		Clock:  clk,
		Repo:   env.InvoiceRepo,
		PORepo: env.PORepo,
		Authz:  authz,
		Audit:  recorder,
	})
	env.Payments = paymentservice.NewService(paymentservice.Params{
		DB:       db,
		Log:      o.log,
		GenID:    node,
		Clock:    clk,
		Repo:     env.PaymentRepo,
		Invoices: env.InvoiceRepo,
		POs:      env.PORepo,
		Vendors:  env.VendorRepo,
		Gateway:  env.Gateway,
		Authz:    authz,
		Audit:    recorder,
		Notifier: env.Notifier,
		Policy:   env.Policy,
	})
	return env
}

// Tenant is a company with one member per role.
type Tenant struct {
	CompanyID snowflake.ID
	Admin     identitydomain.Actor
	Procurer  identitydomain.Actor
	Manager   identitydomain.Actor
	Finance   identitydomain.Actor
}

// NewTenant creates a company through the company service and adds the other roles as members.
func (e *Env) NewTenant(t testing.TB, name string) Tenant {
	t.Helper()
	ctx := context.Background()

	admin := e.Principal(t, name+"-admin")
	company, err := e.Company.Create(ctx, admin, companydomain.CreateCompanyRequest{Name: name})
	require.NoError(t, err)
	admin = e.Resolve(t, admin)

	return Tenant{
		CompanyID: company.ID,
		Admin:     admin,
		Procurer:  e.Member(t, company.ID, name+"-procurement", identitydomain.RoleProcurement),
		Manager:   e.Member(t, company.ID, name+"-manager", identitydomain.RoleManager),
		Finance:   e.Member(t, company.ID, name+"-finance", identitydomain.RoleFinance),
	}
}

// Principal returns an authenticated actor with a profile but no company.
func (e *Env) Principal(t testing.TB, userID string) identitydomain.Actor {
	t.Helper()
	actor, err := e.Identity.Resolve(context.Background(), identitydomain.Principal{
		UserID: userID,
		Email:  userID + "@example.test",
		Name:   userID,
	})
	require.NoError(t, err)
	return actor
}

func (e *Env) Resolve(t testing.TB, actor identitydomain.Actor) identitydomain.Actor {
	t.Helper()
	resolved, err := e.Identity.Resolve(context.Background(), identitydomain.Principal{
		UserID: actor.UserID,
		Email:  actor.Email,
	})
	require.NoError(t, err)
	return resolved
}

// Member inserts an active membership directly and returns the resolved actor.
func (e *Env) Member(t testing.TB, companyID snowflake.ID, userID string, role identitydomain.Role) identitydomain.Actor {
	t.Helper()
	actor := e.Principal(t, userID)
	require.NoError(t, e.DB.Create(&companydomain.CompanyMember{
		ID:        e.Node.Generate(),
		CompanyID: companyID,
		ProfileID: actor.ProfileID,
		Role:      string(role),
		IsActive:  true,
		CreatedAt: e.Clock.Now(),
	}).Error)
	return e.Resolve(t, actor)
}

func (e *Env) Vendor(t testing.TB, actor identitydomain.Actor, name string) *vendordomain.Vendor {
	t.Helper()
	email := fmt.Sprintf("billing@%s.test", name)
	address := "12 MG Road, Bengaluru"
	vendor, err := e.Vendors.Create(context.Background(), actor, vendordomain.CreateVendorRequest{
		Name:    name,
		Email:   &email,
		Address: &address,
	})
	require.NoError(t, err)
	return vendor
}

// SubmittedPR creates a PR as the procurement member and submits it.
func (e *Env) SubmittedPR(t testing.TB, tenant Tenant, vendorID *snowflake.ID, cost string) *prdomain.PurchaseRequest {
	t.Helper()
	pr, err := e.PRs.Create(context.Background(), tenant.Procurer, prdomain.CreateRequest{
		Title:             "Laptops for onboarding",
		Department:        "Engineering",
		Priority:          "HIGH",
		EstimatedCost:     decimal.RequireFromString(cost),
		PreferredVendorID: vendorID,
		Submit:            true,
	})
	require.NoError(t, err)
	return pr
}

func (e *Env) ApprovedPR(t testing.TB, tenant Tenant, vendorID *snowflake.ID, cost string) *prdomain.PurchaseRequest {
	t.Helper()
	pr := e.SubmittedPR(t, tenant, vendorID, cost)
	pr, err := e.PRs.Approve(context.Background(), tenant.Manager, pr.ID, "")
	require.NoError(t, err)
	return pr
}

// IssuedPO runs a fresh PR through approval and issues its PO.
func (e *Env) IssuedPO(t testing.TB, tenant Tenant, cost string) *podomain.PurchaseOrder {
	t.Helper()
	vendor := e.Vendor(t, tenant.Admin, fmt.Sprintf("vendor-%d", e.Node.Generate().Int64()))
	pr := e.ApprovedPR(t, tenant, &vendor.ID, cost)

	ctx := context.Background()
	po, err := e.POs.Create(ctx, tenant.Procurer, podomain.CreateRequest{PurchaseRequestID: pr.ID})
	require.NoError(t, err)
	po, err = e.POs.Issue(ctx, tenant.Admin, po.ID)
	require.NoError(t, err)
	return po
}

func (e *Env) VerifiedInvoice(t testing.TB, tenant Tenant, cost string) *invoicedomain.Invoice {
	t.Helper()
	po := e.IssuedPO(t, tenant, cost)
	ctx := context.Background()
	amount := decimal.RequireFromString(cost)
	invoice, err := e.Invoices.Create(ctx, tenant.Admin, invoicedomain.CreateRequest{
		PurchaseOrderID: po.ID,
		InvoiceNumber:   "INV-" + po.PONumber,
		Subtotal:        amount,
		TotalAmount:     amount,
	})
	require.NoError(t, err)
	invoice, err = e.Invoices.Verify(ctx, tenant.Finance, invoice.ID)
	require.NoError(t, err)
	return invoice
}

// AuditActions returns the recorded actions for entityID in insertion order.
func (e *Env) AuditActions(t testing.TB, entityID snowflake.ID) []string {
	t.Helper()
	var actions []string
	require.NoError(t, e.DB.Model(&auditdomain.AuditLog{}).
		Where("entity_id = ?", entityID.String()).
		Order("created_at asc, id asc").
		Pluck("action", &actions).Error)
	return actions
}
