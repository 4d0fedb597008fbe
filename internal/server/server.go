package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	companydomain "github.com/smallbiznis/procura/internal/company/domain"
	"github.com/smallbiznis/procura/internal/config"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	invoicedomain "github.com/smallbiznis/procura/internal/invoice/domain"
	"github.com/smallbiznis/procura/internal/observability"
	obsmiddleware "github.com/smallbiznis/procura/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/procura/internal/observability/metrics"
	obstracing "github.com/smallbiznis/procura/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
	purchaseorderdomain "github.com/smallbiznis/procura/internal/purchaseorder/domain"
	purchaserequestdomain "github.com/smallbiznis/procura/internal/purchaserequest/domain"
	"github.com/smallbiznis/procura/internal/ratelimit"
	vendordomain "github.com/smallbiznis/procura/internal/vendors/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewTokenVerifier),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	log      *zap.Logger
	verifier *TokenVerifier

	identitySvc        identitydomain.Service
	companySvc         companydomain.Service
	vendorSvc          vendordomain.Service
	purchaseRequestSvc purchaserequestdomain.Service
	purchaseOrderSvc   purchaseorderdomain.Service
	invoiceSvc         invoicedomain.Service
	paymentSvc         paymentdomain.Service
	auditSvc           auditdomain.Service
	limiter            *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Log      *zap.Logger
	Verifier *TokenVerifier

	IdentitySvc        identitydomain.Service
	CompanySvc         companydomain.Service
	VendorSvc          vendordomain.Service
	PurchaseRequestSvc purchaserequestdomain.Service
	PurchaseOrderSvc   purchaseorderdomain.Service
	InvoiceSvc         invoicedomain.Service
	PaymentSvc         paymentdomain.Service
	AuditSvc           auditdomain.Service
	Limiter            *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:             p.Gin,
		log:                p.Log.Named("http.server"),
		verifier:           p.Verifier,
		identitySvc:        p.IdentitySvc,
		companySvc:         p.CompanySvc,
		vendorSvc:          p.VendorSvc,
		purchaseRequestSvc: p.PurchaseRequestSvc,
		purchaseOrderSvc:   p.PurchaseOrderSvc,
		invoiceSvc:         p.InvoiceSvc,
		paymentSvc:         p.PaymentSvc,
		auditSvc:           p.AuditSvc,
		limiter:            p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(s.AuthRequired(), ratelimit.GinMiddleware(s.limiter))

	// -------- Tenant --------
	api.GET("/me", s.Me)
	api.POST("/companies", s.CreateCompany)
	api.GET("/company", s.GetCompany)
	api.GET("/members", s.ListMembers)
	api.POST("/invitations", s.InviteMember)
	api.GET("/invitations", s.ListInvitations)
	api.POST("/invitations/accept", s.AcceptInvitation)

	// -------- Vendors --------
	api.GET("/vendors", s.ListVendors)
	api.POST("/vendors", s.CreateVendor)
	api.GET("/vendors/:id", s.GetVendorByID)
	api.PATCH("/vendors/:id", s.UpdateVendor)
	api.POST("/vendors/:id/toggle", s.ToggleVendor)

	// -------- Purchase requests --------
	api.GET("/purchase-requests", s.ListPurchaseRequests)
	api.POST("/purchase-requests", s.CreatePurchaseRequest)
	api.GET("/purchase-requests/:id", s.GetPurchaseRequestByID)
	api.PATCH("/purchase-requests/:id", s.EditPurchaseRequest)
	api.POST("/purchase-requests/:id/submit", s.SubmitPurchaseRequest)
	api.POST("/purchase-requests/:id/review", s.ReviewPurchaseRequest)
	api.POST("/purchase-requests/:id/approve", s.ApprovePurchaseRequest)
	api.POST("/purchase-requests/:id/reject", s.RejectPurchaseRequest)
	api.GET("/purchase-requests/:id/approvals", s.ListPurchaseRequestApprovals)

	// -------- Purchase orders --------
	api.GET("/purchase-orders", s.ListPurchaseOrders)
	api.POST("/purchase-orders", s.CreatePurchaseOrder)
	api.GET("/purchase-orders/:id", s.GetPurchaseOrderByID)
	api.PATCH("/purchase-orders/:id", s.EditPurchaseOrder)
	api.POST("/purchase-orders/:id/issue", s.IssuePurchaseOrder)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.POST("/invoices/:id/start-verification", s.StartInvoiceVerification)
	api.POST("/invoices/:id/verify", s.VerifyInvoice)
	api.POST("/invoices/:id/mismatch", s.MarkInvoiceMismatch)
	api.POST("/invoices/:id/reject", s.RejectInvoice)
	api.POST("/invoices/:id/payments", s.InitiatePayment)

	// -------- Payments --------
	api.GET("/payments", s.ListPayments)
	api.POST("/payments/confirm", s.ConfirmPayment)
	api.GET("/payments/:id", s.GetPaymentByID)
	api.POST("/payments/:id/reconcile", s.ReconcilePayment)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/razorpay", s.HandleRazorpayWebhook)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
