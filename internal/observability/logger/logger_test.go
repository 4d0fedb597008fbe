package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/procura/internal/auditcontext"
	obscontext "github.com/smallbiznis/procura/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddlewarePropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	zap.ReplaceGlobals(zap.New(core))

	var seenAudit, seenObs string
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		seenAudit = auditcontext.RequestIDFromContext(c.Request.Context())
		seenObs = obscontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "req-123", seenAudit)
	assert.Equal(t, "req-123", seenObs)

	entries := logs.FilterMessage("http_request").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "/ping", entries[0].ContextMap()["route"])
		assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
	}
}

func TestWithContextAddsCompany(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := obscontext.WithCompanyID(context.Background(), "42")

	WithContext(ctx, zap.New(core)).Info("hello")

	assert.Equal(t, "42", logs.All()[0].ContextMap()["company_id"])
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("select * from vendors"))
	assert.Equal(t, "UPDATE", operationFromSQL("  UPDATE invoices SET status = ?"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestRedactingCoreMasksSensitiveFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(redactingCore{core}).With(zap.String("pan", "ABCDE1234F"))

	log.Info("vendor updated",
		zap.String("bank_account", "001122334455"),
		zap.Int("signature", 7),
		zap.String("vendor_name", "Globex"),
	)

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "****234F", fields["pan"])
	assert.Equal(t, "****4455", fields["bank_account"])
	assert.Equal(t, "****", fields["signature"])
	assert.Equal(t, "Globex", fields["vendor_name"])
}

func TestEnsureRequestIDFallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	zap.ReplaceGlobals(zap.NewNop())

	var seen string
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.POST("/webhooks/razorpay", func(c *gin.Context) {
		seen = obscontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", nil)
	req.Header.Set("X-Razorpay-Event-Id", "evt_123")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "evt_123", seen)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", nil)
	req.Header.Set("X-Request-Id", "has spaces in it")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "has spaces in it", seen)
	assert.NotEmpty(t, seen)
}
