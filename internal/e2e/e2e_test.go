package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/procura/internal/audit"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/company"
	"github.com/smallbiznis/procura/internal/config"
	"github.com/smallbiznis/procura/internal/distlock"
	"github.com/smallbiznis/procura/internal/identity"
	"github.com/smallbiznis/procura/internal/invoice"
	"github.com/smallbiznis/procura/internal/notification"
	"github.com/smallbiznis/procura/internal/observability"
	"github.com/smallbiznis/procura/internal/payment"
	"github.com/smallbiznis/procura/internal/payment/adapters/razorpay"
	"github.com/smallbiznis/procura/internal/purchaseorder"
	"github.com/smallbiznis/procura/internal/purchaserequest"
	"github.com/smallbiznis/procura/internal/ratelimit"
	"github.com/smallbiznis/procura/internal/scheduler"
	"github.com/smallbiznis/procura/internal/server"
	"github.com/smallbiznis/procura/internal/testutil/dbtest"
	"github.com/smallbiznis/procura/internal/vendors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	jwtSecret       = "e2e-jwt-secret"
	gatewayKeyID    = "rzp_test_e2e"
	gatewaySecret   = "e2e-key-secret"
	gatewayWebhook  = "e2e-webhook-secret"
	contentTypeJSON = "application/json"
)

type testEnv struct {
	db      *gorm.DB
	baseURL string
	gateway *fakeRazorpay
}

// startEnv boots the same module graph as cmd/procura over an in-memory database.
func startEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gateway := newFakeRazorpay()
	t.Cleanup(gateway.Close)

	dbConn := dbtest.Open(t)
	cfg := config.Config{
		AppName:       "procura",
		Environment:   "test",
		HTTPAddr:      "127.0.0.1:0",
		SnowflakeNode: 7,
		Auth:          config.AuthConfig{JWTSecret: jwtSecret},
		Razorpay: config.RazorpayConfig{
			BaseURL:       gateway.URL,
			KeyID:         gatewayKeyID,
			KeySecret:     gatewaySecret,
			WebhookSecret: gatewayWebhook,
			Timeout:       5 * time.Second,
		},
	}

	var srv *server.Server
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, dbConn),
		fx.Provide(config.NewPolicyHolder),
		observability.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.SnowflakeNode)
		}),
		clock.Module,
		distlock.Module,
		ratelimit.Module,
		authorization.Module,
		audit.Module,
		identity.Module,
		company.Module,
		vendors.Module,
		purchaserequest.Module,
		purchaseorder.Module,
		invoice.Module,
		payment.Module,
		notification.Module,
		scheduler.Module,
		server.Module,
		fx.Populate(&srv),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))
	t.Cleanup(func() { _ = app.Stop(context.Background()) })

	httpSrv := httptest.NewServer(srv.Engine())
	t.Cleanup(httpSrv.Close)

	return &testEnv{db: dbConn, baseURL: httpSrv.URL, gateway: gateway}
}

func TestE2E_HealthCheck(t *testing.T) {
	env := startEnv(t)

	resp, err := http.Get(env.baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_ProcurementRoundTrip(t *testing.T) {
	env := startEnv(t)

	// Company bootstrap and team.
	var companyResp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	env.call(t, "owner", http.MethodPost, "/api/v1/companies", jsonBody{"name": "Acme Traders"}, http.StatusCreated, &companyResp)

	env.join(t, "priya", "PROCUREMENT")
	env.join(t, "manoj", "MANAGER")
	env.join(t, "farah", "FINANCE")

	var members struct {
		Data []map[string]any `json:"data"`
	}
	env.call(t, "owner", http.MethodGet, "/api/v1/members", nil, http.StatusOK, &members)
	assert.Len(t, members.Data, 4)

	// Vendor and purchase request.
	vendorID := env.createID(t, "priya", "/api/v1/vendors", jsonBody{
		"name":  "Globex Supplies",
		"email": "billing@globex.test",
		"gstin": "29ABCDE1234F1Z5",
	})
	prID := env.createID(t, "priya", "/api/v1/purchase-requests", jsonBody{
		"title":               "Office chairs",
		"department":          "Operations",
		"priority":            "MEDIUM",
		"estimated_cost":      "118000",
		"preferred_vendor_id": vendorID,
	})
	prPath := "/api/v1/purchase-requests/" + prID

	var prResp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	env.call(t, "priya", http.MethodPost, prPath+"/submit", nil, http.StatusOK, &prResp)
	assert.Equal(t, "SUBMITTED", prResp.Data.Status)
	// Procurement holds no approval permission.
	env.expectError(t, "priya", http.MethodPost, prPath+"/approve", nil, http.StatusForbidden)
	env.call(t, "manoj", http.MethodPost, prPath+"/review", nil, http.StatusOK, &prResp)
	assert.Equal(t, "UNDER_REVIEW", prResp.Data.Status)
	env.call(t, "manoj", http.MethodPost, prPath+"/approve", jsonBody{"comment": "Within budget"}, http.StatusOK, &prResp)
	assert.Equal(t, "APPROVED", prResp.Data.Status)

	// An approver cannot decide a request they raised.
	ownPRID := env.createID(t, "owner", "/api/v1/purchase-requests", jsonBody{
		"title":          "Standing desks",
		"department":     "Operations",
		"estimated_cost": "50000",
		"submit":         true,
	})
	code := env.expectError(t, "owner", http.MethodPost, "/api/v1/purchase-requests/"+ownPRID+"/approve", nil, http.StatusForbidden)
	assert.Equal(t, "self_approval", code)
	code = env.expectError(t, "owner", http.MethodPost, "/api/v1/purchase-requests/"+ownPRID+"/reject", jsonBody{"reason": "Not needed"}, http.StatusForbidden)
	assert.Equal(t, "self_approval", code)
	env.call(t, "owner", http.MethodGet, "/api/v1/purchase-requests/"+ownPRID, nil, http.StatusOK, &prResp)
	assert.Equal(t, "SUBMITTED", prResp.Data.Status)
	assert.Equal(t, []string{auditdomain.ActionCreatePR, auditdomain.ActionSubmitPR}, env.auditActions(t, ownPRID))

	// Purchase order.
	var poResp struct {
		Data struct {
			ID       string `json:"id"`
			PONumber string `json:"po_number"`
			Status   string `json:"status"`
		} `json:"data"`
	}
	env.call(t, "priya", http.MethodPost, "/api/v1/purchase-orders", jsonBody{
		"purchase_request_id": prID,
		"payment_terms":       "Net 30",
	}, http.StatusCreated, &poResp)
	poID := poResp.Data.ID
	assert.Regexp(t, `^PO-\d{8}-\d{4}$`, poResp.Data.PONumber)

	env.expectError(t, "priya", http.MethodPost, "/api/v1/purchase-orders", jsonBody{"purchase_request_id": prID}, http.StatusConflict)
	env.expectError(t, "priya", http.MethodPost, "/api/v1/purchase-orders/"+poID+"/issue", nil, http.StatusForbidden)
	env.call(t, "owner", http.MethodPost, "/api/v1/purchase-orders/"+poID+"/issue", nil, http.StatusOK, &poResp)
	assert.Equal(t, "ISSUED", poResp.Data.Status)
	env.expectError(t, "priya", http.MethodPatch, "/api/v1/purchase-orders/"+poID, jsonBody{"notes": "late"}, http.StatusConflict)

	// Invoice: over the cap first, then the exact amount with intra-state tax.
	env.expectError(t, "owner", http.MethodPost, "/api/v1/invoices", jsonBody{
		"purchase_order_id": poID,
		"invoice_number":    "GLX-001",
		"subtotal":          "120000",
		"total_amount":      "120000",
	}, http.StatusBadRequest)
	invoiceID := env.createID(t, "owner", "/api/v1/invoices", jsonBody{
		"purchase_order_id": poID,
		"invoice_number":    "GLX-001",
		"subtotal":          "100000",
		"cgst":              "9000",
		"sgst":              "9000",
		"total_amount":      "118000",
	})
	env.call(t, "farah", http.MethodPost, "/api/v1/invoices/"+invoiceID+"/verify", nil, http.StatusOK, nil)

	// Payment: initiate, then confirm twice.
	var initResp struct {
		Data struct {
			OrderID string `json:"order_id"`
			Amount  int64  `json:"amount"`
			KeyID   string `json:"key_id"`
			Payment struct {
				ID string `json:"id"`
			} `json:"payment"`
		} `json:"data"`
	}
	env.call(t, "farah", http.MethodPost, "/api/v1/invoices/"+invoiceID+"/payments", nil, http.StatusCreated, &initResp)
	assert.EqualValues(t, 11800000, initResp.Data.Amount)
	assert.Equal(t, gatewayKeyID, initResp.Data.KeyID)
	require.NotEmpty(t, initResp.Data.OrderID)
	paymentID := initResp.Data.Payment.ID

	confirm := jsonBody{
		"razorpay_order_id":   initResp.Data.OrderID,
		"razorpay_payment_id": "pay_e2e_1",
		"razorpay_signature":  razorpay.Sign(gatewaySecret, []byte(initResp.Data.OrderID+"|pay_e2e_1")),
	}
	var confirmResp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	env.call(t, "farah", http.MethodPost, "/api/v1/payments/confirm", confirm, http.StatusOK, &confirmResp)
	assert.Equal(t, "PROCESSED", confirmResp.Data.Status)
	env.call(t, "farah", http.MethodPost, "/api/v1/payments/confirm", confirm, http.StatusOK, &confirmResp)
	assert.Equal(t, "ALREADY_PROCESSED", confirmResp.Data.Status)

	var invoiceResp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	env.call(t, "farah", http.MethodGet, "/api/v1/invoices/"+invoiceID, nil, http.StatusOK, &invoiceResp)
	assert.Equal(t, "PAID", invoiceResp.Data.Status)
	assert.EqualValues(t, 1, env.gateway.orders.Load())

	// One audit row per transition.
	assert.Equal(t, []string{auditdomain.ActionCreatePR, auditdomain.ActionSubmitPR, auditdomain.ActionReviewPR, auditdomain.ActionApprovePR}, env.auditActions(t, prID))
	assert.Equal(t, []string{auditdomain.ActionCreatePO, auditdomain.ActionIssuePO}, env.auditActions(t, poID))
	assert.Equal(t, []string{auditdomain.ActionInvoiceUploaded, auditdomain.ActionInvoiceVerified}, env.auditActions(t, invoiceID))
	assert.Equal(t, []string{auditdomain.ActionPaymentInitiated, auditdomain.ActionPaymentSuccess}, env.auditActions(t, paymentID))

	var logs struct {
		Data []struct {
			Action string `json:"action"`
		} `json:"data"`
	}
	env.call(t, "owner", http.MethodGet, "/api/v1/audit-logs?action="+auditdomain.ActionPaymentSuccess, nil, http.StatusOK, &logs)
	require.Len(t, logs.Data, 1)
	env.expectError(t, "farah", http.MethodGet, "/api/v1/audit-logs", nil, http.StatusForbidden)
}

func TestE2E_RejectedRequestCannotBecomeOrder(t *testing.T) {
	env := startEnv(t)

	env.call(t, "owner", http.MethodPost, "/api/v1/companies", jsonBody{"name": "Initech"}, http.StatusCreated, nil)
	env.join(t, "manoj", "MANAGER")
	env.join(t, "priya", "PROCUREMENT")

	vendorID := env.createID(t, "priya", "/api/v1/vendors", jsonBody{"name": "Umbrella Corp"})
	prID := env.createID(t, "priya", "/api/v1/purchase-requests", jsonBody{
		"title":               "Server rack",
		"department":          "IT",
		"estimated_cost":      "100000",
		"preferred_vendor_id": vendorID,
		"submit":              true,
	})

	env.expectError(t, "manoj", http.MethodPost, "/api/v1/purchase-requests/"+prID+"/reject", jsonBody{"reason": "No"}, http.StatusBadRequest)
	env.call(t, "manoj", http.MethodPost, "/api/v1/purchase-requests/"+prID+"/reject", jsonBody{"reason": "Over budget"}, http.StatusOK, nil)
	env.expectError(t, "priya", http.MethodPost, "/api/v1/purchase-orders", jsonBody{"purchase_request_id": prID}, http.StatusConflict)

	var orders struct {
		Data []map[string]any `json:"data"`
	}
	env.call(t, "priya", http.MethodGet, "/api/v1/purchase-orders", nil, http.StatusOK, &orders)
	assert.Empty(t, orders.Data)
}

func TestE2E_WebhookSettlesPayment(t *testing.T) {
	env := startEnv(t)

	env.call(t, "owner", http.MethodPost, "/api/v1/companies", jsonBody{"name": "Hooli"}, http.StatusCreated, nil)
	env.join(t, "manoj", "MANAGER")
	env.join(t, "farah", "FINANCE")

	vendorID := env.createID(t, "owner", "/api/v1/vendors", jsonBody{"name": "Pied Piper"})
	prID := env.createID(t, "owner", "/api/v1/purchase-requests", jsonBody{
		"title":               "Compression licence",
		"department":          "R&D",
		"estimated_cost":      "5000",
		"preferred_vendor_id": vendorID,
		"submit":              true,
	})
	env.call(t, "manoj", http.MethodPost, "/api/v1/purchase-requests/"+prID+"/approve", nil, http.StatusOK, nil)
	poID := env.createID(t, "owner", "/api/v1/purchase-orders", jsonBody{"purchase_request_id": prID})
	env.call(t, "owner", http.MethodPost, "/api/v1/purchase-orders/"+poID+"/issue", nil, http.StatusOK, nil)
	invoiceID := env.createID(t, "owner", "/api/v1/invoices", jsonBody{
		"purchase_order_id": poID,
		"invoice_number":    "PP-9",
		"subtotal":          "5000",
		"total_amount":      "5000",
	})
	env.call(t, "farah", http.MethodPost, "/api/v1/invoices/"+invoiceID+"/verify", nil, http.StatusOK, nil)

	var initResp struct {
		Data struct {
			OrderID string `json:"order_id"`
			Payment struct {
				ID string `json:"id"`
			} `json:"payment"`
		} `json:"data"`
	}
	env.call(t, "farah", http.MethodPost, "/api/v1/invoices/"+invoiceID+"/payments", nil, http.StatusCreated, &initResp)

	payload := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_hook_1","order_id":%q,"status":"captured","amount":500000}}}}`, initResp.Data.OrderID))
	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodPost, env.baseURL+"/webhooks/razorpay", bytes.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", contentTypeJSON)
		req.Header.Set("X-Razorpay-Signature", razorpay.Sign(gatewayWebhook, payload))
		req.Header.Set("X-Razorpay-Event-Id", "evt_hook_1")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var paymentResp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	env.call(t, "farah", http.MethodGet, "/api/v1/payments/"+initResp.Data.Payment.ID, nil, http.StatusOK, &paymentResp)
	assert.Equal(t, "SUCCESS", paymentResp.Data.Status)
	assert.Equal(t, []string{auditdomain.ActionPaymentInitiated, auditdomain.ActionPaymentSuccess}, env.auditActions(t, initResp.Data.Payment.ID))
}

// join invites userID with role as the owner and accepts the invitation as userID.
func (e *testEnv) join(t *testing.T, userID, role string) {
	t.Helper()
	var invite struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	e.call(t, "owner", http.MethodPost, "/api/v1/invitations", jsonBody{
		"email": userID + "@example.test",
		"role":  role,
	}, http.StatusCreated, &invite)
	require.NotEmpty(t, invite.Data.Token)
	e.call(t, userID, http.MethodPost, "/api/v1/invitations/accept", jsonBody{"token": invite.Data.Token}, http.StatusOK, nil)
}

func (e *testEnv) createID(t *testing.T, userID, path string, body jsonBody) string {
	t.Helper()
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	e.call(t, userID, http.MethodPost, path, body, http.StatusCreated, &resp)
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

// expectError asserts an error envelope with the given status and returns its code.
func (e *testEnv) expectError(t *testing.T, userID, method, path string, body any, status int) string {
	t.Helper()
	var resp struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	e.call(t, userID, method, path, body, status, &resp)
	assert.NotEmpty(t, resp.Error.Type)
	return resp.Error.Code
}

func (e *testEnv) call(t *testing.T, userID, method, path string, body any, wantStatus int, out any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.baseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	req.Header.Set("Authorization", "Bearer "+bearer(t, userID))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equalf(t, wantStatus, resp.StatusCode, "%s %s: %s", method, path, raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func (e *testEnv) auditActions(t *testing.T, entityID string) []string {
	t.Helper()
	var actions []string
	require.NoError(t, e.db.Model(&auditdomain.AuditLog{}).
		Where("entity_id = ?", entityID).
		Order("created_at asc, id asc").
		Pluck("action", &actions).Error)
	return actions
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, server.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: userID + "@example.test",
		Name:  userID,
	})
	raw, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return raw
}

type jsonBody map[string]any

// fakeRazorpay serves the two Orders API endpoints the gateway client calls.
type fakeRazorpay struct {
	*httptest.Server
	orders atomic.Int64
}

func newFakeRazorpay() *fakeRazorpay {
	f := &fakeRazorpay{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orders", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":{"code":"BAD_REQUEST_ERROR","description":"bad body"}}`, http.StatusBadRequest)
			return
		}
		n := f.orders.Add(1)
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       fmt.Sprintf("order_e2e_%04d", n),
			"amount":   req.Amount,
			"currency": req.Currency,
			"status":   "created",
		})
	})
	mux.HandleFunc("GET /v1/orders/{id}/payments", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	f.Server = httptest.NewServer(mux)
	return f
}
