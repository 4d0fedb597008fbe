package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/procura/internal/apperror"
	"github.com/smallbiznis/procura/internal/config"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.RazorpayConfig{
		BaseURL:       srv.URL,
		KeyID:         "rzp_test_key",
		KeySecret:     "secret",
		WebhookSecret: "whsec",
	}, srv.Client(), nil)
}

func TestCreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 11800000, body["amount"])
		assert.Equal(t, "INR", body["currency"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_1","amount":11800000,"currency":"INR","status":"created"}`))
	})

	order, err := client.CreateOrder(context.Background(), paymentdomain.OrderRequest{
		Amount:   11800000,
		Currency: "inr",
		Receipt:  "INV-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.ID)
	assert.Equal(t, "INR", order.Currency)
}

func TestCreateOrderErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind apperror.Kind
		wantMsg  string
	}{{
		name:     "bad request passes description through",
		status:   http.StatusBadRequest,
		body:     `{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`,
		wantKind: apperror.KindInvalidInput,
		wantMsg:  "The amount must be atleast INR 1.00",
	}, {
		name:     "unauthorized is still a client error",
		status:   http.StatusUnauthorized,
		body:     `{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`,
		wantKind: apperror.KindInvalidInput,
		wantMsg:  "Authentication failed",
	}, {
		name:     "server error",
		status:   http.StatusBadGateway,
		body:     `upstream down`,
		wantKind: apperror.KindExternal,
		wantMsg:  "payment gateway responded with status 502",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.CreateOrder(context.Background(), paymentdomain.OrderRequest{Amount: 1, Currency: "INR"})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperror.KindOf(err))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestCreateOrderWithoutCredentials(t *testing.T) {
	client := NewClient(config.RazorpayConfig{}, nil, nil)
	_, err := client.CreateOrder(context.Background(), paymentdomain.OrderRequest{Amount: 1, Currency: "INR"})
	assert.ErrorIs(t, err, paymentdomain.ErrGatewayNotConfigured)
	assert.Equal(t, apperror.KindExternal, apperror.KindOf(err))
}

func TestFetchOrderPayments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders/order_1/payments", r.URL.Path)
		_, _ = w.Write([]byte(`{"entity":"collection","count":2,"items":[
			{"id":"pay_1","order_id":"order_1","status":"failed","amount":100,"error_description":"card declined"},
			{"id":"pay_2","order_id":"order_1","status":"CAPTURED","amount":100}
		]}`))
	})

	payments, err := client.FetchOrderPayments(context.Background(), "order_1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, paymentdomain.GatewayPaymentFailed, payments[0].Status)
	assert.Equal(t, "card declined", payments[0].ErrorDescription)
	assert.Equal(t, paymentdomain.GatewayPaymentCaptured, payments[1].Status)
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := NewClient(config.RazorpayConfig{KeyID: "k", KeySecret: "secret"}, nil, nil)
	signature := Sign("secret", []byte("order_1|pay_1"))

	assert.NoError(t, client.VerifyPaymentSignature("order_1", "pay_1", signature))
	assert.ErrorIs(t, client.VerifyPaymentSignature("order_1", "pay_2", signature), paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, client.VerifyPaymentSignature("order_1", "pay_1", ""), paymentdomain.ErrInvalidSignature)
}

func TestVerifyWebhook(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	client := NewClient(config.RazorpayConfig{WebhookSecret: "whsec"}, nil, nil)

	assert.NoError(t, client.VerifyWebhook(payload, Sign("whsec", payload)))
	assert.ErrorIs(t, client.VerifyWebhook(payload, Sign("wrong", payload)), paymentdomain.ErrInvalidSignature)

	unconfigured := NewClient(config.RazorpayConfig{}, nil, nil)
	assert.ErrorIs(t, unconfigured.VerifyWebhook(payload, Sign("", payload)), paymentdomain.ErrInvalidSignature)
}

func TestParseWebhook(t *testing.T) {
	client := NewClient(config.RazorpayConfig{}, nil, nil)

	tests := []struct {
		name      string
		event     any
		wantType  string
		wantOrder string
		wantID    string
	}{{
		name: "payment.captured",
		event: map[string]any{
			"entity": "event",
			"event":  "payment.captured",
			"payload": map[string]any{
				"payment": map[string]any{
					"entity": map[string]any{"id": "pay_1", "order_id": "order_1", "status": "captured"},
				},
			},
		},
		wantType:  paymentdomain.EventPaymentCaptured,
		wantOrder: "order_1",
		wantID:    "payment.captured:pay_1",
	}, {
		name: "order.paid without payment entity",
		event: map[string]any{
			"event": "order.paid",
			"payload": map[string]any{
				"order": map[string]any{
					"entity": map[string]any{"id": "order_2", "status": "paid"},
				},
			},
		},
		wantType:  paymentdomain.EventOrderPaid,
		wantOrder: "order_2",
		wantID:    "order.paid:order_2",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			require.NoError(t, err)

			event, err := client.ParseWebhook(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, event.Type)
			assert.Equal(t, tt.wantOrder, event.OrderID)
			assert.Equal(t, tt.wantID, event.ID)
			assert.NotEmpty(t, event.Raw)
		})
	}

	_, err := client.ParseWebhook([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidWebhook)
	_, err = client.ParseWebhook([]byte(`not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidWebhook)
}
