// Package razorpay talks to the Razorpay Orders API and checks its signatures.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/procura/internal/apperror"
	"github.com/smallbiznis/procura/internal/config"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.razorpay.com"
	defaultTimeout = 12 * time.Second
	maxErrorBody   = 64 << 10
)

type Client struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	http          *http.Client
	log           *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) paymentdomain.Gateway {
	return NewClient(cfg.Razorpay, &http.Client{}, log)
}

func NewClient(cfg config.RazorpayConfig, httpClient *http.Client, log *zap.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Timeout == 0 {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient.Timeout = timeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:       baseURL,
		keyID:         strings.TrimSpace(cfg.KeyID),
		keySecret:     strings.TrimSpace(cfg.KeySecret),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		http:          httpClient,
		log:           log.Named("razorpay"),
	}
}

func (c *Client) Provider() string { return paymentdomain.ProviderRazorpay }

func (c *Client) KeyID() string { return c.keyID }

func (c *Client) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	body, err := json.Marshal(orderRequest{
		Amount:   req.Amount,
		Currency: strings.ToUpper(req.Currency),
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}

	var out orderEntity
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, apperror.External("gateway_invalid_response", "payment gateway returned no order id", nil)
	}
	return &paymentdomain.Order{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: strings.ToUpper(out.Currency),
		Status:   out.Status,
	}, nil
}

func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]paymentdomain.GatewayPayment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apperror.InvalidInput("invalid_order_id", "order id is required")
	}

	var out struct {
		Items []paymentEntity `json:"items"`
	}
	path := "/v1/orders/" + url.PathEscape(orderID) + "/payments"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	payments := make([]paymentdomain.GatewayPayment, 0, len(out.Items))
	for _, item := range out.Items {
		payments = append(payments, item.toDomain())
	}
	return payments, nil
}

// VerifyPaymentSignature checks the checkout signature: HMAC-SHA256 of "order_id|payment_id" keyed by the API secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	if c.keySecret == "" {
		return paymentdomain.ErrGatewayNotConfigured
	}
	if !validSignature(c.keySecret, []byte(orderID+"|"+paymentID), signature) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

// VerifyWebhook checks X-Razorpay-Signature: HMAC-SHA256 of the raw body keyed by the webhook secret.
func (c *Client) VerifyWebhook(payload []byte, signature string) error {
	if c.webhookSecret == "" {
		return paymentdomain.ErrInvalidSignature
	}
	if !validSignature(c.webhookSecret, payload, signature) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (c *Client) ParseWebhook(payload []byte) (*paymentdomain.WebhookEvent, error) {
	var event webhookEnvelope
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidWebhook
	}
	eventType := strings.TrimSpace(event.Event)
	if eventType == "" {
		return nil, paymentdomain.ErrInvalidWebhook
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, paymentdomain.ErrInvalidWebhook
	}

	out := &paymentdomain.WebhookEvent{
		Type: eventType,
		Raw:  raw,
	}
	if event.Payload.Payment != nil {
		out.PaymentID = event.Payload.Payment.Entity.ID
		out.OrderID = event.Payload.Payment.Entity.OrderID
		out.ErrorDescription = event.Payload.Payment.Entity.ErrorDescription
	}
	if out.OrderID == "" && event.Payload.Order != nil {
		out.OrderID = event.Payload.Order.Entity.ID
	}
	if out.PaymentID != "" {
		out.ID = eventType + ":" + out.PaymentID
	} else if out.OrderID != "" {
		out.ID = eventType + ":" + out.OrderID
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.keyID == "" || c.keySecret == "" {
		return paymentdomain.ErrGatewayNotConfigured
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperror.Internal(err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("gateway request failed", zap.String("path", path), zap.Error(err))
		return apperror.External("gateway_unavailable", "payment gateway is unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.classify(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.External("gateway_invalid_response", "payment gateway returned an unreadable response", err)
	}
	return nil
}

// classify passes 4xx descriptions through verbatim as invalid input; 5xx becomes an external failure.
func (c *Client) classify(resp *http.Response, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorEnvelope
	description := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		description = strings.TrimSpace(body.Error.Description)
	}
	if description == "" {
		description = fmt.Sprintf("payment gateway responded with status %d", resp.StatusCode)
	}

	c.log.Warn("gateway request rejected",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("code", body.Error.Code),
	)

	cause := errors.New(string(raw))
	if resp.StatusCode < http.StatusInternalServerError {
		return apperror.Wrap(apperror.KindInvalidInput, "gateway_rejected", description, cause)
	}
	return apperror.External("gateway_error", description, cause)
}

func validSignature(secret string, message []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(secret, message)))
}

// Sign produces the signature the gateway would send for message.
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type paymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	ErrorDescription string `json:"error_description"`
}

func (p paymentEntity) toDomain() paymentdomain.GatewayPayment {
	return paymentdomain.GatewayPayment{
		ID:               p.ID,
		OrderID:          p.OrderID,
		Status:           strings.ToLower(strings.TrimSpace(p.Status)),
		Amount:           p.Amount,
		ErrorDescription: p.ErrorDescription,
	}
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity orderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}
