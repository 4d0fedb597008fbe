package domain

import "context"

const ProviderRazorpay = "razorpay"

// Webhook event types the engine acts on.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPaymentFailed   = "payment.failed"
)

// Gateway payment states as reported by the provider.
const (
	GatewayPaymentCaptured = "captured"
	GatewayPaymentFailed   = "failed"
)

// Gateway is the payment provider. Amounts are in minor units.
type Gateway interface {
	Provider() string
	KeyID() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) error
	VerifyWebhook(payload []byte, signature string) error
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}

type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

type GatewayPayment struct {
	ID               string
	OrderID          string
	Status           string
	Amount           int64
	ErrorDescription string
}

type WebhookEvent struct {
	ID               string
	Type             string
	OrderID          string
	PaymentID        string
	ErrorDescription string
	Raw              map[string]any
}
