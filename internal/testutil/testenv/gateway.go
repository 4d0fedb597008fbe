package testenv

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallbiznis/procura/internal/config"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
	"github.com/smallbiznis/procura/internal/payment/adapters/razorpay"
)

const (
	GatewayKeyID         = "rzp_test_procura"
	GatewayKeySecret     = "test-key-secret"
	GatewayWebhookSecret = "test-webhook-secret"
)

// FakeGateway keeps orders in memory and reuses the real signature checks.
type FakeGateway struct {
	*razorpay.Client

	mu       sync.Mutex
	seq      int
	orders   []paymentdomain.OrderRequest
	payments map[string][]paymentdomain.GatewayPayment
	err      error
}

var _ paymentdomain.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Client: razorpay.NewClient(config.RazorpayConfig{
			BaseURL:       "http://razorpay.invalid",
			KeyID:         GatewayKeyID,
			KeySecret:     GatewayKeySecret,
			WebhookSecret: GatewayWebhookSecret,
		}, nil, nil),
		payments: make(map[string][]paymentdomain.GatewayPayment),
	}
}

// FailWith makes subsequent gateway calls return err; nil clears it.
func (g *FakeGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *FakeGateway) CreateOrder(_ context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	g.orders = append(g.orders, req)
	return &paymentdomain.Order{
		ID:       fmt.Sprintf("order_test_%04d", g.seq),
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
	}, nil
}

func (g *FakeGateway) FetchOrderPayments(_ context.Context, orderID string) ([]paymentdomain.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return append([]paymentdomain.GatewayPayment(nil), g.payments[orderID]...), nil
}

// AddPayment registers an attempt that FetchOrderPayments reports for its order.
func (g *FakeGateway) AddPayment(p paymentdomain.GatewayPayment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.OrderID] = append(g.payments[p.OrderID], p)
}

func (g *FakeGateway) Orders() []paymentdomain.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]paymentdomain.OrderRequest(nil), g.orders...)
}

// PaymentSignature is what checkout hands back for a successful payment.
func PaymentSignature(orderID, paymentID string) string {
	return razorpay.Sign(GatewayKeySecret, []byte(orderID+"|"+paymentID))
}

func WebhookSignature(payload []byte) string {
	return razorpay.Sign(GatewayWebhookSecret, payload)
}
