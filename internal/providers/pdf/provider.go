package pdf

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Provider interface {
	GeneratePurchaseOrder(ctx context.Context, data PurchaseOrderData) ([]byte, error)
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

type Party struct {
	Name    string
	Address string
	Email   string
	TaxID   string
}

type LineItem struct {
	Description string
	Amount      string
}
