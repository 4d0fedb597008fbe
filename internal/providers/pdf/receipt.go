package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	ReceiptNumber    string
	InvoiceNumber    string
	PONumber         string
	DatePaid         string
	PaymentReference string
	Payer            Party
	Payee            Party
	Currency         string
	Subtotal         string
	CGST             string
	SGST             string
	IGST             string
	Total            string
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := newDocument()

	m.AddRow(20,
		text.NewCol(8, "Payment Receipt", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, data.ReceiptNumber, props.Text{Size: 9, Align: align.Right, Top: 6}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Size: 9}),
			text.New("Purchase order: "+data.PONumber, props.Text{Size: 9, Top: 5}),
			text.New("Date paid: "+data.DatePaid, props.Text{Size: 9, Top: 10}),
		),
		col.New(6).Add(
			text.New("Gateway reference", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.New(data.PaymentReference, props.Text{Size: 9, Top: 5, Align: align.Right}),
		),
	)

	addParties(m, "Paid by", data.Payer, "Paid to", data.Payee)

	m.AddRow(15,
		text.NewCol(12, data.Currency+" "+data.Total+" paid on "+data.DatePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	rows := [][2]string{
		{"Subtotal", data.Subtotal},
		{"CGST", data.CGST},
		{"SGST", data.SGST},
		{"IGST", data.IGST},
		{"Total", data.Total},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, row[0], props.Text{Size: 9}),
			text.NewCol(2, data.Currency+" "+row[1], props.Text{Size: 9, Align: align.Right}),
		)
	}

	return render(m)
}
