package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PurchaseOrderData struct {
	PONumber     string
	IssueDate    string
	Buyer        Party
	Vendor       Party
	Currency     string
	Items        []LineItem
	Total        string
	PaymentTerms string
	Notes        string
}

func (p *PDFProvider) GeneratePurchaseOrder(ctx context.Context, data PurchaseOrderData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := newDocument()

	m.AddRow(20,
		text.NewCol(8, "Purchase Order", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, data.PONumber, props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right, Top: 4}),
	)
	m.AddRow(10,
		text.NewCol(12, "Issue date: "+data.IssueDate, props.Text{Size: 9}),
	)

	addParties(m, "Buyer", data.Buyer, "Vendor", data.Vendor)
	addItems(m, data.Currency, data.Items)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, data.Currency+" "+data.Total, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	if data.PaymentTerms != "" {
		m.AddRow(12, text.NewCol(12, "Payment terms: "+data.PaymentTerms, props.Text{Size: 9, Top: 4}))
	}
	if data.Notes != "" {
		m.AddRow(12, text.NewCol(12, "Notes: "+data.Notes, props.Text{Size: 9, Top: 2}))
	}

	return render(m)
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func addParties(m core.Maroto, leftTitle string, left Party, rightTitle string, right Party) {
	m.AddRow(35,
		col.New(6).Add(partyText(leftTitle, left)...),
		col.New(6).Add(partyText(rightTitle, right)...),
	)
}

func partyText(title string, party Party) []core.Component {
	components := []core.Component{
		text.New(title, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.New(party.Name, props.Text{Top: 5, Size: 9}),
	}
	top := 10.0
	for _, line := range []string{party.Address, party.Email, party.TaxID} {
		if line == "" {
			continue
		}
		components = append(components, text.New(line, props.Text{Top: top, Size: 9}))
		top += 5
	}
	return components
}

func addItems(m core.Maroto, currency string, items []LineItem) {
	m.AddRow(10,
		text.NewCol(9, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range items {
		m.AddRow(10,
			text.NewCol(9, item.Description, props.Text{Size: 9}),
			text.NewCol(3, currency+" "+item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func render(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
