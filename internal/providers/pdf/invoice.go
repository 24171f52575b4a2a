package pdf

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	"github.com/smallbiznis/audiostore/pkg/money"
)

// Seller is printed in the invoice header.
type Seller struct {
	Name    string
	Address string
	Email   string
}

var (
	small = props.Text{Size: 9}
	right = props.Text{Size: 9, Align: align.Right}
	bold  = props.Text{Size: 9, Style: fontstyle.Bold}
)

// InvoicePDF lays out an issued invoice and returns the document bytes.
func InvoicePDF(invoice invoicedomain.Invoice, seller Seller) ([]byte, error) {
	billing, err := invoice.Billing()
	if err != nil {
		return nil, fmt.Errorf("decode billing snapshot: %w", err)
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold}),
		text.NewCol(4, invoice.DisplayNumber, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right, Top: 4}),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New("Date of issue: "+invoice.IssuedAt.UTC().Format("2006-01-02"), small),
			text.New("Status: "+string(invoice.Status), props.Text{Size: 9, Top: 4}),
			text.New("Reference: "+string(invoice.SourceType)+" "+invoice.SourceID.String(), props.Text{Size: 9, Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(32,
		col.New(6).Add(
			text.New(seller.Name, bold),
			text.New(seller.Address, props.Text{Size: 9, Top: 5}),
			text.New(seller.Email, props.Text{Size: 9, Top: 20}),
		),
		col.New(6).Add(
			text.New("Bill to", bold),
			text.New(billing.LegalName, props.Text{Size: 9, Top: 5}),
			text.New(billingAddress(billing), props.Text{Size: 9, Top: 9}),
			text.New(billing.Email, props.Text{Size: 9, Top: 20}),
			text.New(taxIDLine(billing), props.Text{Size: 9, Top: 24}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", bold),
		text.NewCol(2, "Qty", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	for _, line := range invoice.LineItems {
		m.AddRow(8,
			text.NewCol(6, line.Description, small),
			text.NewCol(2, fmt.Sprintf("%d", line.Quantity), right),
			text.NewCol(2, money.Format(line.UnitPriceCents, invoice.Currency), right),
			text.NewCol(2, money.Format(line.TotalCents, invoice.Currency), right),
		)
	}

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Subtotal", small),
		text.NewCol(2, money.Display(invoice.SubtotalCents, invoice.Currency), right),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Tax ("+invoice.TaxRate.String()+"%)", small),
		text.NewCol(2, money.Display(invoice.TaxCents, invoice.Currency), right),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total", bold),
		text.NewCol(2, money.Display(invoice.TotalCents, invoice.Currency), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func billingAddress(b invoicedomain.BillingSnapshot) string {
	parts := make([]string, 0, 6)
	for _, p := range []string{b.AddressLine1, b.AddressLine2, strings.TrimSpace(b.PostalCode + " " + b.City), b.Region, b.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func taxIDLine(b invoicedomain.BillingSnapshot) string {
	if b.TaxID == "" {
		return ""
	}
	return "Tax ID: " + b.TaxID
}
