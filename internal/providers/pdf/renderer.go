package pdf

import (
	"context"
	"path"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/audiostore/internal/config"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(NewStore),
	fx.Provide(fx.Annotate(NewRenderer, fx.As(new(invoicedomain.DocumentRenderer)))),
)

type RendererParams struct {
	fx.In

	Config config.Config
	Store  Store
	Log    *zap.Logger
}

type Renderer struct {
	store  Store
	seller Seller
	log    *zap.Logger
}

func NewRenderer(p RendererParams) *Renderer {
	return &Renderer{
		store: p.Store,
		seller: Seller{
			Name:    p.Config.Documents.SellerName,
			Address: p.Config.Documents.SellerAddress,
			Email:   p.Config.Documents.SellerEmail,
		},
		log: p.Log.Named("providers.pdf"),
	}
}

func (r *Renderer) RenderInvoice(ctx context.Context, invoice invoicedomain.Invoice) (string, error) {
	body, err := InvoicePDF(invoice, r.seller)
	if err != nil {
		return "", err
	}
	location, err := r.store.Put(ctx, ObjectKey(invoice), body)
	if err != nil {
		return "", err
	}
	r.log.Debug("invoice document stored",
		zap.String("invoice_id", invoice.ID.String()),
		zap.Int("bytes", len(body)),
	)
	return location, nil
}

// ObjectKey groups documents by issue year, e.g. invoices/2026/inv-2026-000001.pdf.
func ObjectKey(invoice invoicedomain.Invoice) string {
	name := slug.Make(invoice.DisplayNumber)
	if name == "" {
		name = invoice.ID.String()
	}
	return path.Join("invoices", invoice.IssuedAt.UTC().Format("2006"), name+".pdf")
}
