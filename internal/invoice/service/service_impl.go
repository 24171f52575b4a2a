package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingprofiledomain "github.com/smallbiznis/audiostore/internal/billingprofile/domain"
	"github.com/smallbiznis/audiostore/internal/clock"
	"github.com/smallbiznis/audiostore/internal/config"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	"github.com/smallbiznis/audiostore/internal/invoice/format"
	"github.com/smallbiznis/audiostore/internal/observability/logger"
	"github.com/smallbiznis/audiostore/internal/observability/metrics"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
	taxdomain "github.com/smallbiznis/audiostore/internal/tax/domain"
	taxservice "github.com/smallbiznis/audiostore/internal/tax/service"
	"github.com/smallbiznis/audiostore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const renderTimeout = 30 * time.Second

var errDuplicateInvoice = errors.New("duplicate invoice row")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        config.Config
	Repo          invoicedomain.Repository
	Purchases     purchasedomain.Service
	Subscriptions subscriptiondomain.Service
	Profiles      billingprofiledomain.Service
	Rates         taxdomain.RateProvider
	Renderer      invoicedomain.DocumentRenderer `optional:"true"`
	Metrics       *metrics.Metrics               `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  invoicedomain.Repository

	purchasesvc     purchasedomain.Service
	subscriptionsvc subscriptiondomain.Service
	profilesvc      billingprofiledomain.Service
	rates           taxdomain.RateProvider
	renderer        invoicedomain.DocumentRenderer
	metrics         *metrics.Metrics
	numberTemplate  string
}

func NewService(p Params) invoicedomain.Service {
	template := strings.TrimSpace(p.Config.InvoiceNumberTemplate)
	if template == "" {
		template = format.DefaultTemplate
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		purchasesvc:     p.Purchases,
		subscriptionsvc: p.Subscriptions,
		profilesvc:      p.Profiles,
		rates:           p.Rates,
		renderer:        p.Renderer,
		metrics:         p.Metrics,
		numberTemplate:  template,
	}
}

// draft is an invoice waiting for its number. subtotal is the amount the
// source says was charged; the lines must add up to it.
type draft struct {
	sourceType invoicedomain.SourceType
	sourceID   snowflake.ID
	userID     snowflake.ID
	currency   string
	subtotal   int64
	lines      []invoicedomain.LineItem
}

func (s *Service) IssueForPurchase(ctx context.Context, purchaseID snowflake.ID) (*invoicedomain.Invoice, error) {
	if purchaseID == 0 {
		return nil, invoicedomain.ErrInvalidSource
	}
	purchase, err := s.purchasesvc.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Status != purchasedomain.StatusCompleted {
		return nil, invoicedomain.ErrPurchaseNotCompleted
	}

	lines := make([]invoicedomain.LineItem, 0, len(purchase.Items))
	for i, item := range purchase.Items {
		lines = append(lines, invoicedomain.LineItem{
			Position:       i + 1,
			Description:    item.Title,
			Quantity:       1,
			UnitPriceCents: item.PricePaidCents,
			TotalCents:     item.PricePaidCents,
		})
	}

	return s.issue(ctx, draft{
		sourceType: invoicedomain.SourcePurchase,
		sourceID:   purchase.ID,
		userID:     purchase.UserID,
		currency:   purchase.Currency,
		subtotal:   purchase.PricePaidCents,
		lines:      lines,
	})
}

func (s *Service) IssueForSubscriptionCharge(ctx context.Context, chargeID snowflake.ID) (*invoicedomain.Invoice, error) {
	if chargeID == 0 {
		return nil, invoicedomain.ErrInvalidSource
	}
	charge, err := s.subscriptionsvc.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%s (%s to %s)",
		charge.PlanName,
		charge.PeriodStart.UTC().Format("2006-01-02"),
		charge.PeriodEnd.UTC().Format("2006-01-02"),
	)
	return s.issue(ctx, draft{
		sourceType: invoicedomain.SourceSubscriptionCharge,
		sourceID:   charge.ID,
		userID:     charge.UserID,
		currency:   charge.Currency,
		subtotal:   charge.AmountCents,
		lines: []invoicedomain.LineItem{{
			Position:       1,
			Description:    description,
			Quantity:       1,
			UnitPriceCents: charge.AmountCents,
			TotalCents:     charge.AmountCents,
		}},
	})
}

func (s *Service) issue(ctx context.Context, d draft) (*invoicedomain.Invoice, error) {
	log := logger.WithContext(ctx, s.log).With(
		zap.String("source_type", string(d.sourceType)),
		zap.String("source_id", d.sourceID.String()),
	)

	profile, err := s.profilesvc.GetProfile(ctx, d.userID)
	if err != nil {
		return nil, err
	}
	rate, err := s.rates.RateFor(ctx, profile)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(snapshotOf(profile))
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	taxCents := taxservice.ComputeTax(d.subtotal, rate)
	invoice := &invoicedomain.Invoice{
		ID:              s.genID.Generate(),
		UserID:          d.userID,
		SourceType:      d.sourceType,
		SourceID:        d.sourceID,
		Status:          invoicedomain.InvoiceStatusIssued,
		Currency:        d.currency,
		SubtotalCents:   d.subtotal,
		TaxRate:         rate,
		TaxCents:        taxCents,
		TotalCents:      d.subtotal + taxCents,
		BillingSnapshot: datatypes.JSON(snapshot),
		IssuedAt:        now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range d.lines {
		d.lines[i].ID = s.genID.Generate()
		d.lines[i].InvoiceID = invoice.ID
		d.lines[i].TaxRate = rate
		d.lines[i].CreatedAt = now
	}

	err = db.RetryTx(ctx, s.db, func(tx *gorm.DB) error {
		existing, err := s.repo.FindBySource(ctx, tx, d.sourceType, d.sourceID)
		if err != nil {
			return err
		}
		if existing != nil {
			return invoicedomain.ErrAlreadyInvoiced
		}

		number, err := s.repo.NextNumber(ctx, tx, invoicedomain.SequenceInvoice, now)
		if err != nil {
			return err
		}
		display, err := format.DisplayNumber(s.numberTemplate, now, number)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number
		invoice.DisplayNumber = display

		if err := s.repo.Insert(ctx, tx, invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errDuplicateInvoice
			}
			return err
		}
		if err := s.repo.InsertLineItems(ctx, tx, d.lines); err != nil {
			return err
		}

		stored, err := s.repo.FindLineItems(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		return checkTotals(invoice, stored)
	})
	switch {
	case err == nil:
	case errors.Is(err, errDuplicateInvoice):
		existing, findErr := s.repo.FindBySource(ctx, s.db, d.sourceType, d.sourceID)
		if findErr == nil && existing != nil {
			return nil, invoicedomain.ErrAlreadyInvoiced
		}
		log.Error("invoice number collision", zap.Int64("invoice_number", invoice.InvoiceNumber))
		return nil, fmt.Errorf("%w: invoice number %d already used", invoicedomain.ErrInvariantViolation, invoice.InvoiceNumber)
	case errors.Is(err, invoicedomain.ErrInvariantViolation):
		log.Error("invoice totals do not reconcile", zap.Error(err))
		return nil, err
	default:
		return nil, err
	}

	invoice.LineItems = d.lines
	s.metrics.RecordInvoiceIssued(ctx, string(d.sourceType))
	log.Info("invoice issued",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.DisplayNumber),
		zap.Int64("total_cents", invoice.TotalCents),
	)

	s.requestRender(ctx, *invoice)
	return invoice, nil
}

// checkTotals asserts that the line items add up to the subtotal and that the
// total is subtotal plus tax.
func checkTotals(invoice *invoicedomain.Invoice, lines []invoicedomain.LineItem) error {
	var sum int64
	for _, line := range lines {
		if line.Quantity <= 0 || line.TotalCents != line.Quantity*line.UnitPriceCents {
			return fmt.Errorf("%w: line %d total %d", invoicedomain.ErrInvariantViolation, line.Position, line.TotalCents)
		}
		sum += line.TotalCents
	}
	if sum != invoice.SubtotalCents {
		return fmt.Errorf("%w: lines sum to %d, subtotal %d", invoicedomain.ErrInvariantViolation, sum, invoice.SubtotalCents)
	}
	if invoice.TaxCents < 0 || invoice.TotalCents != invoice.SubtotalCents+invoice.TaxCents {
		return fmt.Errorf("%w: total %d, subtotal %d, tax %d", invoicedomain.ErrInvariantViolation,
			invoice.TotalCents, invoice.SubtotalCents, invoice.TaxCents)
	}
	return nil
}

func snapshotOf(profile *billingprofiledomain.Profile) invoicedomain.BillingSnapshot {
	if profile == nil {
		return invoicedomain.BillingSnapshot{}
	}
	return invoicedomain.BillingSnapshot{
		LegalName:    profile.LegalName,
		Email:        profile.Email,
		AddressLine1: profile.AddressLine1,
		AddressLine2: profile.AddressLine2,
		City:         profile.City,
		PostalCode:   profile.PostalCode,
		Region:       profile.Region,
		Country:      profile.Country,
		TaxID:        profile.TaxID,
	}
}

// requestRender hands the invoice to the renderer without waiting for it.
// A failed render leaves the invoice without a document.
func (s *Service) requestRender(ctx context.Context, invoice invoicedomain.Invoice) {
	if s.renderer == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := logger.WithContext(ctx, s.log).With(zap.String("invoice_id", invoice.ID.String()))

	go func() {
		ctx, cancel := context.WithTimeout(ctx, renderTimeout)
		defer cancel()

		location, err := s.renderer.RenderInvoice(ctx, invoice)
		if err != nil {
			log.Warn("invoice render failed", zap.Error(err))
			return
		}
		doc := &invoicedomain.Document{
			InvoiceID:  invoice.ID,
			Location:   location,
			RenderedAt: s.clock.Now().UTC(),
		}
		if err := s.repo.SaveDocument(ctx, s.db, doc); err != nil {
			log.Warn("store invoice document failed", zap.Error(err))
			return
		}
		log.Debug("invoice rendered", zap.String("location", location))
	}()
}

func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.transition(ctx, id, invoicedomain.InvoiceStatusPaid, invoicedomain.InvoiceStatusIssued)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.transition(ctx, id, invoicedomain.InvoiceStatusCancelled,
		invoicedomain.InvoiceStatusIssued, invoicedomain.InvoiceStatusPaid)
}

// transition moves an invoice to status `to`. Repeating a transition that
// already happened returns the invoice unchanged.
func (s *Service) transition(ctx context.Context, id snowflake.ID, to invoicedomain.InvoiceStatus, from ...invoicedomain.InvoiceStatus) (*invoicedomain.Invoice, error) {
	var result *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.Status == to {
			result = invoice
			return nil
		}
		if !slices.Contains(from, invoice.Status) {
			return invoicedomain.ErrInvalidState
		}

		updated, err := s.repo.UpdateStatus(ctx, tx, id, from, to, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if !updated {
			return invoicedomain.ErrInvalidState
		}
		result, err = s.repo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("invoice status changed",
		zap.String("invoice_id", id.String()),
		zap.String("status", string(result.Status)),
	)
	return s.withDetails(ctx, result)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return s.withDetails(ctx, invoice)
}

func (s *Service) GetBySource(ctx context.Context, sourceType invoicedomain.SourceType, sourceID snowflake.ID) (*invoicedomain.Invoice, error) {
	if !sourceType.Valid() || sourceID == 0 {
		return nil, invoicedomain.ErrInvalidSource
	}
	invoice, err := s.repo.FindBySource(ctx, s.db, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return s.withDetails(ctx, invoice)
}

func (s *Service) withDetails(ctx context.Context, invoice *invoicedomain.Invoice) (*invoicedomain.Invoice, error) {
	lines, err := s.repo.FindLineItems(ctx, s.db, invoice.ID)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.FindDocument(ctx, s.db, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice.LineItems = lines
	invoice.Document = doc
	return invoice, nil
}
