package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingprofiledomain "github.com/smallbiznis/audiostore/internal/billingprofile/domain"
	billingprofileservice "github.com/smallbiznis/audiostore/internal/billingprofile/service"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
	"github.com/smallbiznis/audiostore/internal/clock"
	"github.com/smallbiznis/audiostore/internal/config"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	discountrepository "github.com/smallbiznis/audiostore/internal/discount/repository"
	discountservice "github.com/smallbiznis/audiostore/internal/discount/service"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/audiostore/internal/invoice/repository"
	"github.com/smallbiznis/audiostore/internal/payment/adapters"
	"github.com/smallbiznis/audiostore/internal/payment/paymenttest"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	purchaserepository "github.com/smallbiznis/audiostore/internal/purchase/repository"
	purchaseservice "github.com/smallbiznis/audiostore/internal/purchase/service"
	"github.com/smallbiznis/audiostore/internal/storetest"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/audiostore/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/audiostore/internal/subscription/service"
	taxservice "github.com/smallbiznis/audiostore/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingRenderer struct {
	mu       sync.Mutex
	rendered []snowflake.ID
	err      error
}

func (r *recordingRenderer) RenderInvoice(ctx context.Context, invoice invoicedomain.Invoice) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.rendered = append(r.rendered, invoice.ID)
	return "mem://invoices/" + invoice.DisplayNumber + ".pdf", nil
}

type fixture struct {
	svc           invoicedomain.Service
	purchases     purchasedomain.Service
	discounts     discountdomain.Service
	subscriptions subscriptiondomain.Service
	profiles      billingprofiledomain.Service
	renderer      *recordingRenderer
	db            *gorm.DB
	clock         *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := storetest.Open(t)
	node := storetest.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	discountRepo := discountrepository.Provide()
	discounts := discountservice.NewService(discountservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: discountRepo,
	})
	purchases := purchaseservice.NewService(purchaseservice.Params{
		DB:           conn,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Repo:         purchaserepository.Provide(),
		DiscountSvc:  discounts,
		DiscountRepo: discountRepo,
		Processors:   adapters.NewStaticRegistry("fake", paymenttest.NewFakeProcessor("fake")),
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: subscriptionrepository.Provide(),
	})
	profiles := billingprofileservice.NewService(billingprofileservice.Params{DB: conn, Log: log, GenID: node})
	rates := taxservice.NewResolver(taxservice.ResolverParam{
		Commerce: config.NewStaticCommerceConfigHolder(config.CommerceConfig{
			Tax: config.TaxConfig{DefaultRate: "0", Rates: map[string]string{"DE": "19"}},
		}),
	})
	renderer := &recordingRenderer{}

	svc := NewService(Params{
		DB:            conn,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Config:        config.Config{InvoiceNumberTemplate: "INV-{YYYY}-{SEQ6}"},
		Repo:          invoicerepository.Provide(),
		Purchases:     purchases,
		Subscriptions: subscriptions,
		Profiles:      profiles,
		Rates:         rates,
		Renderer:      renderer,
	})
	return &fixture{
		svc:           svc,
		purchases:     purchases,
		discounts:     discounts,
		subscriptions: subscriptions,
		profiles:      profiles,
		renderer:      renderer,
		db:            conn,
		clock:         clk,
	}
}

func (f *fixture) completedPurchase(t *testing.T, userID snowflake.ID, code string) *purchasedomain.Purchase {
	t.Helper()
	ctx := context.Background()
	checkout, err := f.purchases.CreateOrder(ctx, purchasedomain.CreateOrderRequest{
		UserID: userID,
		Cart: catalogdomain.CartSnapshot{Items: []catalogdomain.CartItem{
			{ContentID: 101, Title: "Dune", UnitPriceCents: 600, Currency: "USD"},
			{ContentID: 102, Title: "Emma", UnitPriceCents: 400, Currency: "USD"},
		}},
		DiscountCode: code,
	})
	require.NoError(t, err)
	purchase, err := f.purchases.CaptureOrder(ctx, checkout.Purchase.ExternalOrderID)
	require.NoError(t, err)
	require.Equal(t, purchasedomain.StatusCompleted, purchase.Status)
	return purchase
}

func assertReconciles(t *testing.T, invoice *invoicedomain.Invoice) {
	t.Helper()
	var sum int64
	for _, line := range invoice.LineItems {
		sum += line.TotalCents
	}
	assert.Equal(t, invoice.SubtotalCents, sum)
	assert.Equal(t, invoice.SubtotalCents+invoice.TaxCents, invoice.TotalCents)
}

func TestIssueForPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.profiles.UpsertProfile(ctx, billingprofiledomain.UpsertProfileRequest{
		UserID:    7,
		LegalName: "Ada Listener",
		Email:     "ada@example.com",
		Country:   "de",
	})
	require.NoError(t, err)
	purchase := f.completedPurchase(t, 7, "")

	invoice, err := f.svc.IssueForPurchase(ctx, purchase.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(1), invoice.InvoiceNumber)
	assert.Equal(t, "INV-2026-000001", invoice.DisplayNumber)
	assert.Equal(t, invoicedomain.InvoiceStatusIssued, invoice.Status)
	assert.Equal(t, invoicedomain.SourcePurchase, invoice.SourceType)
	assert.Equal(t, purchase.ID, invoice.SourceID)
	assert.Equal(t, "USD", invoice.Currency)
	assert.Equal(t, int64(1000), invoice.SubtotalCents)
	assert.True(t, invoice.TaxRate.Equal(decimal.NewFromInt(19)))
	assert.Equal(t, int64(190), invoice.TaxCents)
	assert.Equal(t, int64(1190), invoice.TotalCents)

	stored, err := f.svc.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, stored.LineItems, 2)
	assert.Equal(t, "Dune", stored.LineItems[0].Description)
	assert.Equal(t, int64(600), stored.LineItems[0].UnitPriceCents)
	assert.Equal(t, int64(1), stored.LineItems[0].Quantity)
	assertReconciles(t, stored)

	billing, err := stored.Billing()
	require.NoError(t, err)
	assert.Equal(t, "Ada Listener", billing.LegalName)
	assert.Equal(t, "DE", billing.Country)
}

func TestIssueForPurchaseSnapshotIsNotLiveProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.profiles.UpsertProfile(ctx, billingprofiledomain.UpsertProfileRequest{UserID: 7, LegalName: "Before"})
	require.NoError(t, err)
	purchase := f.completedPurchase(t, 7, "")

	invoice, err := f.svc.IssueForPurchase(ctx, purchase.ID)
	require.NoError(t, err)

	_, err = f.profiles.UpsertProfile(ctx, billingprofiledomain.UpsertProfileRequest{UserID: 7, LegalName: "After"})
	require.NoError(t, err)

	stored, err := f.svc.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	billing, err := stored.Billing()
	require.NoError(t, err)
	assert.Equal(t, "Before", billing.LegalName)
}

func TestIssueForPurchaseWithoutProfileUsesEmptySnapshot(t *testing.T) {
	f := newFixture(t)
	purchase := f.completedPurchase(t, 7, "")

	invoice, err := f.svc.IssueForPurchase(context.Background(), purchase.ID)
	require.NoError(t, err)

	billing, err := invoice.Billing()
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.BillingSnapshot{}, billing)
	assert.Equal(t, int64(0), invoice.TaxCents)
	assert.Equal(t, int64(1000), invoice.TotalCents)
}

func TestIssueForPurchaseUsesDiscountedPrices(t *testing.T) {
	f := newFixture(t)
	_, err := f.discounts.CreateCode(context.Background(), discountdomain.CreateCodeRequest{
		Code:               "SAVE20",
		Kind:               discountdomain.KindPercentage,
		Value:              20,
		AppliesToPurchases: true,
	})
	require.NoError(t, err)
	purchase := f.completedPurchase(t, 7, "SAVE20")

	invoice, err := f.svc.IssueForPurchase(context.Background(), purchase.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(800), invoice.SubtotalCents)
	require.Len(t, invoice.LineItems, 2)
	assert.Equal(t, int64(480), invoice.LineItems[0].UnitPriceCents)
	assert.Equal(t, int64(320), invoice.LineItems[1].UnitPriceCents)
	assertReconciles(t, invoice)
}

func TestIssueForPurchaseTwiceConsumesNoNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.completedPurchase(t, 7, "")
	second := f.completedPurchase(t, 8, "")

	_, err := f.svc.IssueForPurchase(ctx, first.ID)
	require.NoError(t, err)

	_, err = f.svc.IssueForPurchase(ctx, first.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrAlreadyInvoiced)

	next, err := f.svc.IssueForPurchase(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.InvoiceNumber)

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestIssueForPurchaseRequiresCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	checkout, err := f.purchases.CreateOrder(ctx, purchasedomain.CreateOrderRequest{
		UserID: 7,
		Cart: catalogdomain.CartSnapshot{Items: []catalogdomain.CartItem{
			{ContentID: 101, Title: "Dune", UnitPriceCents: 600, Currency: "USD"},
		}},
	})
	require.NoError(t, err)

	_, err = f.svc.IssueForPurchase(ctx, checkout.Purchase.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrPurchaseNotCompleted)

	_, err = f.svc.IssueForPurchase(ctx, 0)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidSource)

	_, err = f.svc.IssueForPurchase(ctx, 424242)
	assert.ErrorIs(t, err, purchasedomain.ErrPurchaseNotFound)
}

func TestConcurrentIssuanceNumbersAreGapFree(t *testing.T) {
	f := newFixture(t)
	const n = 8

	purchases := make([]*purchasedomain.Purchase, n)
	for i := range purchases {
		purchases[i] = f.completedPurchase(t, snowflake.ID(100+i), "")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
		errs    []error
	)
	for _, purchase := range purchases {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			invoice, err := f.svc.IssueForPurchase(context.Background(), id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, invoice.InvoiceNumber)
		}(purchase.ID)
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, numbers)
}

func TestIssueForSubscriptionCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	sub, err := f.subscriptions.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID:             9,
		PlanID:             "premium-monthly",
		PlanName:           "Premium",
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	})
	require.NoError(t, err)
	charge, err := f.subscriptions.RecordCharge(ctx, subscriptiondomain.RecordChargeRequest{
		SubscriptionID:   sub.ID,
		ExternalChargeID: "ch_1",
		AmountCents:      999,
		Currency:         "eur",
		PeriodStart:      start,
		PeriodEnd:        end,
	})
	require.NoError(t, err)

	invoice, err := f.svc.IssueForSubscriptionCharge(ctx, charge.ID)
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.SourceSubscriptionCharge, invoice.SourceType)
	assert.Equal(t, snowflake.ID(9), invoice.UserID)
	assert.Equal(t, "EUR", invoice.Currency)
	assert.Equal(t, int64(999), invoice.SubtotalCents)
	require.Len(t, invoice.LineItems, 1)
	assert.Equal(t, "Premium (2026-04-01 to 2026-05-01)", invoice.LineItems[0].Description)
	assertReconciles(t, invoice)

	_, err = f.svc.IssueForSubscriptionCharge(ctx, charge.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrAlreadyInvoiced)

	found, err := f.svc.GetBySource(ctx, invoicedomain.SourceSubscriptionCharge, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, found.ID)
}

func TestInvoiceStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchase := f.completedPurchase(t, 7, "")
	invoice, err := f.svc.IssueForPurchase(ctx, purchase.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	paid, err := f.svc.MarkPaid(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, invoice.TotalCents, paid.TotalCents)

	again, err := f.svc.MarkPaid(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, again.Status)

	cancelled, err := f.svc.Cancel(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.MarkPaid(ctx, invoice.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidState)

	_, err = f.svc.Cancel(ctx, 99)
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}

func TestIssuedInvoiceIsRendered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchase := f.completedPurchase(t, 7, "")

	invoice, err := f.svc.IssueForPurchase(ctx, purchase.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		stored, err := f.svc.GetByID(ctx, invoice.ID)
		return err == nil && stored.Document != nil
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := f.svc.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Document)
	assert.Equal(t, "mem://invoices/INV-2026-000001.pdf", stored.Document.Location)
}

func TestRenderFailureKeepsInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.renderer.err = errors.New("disk full")
	purchase := f.completedPurchase(t, 7, "")

	invoice, err := f.svc.IssueForPurchase(ctx, purchase.ID)
	require.NoError(t, err)

	stored, err := f.svc.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Document)
}

func TestCheckTotalsRejectsMismatch(t *testing.T) {
	invoice := &invoicedomain.Invoice{SubtotalCents: 1000, TaxCents: 100, TotalCents: 1100}
	lines := []invoicedomain.LineItem{
		{Position: 1, Quantity: 1, UnitPriceCents: 600, TotalCents: 600},
		{Position: 2, Quantity: 1, UnitPriceCents: 399, TotalCents: 399},
	}
	assert.ErrorIs(t, checkTotals(invoice, lines), invoicedomain.ErrInvariantViolation)

	lines[1].UnitPriceCents, lines[1].TotalCents = 400, 400
	assert.NoError(t, checkTotals(invoice, lines))

	invoice.TotalCents = 1099
	assert.ErrorIs(t, checkTotals(invoice, lines), invoicedomain.ErrInvariantViolation)
}
