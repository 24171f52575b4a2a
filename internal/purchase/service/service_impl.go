package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
	"github.com/smallbiznis/audiostore/internal/clock"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	"github.com/smallbiznis/audiostore/internal/observability/logger"
	"github.com/smallbiznis/audiostore/internal/observability/metrics"
	"github.com/smallbiznis/audiostore/internal/observability/tracing"
	"github.com/smallbiznis/audiostore/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/audiostore/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         purchasedomain.Repository
	DiscountSvc  discountdomain.Service
	DiscountRepo discountdomain.Repository
	Processors   *adapters.Registry
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  purchasedomain.Repository

	discountsvc  discountdomain.Service
	discountRepo discountdomain.Repository
	processors   *adapters.Registry
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

func NewService(p Params) purchasedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("purchase.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		discountsvc:  p.DiscountSvc,
		discountRepo: p.DiscountRepo,
		processors:   p.Processors,
		metrics:      p.Metrics,
		tracer:       otel.Tracer("audiostore/purchase"),
	}
}

func (s *Service) CreateOrder(ctx context.Context, req purchasedomain.CreateOrderRequest) (*purchasedomain.Checkout, error) {
	if req.UserID == 0 {
		return nil, purchasedomain.ErrInvalidUser
	}
	if err := req.Cart.Validate(); err != nil {
		return nil, err
	}
	subtotal := req.Cart.TotalCents()
	currency := req.Cart.Currency()

	var quote *discountdomain.Quote
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		var err error
		quote, err = s.discountsvc.Validate(ctx, discountdomain.ValidateRequest{
			Code:           code,
			CartTotalCents: subtotal,
			UserID:         req.UserID,
		})
		if err != nil {
			return nil, err
		}
	}

	var discount int64
	if quote != nil {
		discount = quote.DiscountAmountCents
	}
	final := subtotal - discount
	if final <= 0 {
		return nil, purchasedomain.ErrNothingToCharge
	}

	processor, err := s.processors.Get(req.Processor)
	if err != nil {
		return nil, err
	}

	purchaseID := s.genID.Generate()
	order, err := s.createProcessorOrder(ctx, processor, paymentdomain.OrderRequest{
		AmountCents: final,
		Currency:    currency,
		Reference:   purchaseID.String(),
		Description: orderDescription(req.Cart),
	})
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(req.Cart)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	purchase := &purchasedomain.Purchase{
		ID:              purchaseID,
		UserID:          req.UserID,
		Status:          purchasedomain.StatusPending,
		Processor:       processor.Name(),
		ExternalOrderID: order.ID,
		Currency:        currency,
		SubtotalCents:   subtotal,
		DiscountCents:   discount,
		PricePaidCents:  final,
		CartSnapshot:    datatypes.JSON(snapshot),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if quote != nil {
		codeID := quote.CodeID
		purchase.DiscountCodeID = &codeID
		purchase.DiscountCode = quote.Code
	}

	prices := make([]int64, len(req.Cart.Items))
	for i, item := range req.Cart.Items {
		prices[i] = item.UnitPriceCents
	}
	paid := purchasedomain.AllocateDiscount(prices, discount)

	items := make([]purchasedomain.Item, len(req.Cart.Items))
	for i, item := range req.Cart.Items {
		items[i] = purchasedomain.Item{
			ID:             s.genID.Generate(),
			PurchaseID:     purchase.ID,
			ContentID:      item.ContentID,
			Position:       i,
			Title:          item.Title,
			UnitPriceCents: item.UnitPriceCents,
			PricePaidCents: paid[i],
			Currency:       currency,
			CreatedAt:      now,
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, purchase); err != nil {
			return err
		}
		return s.repo.InsertItems(ctx, tx, items)
	})
	if err != nil {
		// The processor order is left to expire on its side.
		logger.WithContext(ctx, s.log).Error("persist pending purchase failed",
			zap.String("purchase_id", purchase.ID.String()),
			zap.String("external_order_id", order.ID),
			zap.Error(err),
		)
		return nil, err
	}
	purchase.Items = items

	s.metrics.RecordPurchase(ctx, string(purchasedomain.StatusPending), processor.Name())
	logger.WithContext(ctx, s.log).Info("purchase order created",
		zap.String("purchase_id", purchase.ID.String()),
		zap.String("processor", processor.Name()),
		zap.Int64("subtotal_cents", subtotal),
		zap.Int64("discount_cents", discount),
	)

	return &purchasedomain.Checkout{
		Purchase:    purchase,
		ApprovalURL: order.ApprovalURL,
		ClientToken: order.ClientToken,
	}, nil
}

func (s *Service) createProcessorOrder(ctx context.Context, processor paymentdomain.Processor, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "payment.create_order", trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("payment.processor", processor.Name()),
		attribute.Int64("payment.amount_cents", req.AmountCents),
		attribute.String("payment.currency", req.Currency),
	)...))
	defer span.End()

	order, err := processor.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "create order failed")
		return nil, wrapProcessorErr("create order", err)
	}
	return order, nil
}

func orderDescription(cart catalogdomain.CartSnapshot) string {
	if len(cart.Items) == 1 {
		return cart.Items[0].Title
	}
	return fmt.Sprintf("%d audiobooks", len(cart.Items))
}

// wrapProcessorErr keeps declines distinguishable and folds everything else into ErrProcessor.
func wrapProcessorErr(op string, err error) error {
	switch {
	case errors.Is(err, paymentdomain.ErrPaymentDeclined), errors.Is(err, paymentdomain.ErrProcessor):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, paymentdomain.ErrProcessor, err)
	}
}

func (s *Service) Refund(ctx context.Context, purchaseID snowflake.ID) (*purchasedomain.Purchase, error) {
	var result *purchasedomain.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if current == nil {
			return purchasedomain.ErrPurchaseNotFound
		}
		if current.Status != purchasedomain.StatusCompleted {
			return fmt.Errorf("%w: cannot refund %s purchase", purchasedomain.ErrInvalidState, current.Status)
		}
		ok, err := s.repo.MarkRefunded(ctx, tx, current.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return purchasedomain.ErrInvalidState
		}
		result, err = s.loadTx(ctx, tx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPurchase(ctx, string(purchasedomain.StatusRefunded), result.Processor)
	logger.WithContext(ctx, s.log).Info("purchase refunded", zap.String("purchase_id", result.ID.String()))
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*purchasedomain.Purchase, error) {
	return s.loadTx(ctx, s.db, id)
}

func (s *Service) GetByExternalOrderID(ctx context.Context, externalOrderID string) (*purchasedomain.Purchase, error) {
	externalOrderID = strings.TrimSpace(externalOrderID)
	if externalOrderID == "" {
		return nil, purchasedomain.ErrInvalidOrder
	}
	purchase, err := s.repo.FindByExternalOrderID(ctx, s.db, externalOrderID)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, purchasedomain.ErrPurchaseNotFound
	}
	return s.withItems(ctx, s.db, purchase)
}

func (s *Service) loadTx(ctx context.Context, db *gorm.DB, id snowflake.ID) (*purchasedomain.Purchase, error) {
	purchase, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, purchasedomain.ErrPurchaseNotFound
	}
	return s.withItems(ctx, db, purchase)
}

func (s *Service) withItems(ctx context.Context, db *gorm.DB, purchase *purchasedomain.Purchase) (*purchasedomain.Purchase, error) {
	items, err := s.repo.FindItems(ctx, db, purchase.ID)
	if err != nil {
		return nil, err
	}
	purchase.Items = items
	return purchase, nil
}
