package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	"github.com/smallbiznis/audiostore/internal/observability/logger"
	"github.com/smallbiznis/audiostore/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/audiostore/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	"github.com/smallbiznis/audiostore/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errLostTransition = errors.New("purchase transition lost")

func (s *Service) CaptureOrder(ctx context.Context, externalOrderID string) (*purchasedomain.Purchase, error) {
	externalOrderID = strings.TrimSpace(externalOrderID)
	if externalOrderID == "" {
		return nil, purchasedomain.ErrInvalidOrder
	}

	purchase, err := s.GetByExternalOrderID(ctx, externalOrderID)
	if err != nil {
		return nil, err
	}
	switch purchase.Status {
	case purchasedomain.StatusCompleted:
		return purchase, nil
	case purchasedomain.StatusPending:
	default:
		return nil, fmt.Errorf("%w: cannot capture %s purchase", purchasedomain.ErrInvalidState, purchase.Status)
	}

	processor, err := s.processors.Get(purchase.Processor)
	if err != nil {
		return nil, err
	}

	capture, err := s.captureWithProcessor(ctx, processor, externalOrderID)
	if err != nil {
		return s.handleCaptureError(ctx, purchase, err)
	}
	return s.complete(ctx, purchase, capture)
}

func (s *Service) captureWithProcessor(ctx context.Context, processor paymentdomain.Processor, orderID string) (*paymentdomain.Capture, error) {
	ctx, span := s.tracer.Start(ctx, "payment.capture_order", trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("payment.processor", processor.Name()),
		attribute.String("payment.order_id", orderID),
	)...))
	defer span.End()

	capture, err := processor.CaptureOrder(ctx, orderID)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "capture failed")
		return nil, err
	}
	return capture, nil
}

func (s *Service) handleCaptureError(ctx context.Context, purchase *purchasedomain.Purchase, captureErr error) (*purchasedomain.Purchase, error) {
	log := logger.WithContext(ctx, s.log).With(
		zap.String("purchase_id", purchase.ID.String()),
		zap.String("external_order_id", purchase.ExternalOrderID),
	)

	// A concurrent capture may have won while this one was in flight.
	current, err := s.loadTx(ctx, s.db, purchase.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == purchasedomain.StatusCompleted {
		return current, nil
	}

	if !errors.Is(captureErr, paymentdomain.ErrPaymentDeclined) {
		log.Warn("capture outcome unknown, purchase stays pending", zap.Error(captureErr))
		return nil, wrapProcessorErr("capture order", captureErr)
	}

	ok, err := s.repo.MarkFailed(ctx, s.db, purchase.ID, purchasedomain.FailureReasonDeclined, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if ok {
		s.metrics.RecordPurchase(ctx, string(purchasedomain.StatusFailed), purchase.Processor)
		log.Info("payment declined, purchase failed")
	}
	return nil, fmt.Errorf("capture order: %w", captureErr)
}

func (s *Service) complete(ctx context.Context, pending *purchasedomain.Purchase, capture *paymentdomain.Capture) (*purchasedomain.Purchase, error) {
	log := logger.WithContext(ctx, s.log).With(
		zap.String("purchase_id", pending.ID.String()),
		zap.String("external_order_id", pending.ExternalOrderID),
	)

	var (
		result    *purchasedomain.Purchase
		completed bool
		redeemed  *discountdomain.DiscountCode
		rejection discountdomain.Reason
	)
	err := db.RetryTx(ctx, s.db, func(tx *gorm.DB) error {
		result, completed, redeemed, rejection = nil, false, nil, ""

		current, err := s.repo.FindByIDForUpdate(ctx, tx, pending.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return purchasedomain.ErrPurchaseNotFound
		}
		if current.Status == purchasedomain.StatusCompleted {
			result, err = s.withItems(ctx, tx, current)
			return err
		}
		if current.Status != purchasedomain.StatusPending {
			return fmt.Errorf("%w: captured payment for %s purchase", purchasedomain.ErrInvalidState, current.Status)
		}

		now := s.clock.Now()
		items, err := s.repo.FindItems(ctx, tx, current.ID)
		if err != nil {
			return err
		}

		if current.DiscountCodeID != nil {
			code, reason, err := s.redeemDiscount(ctx, tx, current, now)
			if err != nil {
				return err
			}
			redeemed = code
			rejection = reason
			if reason != "" {
				current.DiscountCents = 0
				current.PricePaidCents = current.SubtotalCents
				current.DiscountRejectedReason = string(reason)
				for i := range items {
					if items[i].PricePaidCents == items[i].UnitPriceCents {
						continue
					}
					items[i].PricePaidCents = items[i].UnitPriceCents
					if err := s.repo.UpdateItemPricePaid(ctx, tx, items[i].ID, items[i].PricePaidCents); err != nil {
						return err
					}
				}
			}
		}

		current.Status = purchasedomain.StatusCompleted
		current.ExternalCaptureID = capture.CaptureID
		current.PayerEmail = capture.PayerEmail
		current.AmountCapturedCents = capture.AmountCapturedCents
		current.PurchasedAt = &now
		current.UpdatedAt = now

		ok, err := s.repo.Complete(ctx, tx, current)
		if err != nil {
			return err
		}
		if !ok {
			return errLostTransition
		}
		current.Items = items
		result = current
		completed = true
		return nil
	})
	if errors.Is(err, errLostTransition) {
		current, loadErr := s.loadTx(ctx, s.db, pending.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status == purchasedomain.StatusCompleted {
			return current, nil
		}
		return nil, fmt.Errorf("%w: purchase is %s", purchasedomain.ErrInvalidState, current.Status)
	}
	if err != nil {
		if errors.Is(err, purchasedomain.ErrInvalidState) {
			log.Error("payment captured for a purchase that is no longer pending",
				zap.String("capture_id", capture.CaptureID),
				zap.Int64("amount_captured_cents", capture.AmountCapturedCents),
				zap.Error(err),
			)
		}
		return nil, err
	}

	if !completed {
		return result, nil
	}

	s.metrics.RecordPurchase(ctx, string(purchasedomain.StatusCompleted), result.Processor)
	if redeemed != nil && rejection == "" {
		s.metrics.RecordRedemption(ctx, string(redeemed.Kind))
	}
	if rejection != "" {
		s.metrics.RecordDiscountRejected(ctx, string(rejection))
		log.Warn("discount rejected at completion, charged at full price",
			zap.String("discount_code", result.DiscountCode),
			zap.String("reason", string(rejection)),
			zap.Int64("price_paid_cents", result.PricePaidCents),
			zap.Int64("amount_captured_cents", result.AmountCapturedCents),
			zap.Int64("shortfall_cents", result.PricePaidCents-result.AmountCapturedCents),
		)
	}
	log.Info("purchase completed",
		zap.String("capture_id", result.ExternalCaptureID),
		zap.Int64("price_paid_cents", result.PricePaidCents),
	)
	return result, nil
}

// redeemDiscount re-checks the code under its row lock. A non-empty reason
// means the purchase completes at full price; err aborts the transaction.
func (s *Service) redeemDiscount(ctx context.Context, tx *gorm.DB, purchase *purchasedomain.Purchase, now time.Time) (*discountdomain.DiscountCode, discountdomain.Reason, error) {
	code, err := s.discountRepo.FindByIDForUpdate(ctx, tx, *purchase.DiscountCodeID)
	if err != nil {
		return nil, "", err
	}
	if code == nil {
		return nil, discountdomain.ReasonNotFound, nil
	}

	var redemptions int64
	if code.MaxUsesPerUser != nil {
		redemptions, err = s.discountRepo.CountRedemptions(ctx, tx, code.ID, purchase.UserID)
		if err != nil {
			return nil, "", err
		}
	}

	_, evalErr := discountdomain.Evaluate(*code, discountdomain.Input{
		CartTotalCents:  purchase.SubtotalCents,
		UserRedemptions: redemptions,
		Now:             now,
	})
	if evalErr != nil {
		reason := discountdomain.ReasonOf(evalErr)
		if reason == "" {
			return nil, "", evalErr
		}
		return code, reason, nil
	}

	ok, err := s.discountRepo.IncrementUsage(ctx, tx, code.ID, now)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return code, discountdomain.ReasonExhaustedTotal, nil
	}

	err = s.discountRepo.InsertRedemption(ctx, tx, &discountdomain.Redemption{
		ID:                  s.genID.Generate(),
		DiscountCodeID:      code.ID,
		UserID:              purchase.UserID,
		PurchaseID:          purchase.ID,
		DiscountAmountCents: purchase.DiscountCents,
		RedeemedAt:          now,
	})
	if err != nil {
		return nil, "", err
	}
	return code, "", nil
}
