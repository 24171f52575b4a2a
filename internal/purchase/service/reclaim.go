package service

import (
	"context"
	"time"

	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	"go.uber.org/zap"
)

func (s *Service) ReclaimStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	now := s.clock.Now()
	cutoff := now.Add(-olderThan)

	stale, err := s.repo.ListStalePending(ctx, s.db, cutoff, limit)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, purchase := range stale {
		if err := ctx.Err(); err != nil {
			return reclaimed, err
		}
		ok, err := s.repo.MarkFailed(ctx, s.db, purchase.ID, purchasedomain.FailureReasonExpired, now)
		if err != nil {
			return reclaimed, err
		}
		if !ok {
			continue
		}
		reclaimed++
		s.metrics.RecordPurchase(ctx, string(purchasedomain.StatusFailed), purchase.Processor)
		s.log.Info("stale pending purchase reclaimed",
			zap.String("purchase_id", purchase.ID.String()),
			zap.String("external_order_id", purchase.ExternalOrderID),
			zap.Time("created_at", purchase.CreatedAt),
		)
	}
	return reclaimed, nil
}
