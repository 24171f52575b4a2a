package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"
)

const txMaxTries = 4

// RetryTx runs fn in a transaction and re-runs the whole transaction when it
// loses a serialization or lock race. fn must not carry state across attempts.
func RetryTx(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 400 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := conn.WithContext(ctx).Transaction(fn)
		if err != nil && !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(txMaxTries))
	return err
}
