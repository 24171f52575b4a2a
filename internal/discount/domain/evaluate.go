package domain

import "time"

// Input is everything Evaluate needs besides the code itself.
type Input struct {
	CartTotalCents  int64
	UserRedemptions int64
	ForSubscription bool
	Now             time.Time
}

// Evaluate applies the code's rules to the input. It performs no I/O and is the
// single place a discount amount is computed, both for previews and at capture.
func Evaluate(code DiscountCode, in Input) (Quote, error) {
	if !code.IsActive {
		return Quote{}, ErrCodeInactive
	}
	if code.ValidFrom != nil && in.Now.Before(*code.ValidFrom) {
		return Quote{}, ErrCodeOutOfWindow
	}
	if code.ValidUntil != nil && in.Now.After(*code.ValidUntil) {
		return Quote{}, ErrCodeOutOfWindow
	}
	if in.CartTotalCents < code.MinPurchaseCents {
		return Quote{}, ErrBelowMinimum
	}
	if code.MaxUsesTotal != nil && code.UsedCount >= *code.MaxUsesTotal {
		return Quote{}, ErrExhaustedTotal
	}
	if code.MaxUsesPerUser != nil && in.UserRedemptions >= *code.MaxUsesPerUser {
		return Quote{}, ErrExhaustedPerUser
	}
	if in.ForSubscription && !code.AppliesToSubscriptions {
		return Quote{}, ErrNotApplicable
	}
	if !in.ForSubscription && !code.AppliesToPurchases {
		return Quote{}, ErrNotApplicable
	}

	total := in.CartTotalCents
	if total < 0 {
		total = 0
	}

	var discount int64
	switch code.Kind {
	case KindPercentage:
		discount = total * code.Value / 100
	case KindFixedAmount:
		discount = min(code.Value, total)
	default:
		return Quote{}, ErrInvalidKind
	}
	discount = max(discount, 0)
	discount = min(discount, total)

	return Quote{
		Valid:               true,
		CodeID:              code.ID,
		Code:                code.Code,
		Kind:                code.Kind,
		CartTotalCents:      total,
		DiscountAmountCents: discount,
		FinalAmountCents:    total - discount,
	}, nil
}
