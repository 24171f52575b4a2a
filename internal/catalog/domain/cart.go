package domain

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrEmptyCart        = errors.New("empty_cart")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
	ErrInvalidCart      = errors.New("invalid_cart")
)

// CartItem is one priced line captured at checkout.
type CartItem struct {
	ContentID      snowflake.ID `json:"content_id"`
	Title          string       `json:"title"`
	UnitPriceCents int64        `json:"unit_price_cents"`
	Currency       string       `json:"currency"`
}

// CartSnapshot is the ordered, immutable set of items an order is created from.
type CartSnapshot struct {
	Items []CartItem `json:"items"`
}

// Validate enforces a non-empty, single-currency cart with non-negative prices
// and no repeated content.
func (c CartSnapshot) Validate() error {
	if len(c.Items) == 0 {
		return ErrEmptyCart
	}
	currency := strings.ToUpper(strings.TrimSpace(c.Items[0].Currency))
	if currency == "" {
		return ErrInvalidCart
	}
	seen := make(map[snowflake.ID]struct{}, len(c.Items))
	for _, item := range c.Items {
		if item.ContentID == 0 || item.UnitPriceCents < 0 {
			return ErrInvalidCart
		}
		if _, dup := seen[item.ContentID]; dup {
			return ErrInvalidCart
		}
		seen[item.ContentID] = struct{}{}
		if strings.ToUpper(strings.TrimSpace(item.Currency)) != currency {
			return ErrCurrencyMismatch
		}
	}
	return nil
}

func (c CartSnapshot) TotalCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPriceCents
	}
	return total
}

func (c CartSnapshot) Currency() string {
	if len(c.Items) == 0 {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(c.Items[0].Currency))
}
