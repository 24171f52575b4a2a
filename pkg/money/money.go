// Package money converts between integer minor units and decimal amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"HUF": {},
	"JPY": {},
	"KRW": {},
	"TWD": {},
}

// Exponent is the number of minor-unit digits for an ISO-4217 currency.
func Exponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// Format renders minor units as a plain decimal string, e.g. 800 USD -> "8.00".
func Format(cents int64, currency string) string {
	exp := Exponent(currency)
	return decimal.New(cents, -exp).StringFixed(exp)
}

// Parse converts a decimal string back to minor units. Amounts with more
// precision than the currency allows are rejected.
func Parse(value, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	scaled := d.Shift(Exponent(currency))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has too many decimals for %s", value, currency)
	}
	return scaled.IntPart(), nil
}

// Display is Format followed by the upper-case currency code.
func Display(cents int64, currency string) string {
	return Format(cents, currency) + " " + strings.ToUpper(strings.TrimSpace(currency))
}
