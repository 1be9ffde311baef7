package document

import (
	"strings"

	"golang.org/x/text/currency"
)

// NormalizeCurrency upper-cases and validates an ISO 4217 code. Unknown codes
// are passed through unchanged so resolution stays fail-soft.
func NormalizeCurrency(code string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if unit, err := currency.ParseISO(trimmed); err == nil {
		return unit.String()
	}
	return trimmed
}

// ResolveRate returns the effective exchange rate for a currency. A
// document-local override with a positive rate wins; otherwise the matching
// official rate applies; otherwise the rate is unresolved and the caller must
// keep the prior price. A zero or negative override is treated as absent.
func ResolveRate(code string, overrides, official []ExchangeRate) (float64, bool) {
	want := NormalizeCurrency(code)
	if want == "" {
		return 0, false
	}
	for _, r := range overrides {
		if NormalizeCurrency(r.Currency) == want && r.Rate > 0 {
			return r.Rate, true
		}
	}
	for _, r := range official {
		if NormalizeCurrency(r.Currency) == want && r.Rate > 0 {
			return r.Rate, true
		}
	}
	return 0, false
}

// RescalePrice converts a unit price fetched in one currency into another
// using the effective rates. When either side is unresolved the original
// price is returned unchanged; this never fails hard.
func RescalePrice(price float64, from, to string, overrides, official []ExchangeRate) float64 {
	if NormalizeCurrency(from) == NormalizeCurrency(to) {
		return price
	}
	fromRate, okFrom := ResolveRate(from, overrides, official)
	toRate, okTo := ResolveRate(to, overrides, official)
	if !okFrom || !okTo {
		return price
	}
	return price * toRate / fromRate
}

// CanEditRate reports whether a rate row may be edited. The document's active
// currency is locked while in use.
func CanEditRate(rate ExchangeRate, activeCurrency string) bool {
	return NormalizeCurrency(rate.Currency) != NormalizeCurrency(activeCurrency)
}
