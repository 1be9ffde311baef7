package rates

import "time"

// OfficialRate is the system-wide exchange rate for a currency, as opposed to
// a document-local override.
type OfficialRate struct {
	Currency      string    `json:"currency"`
	Rate          float64   `json:"exchangeRate"`
	EffectiveDate time.Time `json:"effectiveDate"`
}
