package document

import "time"

// HeaderRow is the remote representation of a document header. Status carries
// the persisted numeric approval contract (0=NotStarted, 1=Waiting,
// 2=Approved, 3=Rejected).
type HeaderRow struct {
	ID            int64      `json:"id"`
	Kind          Kind       `json:"kind"`
	DocNumber     string     `json:"docNumber"`
	Status        int        `json:"status"`
	Currency      string     `json:"currency"`
	DocumentDate  time.Time  `json:"documentDate"`
	ValidUntil    *time.Time `json:"validUntil,omitempty"`
	CustomerID    int64      `json:"customerId"`
	SalespersonID int64      `json:"salespersonId"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedBy     int64      `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// LineRow is the remote representation of a document line, flat on the wire.
type LineRow struct {
	ID                   int64     `json:"id"`
	DocumentID           int64     `json:"documentId"`
	ProductID            int64     `json:"productId"`
	ProductCode          string    `json:"productCode"`
	ProductName          string    `json:"productName"`
	ProductGroupCode     string    `json:"productGroupCode"`
	Quantity             float64   `json:"quantity"`
	UnitPrice            float64   `json:"unitPrice"`
	DiscountRate1        float64   `json:"discountRate1"`
	DiscountAmount1      float64   `json:"discountAmount1"`
	DiscountRate2        float64   `json:"discountRate2"`
	DiscountAmount2      float64   `json:"discountAmount2"`
	DiscountRate3        float64   `json:"discountRate3"`
	DiscountAmount3      float64   `json:"discountAmount3"`
	VATRate              float64   `json:"vatRate"`
	VATAmount            float64   `json:"vatAmount"`
	LineTotal            float64   `json:"lineTotal"`
	GrandTotal           float64   `json:"lineGrandTotal"`
	Description          *string   `json:"description,omitempty"`
	PricingRuleID        *int64    `json:"pricingRuleId,omitempty"`
	RelatedProductKey    string    `json:"relatedProductKey,omitempty"`
	IsMainRelatedProduct bool      `json:"isMainRelatedProduct"`
	RelationQuantity     float64   `json:"relationQuantity,omitempty"`
	ApprovalStatus       int       `json:"approvalStatus"`
	Deleted              bool      `json:"deleted,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// RateRow is the remote representation of a document exchange rate.
type RateRow struct {
	ID            int64     `json:"id"`
	DocumentID    int64     `json:"documentId"`
	Currency      string    `json:"currency"`
	ExchangeRate  float64   `json:"exchangeRate"`
	EffectiveDate time.Time `json:"effectiveDate"`
	IsOfficial    bool      `json:"isOfficial"`
}

// DocumentDetail is the full detail-fetch payload.
type DocumentDetail struct {
	Header HeaderRow `json:"header"`
	Lines  []LineRow `json:"lines"`
	Rates  []RateRow `json:"exchangeRates"`
}

// CreateLineDTO is the request body for a line that has never been persisted.
// DocumentID is assigned server-side; a client-sent value is ignored.
type CreateLineDTO struct {
	DocumentID           int64   `json:"documentId,omitempty"`
	ProductID            int64   `json:"productId" validate:"required,gt=0"`
	Quantity             float64 `json:"quantity"`
	UnitPrice            float64 `json:"unitPrice"`
	DiscountRate1        float64 `json:"discountRate1" validate:"gte=0,lte=100"`
	DiscountAmount1      float64 `json:"discountAmount1"`
	DiscountRate2        float64 `json:"discountRate2" validate:"gte=0,lte=100"`
	DiscountAmount2      float64 `json:"discountAmount2"`
	DiscountRate3        float64 `json:"discountRate3" validate:"gte=0,lte=100"`
	DiscountAmount3      float64 `json:"discountAmount3"`
	VATRate              float64 `json:"vatRate" validate:"gte=0,lte=100"`
	VATAmount            float64 `json:"vatAmount"`
	LineTotal            float64 `json:"lineTotal"`
	GrandTotal           float64 `json:"lineGrandTotal"`
	Description          *string `json:"description,omitempty"`
	PricingRuleID        *int64  `json:"pricingRuleId,omitempty"`
	RelatedProductKey    string  `json:"relatedProductKey,omitempty"`
	IsMainRelatedProduct bool    `json:"isMainRelatedProduct"`
	RelationQuantity     float64 `json:"relationQuantity,omitempty"`
	ApprovalStatus       int     `json:"approvalStatus" validate:"gte=0,lte=1"`
}

// UpdateLineDTO is the request body for a persisted line; ID is the
// server-assigned numeric id.
type UpdateLineDTO struct {
	ID int64 `json:"id" validate:"required,gt=0"`
	CreateLineDTO
}

// RateDTO is the request body for a document exchange rate.
type RateDTO struct {
	Currency      string    `json:"currency" validate:"required"`
	ExchangeRate  float64   `json:"exchangeRate" validate:"gt=0"`
	EffectiveDate time.Time `json:"effectiveDate"`
	IsOfficial    bool      `json:"isOfficial"`
}

// CreateHeaderDTO is the header portion of a bulk create.
type CreateHeaderDTO struct {
	Kind          Kind       `json:"kind" validate:"required"`
	Currency      string     `json:"currency" validate:"required,len=3"`
	DocumentDate  time.Time  `json:"documentDate" validate:"required"`
	ValidUntil    *time.Time `json:"validUntil,omitempty"`
	CustomerID    int64      `json:"customerId" validate:"required,gt=0"`
	SalespersonID int64      `json:"salespersonId" validate:"required,gt=0"`
	Notes         *string    `json:"notes,omitempty"`
}

// BulkCreateRequest creates a document with its lines and exchange rates in
// one call; lines carry no ids.
type BulkCreateRequest struct {
	Header        CreateHeaderDTO `json:"header" validate:"required"`
	Lines         []CreateLineDTO `json:"lines" validate:"required,min=1,dive"`
	ExchangeRates []RateDTO       `json:"exchangeRates" validate:"dive"`
}

// CurrencyOption maps a currency code to the remote service's numeric
// rate-type identifier.
type CurrencyOption struct {
	Code     string `json:"code"`
	RateType int    `json:"rateType"`
}
