package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the three sales document variants sharing one engine.
type Kind string

const (
	KindDemand    Kind = "DEMAND"
	KindOrder     Kind = "ORDER"
	KindQuotation Kind = "QUOTATION"
)

// Valid reports whether the kind is one of the supported variants.
func (k Kind) Valid() bool {
	switch k {
	case KindDemand, KindOrder, KindQuotation:
		return true
	}
	return false
}

// NumberPrefix returns the document-number prefix for the kind.
func (k Kind) NumberPrefix() string {
	switch k {
	case KindDemand:
		return "DEM"
	case KindOrder:
		return "ORD"
	case KindQuotation:
		return "QUO"
	}
	return "DOC"
}

// ApprovalState is the document-level approval status. The numeric values are
// persisted server-side and must not change.
type ApprovalState int

const (
	ApprovalNotStarted ApprovalState = 0
	ApprovalWaiting    ApprovalState = 1
	ApprovalApproved   ApprovalState = 2
	ApprovalRejected   ApprovalState = 3
)

// IsTerminal reports whether the state admits no further transitions.
func (s ApprovalState) IsTerminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// IsReadonly reports whether document fields are locked in this state.
func (s ApprovalState) IsReadonly() bool {
	return s.IsTerminal()
}

// Line-level approval flags.
const (
	LineApprovalNone     = 0
	LineApprovalRequired = 1
)

// Discount is one rate/amount pair of the three-step discount cascade.
// Rate and amount are mutually derived against quantity × unit price; Fixed
// marks the amount as the user-entered side, from which the rate is derived.
type Discount struct {
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
	Fixed  bool    `json:"fixed,omitempty"`
}

// DocumentLine is one product entry on a sales document.
type DocumentLine struct {
	LocalID          string      `json:"localId"`
	ProductID        int64       `json:"productId"`
	ProductCode      string      `json:"productCode"`
	ProductName      string      `json:"productName"`
	ProductGroupCode string      `json:"productGroupCode"`
	Quantity         float64     `json:"quantity"`
	UnitPrice        float64     `json:"unitPrice"`
	Discounts        [3]Discount `json:"discounts"`
	VATRate          float64     `json:"vatRate"`
	VATAmount        float64     `json:"vatAmount"`
	LineTotal        float64     `json:"lineTotal"`
	GrandTotal       float64     `json:"grandTotal"`
	Description      *string     `json:"description,omitempty"`
	PricingRuleID    *int64      `json:"pricingRuleId,omitempty"`
	RelatedKey       string      `json:"relatedProductKey,omitempty"`
	IsMain           bool        `json:"isMainRelatedProduct"`
	RelationQuantity float64     `json:"relationQuantity,omitempty"`
	PriceCurrency    string      `json:"priceCurrency,omitempty"`
	ApprovalFlag     int         `json:"approvalStatus"`
}

// LineGroup is a main line plus its related lines, added together as a bundle.
// A standalone line is a group with no related lines.
type LineGroup struct {
	Main    DocumentLine   `json:"main"`
	Related []DocumentLine `json:"related,omitempty"`
}

// Key returns the group's related-product key.
func (g LineGroup) Key() string {
	return g.Main.RelatedKey
}

// Lines returns the group flattened, main first.
func (g LineGroup) Lines() []DocumentLine {
	out := make([]DocumentLine, 0, 1+len(g.Related))
	out = append(out, g.Main)
	out = append(out, g.Related...)
	return out
}

// ExchangeRate is a per-document rate row. IsOfficial is true until the user
// edits the value, after which the row becomes a document-local override.
type ExchangeRate struct {
	ID            int64     `json:"id"`
	Currency      string    `json:"currency"`
	Rate          float64   `json:"exchangeRate"`
	EffectiveDate time.Time `json:"effectiveDate"`
	IsOfficial    bool      `json:"isOfficial"`
}

// Document is a demand, order, or quotation header with its lines and rates.
type Document struct {
	ID            int64          `json:"id"`
	Kind          Kind           `json:"kind"`
	DocNumber     string         `json:"docNumber"`
	Status        ApprovalState  `json:"status"`
	Currency      string         `json:"currency"`
	DocumentDate  time.Time      `json:"documentDate"`
	ValidUntil    *time.Time     `json:"validUntil,omitempty"`
	CustomerID    int64          `json:"customerId"`
	SalespersonID int64          `json:"salespersonId"`
	Notes         *string        `json:"notes,omitempty"`
	Groups        []LineGroup    `json:"groups"`
	Rates         []ExchangeRate `json:"exchangeRates"`
	CreatedBy     int64          `json:"createdBy"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Lines returns every line of the document, group by group, main first.
func (d Document) Lines() []DocumentLine {
	var out []DocumentLine
	for _, g := range d.Groups {
		out = append(out, g.Lines()...)
	}
	return out
}

const (
	persistedIDPrefix = "line-"
	clientIDPrefix    = "tmp-"
	standaloneKeyTag  = "standalone-"
	groupKeyTag       = "main-"
)

// NewLocalLineID mints a local id for a line created client-side.
func NewLocalLineID() string {
	return clientIDPrefix + uuid.NewString()
}

// PersistedLineID derives the local id for a server-persisted line.
func PersistedLineID(serverID int64) string {
	return fmt.Sprintf("%s%d", persistedIDPrefix, serverID)
}

// ServerLineID parses the numeric server id back out of a local id. The second
// return is false for lines that were never persisted.
func ServerLineID(localID string) (int64, bool) {
	raw, ok := strings.CutPrefix(localID, persistedIDPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// NewRelatedKey mints a related-product key for a bundle anchored on the main
// line's product.
func NewRelatedKey(mainProductID int64) string {
	return fmt.Sprintf("%s%d-%s", groupKeyTag, mainProductID, uuid.NewString())
}

// StandaloneKey derives the synthetic per-line key used when a detail row
// carries no related-product key.
func StandaloneKey(localID string) string {
	return standaloneKeyTag + localID
}
