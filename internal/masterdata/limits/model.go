package limits

// DiscountLimit caps the discount rates a salesperson may grant on a product
// group. MaxDiscount2/3 are optional; a nil value means that slot is not
// limited. Read-only to the document engine.
type DiscountLimit struct {
	ID               int64    `json:"id"`
	SalespersonID    int64    `json:"salespersonId"`
	ProductGroupCode string   `json:"productGroupCode"`
	MaxDiscount1     float64  `json:"maxDiscount1"`
	MaxDiscount2     *float64 `json:"maxDiscount2,omitempty"`
	MaxDiscount3     *float64 `json:"maxDiscount3,omitempty"`
}
