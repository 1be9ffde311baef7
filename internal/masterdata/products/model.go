package products

// Product is the pricing view of a catalog item.
type Product struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	GroupCode string  `json:"groupCode"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	VATRate   float64 `json:"vatRate"`
	IsActive  bool    `json:"isActive"`
}

// RelatedProduct links a main product to one bundle member with its relation
// quantity per unit of the main product.
type RelatedProduct struct {
	ProductID        int64   `json:"productId"`
	RelatedProductID int64   `json:"relatedProductId"`
	Quantity         float64 `json:"quantity"`
	Related          Product `json:"related"`
}
