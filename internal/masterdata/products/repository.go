package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("product not found")

// Repository provides read access to the product catalog.
type Repository interface {
	Get(ctx context.Context, id int64) (*Product, error)
	ListRelated(ctx context.Context, productID int64) ([]RelatedProduct, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository over the connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, code, name, group_code, price, currency, vat_rate, is_active`

func (r *repository) Get(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).Scan(
		&p.ID, &p.Code, &p.Name, &p.GroupCode, &p.Price, &p.Currency, &p.VATRate, &p.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *repository) ListRelated(ctx context.Context, productID int64) ([]RelatedProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT rp.product_id, rp.related_product_id, rp.quantity,
p.id, p.code, p.name, p.group_code, p.price, p.currency, p.vat_rate, p.is_active
FROM related_products rp
JOIN products p ON p.id = rp.related_product_id
WHERE rp.product_id = $1 AND p.is_active
ORDER BY rp.related_product_id`, productID)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	defer rows.Close()

	var out []RelatedProduct
	for rows.Next() {
		var rp RelatedProduct
		if err := rows.Scan(
			&rp.ProductID, &rp.RelatedProductID, &rp.Quantity,
			&rp.Related.ID, &rp.Related.Code, &rp.Related.Name, &rp.Related.GroupCode,
			&rp.Related.Price, &rp.Related.Currency, &rp.Related.VATRate, &rp.Related.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan related product: %w", err)
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}
