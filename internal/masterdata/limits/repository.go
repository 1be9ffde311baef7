package limits

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to salesperson discount limits.
type Repository interface {
	ListBySalesperson(ctx context.Context, salespersonID int64) ([]DiscountLimit, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository over the connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListBySalesperson(ctx context.Context, salespersonID int64) ([]DiscountLimit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, salesperson_id, product_group_code, max_discount1, max_discount2, max_discount3
FROM discount_limits WHERE salesperson_id = $1 ORDER BY product_group_code`, salespersonID)
	if err != nil {
		return nil, fmt.Errorf("list discount limits: %w", err)
	}
	defer rows.Close()

	var out []DiscountLimit
	for rows.Next() {
		var l DiscountLimit
		if err := rows.Scan(&l.ID, &l.SalespersonID, &l.ProductGroupCode, &l.MaxDiscount1, &l.MaxDiscount2, &l.MaxDiscount3); err != nil {
			return nil, fmt.Errorf("scan discount limit: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
