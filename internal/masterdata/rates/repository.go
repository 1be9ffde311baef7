package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to official exchange rates.
type Repository interface {
	CurrentRates(ctx context.Context, asOf time.Time) ([]OfficialRate, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository over the connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CurrentRates(ctx context.Context, asOf time.Time) ([]OfficialRate, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (currency) currency, rate, effective_date
FROM official_rates WHERE effective_date <= $1
ORDER BY currency, effective_date DESC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("query official rates: %w", err)
	}
	defer rows.Close()

	var out []OfficialRate
	for rows.Next() {
		var rate OfficialRate
		if err := rows.Scan(&rate.Currency, &rate.Rate, &rate.EffectiveDate); err != nil {
			return nil, fmt.Errorf("scan official rate: %w", err)
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}
