package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/platform/db"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidStatus = errors.New("invalid status transition")
	ErrAlreadyExists = errors.New("record already exists")
)

// ListDocumentsRequest filters paginated document listings.
type ListDocumentsRequest struct {
	Kind       *Kind      `json:"kind,omitempty"`
	CustomerID *int64     `json:"customerId,omitempty"`
	Status     *int       `json:"status,omitempty"`
	DateFrom   *time.Time `json:"dateFrom,omitempty"`
	DateTo     *time.Time `json:"dateTo,omitempty"`
	Limit      int        `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int        `json:"offset" validate:"gte=0"`
}

// Repository provides PostgreSQL backed persistence for sales documents.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetDetail(ctx context.Context, id int64) (*DocumentDetail, error)
	GetHeader(ctx context.Context, id int64) (*HeaderRow, error)
	List(ctx context.Context, req ListDocumentsRequest) ([]HeaderRow, int, error)
	ListEditableIDs(ctx context.Context) ([]int64, error)
	GenerateDocNumber(ctx context.Context, kind Kind, date time.Time) (string, error)
	CreateHeader(ctx context.Context, header CreateHeaderDTO, docNumber string, createdBy int64) (int64, error)
	InsertLine(ctx context.Context, row CreateLineDTO) (int64, error)
	UpdateLine(ctx context.Context, row UpdateLineDTO) error
	DeleteLine(ctx context.Context, documentID, lineID int64) error
	DeleteGroup(ctx context.Context, documentID int64, relatedKey string) error
	UpsertRate(ctx context.Context, documentID int64, rate RateDTO) (int64, error)
	UpdateCurrency(ctx context.Context, documentID int64, currency string) error
	UpdateStatus(ctx context.Context, documentID int64, status int) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a repository over the connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const headerColumns = `id, kind, doc_number, status, currency, document_date, valid_until,
customer_id, salesperson_id, notes, created_by, created_at, updated_at`

func scanHeader(row pgx.Row) (*HeaderRow, error) {
	var h HeaderRow
	if err := row.Scan(
		&h.ID, &h.Kind, &h.DocNumber, &h.Status, &h.Currency, &h.DocumentDate, &h.ValidUntil,
		&h.CustomerID, &h.SalespersonID, &h.Notes, &h.CreatedBy, &h.CreatedAt, &h.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (r *repository) GetHeader(ctx context.Context, id int64) (*HeaderRow, error) {
	return scanHeader(r.db.QueryRow(ctx, `SELECT `+headerColumns+` FROM sales_documents WHERE id = $1`, id))
}

func (r *repository) GetDetail(ctx context.Context, id int64) (*DocumentDetail, error) {
	header, err := r.GetHeader(ctx, id)
	if err != nil {
		return nil, err
	}

	lineRows, err := r.db.Query(ctx, `SELECT l.id, l.document_id, l.product_id,
COALESCE(p.code, ''), COALESCE(p.name, ''), COALESCE(p.group_code, ''),
l.quantity, l.unit_price,
l.discount_rate1, l.discount_amount1, l.discount_rate2, l.discount_amount2, l.discount_rate3, l.discount_amount3,
l.vat_rate, l.vat_amount, l.line_total, l.grand_total,
l.description, l.pricing_rule_id, l.related_product_key, l.is_main, l.relation_quantity, l.approval_status,
l.deleted, l.created_at, l.updated_at
FROM sales_document_lines l
LEFT JOIN products p ON p.id = l.product_id
WHERE l.document_id = $1 AND NOT l.deleted ORDER BY l.id`, id)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer lineRows.Close()

	detail := DocumentDetail{Header: *header}
	for lineRows.Next() {
		var l LineRow
		var relatedKey *string
		if err := lineRows.Scan(
			&l.ID, &l.DocumentID, &l.ProductID, &l.ProductCode, &l.ProductName, &l.ProductGroupCode,
			&l.Quantity, &l.UnitPrice,
			&l.DiscountRate1, &l.DiscountAmount1, &l.DiscountRate2, &l.DiscountAmount2, &l.DiscountRate3, &l.DiscountAmount3,
			&l.VATRate, &l.VATAmount, &l.LineTotal, &l.GrandTotal,
			&l.Description, &l.PricingRuleID, &relatedKey, &l.IsMainRelatedProduct, &l.RelationQuantity, &l.ApprovalStatus,
			&l.Deleted, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		if relatedKey != nil {
			l.RelatedProductKey = *relatedKey
		}
		detail.Lines = append(detail.Lines, l)
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	rateRows, err := r.db.Query(ctx, `SELECT id, document_id, currency, exchange_rate, effective_date, is_official
FROM sales_document_rates WHERE document_id = $1 ORDER BY currency`, id)
	if err != nil {
		return nil, fmt.Errorf("query rates: %w", err)
	}
	defer rateRows.Close()

	for rateRows.Next() {
		var rr RateRow
		if err := rateRows.Scan(&rr.ID, &rr.DocumentID, &rr.Currency, &rr.ExchangeRate, &rr.EffectiveDate, &rr.IsOfficial); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		detail.Rates = append(detail.Rates, rr)
	}
	if err := rateRows.Err(); err != nil {
		return nil, err
	}

	return &detail, nil
}

func (r *repository) List(ctx context.Context, req ListDocumentsRequest) ([]HeaderRow, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argPos))
		args = append(args, *req.Kind)
		argPos++
	}
	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("document_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("document_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sales_documents WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT `+headerColumns+` FROM sales_documents WHERE %s ORDER BY document_date DESC, id DESC LIMIT $%d OFFSET $%d`, where, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var headers []HeaderRow
	for rows.Next() {
		var h HeaderRow
		if err := rows.Scan(
			&h.ID, &h.Kind, &h.DocNumber, &h.Status, &h.Currency, &h.DocumentDate, &h.ValidUntil,
			&h.CustomerID, &h.SalespersonID, &h.Notes, &h.CreatedBy, &h.CreatedAt, &h.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		headers = append(headers, h)
	}
	return headers, total, rows.Err()
}

func (r *repository) ListEditableIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM sales_documents WHERE status IN ($1, $2)`, int(ApprovalNotStarted), int(ApprovalWaiting))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) GenerateDocNumber(ctx context.Context, kind Kind, date time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%s", kind.NumberPrefix(), date.Format("200601"))
	var seq int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(SUBSTRING(doc_number FROM $1) AS INTEGER)), 0) + 1
FROM sales_documents WHERE doc_number LIKE $2`, len(prefix)+2, prefix+"-%").Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next doc number: %w", err)
	}
	return fmt.Sprintf("%s-%05d", prefix, seq), nil
}

func (r *repository) CreateHeader(ctx context.Context, header CreateHeaderDTO, docNumber string, createdBy int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO sales_documents
(kind, doc_number, status, currency, document_date, valid_until, customer_id, salesperson_id, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
RETURNING id`,
		header.Kind, docNumber, int(ApprovalNotStarted), header.Currency, header.DocumentDate, header.ValidUntil,
		header.CustomerID, header.SalespersonID, header.Notes, createdBy,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: doc number %s", ErrAlreadyExists, docNumber)
		}
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, row CreateLineDTO) (int64, error) {
	var relatedKey *string
	if row.RelatedProductKey != "" {
		relatedKey = &row.RelatedProductKey
	}
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO sales_document_lines
(document_id, product_id, quantity, unit_price,
 discount_rate1, discount_amount1, discount_rate2, discount_amount2, discount_rate3, discount_amount3,
 vat_rate, vat_amount, line_total, grand_total,
 description, pricing_rule_id, related_product_key, is_main, relation_quantity, approval_status,
 deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, FALSE, NOW(), NOW())
RETURNING id`,
		row.DocumentID, row.ProductID, row.Quantity, row.UnitPrice,
		row.DiscountRate1, row.DiscountAmount1, row.DiscountRate2, row.DiscountAmount2, row.DiscountRate3, row.DiscountAmount3,
		row.VATRate, row.VATAmount, row.LineTotal, row.GrandTotal,
		row.Description, row.PricingRuleID, relatedKey, row.IsMainRelatedProduct, row.RelationQuantity, row.ApprovalStatus,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert line: %w", err)
	}
	return id, nil
}

func (r *repository) UpdateLine(ctx context.Context, row UpdateLineDTO) error {
	var relatedKey *string
	if row.RelatedProductKey != "" {
		relatedKey = &row.RelatedProductKey
	}
	tag, err := r.db.Exec(ctx, `UPDATE sales_document_lines SET
product_id = $3, quantity = $4, unit_price = $5,
discount_rate1 = $6, discount_amount1 = $7, discount_rate2 = $8, discount_amount2 = $9, discount_rate3 = $10, discount_amount3 = $11,
vat_rate = $12, vat_amount = $13, line_total = $14, grand_total = $15,
description = $16, pricing_rule_id = $17, related_product_key = $18, is_main = $19,
relation_quantity = $20, approval_status = $21, updated_at = NOW()
WHERE id = $1 AND document_id = $2 AND NOT deleted`,
		row.ID, row.DocumentID, row.ProductID, row.Quantity, row.UnitPrice,
		row.DiscountRate1, row.DiscountAmount1, row.DiscountRate2, row.DiscountAmount2, row.DiscountRate3, row.DiscountAmount3,
		row.VATRate, row.VATAmount, row.LineTotal, row.GrandTotal,
		row.Description, row.PricingRuleID, relatedKey, row.IsMainRelatedProduct,
		row.RelationQuantity, row.ApprovalStatus,
	)
	if err != nil {
		return fmt.Errorf("update line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteLine(ctx context.Context, documentID, lineID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_document_lines SET deleted = TRUE, updated_at = NOW()
WHERE id = $1 AND document_id = $2 AND NOT deleted`, lineID, documentID)
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteGroup(ctx context.Context, documentID int64, relatedKey string) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_document_lines SET deleted = TRUE, updated_at = NOW()
WHERE document_id = $1 AND related_product_key = $2 AND NOT deleted`, documentID, relatedKey)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpsertRate(ctx context.Context, documentID int64, rate RateDTO) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO sales_document_rates
(document_id, currency, exchange_rate, effective_date, is_official)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (document_id, currency)
DO UPDATE SET exchange_rate = EXCLUDED.exchange_rate, effective_date = EXCLUDED.effective_date, is_official = EXCLUDED.is_official
RETURNING id`,
		documentID, rate.Currency, rate.ExchangeRate, rate.EffectiveDate, rate.IsOfficial,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert rate: %w", err)
	}
	return id, nil
}

func (r *repository) UpdateCurrency(ctx context.Context, documentID int64, currency string) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_documents SET currency = $2, updated_at = NOW() WHERE id = $1`, documentID, currency)
	if err != nil {
		return fmt.Errorf("update currency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, documentID int64, status int) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_documents SET status = $2, updated_at = NOW() WHERE id = $1`, documentID, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
