package document

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/masterdata/limits"
	"github.com/meridian-crm/meridian-crm/internal/masterdata/products"
	"github.com/meridian-crm/meridian-crm/internal/masterdata/rates"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// ProductLookup is the slice of the product service the engine needs.
type ProductLookup interface {
	Get(ctx context.Context, id int64) (*products.Product, error)
	GetBundle(ctx context.Context, productID int64) (*products.Bundle, error)
}

// LimitLookup resolves a salesperson's discount limits.
type LimitLookup interface {
	ForSalesperson(ctx context.Context, salespersonID int64) ([]limits.DiscountLimit, error)
}

// RateLookup resolves the official exchange rates.
type RateLookup interface {
	Current(ctx context.Context) ([]rates.OfficialRate, error)
}

// Service provides business logic for sales document editing.
type Service struct {
	repo     Repository
	products ProductLookup
	limits   LimitLookup
	rates    RateLookup
	logger   *slog.Logger
}

// NewService constructs a document service.
func NewService(repo Repository, productLookup ProductLookup, limitLookup LimitLookup, rateLookup RateLookup, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		products: productLookup,
		limits:   limitLookup,
		rates:    rateLookup,
		logger:   logger,
	}
}

// officialRates adapts the masterdata rates into engine rate rows. A lookup
// failure degrades to "no official rates": resolution stays fail-soft.
func (s *Service) officialRates(ctx context.Context) []ExchangeRate {
	if s.rates == nil {
		return nil
	}
	current, err := s.rates.Current(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("official rates unavailable", slog.Any("error", err))
		}
		return nil
	}
	out := make([]ExchangeRate, len(current))
	for i, r := range current {
		out[i] = ExchangeRate{Currency: r.Currency, Rate: r.Rate, EffectiveDate: r.EffectiveDate, IsOfficial: true}
	}
	return out
}

func overridesFromRows(rows []RateRow) []ExchangeRate {
	out := make([]ExchangeRate, len(rows))
	for i, r := range rows {
		out[i] = ExchangeRate{
			ID:            r.ID,
			Currency:      r.Currency,
			Rate:          r.ExchangeRate,
			EffectiveDate: r.EffectiveDate,
			IsOfficial:    r.IsOfficial,
		}
	}
	return out
}

// GetDetail returns the raw remote representation of a document.
func (s *Service) GetDetail(ctx context.Context, id int64) (*DocumentDetail, error) {
	return s.repo.GetDetail(ctx, id)
}

// Get returns a document in its nested editable form.
func (s *Service) Get(ctx context.Context, id int64) (*Document, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc := Document{
		ID:            detail.Header.ID,
		Kind:          detail.Header.Kind,
		DocNumber:     detail.Header.DocNumber,
		Status:        ApprovalState(detail.Header.Status),
		Currency:      detail.Header.Currency,
		DocumentDate:  detail.Header.DocumentDate,
		ValidUntil:    detail.Header.ValidUntil,
		CustomerID:    detail.Header.CustomerID,
		SalespersonID: detail.Header.SalespersonID,
		Notes:         detail.Header.Notes,
		Groups:        ToFormState(detail.Lines),
		CreatedBy:     detail.Header.CreatedBy,
		CreatedAt:     detail.Header.CreatedAt,
		UpdatedAt:     detail.Header.UpdatedAt,
	}
	doc.Rates = overridesFromRows(detail.Rates)
	return &doc, nil
}

// List returns a paginated document listing.
func (s *Service) List(ctx context.Context, req ListDocumentsRequest) ([]HeaderRow, int, error) {
	return s.repo.List(ctx, req)
}

// editableHeader loads a header and rejects edits on finalized documents.
func (s *Service) editableHeader(ctx context.Context, id int64) (*HeaderRow, error) {
	header, err := s.repo.GetHeader(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if ApprovalState(header.Status).IsReadonly() {
		return nil, fmt.Errorf("%w: document %s", shared.ErrReadonlyDocument, header.DocNumber)
	}
	return header, nil
}

// prepareLine fills product reference fields, recomputes totals and evaluates
// the discount limit for one incoming line body.
func (s *Service) prepareLine(ctx context.Context, dto CreateLineDTO, lims []limits.DiscountLimit) (CreateLineDTO, error) {
	product, err := s.products.Get(ctx, dto.ProductID)
	if err != nil {
		return dto, fmt.Errorf("resolve product %d: %w", dto.ProductID, err)
	}

	line := DocumentLine{
		ProductID:        product.ID,
		ProductCode:      product.Code,
		ProductName:      product.Name,
		ProductGroupCode: product.GroupCode,
		Quantity:         dto.Quantity,
		UnitPrice:        dto.UnitPrice,
		Discounts: [3]Discount{
			{Rate: dto.DiscountRate1, Amount: dto.DiscountAmount1},
			{Rate: dto.DiscountRate2, Amount: dto.DiscountAmount2},
			{Rate: dto.DiscountRate3, Amount: dto.DiscountAmount3},
		},
		VATRate: dto.VATRate,
	}
	line = ComputeLineTotals(line)
	flag, msg := EvaluateDiscountLimit(line, lims)
	if flag == LineApprovalRequired && s.logger != nil {
		s.logger.Info("line flagged for approval", slog.Int64("product", product.ID), slog.String("reason", msg))
	}

	dto.DiscountAmount1 = line.Discounts[0].Amount
	dto.DiscountRate1 = line.Discounts[0].Rate
	dto.DiscountAmount2 = line.Discounts[1].Amount
	dto.DiscountRate2 = line.Discounts[1].Rate
	dto.DiscountAmount3 = line.Discounts[2].Amount
	dto.DiscountRate3 = line.Discounts[2].Rate
	dto.VATAmount = line.VATAmount
	dto.LineTotal = line.LineTotal
	dto.GrandTotal = line.GrandTotal
	dto.ApprovalStatus = flag
	return dto, nil
}

// BulkCreate creates a document with its lines and exchange rates in one
// transaction.
func (s *Service) BulkCreate(ctx context.Context, req BulkCreateRequest, createdBy int64) (*Document, error) {
	if !req.Header.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrInvalidStatus, req.Header.Kind)
	}

	lims, err := s.limits.ForSalesperson(ctx, req.Header.SalespersonID)
	if err != nil {
		// Fail-soft: a missing limit set means no approval gating.
		if s.logger != nil {
			s.logger.Warn("discount limits unavailable", slog.Any("error", err))
		}
		lims = nil
	}

	docNumber, err := s.repo.GenerateDocNumber(ctx, req.Header.Kind, req.Header.DocumentDate)
	if err != nil {
		return nil, fmt.Errorf("generate doc number: %w", err)
	}

	var documentID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		id, err := tx.CreateHeader(ctx, req.Header, docNumber, createdBy)
		if err != nil {
			return err
		}
		documentID = id

		for _, lineReq := range req.Lines {
			prepared, err := s.prepareLine(ctx, lineReq, lims)
			if err != nil {
				return err
			}
			prepared.DocumentID = documentID
			if _, err := tx.InsertLine(ctx, prepared); err != nil {
				return err
			}
		}

		for _, rate := range req.ExchangeRates {
			if _, err := tx.UpsertRate(ctx, documentID, rate); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, documentID)
}

// SaveLines persists a mixed batch of new and existing lines for a document.
// Incoming bodies are recomputed and re-evaluated before persistence.
func (s *Service) SaveLines(ctx context.Context, documentID int64, creates []CreateLineDTO, updates []UpdateLineDTO) (*Document, error) {
	header, err := s.editableHeader(ctx, documentID)
	if err != nil {
		return nil, err
	}

	lims, err := s.limits.ForSalesperson(ctx, header.SalespersonID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("discount limits unavailable", slog.Any("error", err))
		}
		lims = nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		for _, lineReq := range creates {
			prepared, err := s.prepareLine(ctx, lineReq, lims)
			if err != nil {
				return err
			}
			prepared.DocumentID = documentID
			if _, err := tx.InsertLine(ctx, prepared); err != nil {
				return err
			}
		}
		for _, lineReq := range updates {
			prepared, err := s.prepareLine(ctx, lineReq.CreateLineDTO, lims)
			if err != nil {
				return err
			}
			prepared.DocumentID = documentID
			if err := tx.UpdateLine(ctx, UpdateLineDTO{ID: lineReq.ID, CreateLineDTO: prepared}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, documentID)
}

// AddBundle adds a main product with its related products as one group. The
// price batch for the whole bundle resolves before any totals are computed,
// and prices are rescaled into the document currency.
func (s *Service) AddBundle(ctx context.Context, documentID, productID int64, quantity float64) (*Document, error) {
	header, err := s.editableHeader(ctx, documentID)
	if err != nil {
		return nil, err
	}

	bundle, err := s.products.GetBundle(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle: %w", err)
	}

	detail, err := s.repo.GetDetail(ctx, documentID)
	if err != nil {
		return nil, err
	}
	overrides := overridesFromRows(detail.Rates)
	official := s.officialRates(ctx)

	lims, err := s.limits.ForSalesperson(ctx, header.SalespersonID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("discount limits unavailable", slog.Any("error", err))
		}
		lims = nil
	}

	main := DocumentLine{
		LocalID:          NewLocalLineID(),
		ProductID:        bundle.Main.ID,
		ProductCode:      bundle.Main.Code,
		ProductName:      bundle.Main.Name,
		ProductGroupCode: bundle.Main.GroupCode,
		Quantity:         quantity,
		UnitPrice:        RescalePrice(bundle.Main.Price, bundle.Main.Currency, header.Currency, overrides, official),
		VATRate:          bundle.Main.VATRate,
		PriceCurrency:    NormalizeCurrency(header.Currency),
	}
	related := make([]DocumentLine, len(bundle.Related))
	for i, rel := range bundle.Related {
		related[i] = DocumentLine{
			LocalID:          NewLocalLineID(),
			ProductID:        rel.Related.ID,
			ProductCode:      rel.Related.Code,
			ProductName:      rel.Related.Name,
			ProductGroupCode: rel.Related.GroupCode,
			Quantity:         round4(rel.Quantity * quantity),
			UnitPrice:        RescalePrice(rel.Related.Price, rel.Related.Currency, header.Currency, overrides, official),
			VATRate:          rel.Related.VATRate,
			RelationQuantity: rel.Quantity,
			PriceCurrency:    NormalizeCurrency(header.Currency),
		}
	}

	group := NewGroup(main, related)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		for _, line := range group.Lines() {
			line.ApprovalFlag, _ = EvaluateDiscountLimit(line, lims)
			dto := ToCreateDTO(line, documentID)
			if _, err := tx.InsertLine(ctx, dto); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, documentID)
}

// SetMainQuantity changes a main line's quantity, scaling its related lines
// by ratio and persisting the whole group.
func (s *Service) SetMainQuantity(ctx context.Context, documentID, lineID int64, quantity float64) (*Document, error) {
	if _, err := s.editableHeader(ctx, documentID); err != nil {
		return nil, err
	}

	detail, err := s.repo.GetDetail(ctx, documentID)
	if err != nil {
		return nil, err
	}

	groups := ToFormState(detail.Lines)
	localID := PersistedLineID(lineID)
	var target *LineGroup
	for i := range groups {
		if groups[i].Main.LocalID == localID {
			target = &groups[i]
			break
		}
		for _, rel := range groups[i].Related {
			if rel.LocalID == localID {
				return nil, fmt.Errorf("%w: line %d", ErrRelatedLineLocked, lineID)
			}
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: line %d", ErrNotFound, lineID)
	}

	scaled := ApplyMainQuantityChange(*target, quantity)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		for _, line := range scaled.Lines() {
			dto := ToUpdateDTO(line, documentID)
			if dto == nil {
				return fmt.Errorf("%w: unpersisted line in group %s", ErrNotFound, scaled.Key())
			}
			if err := tx.UpdateLine(ctx, *dto); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, documentID)
}

// DeleteLine removes a line. Deleting a group's main line removes the whole
// group.
func (s *Service) DeleteLine(ctx context.Context, documentID, lineID int64) error {
	if _, err := s.editableHeader(ctx, documentID); err != nil {
		return err
	}

	detail, err := s.repo.GetDetail(ctx, documentID)
	if err != nil {
		return err
	}

	for _, row := range detail.Lines {
		if row.ID != lineID {
			continue
		}
		if row.RelatedProductKey != "" && row.IsMainRelatedProduct {
			return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
				return tx.DeleteGroup(ctx, documentID, row.RelatedProductKey)
			})
		}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			return tx.DeleteLine(ctx, documentID, lineID)
		})
	}
	return fmt.Errorf("%w: line %d", ErrNotFound, lineID)
}

// DeleteGroup removes every line sharing the related-product key.
func (s *Service) DeleteGroup(ctx context.Context, documentID int64, relatedKey string) error {
	if _, err := s.editableHeader(ctx, documentID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.DeleteGroup(ctx, documentID, relatedKey)
	})
}

// ChangeCurrency switches the document currency, re-pricing every line using
// the effective rates. Lines with unresolved rates keep their prior price.
func (s *Service) ChangeCurrency(ctx context.Context, documentID int64, currency string) (*Document, error) {
	header, err := s.editableHeader(ctx, documentID)
	if err != nil {
		return nil, err
	}

	detail, err := s.repo.GetDetail(ctx, documentID)
	if err != nil {
		return nil, err
	}

	lims, err := s.limits.ForSalesperson(ctx, header.SalespersonID)
	if err != nil {
		lims = nil
	}

	state := EditorState{
		Currency:  header.Currency,
		Groups:    ToFormState(detail.Lines),
		Overrides: overridesFromRows(detail.Rates),
		Official:  s.officialRates(ctx),
		Limits:    lims,
	}
	state = state.ChangeCurrency(currency)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdateCurrency(ctx, documentID, state.Currency); err != nil {
			return err
		}
		for _, line := range state.Lines() {
			dto := ToUpdateDTO(line, documentID)
			if dto == nil {
				continue
			}
			if err := tx.UpdateLine(ctx, *dto); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, documentID)
}

// UpsertRate creates or edits a document-local exchange rate. The active
// currency's rate is locked while in use, and an edited rate stops being
// official.
func (s *Service) UpsertRate(ctx context.Context, documentID int64, rate RateDTO) (*Document, error) {
	header, err := s.editableHeader(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !CanEditRate(ExchangeRate{Currency: rate.Currency}, header.Currency) {
		return nil, fmt.Errorf("%w: %s", ErrRateInUse, NormalizeCurrency(rate.Currency))
	}
	if rate.EffectiveDate.IsZero() {
		rate.EffectiveDate = time.Now().UTC()
	}
	rate.Currency = NormalizeCurrency(rate.Currency)
	rate.IsOfficial = false

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		_, err := tx.UpsertRate(ctx, documentID, rate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, documentID)
}

// ListEditableIDs returns the ids of documents still open for editing.
func (s *Service) ListEditableIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListEditableIDs(ctx)
}

// RefreshApprovalFlags re-evaluates every line of a document against the
// salesperson's current limits, persisting flags that changed. Used by the
// background rescan job.
func (s *Service) RefreshApprovalFlags(ctx context.Context, documentID int64) error {
	header, err := s.repo.GetHeader(ctx, documentID)
	if err != nil {
		return err
	}
	if ApprovalState(header.Status).IsReadonly() {
		return nil
	}

	detail, err := s.repo.GetDetail(ctx, documentID)
	if err != nil {
		return err
	}
	lims, err := s.limits.ForSalesperson(ctx, header.SalespersonID)
	if err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		for _, row := range detail.Lines {
			line := LineFromRow(row)
			flag, _ := EvaluateDiscountLimit(line, lims)
			if flag == row.ApprovalStatus {
				continue
			}
			line.ApprovalFlag = flag
			dto := ToUpdateDTO(line, documentID)
			if dto == nil {
				continue
			}
			if err := tx.UpdateLine(ctx, *dto); err != nil {
				return err
			}
		}
		return nil
	})
}
