package products

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Service exposes product and bundle lookups to the document engine.
type Service struct {
	repo Repository
}

// NewService constructs a product service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get retrieves one product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

// Bundle holds a main product together with its related products, fetched as
// one batch so every member shares the same pricing inputs.
type Bundle struct {
	Main    Product
	Related []RelatedProduct
}

// GetBundle fetches the main product and its related products concurrently.
// The whole batch completes before the caller computes any totals.
func (s *Service) GetBundle(ctx context.Context, productID int64) (*Bundle, error) {
	var bundle Bundle

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.repo.Get(gctx, productID)
		if err != nil {
			return fmt.Errorf("bundle main: %w", err)
		}
		bundle.Main = *p
		return nil
	})
	g.Go(func() error {
		related, err := s.repo.ListRelated(gctx, productID)
		if err != nil {
			return fmt.Errorf("bundle related: %w", err)
		}
		bundle.Related = related
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &bundle, nil
}
