package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"ledgerpos/backend/internal/cache"
	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/ledger"
	"ledgerpos/backend/internal/store"
	"ledgerpos/backend/internal/xid"
)

func (s *Service) AddProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	name := strings.Join(strings.Fields(req.Name), " ")
	if name == "" {
		return domain.Product{}, store.Invalid(store.ErrInvalidRequest, "product name is required")
	}
	if req.BuyingPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return domain.Product{}, store.Invalid(store.ErrInvalidRequest, "prices must not be negative")
	}

	var product domain.Product
	err := s.mutate(ctx, "AddProduct", func(next *ledger.State, cs *changeSet) error {
		if existing, ok := next.ProductByName(name); ok {
			return store.Invalid(store.ErrDuplicate, "product %q exists as %s", name, existing.ID)
		}
		now := s.clock()
		product = domain.Product{
			ID:                  xid.New("prod"),
			Name:                name,
			Category:            strings.TrimSpace(req.Category),
			CurrentBuyingPrice:  req.BuyingPrice,
			CurrentSellingPrice: req.SellingPrice,
			Active:              true,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		next.Products[product.ID] = product
		cs.upsert(store.CollectionProducts, product.ID)
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.audit(ctx, "product.add", logrus.Fields{"product_id": product.ID, "name": product.Name})
	return product, nil
}

// RemoveProduct hides a product from the catalog. Its purchase and sale
// history stays, and a later purchase of the same name brings it back.
func (s *Service) RemoveProduct(ctx context.Context, productID string) (domain.Product, error) {
	var product domain.Product
	err := s.mutate(ctx, "RemoveProduct", func(next *ledger.State, cs *changeSet) error {
		p, ok := next.Products[productID]
		if !ok {
			return store.Invalid(store.ErrNotFound, "product %s", productID)
		}
		if p.Active {
			p.Active = false
			p.Revision++
			p.UpdatedAt = s.clock()
			next.Products[p.ID] = p
			cs.upsert(store.CollectionProducts, p.ID)
		}
		product = p
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.audit(ctx, "product.remove", logrus.Fields{"product_id": product.ID})
	return product, nil
}

func (s *Service) ListProducts(_ context.Context, includeInactive bool) []domain.Product {
	return s.snapshot().SortedProducts(includeInactive)
}

func (s *Service) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	p, ok := s.snapshot().Products[productID]
	if !ok {
		return domain.Product{}, store.Invalid(store.ErrNotFound, "product %s", productID)
	}
	return p, nil
}

// ProjectStock derives a product's stock from the purchase and sale ledgers.
// Results are cached per product revision, so any write to the product makes
// older entries unreachable.
func (s *Service) ProjectStock(ctx context.Context, productID string) (domain.StockProjection, error) {
	snap := s.snapshot()
	product, ok := snap.Products[productID]
	if !ok {
		return domain.StockProjection{}, store.Invalid(store.ErrNotFound, "product %s", productID)
	}

	key := cache.StockKey(s.installation, productID, product.Revision)
	cached, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("read stock cache")
	}
	if hit && cached != nil {
		return *cached, nil
	}

	projection := ledger.ProjectStock(snap, productID)
	if err := s.cache.Set(ctx, key, &projection, s.cacheTTL); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("write stock cache")
	}
	return projection, nil
}

func (s *Service) ProjectAllStock(_ context.Context, includeInactive bool) []domain.StockProjection {
	return ledger.ProjectAll(s.snapshot(), includeInactive)
}
