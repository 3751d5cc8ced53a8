package service

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/ledger"
	"ledgerpos/backend/internal/pricing"
	"ledgerpos/backend/internal/store"
	"ledgerpos/backend/internal/xid"
)

// RecordPurchase appends a purchase and updates each product's current
// prices and stock hint. Lines may name a product that does not exist yet;
// it is created.
func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseTransaction, error) {
	if len(req.Lines) == 0 {
		return domain.PurchaseTransaction{}, store.Invalid(store.ErrInvalidRequest, "purchase needs at least one line")
	}
	for i, line := range req.Lines {
		if strings.TrimSpace(line.ProductID) == "" && strings.TrimSpace(line.ProductName) == "" {
			return domain.PurchaseTransaction{}, store.Invalid(store.ErrInvalidRequest, "line %d: product id or name is required", i+1)
		}
		if line.Quantity <= 0 {
			return domain.PurchaseTransaction{}, store.Invalid(store.ErrInvalidLineInput, "line %d: quantity must be greater than zero", i+1)
		}
		if line.Quantity > pricing.MaxQuantity {
			return domain.PurchaseTransaction{}, store.Invalid(store.ErrInvalidLineInput, "line %d: quantity must not exceed %d", i+1, pricing.MaxQuantity)
		}
		if line.UnitCost.IsNegative() {
			return domain.PurchaseTransaction{}, store.Invalid(store.ErrInvalidLineInput, "line %d: unit cost must not be negative", i+1)
		}
		if line.SellingPrice.Valid && line.SellingPrice.Decimal.IsNegative() {
			return domain.PurchaseTransaction{}, store.Invalid(store.ErrInvalidLineInput, "line %d: selling price must not be negative", i+1)
		}
	}

	var purchase domain.PurchaseTransaction
	err := s.mutate(ctx, "RecordPurchase", func(next *ledger.State, cs *changeSet) error {
		now := s.clock()
		purchase = domain.PurchaseTransaction{
			ID:           xid.New("pur"),
			SupplierName: strings.TrimSpace(req.SupplierName),
			Lines:        make([]domain.PurchaseLine, 0, len(req.Lines)),
			CreatedAt:    now,
		}

		for i, in := range req.Lines {
			product, err := resolvePurchaseProduct(next, in, i, now)
			if err != nil {
				return err
			}
			product.CurrentBuyingPrice = in.UnitCost
			if in.SellingPrice.Valid {
				product.CurrentSellingPrice = in.SellingPrice.Decimal
			}
			if product.Category == "" {
				product.Category = strings.TrimSpace(in.Category)
			}
			if product.StockHint > math.MaxInt-in.Quantity {
				return store.Invalid(store.ErrInvalidLineInput, "line %d: stock of %s would overflow", i+1, product.Name)
			}
			product.Active = true
			product.StockHint += in.Quantity
			product.Revision++
			product.UpdatedAt = now
			next.Products[product.ID] = product
			cs.upsert(store.CollectionProducts, product.ID)

			purchase.Lines = append(purchase.Lines, domain.PurchaseLine{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    in.Quantity,
				UnitCost:    in.UnitCost,
			})
		}

		next.Purchases = append(next.Purchases, purchase)
		cs.upsert(store.CollectionPurchases, purchase.ID)
		return nil
	})
	if err != nil {
		return domain.PurchaseTransaction{}, err
	}

	s.audit(ctx, "purchase.record", logrus.Fields{
		"purchase_id": purchase.ID,
		"lines":       len(purchase.Lines),
		"total_cost":  purchase.TotalCost().StringFixed(2),
	})
	return purchase, nil
}

func resolvePurchaseProduct(next *ledger.State, in domain.PurchaseLineRequest, index int, now time.Time) (domain.Product, error) {
	if id := strings.TrimSpace(in.ProductID); id != "" {
		p, ok := next.Products[id]
		if !ok {
			return domain.Product{}, store.Invalid(store.ErrNotFound, "line %d: product %s", index+1, id)
		}
		return p, nil
	}
	if p, ok := next.ProductByName(in.ProductName); ok {
		return p, nil
	}
	return domain.Product{
		ID:        xid.New("prod"),
		Name:      strings.Join(strings.Fields(in.ProductName), " "),
		Active:    true,
		CreatedAt: now,
	}, nil
}

// DeletePurchase removes a purchase and the stock it brought in. It is
// refused when that stock has already been sold.
func (s *Service) DeletePurchase(ctx context.Context, purchaseID string) (domain.PurchaseTransaction, error) {
	var removed domain.PurchaseTransaction
	err := s.mutate(ctx, "DeletePurchase", func(next *ledger.State, cs *changeSet) error {
		idx := next.PurchaseIndex(purchaseID)
		if idx < 0 {
			return store.Invalid(store.ErrNotFound, "purchase %s", purchaseID)
		}
		removed = next.Purchases[idx]

		quantities, order, err := groupQuantities(removed.Lines, func(l domain.PurchaseLine) (string, int) {
			return l.ProductID, l.Quantity
		})
		if err != nil {
			return err
		}
		for _, id := range order {
			available := ledger.ProjectStock(next, id).InStock
			if available < quantities[id] {
				return &store.InsufficientStockError{ProductID: id, Available: available, Requested: quantities[id]}
			}
		}

		next.Purchases = slices.Delete(next.Purchases, idx, idx+1)
		cs.remove(store.CollectionPurchases, purchaseID)

		now := s.clock()
		for _, id := range order {
			p, ok := next.Products[id]
			if !ok {
				continue
			}
			p.StockHint -= quantities[id]
			if cost, found := ledger.LatestUnitCost(next, id); found {
				p.CurrentBuyingPrice = cost
			}
			p.Revision++
			p.UpdatedAt = now
			next.Products[id] = p
			cs.upsert(store.CollectionProducts, id)
		}
		return nil
	})
	if err != nil {
		return domain.PurchaseTransaction{}, err
	}

	s.audit(ctx, "purchase.delete", logrus.Fields{"purchase_id": removed.ID})
	return removed, nil
}

// ListPurchases returns purchases newest first.
func (s *Service) ListPurchases(_ context.Context, limit int) []domain.PurchaseTransaction {
	purchases := slices.Clone(s.snapshot().Purchases)
	slices.Reverse(purchases)
	return applyLimit(purchases, limit)
}

func (s *Service) GetPurchase(_ context.Context, purchaseID string) (domain.PurchaseTransaction, error) {
	snap := s.snapshot()
	idx := snap.PurchaseIndex(purchaseID)
	if idx < 0 {
		return domain.PurchaseTransaction{}, store.Invalid(store.ErrNotFound, "purchase %s", purchaseID)
	}
	return snap.Purchases[idx], nil
}

// groupQuantities sums quantities per product, keeping first-seen order.
// Quantities must be positive; a sum past math.MaxInt is rejected.
func groupQuantities[T any](lines []T, key func(T) (string, int)) (map[string]int, []string, error) {
	quantities := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		id, qty := key(line)
		if qty <= 0 {
			return nil, nil, store.Invalid(store.ErrInvalidLineInput, "product %s: quantity must be greater than zero", id)
		}
		total, seen := quantities[id]
		if !seen {
			order = append(order, id)
		}
		if total > math.MaxInt-qty {
			return nil, nil, store.Invalid(store.ErrInvalidLineInput, "product %s: total quantity overflows", id)
		}
		quantities[id] = total + qty
	}
	return quantities, order, nil
}
