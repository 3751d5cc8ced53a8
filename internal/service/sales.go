package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/ledger"
	"ledgerpos/backend/internal/store"
	"ledgerpos/backend/internal/xid"
)

// FinalizeSale validates the cart, checks stock for every product against
// the projection, books the sale against the merged customer and returns
// the invoice. Either all of that is persisted or none of it.
func (s *Service) FinalizeSale(ctx context.Context, req domain.SaleRequest) (domain.Invoice, error) {
	if strings.TrimSpace(req.Customer.Name) == "" {
		return domain.Invoice{}, store.Invalid(store.ErrInvalidRequest, "customer name is required")
	}
	if len(req.Lines) == 0 {
		return domain.Invoice{}, store.Invalid(store.ErrInvalidRequest, "sale needs at least one line")
	}
	if req.PaidAmount.IsNegative() {
		return domain.Invoice{}, store.Invalid(store.ErrInvalidPayment, "paid amount must not be negative")
	}

	var (
		invoice domain.Invoice
		sale    domain.SaleTransaction
	)
	err := s.mutate(ctx, "FinalizeSale", func(next *ledger.State, cs *changeSet) error {
		lines := make([]domain.SaleLine, 0, len(req.Lines))
		for i, in := range req.Lines {
			id := strings.TrimSpace(in.ProductID)
			product, ok := next.Products[id]
			if !ok || !product.Active {
				return store.Invalid(store.ErrNotFound, "line %d: product %s", i+1, id)
			}
			unitPrice := product.CurrentSellingPrice
			if in.UnitPrice.Valid {
				unitPrice = in.UnitPrice.Decimal
			}
			line := domain.SaleLine{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    in.Quantity,
				UnitPrice:   unitPrice,
				DiscountPct: in.DiscountPct,
				GSTPct:      in.GSTPct,
			}
			if err := line.PricingInput().Validate(); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			lines = append(lines, line)
		}

		quantities, order, err := groupQuantities(lines, func(l domain.SaleLine) (string, int) {
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

		now := s.clock()
		sale = domain.SaleTransaction{
			ID:         xid.New("sale"),
			Lines:      lines,
			PaidAmount: req.PaidAmount,
			Settled:    decimal.Zero,
			CreatedAt:  now,
		}
		total := sale.TotalAmount()
		if req.PaidAmount.GreaterThan(total) {
			return store.Invalid(store.ErrInvalidPayment, "paid %s exceeds total %s", req.PaidAmount.StringFixed(2), total.StringFixed(2))
		}

		customer := ledger.MergeOrCreate(next, req.Customer, ledger.Delta{Total: total, Paid: req.PaidAmount}, s.phoneRegion, now)
		cs.upsert(store.CollectionCustomers, customer.ID)
		sale.CustomerID = customer.ID
		sale.Customer = ledger.CustomerSnapshot(customer)
		next.Sales = append(next.Sales, sale)
		cs.upsert(store.CollectionSales, sale.ID)

		for _, id := range order {
			p := next.Products[id]
			p.StockHint -= quantities[id]
			p.Revision++
			p.UpdatedAt = now
			next.Products[id] = p
			cs.upsert(store.CollectionProducts, id)
		}

		invoice = ledger.BuildInvoice(sale)
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.audit(ctx, "sale.finalize", logrus.Fields{
		"sale_id":     sale.ID,
		"customer_id": sale.CustomerID,
		"grand_total": invoice.GrandTotal.StringFixed(2),
		"pending":     invoice.Pending.StringFixed(2),
	})
	return invoice, nil
}

// DeleteSale reverses a sale: stock returns, the customer's balances drop by
// the sale, and payment allocations to it are marked reversed.
func (s *Service) DeleteSale(ctx context.Context, saleID string) (domain.Invoice, error) {
	var removed domain.SaleTransaction
	err := s.mutate(ctx, "DeleteSale", func(next *ledger.State, cs *changeSet) error {
		idx := next.SaleIndex(saleID)
		if idx < 0 {
			return store.Invalid(store.ErrNotFound, "sale %s", saleID)
		}
		removed = next.Sales[idx]
		now := s.clock()

		for _, line := range removed.Lines {
			p, ok := next.Products[line.ProductID]
			if !ok {
				continue
			}
			p.StockHint += line.Quantity
			p.Revision++
			p.UpdatedAt = now
			next.Products[p.ID] = p
			cs.upsert(store.CollectionProducts, p.ID)
		}

		if c, ok := next.Customers[removed.CustomerID]; ok {
			delta := ledger.Delta{Total: removed.TotalAmount(), Paid: removed.ReceivedAmount()}
			ledger.ApplyDelta(&c, delta.Neg(), now)
			next.Customers[c.ID] = c
			cs.upsert(store.CollectionCustomers, c.ID)
		}

		for i := range next.Payments {
			payment := &next.Payments[i]
			for j := range payment.Allocations {
				alloc := &payment.Allocations[j]
				if alloc.SaleID == saleID && !alloc.Reversed {
					alloc.Reversed = true
					cs.upsert(store.CollectionPayments, payment.ID)
				}
			}
		}

		next.Sales = slices.Delete(next.Sales, idx, idx+1)
		cs.remove(store.CollectionSales, saleID)
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.audit(ctx, "sale.delete", logrus.Fields{"sale_id": removed.ID, "customer_id": removed.CustomerID})
	return ledger.BuildInvoice(removed), nil
}

// ListSales returns invoices newest first, optionally for one customer.
func (s *Service) ListSales(_ context.Context, customerID string, limit int) []domain.Invoice {
	snap := s.snapshot()
	out := make([]domain.Invoice, 0, len(snap.Sales))
	for i := len(snap.Sales) - 1; i >= 0; i-- {
		sale := snap.Sales[i]
		if customerID != "" && sale.CustomerID != customerID {
			continue
		}
		out = append(out, ledger.BuildInvoice(sale))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (s *Service) GetInvoice(_ context.Context, saleID string) (domain.Invoice, error) {
	snap := s.snapshot()
	idx := snap.SaleIndex(saleID)
	if idx < 0 {
		return domain.Invoice{}, store.Invalid(store.ErrNotFound, "sale %s", saleID)
	}
	return ledger.BuildInvoice(snap.Sales[idx]), nil
}
