// Package ledger holds the in-memory ledger state and the pure projections
// computed from it: stock levels, customer balances, invoices and profit.
//
// Nothing in this package performs I/O. Callers mutate a cloned State and
// publish it only after it has been persisted.
package ledger

import (
	"slices"
	"strings"

	"ledgerpos/backend/internal/domain"
)

type State struct {
	Products  map[string]domain.Product
	Purchases []domain.PurchaseTransaction
	Sales     []domain.SaleTransaction
	Customers map[string]domain.Customer
	Payments  []domain.Payment
}

func NewState() *State {
	return &State{
		Products:  make(map[string]domain.Product),
		Customers: make(map[string]domain.Customer),
	}
}

// Clone returns a deep copy. Line slices are copied too, so the clone can be
// mutated freely while readers keep using the original.
func (s *State) Clone() *State {
	out := &State{
		Products:  make(map[string]domain.Product, len(s.Products)),
		Purchases: make([]domain.PurchaseTransaction, len(s.Purchases)),
		Sales:     make([]domain.SaleTransaction, len(s.Sales)),
		Customers: make(map[string]domain.Customer, len(s.Customers)),
		Payments:  make([]domain.Payment, len(s.Payments)),
	}
	for id, p := range s.Products {
		out.Products[id] = p
	}
	for id, c := range s.Customers {
		out.Customers[id] = c
	}
	for i, p := range s.Purchases {
		p.Lines = slices.Clone(p.Lines)
		out.Purchases[i] = p
	}
	for i, sale := range s.Sales {
		sale.Lines = slices.Clone(sale.Lines)
		out.Sales[i] = sale
	}
	for i, pay := range s.Payments {
		pay.Allocations = slices.Clone(pay.Allocations)
		out.Payments[i] = pay
	}
	return out
}

func (s *State) PurchaseIndex(id string) int {
	return slices.IndexFunc(s.Purchases, func(p domain.PurchaseTransaction) bool { return p.ID == id })
}

func (s *State) SaleIndex(id string) int {
	return slices.IndexFunc(s.Sales, func(sale domain.SaleTransaction) bool { return sale.ID == id })
}

func (s *State) PaymentIndex(id string) int {
	return slices.IndexFunc(s.Payments, func(p domain.Payment) bool { return p.ID == id })
}

// ProductByName matches case-insensitively, ignoring repeated whitespace.
// Removed products are matched too.
func (s *State) ProductByName(name string) (domain.Product, bool) {
	key := NameKey(name)
	if key == "" {
		return domain.Product{}, false
	}
	for _, p := range s.Products {
		if NameKey(p.Name) == key {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *State) CustomerByKey(key string) (domain.Customer, bool) {
	for _, c := range s.Customers {
		if c.Key == key {
			return c, true
		}
	}
	return domain.Customer{}, false
}

func (s *State) SortedProducts(includeInactive bool) []domain.Product {
	out := make([]domain.Product, 0, len(s.Products))
	for _, p := range s.Products {
		if !p.Active && !includeInactive {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		if c := strings.Compare(NameKey(a.Name), NameKey(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *State) SortedCustomers() []domain.Customer {
	out := make([]domain.Customer, 0, len(s.Customers))
	for _, c := range s.Customers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		if c := strings.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
