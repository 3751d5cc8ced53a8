package service

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/ledger"
	"ledgerpos/backend/internal/store"
	"ledgerpos/backend/internal/xid"
)

// RecordPayment books a payment against a customer's outstanding sales,
// oldest first. An amount above the pending balance is refused unless
// AcceptPartial is set, in which case only the pending balance is taken and
// the rest is reported as rejected.
func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return domain.PaymentResponse{}, store.Invalid(store.ErrInvalidPayment, "amount must be greater than zero")
	}

	var resp domain.PaymentResponse
	err := s.mutate(ctx, "RecordPayment", func(next *ledger.State, cs *changeSet) error {
		customer, ok := next.Customers[req.CustomerID]
		if !ok {
			return store.Invalid(store.ErrNotFound, "customer %s", req.CustomerID)
		}

		pending := ledger.Outstanding(next, customer.ID)
		if req.Amount.GreaterThan(pending) && (!req.AcceptPartial || !pending.IsPositive()) {
			return &store.OverpaymentError{CustomerID: customer.ID, Pending: pending, Amount: req.Amount}
		}
		accepted := decimal.Min(req.Amount, pending)

		allocations := ledger.AllocatePayment(next, customer.ID, accepted)
		for _, a := range allocations {
			cs.upsert(store.CollectionSales, a.SaleID)
		}

		now := s.clock()
		ledger.ApplyDelta(&customer, ledger.Delta{Total: decimal.Zero, Paid: accepted}, now)
		next.Customers[customer.ID] = customer
		cs.upsert(store.CollectionCustomers, customer.ID)

		payment := domain.Payment{
			ID:          xid.New("pay"),
			CustomerID:  customer.ID,
			Amount:      accepted,
			Rejected:    req.Amount.Sub(accepted),
			Allocations: allocations,
			CreatedAt:   now,
		}
		next.Payments = append(next.Payments, payment)
		cs.upsert(store.CollectionPayments, payment.ID)

		resp = domain.PaymentResponse{Payment: payment, Customer: customer}
		return nil
	})
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	s.audit(ctx, "payment.record", logrus.Fields{
		"payment_id":  resp.Payment.ID,
		"customer_id": resp.Customer.ID,
		"amount":      resp.Payment.Amount.StringFixed(2),
		"rejected":    resp.Payment.Rejected.StringFixed(2),
	})
	return resp, nil
}

func (s *Service) ListCustomers(_ context.Context) []domain.Customer {
	return s.snapshot().SortedCustomers()
}

func (s *Service) GetCustomer(_ context.Context, customerID string) (domain.Customer, error) {
	c, ok := s.snapshot().Customers[customerID]
	if !ok {
		return domain.Customer{}, store.Invalid(store.ErrNotFound, "customer %s", customerID)
	}
	return c, nil
}

// FindCustomer looks a customer up by the same identity key sales use.
func (s *Service) FindCustomer(_ context.Context, name string, phone string) (domain.Customer, error) {
	key := ledger.IdentityKey(name, phone)
	c, ok := s.snapshot().CustomerByKey(key)
	if !ok {
		return domain.Customer{}, store.Invalid(store.ErrNotFound, "customer %s", key)
	}
	return c, nil
}

// ListPayments returns payments newest first, optionally for one customer.
func (s *Service) ListPayments(_ context.Context, customerID string) []domain.Payment {
	snap := s.snapshot()
	out := make([]domain.Payment, 0, len(snap.Payments))
	for _, p := range snap.Payments {
		if customerID == "" || p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	slices.Reverse(out)
	return out
}
