package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/xid"
)

// Delta is a change to a customer's cached balances.
type Delta struct {
	Total decimal.Decimal
	Paid  decimal.Decimal
}

func (d Delta) Neg() Delta {
	return Delta{Total: d.Total.Neg(), Paid: d.Paid.Neg()}
}

func ApplyDelta(c *domain.Customer, delta Delta, now time.Time) {
	c.TotalPurchase = c.TotalPurchase.Add(delta.Total)
	c.PaidAmount = c.PaidAmount.Add(delta.Paid)
	c.PendingAmount = c.TotalPurchase.Sub(c.PaidAmount)
	c.UpdatedAt = now
}

// MergeOrCreate finds the customer by identity key and applies the delta,
// creating the customer when none matches. Non-empty addresses and GSTIN on
// the input replace the stored ones.
func MergeOrCreate(s *State, in domain.CustomerInput, delta Delta, phoneRegion string, now time.Time) domain.Customer {
	key := IdentityKey(in.Name, in.Phone)
	customer, ok := s.CustomerByKey(key)
	if !ok {
		customer = domain.Customer{
			ID:        xid.New("cust"),
			Key:       key,
			Name:      strings.Join(strings.Fields(in.Name), " "),
			Phone:     strings.TrimSpace(in.Phone),
			CreatedAt: now,
		}
	}
	if customer.PhoneDisplay == "" {
		customer.PhoneDisplay = FormatPhone(customer.Phone, phoneRegion)
	}
	if v := strings.TrimSpace(in.BillingAddress); v != "" {
		customer.BillingAddress = v
	}
	if v := strings.TrimSpace(in.ShippingAddress); v != "" {
		customer.ShippingAddress = v
	}
	if v := strings.ToUpper(strings.TrimSpace(in.GSTIN)); v != "" {
		customer.GSTIN = v
	}

	ApplyDelta(&customer, delta, now)
	s.Customers[customer.ID] = customer
	return customer
}

// Outstanding sums the pending amount of every sale owed by the customer.
func Outstanding(s *State, customerID string) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range s.Sales {
		if sale.CustomerID == customerID {
			total = total.Add(sale.PendingAmount())
		}
	}
	return total
}

// AllocatePayment spreads amount over the customer's unpaid sales, oldest
// first, and records each share on the sale. Any amount the sales cannot
// absorb is left unallocated; callers cap amount at Outstanding.
func AllocatePayment(s *State, customerID string, amount decimal.Decimal) []domain.PaymentAllocation {
	remaining := amount
	allocations := make([]domain.PaymentAllocation, 0, 4)
	for i := range s.Sales {
		if !remaining.IsPositive() {
			break
		}
		sale := &s.Sales[i]
		if sale.CustomerID != customerID {
			continue
		}
		pending := sale.PendingAmount()
		if !pending.IsPositive() {
			continue
		}
		share := decimal.Min(pending, remaining)
		sale.Settled = sale.Settled.Add(share)
		remaining = remaining.Sub(share)
		allocations = append(allocations, domain.PaymentAllocation{SaleID: sale.ID, Amount: share})
	}
	return allocations
}

// ProjectCustomer rebuilds a customer's balances from the sales ledger.
func ProjectCustomer(s *State, customerID string) Delta {
	out := Delta{Total: decimal.Zero, Paid: decimal.Zero}
	for _, sale := range s.Sales {
		if sale.CustomerID != customerID {
			continue
		}
		out.Total = out.Total.Add(sale.TotalAmount())
		out.Paid = out.Paid.Add(sale.ReceivedAmount())
	}
	return out
}
