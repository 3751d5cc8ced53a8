package ledger

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/pricing"
)

// Profit sums, over sales created in [from, to), each line's amount after
// discount minus its cost at the product's weighted average buying price.
// GST is excluded. A zero bound is open.
func Profit(s *State, from time.Time, to time.Time) decimal.Decimal {
	totals := allTotals(s)
	profit := decimal.Zero
	for _, sale := range s.Sales {
		if !from.IsZero() && sale.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.CreatedAt.Before(to) {
			continue
		}
		for _, line := range sale.Lines {
			cost := totals[line.ProductID].avgCost().Mul(decimal.NewFromInt(int64(line.Quantity)))
			profit = profit.Add(line.Amounts().AfterDiscount.Sub(cost))
		}
	}
	return pricing.Round(profit)
}

func Summary(s *State, now time.Time, lowStockThreshold int) domain.DashboardSummary {
	projections := ProjectAll(s, false)

	units := 0
	value := decimal.Zero
	low := make([]domain.StockProjection, 0, 8)
	for _, p := range projections {
		if p.InStock > 0 {
			units += p.InStock
		}
		value = value.Add(p.TotalValue)
		if p.InStock <= lowStockThreshold {
			low = append(low, p)
		}
	}
	slices.SortStableFunc(low, func(a, b domain.StockProjection) int {
		return a.InStock - b.InStock
	})

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return domain.DashboardSummary{
		TotalStockUnits:   units,
		StockValue:        value,
		TotalProfit:       Profit(s, time.Time{}, time.Time{}),
		TodayProfit:       Profit(s, dayStart, dayStart.AddDate(0, 0, 1)),
		LowStockThreshold: lowStockThreshold,
		LowStock:          low,
		GeneratedAt:       now,
	}
}

// Reconcile compares the cached stock hints and customer balances with the
// values projected from the ledgers.
func Reconcile(s *State) domain.ReconcileReport {
	report := domain.ReconcileReport{
		StockDrift:    []domain.StockDrift{},
		CustomerDrift: []domain.CustomerDrift{},
	}

	totals := allTotals(s)
	for _, p := range s.SortedProducts(true) {
		report.CheckedProducts++
		projected := totals[p.ID].inStock()
		if projected != p.StockHint {
			report.StockDrift = append(report.StockDrift, domain.StockDrift{
				ProductID:   p.ID,
				ProductName: p.Name,
				Cached:      p.StockHint,
				Projected:   projected,
			})
		}
	}

	for _, c := range s.SortedCustomers() {
		report.CheckedCustomers++
		projected := ProjectCustomer(s, c.ID)
		pending := projected.Total.Sub(projected.Paid)
		if projected.Total.Equal(c.TotalPurchase) && projected.Paid.Equal(c.PaidAmount) && pending.Equal(c.PendingAmount) {
			continue
		}
		report.CustomerDrift = append(report.CustomerDrift, domain.CustomerDrift{
			CustomerID:       c.ID,
			Name:             c.Name,
			CachedTotal:      c.TotalPurchase,
			ProjectedTotal:   projected.Total,
			CachedPaid:       c.PaidAmount,
			ProjectedPaid:    projected.Paid,
			CachedPending:    c.PendingAmount,
			ProjectedPending: pending,
		})
	}
	return report
}

// ApplyReconcile overwrites drifted caches with their projections and returns
// the ids it changed.
func ApplyReconcile(s *State, report domain.ReconcileReport, now time.Time) (products []string, customers []string) {
	for _, d := range report.StockDrift {
		p := s.Products[d.ProductID]
		p.StockHint = d.Projected
		p.Revision++
		p.UpdatedAt = now
		s.Products[p.ID] = p
		products = append(products, p.ID)
	}
	for _, d := range report.CustomerDrift {
		c := s.Customers[d.CustomerID]
		c.TotalPurchase = d.ProjectedTotal
		c.PaidAmount = d.ProjectedPaid
		c.PendingAmount = d.ProjectedPending
		c.UpdatedAt = now
		s.Customers[c.ID] = c
		customers = append(customers, c.ID)
	}
	return products, customers
}
