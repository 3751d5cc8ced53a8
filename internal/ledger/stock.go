package ledger

import (
	"github.com/shopspring/decimal"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/pricing"
)

type stockTotals struct {
	purchased int
	sold      int
	cost      decimal.Decimal
}

func (t stockTotals) avgCost() decimal.Decimal {
	if t.purchased <= 0 {
		return decimal.Zero
	}
	return t.cost.Div(decimal.NewFromInt(int64(t.purchased)))
}

func (t stockTotals) inStock() int {
	return t.purchased - t.sold
}

func totalsFor(s *State, productID string) stockTotals {
	var t stockTotals
	for _, p := range s.Purchases {
		for _, line := range p.Lines {
			if line.ProductID != productID {
				continue
			}
			t.purchased += line.Quantity
			t.cost = t.cost.Add(line.LineCost())
		}
	}
	for _, sale := range s.Sales {
		for _, line := range sale.Lines {
			if line.ProductID == productID {
				t.sold += line.Quantity
			}
		}
	}
	return t
}

func allTotals(s *State) map[string]stockTotals {
	out := make(map[string]stockTotals, len(s.Products))
	for _, p := range s.Purchases {
		for _, line := range p.Lines {
			t := out[line.ProductID]
			t.purchased += line.Quantity
			t.cost = t.cost.Add(line.LineCost())
			out[line.ProductID] = t
		}
	}
	for _, sale := range s.Sales {
		for _, line := range sale.Lines {
			t := out[line.ProductID]
			t.sold += line.Quantity
			out[line.ProductID] = t
		}
	}
	return out
}

func projection(productID string, name string, t stockTotals) domain.StockProjection {
	avg := t.avgCost()
	value := decimal.Zero
	if in := t.inStock(); in > 0 {
		value = avg.Mul(decimal.NewFromInt(int64(in)))
	}
	return domain.StockProjection{
		ProductID:      productID,
		ProductName:    name,
		PurchasedQty:   t.purchased,
		SoldQty:        t.sold,
		AvgBuyingPrice: pricing.Round(avg),
		InStock:        t.inStock(),
		TotalValue:     pricing.Round(value),
	}
}

// ProjectStock derives a product's stock from the purchase and sale ledgers.
// InStock is signed so that corrupted history shows up instead of being
// clamped away.
func ProjectStock(s *State, productID string) domain.StockProjection {
	return projection(productID, s.Products[productID].Name, totalsFor(s, productID))
}

func ProjectAll(s *State, includeInactive bool) []domain.StockProjection {
	totals := allTotals(s)
	products := s.SortedProducts(includeInactive)
	out := make([]domain.StockProjection, 0, len(products))
	for _, p := range products {
		out = append(out, projection(p.ID, p.Name, totals[p.ID]))
	}
	return out
}

// LatestUnitCost returns the unit cost of the most recent purchase line for
// the product.
func LatestUnitCost(s *State, productID string) (decimal.Decimal, bool) {
	for i := len(s.Purchases) - 1; i >= 0; i-- {
		lines := s.Purchases[i].Lines
		for j := len(lines) - 1; j >= 0; j-- {
			if lines[j].ProductID == productID {
				return lines[j].UnitCost, true
			}
		}
	}
	return decimal.Zero, false
}
