package ledger

import (
	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/pricing"
)

func BuildInvoice(sale domain.SaleTransaction) domain.Invoice {
	amounts := sale.LineAmounts()
	totals := pricing.Summarize(amounts)

	lines := make([]domain.InvoiceLine, 0, len(sale.Lines))
	for i, line := range sale.Lines {
		a := amounts[i]
		lines = append(lines, domain.InvoiceLine{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			DiscountPct:    line.DiscountPct,
			GSTPct:         line.GSTPct,
			Net:            pricing.Round(a.Net),
			DiscountAmount: pricing.Round(a.DiscountAmount),
			GSTAmount:      pricing.Round(a.GSTAmount),
			LineTotal:      pricing.Round(a.LineTotal),
		})
	}

	paid := pricing.Round(sale.ReceivedAmount())
	return domain.Invoice{
		ID:            sale.ID,
		CreatedAt:     sale.CreatedAt,
		Customer:      sale.Customer,
		Lines:         lines,
		Subtotal:      totals.Subtotal,
		TotalDiscount: totals.TotalDiscount,
		TotalGST:      totals.TotalGST,
		GrandTotal:    totals.GrandTotal,
		Paid:          paid,
		Pending:       totals.GrandTotal.Sub(paid),
	}
}

func CustomerSnapshot(c domain.Customer) domain.InvoiceCustomer {
	return domain.InvoiceCustomer{
		ID:              c.ID,
		Name:            c.Name,
		Phone:           c.Phone,
		Key:             c.Key,
		BillingAddress:  c.BillingAddress,
		ShippingAddress: c.ShippingAddress,
		GSTIN:           c.GSTIN,
	}
}
