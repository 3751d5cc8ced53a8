package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"ledgerpos/backend/internal/pricing"
)

type Product struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Category            string          `json:"category,omitempty"`
	CurrentBuyingPrice  decimal.Decimal `json:"current_buying_price"`
	CurrentSellingPrice decimal.Decimal `json:"current_selling_price"`
	StockHint           int             `json:"stock_hint"`
	Active              bool            `json:"active"`
	Revision            int64           `json:"revision"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name         string          `json:"name" validate:"required,max=120"`
	Category     string          `json:"category" validate:"max=60"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

type PurchaseLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

func (l PurchaseLine) LineCost() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type PurchaseTransaction struct {
	ID           string         `json:"id"`
	SupplierName string         `json:"supplier_name,omitempty"`
	Lines        []PurchaseLine `json:"lines"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (p PurchaseTransaction) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.LineCost())
	}
	return total
}

type PurchaseLineRequest struct {
	ProductID    string              `json:"product_id" validate:"required_without=ProductName"`
	ProductName  string              `json:"product_name" validate:"required_without=ProductID,max=120"`
	Category     string              `json:"category,omitempty" validate:"max=60"`
	Quantity     int                 `json:"quantity" validate:"gt=0,lte=1000000"`
	UnitCost     decimal.Decimal     `json:"unit_cost"`
	SellingPrice decimal.NullDecimal `json:"selling_price"`
}

type PurchaseRequest struct {
	SupplierName string                `json:"supplier_name" validate:"max=120"`
	Lines        []PurchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type SaleLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	GSTPct      decimal.Decimal `json:"gst_pct"`
}

func (l SaleLine) PricingInput() pricing.LineInput {
	return pricing.LineInput{
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		DiscountPct: l.DiscountPct,
		GSTPct:      l.GSTPct,
	}
}

// Amounts is unrounded; lines are validated before they are stored.
func (l SaleLine) Amounts() pricing.LineAmounts {
	return pricing.Compute(l.PricingInput())
}

// SaleTransaction stores only its lines and payments. Totals are derived on
// every read so they cannot drift from the lines.
type SaleTransaction struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Customer   InvoiceCustomer `json:"customer"`
	Lines      []SaleLine      `json:"lines"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	// Settled is the share of later customer payments allocated to this sale.
	Settled   decimal.Decimal `json:"settled_amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s SaleTransaction) LineAmounts() []pricing.LineAmounts {
	out := make([]pricing.LineAmounts, 0, len(s.Lines))
	for _, line := range s.Lines {
		out = append(out, line.Amounts())
	}
	return out
}

func (s SaleTransaction) Totals() pricing.Totals {
	return pricing.Summarize(s.LineAmounts())
}

func (s SaleTransaction) TotalAmount() decimal.Decimal {
	return s.Totals().GrandTotal
}

func (s SaleTransaction) ReceivedAmount() decimal.Decimal {
	return s.PaidAmount.Add(s.Settled)
}

func (s SaleTransaction) PendingAmount() decimal.Decimal {
	return s.TotalAmount().Sub(s.ReceivedAmount())
}

type SaleLineRequest struct {
	ProductID   string              `json:"product_id" validate:"required"`
	Quantity    int                 `json:"quantity" validate:"gt=0,lte=1000000"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	DiscountPct decimal.Decimal     `json:"discount_pct"`
	GSTPct      decimal.Decimal     `json:"gst_pct"`
}

type CustomerInput struct {
	Name            string `json:"name" validate:"required,max=120"`
	Phone           string `json:"phone" validate:"max=32"`
	BillingAddress  string `json:"billing_address,omitempty" validate:"max=400"`
	ShippingAddress string `json:"shipping_address,omitempty" validate:"max=400"`
	GSTIN           string `json:"gstin,omitempty" validate:"omitempty,len=15,alphanum"`
}

type SaleRequest struct {
	Customer   CustomerInput     `json:"customer"`
	Lines      []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
	PaidAmount decimal.Decimal   `json:"paid_amount"`
}

type Customer struct {
	ID              string          `json:"id"`
	Key             string          `json:"key"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone,omitempty"`
	PhoneDisplay    string          `json:"phone_display,omitempty"`
	BillingAddress  string          `json:"billing_address,omitempty"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	GSTIN           string          `json:"gstin,omitempty"`
	TotalPurchase   decimal.Decimal `json:"total_purchase"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type PaymentAllocation struct {
	SaleID string          `json:"sale_id"`
	Amount decimal.Decimal `json:"amount"`
	// Reversed is set when the sale was deleted after the payment was allocated.
	Reversed bool `json:"reversed,omitempty"`
}

type Payment struct {
	ID          string              `json:"id"`
	CustomerID  string              `json:"customer_id"`
	Amount      decimal.Decimal     `json:"amount"`
	Rejected    decimal.Decimal     `json:"rejected_amount"`
	Allocations []PaymentAllocation `json:"allocations"`
	CreatedAt   time.Time           `json:"created_at"`
}

type PaymentRequest struct {
	CustomerID    string          `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	AcceptPartial bool            `json:"accept_partial"`
}

type PaymentResponse struct {
	Payment  Payment  `json:"payment"`
	Customer Customer `json:"customer"`
}

type InvoiceCustomer struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	Key             string `json:"key"`
	BillingAddress  string `json:"billing_address,omitempty"`
	ShippingAddress string `json:"shipping_address,omitempty"`
	GSTIN           string `json:"gstin,omitempty"`
}

type InvoiceLine struct {
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountPct    decimal.Decimal `json:"discount_pct"`
	GSTPct         decimal.Decimal `json:"gst_pct"`
	Net            decimal.Decimal `json:"net"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	GSTAmount      decimal.Decimal `json:"gst_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// Invoice is a read-only snapshot of one finalized sale. Amounts are rounded
// to two decimal places.
type Invoice struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	Customer      InvoiceCustomer `json:"customer"`
	Lines         []InvoiceLine   `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalGST      decimal.Decimal `json:"total_gst"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Paid          decimal.Decimal `json:"paid"`
	Pending       decimal.Decimal `json:"pending"`
}

type StockProjection struct {
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	PurchasedQty   int             `json:"purchased_qty"`
	SoldQty        int             `json:"sold_qty"`
	AvgBuyingPrice decimal.Decimal `json:"avg_buying_price"`
	InStock        int             `json:"in_stock"`
	TotalValue     decimal.Decimal `json:"total_value"`
}

type DashboardSummary struct {
	TotalStockUnits   int               `json:"total_stock_units"`
	StockValue        decimal.Decimal   `json:"stock_value"`
	TotalProfit       decimal.Decimal   `json:"total_profit"`
	TodayProfit       decimal.Decimal   `json:"today_profit"`
	LowStockThreshold int               `json:"low_stock_threshold"`
	LowStock          []StockProjection `json:"low_stock"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

type StockDrift struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Cached      int    `json:"cached"`
	Projected   int    `json:"projected"`
}

type CustomerDrift struct {
	CustomerID       string          `json:"customer_id"`
	Name             string          `json:"name"`
	CachedTotal      decimal.Decimal `json:"cached_total"`
	ProjectedTotal   decimal.Decimal `json:"projected_total"`
	CachedPaid       decimal.Decimal `json:"cached_paid"`
	ProjectedPaid    decimal.Decimal `json:"projected_paid"`
	CachedPending    decimal.Decimal `json:"cached_pending"`
	ProjectedPending decimal.Decimal `json:"projected_pending"`
}

type ReconcileReport struct {
	CheckedProducts  int             `json:"checked_products"`
	CheckedCustomers int             `json:"checked_customers"`
	StockDrift       []StockDrift    `json:"stock_drift"`
	CustomerDrift    []CustomerDrift `json:"customer_drift"`
	Fixed            bool            `json:"fixed"`
	CheckedAt        time.Time       `json:"checked_at"`
}

func (r ReconcileReport) HasDrift() bool {
	return len(r.StockDrift) > 0 || len(r.CustomerDrift) > 0
}

type DeleteRequest struct {
	ManagerPIN string `json:"manager_pin" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
