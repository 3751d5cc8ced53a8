// Package pricing computes sale line amounts and bill totals.
//
// Line amounts are kept at full precision. Rounding to two decimal places
// happens once, when lines are aggregated into Totals.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidLineInput = errors.New("invalid line input")

// MaxQuantity bounds a single line so that per-product sums stay far from
// integer overflow.
const MaxQuantity = 1_000_000

var hundred = decimal.NewFromInt(100)

type LineInput struct {
	Quantity    int
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	GSTPct      decimal.Decimal
}

type LineAmounts struct {
	Net            decimal.Decimal
	DiscountAmount decimal.Decimal
	AfterDiscount  decimal.Decimal
	GSTAmount      decimal.Decimal
	LineTotal      decimal.Decimal
}

type Totals struct {
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalGST      decimal.Decimal
	GrandTotal    decimal.Decimal
}

func (in LineInput) Validate() error {
	switch {
	case in.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidLineInput)
	case in.Quantity > MaxQuantity:
		return fmt.Errorf("%w: quantity must not exceed %d", ErrInvalidLineInput, MaxQuantity)
	case in.UnitPrice.IsNegative():
		return fmt.Errorf("%w: unit price must not be negative", ErrInvalidLineInput)
	case in.DiscountPct.IsNegative() || in.DiscountPct.GreaterThan(hundred):
		return fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidLineInput)
	case in.GSTPct.IsNegative():
		return fmt.Errorf("%w: gst must not be negative", ErrInvalidLineInput)
	}
	return nil
}

// ComputeLine validates the input and returns its unrounded amounts.
func ComputeLine(in LineInput) (LineAmounts, error) {
	if err := in.Validate(); err != nil {
		return LineAmounts{}, err
	}
	return Compute(in), nil
}

// Compute skips validation. Callers must only pass inputs that already
// passed Validate.
func Compute(in LineInput) LineAmounts {
	net := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	discount := net.Mul(in.DiscountPct).Div(hundred)
	afterDiscount := net.Sub(discount)
	gst := afterDiscount.Mul(in.GSTPct).Div(hundred)

	return LineAmounts{
		Net:            net,
		DiscountAmount: discount,
		AfterDiscount:  afterDiscount,
		GSTAmount:      gst,
		LineTotal:      afterDiscount.Add(gst),
	}
}

func Summarize(lines []LineAmounts) Totals {
	subtotal := decimal.Zero
	discount := decimal.Zero
	gst := decimal.Zero
	grand := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Net)
		discount = discount.Add(line.DiscountAmount)
		gst = gst.Add(line.GSTAmount)
		grand = grand.Add(line.LineTotal)
	}

	return Totals{
		Subtotal:      Round(subtotal),
		TotalDiscount: Round(discount),
		TotalGST:      Round(gst),
		GrandTotal:    Round(grand),
	}
}

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
