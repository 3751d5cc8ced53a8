package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDetailErrorsUnwrapToSentinels(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: "prod-1", Available: 10, Requested: 11}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock sentinel, got %v", err)
	}
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 10 {
		t.Fatalf("expected detail to survive errors.As, got %+v", stockErr)
	}

	err = &OverpaymentError{CustomerID: "cust-1", Pending: decimal.NewFromInt(300), Amount: decimal.NewFromInt(500)}
	if !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected overpayment sentinel, got %v", err)
	}
	if err.Error() != "payment exceeds pending amount: customer cust-1 owes 300.00, received 500.00" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	err = Invalid(ErrInvalidPayment, "paid %s exceeds total", "20")
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected invalid payment sentinel, got %v", err)
	}
}

func TestDecodeRecords(t *testing.T) {
	type item struct {
		ID string `json:"id"`
	}
	rec, err := NewRecord("a", item{ID: "a"})
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	items, err := Decode[item]([]json.RawMessage{rec.Payload})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("unexpected items %+v", items)
	}

	if _, err := Decode[item]([]json.RawMessage{json.RawMessage(`{`)}); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}
}

func TestValidateDocumentsRejectsUnknownCollection(t *testing.T) {
	err := ValidateDocuments([]Document{{Collection: "invoices"}})
	if err == nil {
		t.Fatalf("expected unknown collection to be rejected")
	}
	err = ValidateDocuments([]Document{{Collection: CollectionSales, Upserts: []Record{{ID: ""}}}})
	if err == nil {
		t.Fatalf("expected record without id to be rejected")
	}
	if err := ValidateDocuments([]Document{{Collection: CollectionSales, Deletes: []string{"sale-1"}}}); err != nil {
		t.Fatalf("expected delete-only document to pass, got %v", err)
	}
}
