package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/pricing"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidLineInput  = pricing.ErrInvalidLineInput
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidPayment    = errors.New("invalid payment")
	ErrOverpayment       = errors.New("payment exceeds pending amount")
	ErrDuplicate         = errors.New("already exists")
	ErrPersistence       = errors.New("persistence failed")
)

// ValidationError attaches human-readable details to one of the sentinels above.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func Invalid(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Details: fmt.Sprintf(format, args...)}
}

type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: product %s has %d, requested %d", ErrInsufficientStock.Error(), e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type OverpaymentError struct {
	CustomerID string
	Pending    decimal.Decimal
	Amount     decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("%s: customer %s owes %s, received %s", ErrOverpayment.Error(), e.CustomerID, e.Pending.StringFixed(2), e.Amount.StringFixed(2))
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

const (
	CollectionProducts  = "products"
	CollectionPurchases = "purchases"
	CollectionSales     = "sales"
	CollectionCustomers = "customers"
	CollectionPayments  = "payments"
)

var Collections = []string{
	CollectionProducts,
	CollectionPurchases,
	CollectionSales,
	CollectionCustomers,
	CollectionPayments,
}

func IsKnownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

type Record struct {
	ID      string
	Payload json.RawMessage
}

// Document is the set of changes to one collection. Upserted records keep
// their original position in the collection.
type Document struct {
	Collection string
	Upserts    []Record
	Deletes    []string
}

// Repository persists ledger collections. Save must apply every document or
// none of them.
type Repository interface {
	Load(ctx context.Context, collection string) ([]json.RawMessage, error)
	Save(ctx context.Context, docs ...Document) error
	UserStore
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

func NewRecord(id string, value any) (Record, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", id, err)
	}
	return Record{ID: id, Payload: payload}, nil
}

func Decode[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func ValidateDocuments(docs []Document) error {
	for _, doc := range docs {
		if !IsKnownCollection(doc.Collection) {
			return fmt.Errorf("unknown collection %q", doc.Collection)
		}
		for _, rec := range doc.Upserts {
			if rec.ID == "" || len(rec.Payload) == 0 {
				return fmt.Errorf("collection %s: record without id or payload", doc.Collection)
			}
		}
	}
	return nil
}
