package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/store"
)

func TestSaveKeepsInsertionOrderAcrossUpserts(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Save(ctx, store.Document{
		Collection: store.CollectionSales,
		Upserts: []store.Record{
			{ID: "sale-1", Payload: json.RawMessage(`{"id":"sale-1","v":1}`)},
			{ID: "sale-2", Payload: json.RawMessage(`{"id":"sale-2","v":1}`)},
		},
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	err = s.Save(ctx, store.Document{
		Collection: store.CollectionSales,
		Upserts:    []store.Record{{ID: "sale-1", Payload: json.RawMessage(`{"id":"sale-1","v":2}`)}},
	})
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	raws, err := s.Load(ctx, store.CollectionSales)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 records, got %d", len(raws))
	}
	if string(raws[0]) != `{"id":"sale-1","v":2}` {
		t.Fatalf("expected updated sale-1 first, got %s", raws[0])
	}
}

func TestSaveDeletesRecords(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Save(ctx, store.Document{
		Collection: store.CollectionPurchases,
		Upserts:    []store.Record{{ID: "pur-1", Payload: json.RawMessage(`{}`)}},
	})
	if err := s.Save(ctx, store.Document{Collection: store.CollectionPurchases, Deletes: []string{"pur-1", "pur-missing"}}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if s.Len(store.CollectionPurchases) != 0 {
		t.Fatalf("expected purchase to be deleted")
	}
}

func TestSaveIsAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Save(ctx,
		store.Document{Collection: store.CollectionProducts, Upserts: []store.Record{{ID: "prod-1", Payload: json.RawMessage(`{}`)}}},
		store.Document{Collection: "unknown"},
	)
	if err == nil {
		t.Fatalf("expected unknown collection to fail")
	}
	if s.Len(store.CollectionProducts) != 0 {
		t.Fatalf("expected no products to be written on failed save")
	}
}

func TestLoadRejectsUnknownCollection(t *testing.T) {
	_, err := New().Load(context.Background(), "invoices")
	if !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestCreateUserRejectsDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	user := domain.UserAccount{Username: "Counter01", Password: "hash"}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if err := s.CreateUser(ctx, user); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	users, _ := s.ListUsers(ctx)
	if len(users) != 1 || users[0].Username != "counter01" || users[0].Role != "cashier" {
		t.Fatalf("unexpected users %+v", users)
	}
}
