package cache

import (
	"context"
	"fmt"
	"time"

	"ledgerpos/backend/internal/domain"
)

// StockCache holds stock projections keyed by product revision, so an entry
// never outlives the ledger state it was computed from.
type StockCache interface {
	Get(ctx context.Context, key string) (*domain.StockProjection, bool, error)
	Set(ctx context.Context, key string, value *domain.StockProjection, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func StockKey(installation string, productID string, revision int64) string {
	return fmt.Sprintf("stock:%s:%s:%d", installation, productID, revision)
}

type NoopStockCache struct{}

func (NoopStockCache) Get(_ context.Context, _ string) (*domain.StockProjection, bool, error) {
	return nil, false, nil
}

func (NoopStockCache) Set(_ context.Context, _ string, _ *domain.StockProjection, _ time.Duration) error {
	return nil
}

func (NoopStockCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
