package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"ledgerpos/backend/internal/cache"
	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/ledger"
	"ledgerpos/backend/internal/logging"
	"ledgerpos/backend/internal/store"
	"ledgerpos/backend/internal/writelock"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options configures a Service. A zero LowStockThreshold is a valid
// threshold; negative values select the default of 5.
type Options struct {
	Cache             cache.StockCache
	CacheTTL          time.Duration
	Locker            writelock.Locker
	Logger            *logrus.Logger
	InstallationID    string
	PhoneRegion       string
	LowStockThreshold int
	Now               func() time.Time
}

// Service is the billing orchestrator. Writers are serialized and work on a
// clone of the current state; the clone is published only after the
// repository accepted it. Readers use whatever snapshot is published.
type Service struct {
	mu    sync.Mutex
	state atomic.Pointer[ledger.State]

	repo              store.Repository
	cache             cache.StockCache
	cacheTTL          time.Duration
	locker            writelock.Locker
	logger            *logrus.Logger
	installation      string
	phoneRegion       string
	lowStockThreshold int
	now               func() time.Time
}

func New(ctx context.Context, repo store.Repository, opts Options) (*Service, error) {
	if opts.Cache == nil {
		opts.Cache = cache.NoopStockCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.Locker == nil {
		opts.Locker = writelock.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.InstallationID == "" {
		opts.InstallationID = "main-store"
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = "IN"
	}
	if opts.LowStockThreshold < 0 {
		opts.LowStockThreshold = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		repo:              repo,
		cache:             opts.Cache,
		cacheTTL:          opts.CacheTTL,
		locker:            opts.Locker,
		logger:            opts.Logger,
		installation:      opts.InstallationID,
		phoneRegion:       opts.PhoneRegion,
		lowStockThreshold: opts.LowStockThreshold,
		now:               opts.Now,
	}

	state, err := loadState(ctx, repo)
	if err != nil {
		return nil, err
	}
	s.state.Store(state)
	return s, nil
}

// Refresh replaces the published snapshot with the repository contents.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := loadState(ctx, s.repo)
	if err != nil {
		return err
	}
	s.state.Store(state)
	return nil
}

// RefreshEvery calls Refresh until ctx is done. It is used when other
// processes write the same ledger.
func (s *Service) RefreshEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				logging.LogError(s.logger, "service", "RefreshEvery", "reload ledger", nil, err)
			}
		}
	}
}

func (s *Service) snapshot() *ledger.State {
	return s.state.Load()
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func loadState(ctx context.Context, repo store.Repository) (*ledger.State, error) {
	state := ledger.NewState()

	products, err := loadCollection[domain.Product](ctx, repo, store.CollectionProducts)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		state.Products[p.ID] = p
	}

	if state.Purchases, err = loadCollection[domain.PurchaseTransaction](ctx, repo, store.CollectionPurchases); err != nil {
		return nil, err
	}
	if state.Sales, err = loadCollection[domain.SaleTransaction](ctx, repo, store.CollectionSales); err != nil {
		return nil, err
	}

	customers, err := loadCollection[domain.Customer](ctx, repo, store.CollectionCustomers)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		state.Customers[c.ID] = c
	}

	if state.Payments, err = loadCollection[domain.Payment](ctx, repo, store.CollectionPayments); err != nil {
		return nil, err
	}

	sort.SliceStable(state.Purchases, func(i, j int) bool {
		return state.Purchases[i].CreatedAt.Before(state.Purchases[j].CreatedAt)
	})
	sort.SliceStable(state.Sales, func(i, j int) bool {
		return state.Sales[i].CreatedAt.Before(state.Sales[j].CreatedAt)
	})
	return state, nil
}

func loadCollection[T any](ctx context.Context, repo store.Repository, collection string) ([]T, error) {
	raws, err := repo.Load(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", store.ErrPersistence, collection, err)
	}
	items, err := store.Decode[T](raws)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", store.ErrPersistence, collection, err)
	}
	return items, nil
}

// mutate runs fn against a clone of the current state inside the writer
// critical section, persists the records fn touched and publishes the clone.
// Nothing is published when fn or the repository fails.
func (s *Service) mutate(ctx context.Context, op string, fn func(next *ledger.State, cs *changeSet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lease, err := s.locker.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WithError(err).WithField("operation", op).Warn("release writer lock")
		}
	}()

	current := s.state.Load()
	if s.locker.Shared() {
		fresh, err := loadState(ctx, s.repo)
		if err != nil {
			return err
		}
		current = fresh
	}

	next := current.Clone()
	cs := newChangeSet()
	if err := fn(next, cs); err != nil {
		return err
	}

	docs, err := cs.documents(next)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	if len(docs) > 0 {
		if err := s.repo.Save(ctx, docs...); err != nil {
			logging.LogError(s.logger, "service", op, "save ledger documents", cs.summary(), err)
			return fmt.Errorf("%w: %w", store.ErrPersistence, err)
		}
	}

	s.state.Store(next)
	s.invalidateStock(ctx, current, cs.ids(store.CollectionProducts))
	return nil
}

func (s *Service) invalidateStock(ctx context.Context, previous *ledger.State, productIDs []string) {
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if p, ok := previous.Products[id]; ok {
			keys = append(keys, cache.StockKey(s.installation, id, p.Revision))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WithError(err).WithField("keys", keys).Warn("invalidate stock cache")
	}
}

func (s *Service) audit(ctx context.Context, action string, fields logrus.Fields) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	entry := s.logger.WithFields(fields).WithFields(logrus.Fields{
		"action":       action,
		"actor":        actor.Username,
		"actor_role":   actor.Role,
		"installation": s.installation,
	})
	entry.Info("ledger updated")
}

func applyLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
