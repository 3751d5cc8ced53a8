package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"ledgerpos/backend/internal/domain"
	"ledgerpos/backend/internal/ledger"
	"ledgerpos/backend/internal/store"
)

func (s *Service) DashboardSummary(_ context.Context) domain.DashboardSummary {
	return ledger.Summary(s.snapshot(), s.now(), s.lowStockThreshold)
}

// Reconcile reports where cached stock hints or customer balances differ
// from the ledgers. With fix set the drifted records are rewritten from the
// projections in one save.
func (s *Service) Reconcile(ctx context.Context, fix bool) (domain.ReconcileReport, error) {
	if !fix {
		report := ledger.Reconcile(s.snapshot())
		report.CheckedAt = s.clock()
		s.logDrift(report)
		return report, nil
	}

	var report domain.ReconcileReport
	err := s.mutate(ctx, "Reconcile", func(next *ledger.State, cs *changeSet) error {
		report = ledger.Reconcile(next)
		report.CheckedAt = s.clock()
		products, customers := ledger.ApplyReconcile(next, report, report.CheckedAt)
		for _, id := range products {
			cs.upsert(store.CollectionProducts, id)
		}
		for _, id := range customers {
			cs.upsert(store.CollectionCustomers, id)
		}
		report.Fixed = len(products)+len(customers) > 0
		return nil
	})
	if err != nil {
		return domain.ReconcileReport{}, err
	}

	s.logDrift(report)
	return report, nil
}

func (s *Service) logDrift(report domain.ReconcileReport) {
	entry := s.logger.WithFields(logrus.Fields{
		"installation":      s.installation,
		"checked_products":  report.CheckedProducts,
		"checked_customers": report.CheckedCustomers,
		"stock_drift":       len(report.StockDrift),
		"customer_drift":    len(report.CustomerDrift),
		"fixed":             report.Fixed,
	})
	if report.HasDrift() {
		entry.Warn("ledger caches drifted from projections")
		return
	}
	entry.Info("ledger caches match projections")
}
