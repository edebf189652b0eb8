package allocation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/metrics"
	"github.com/jobtrack/jobtrack/pkg/store"
)

// Drift is an item whose stored available quantity disagrees with its stock
// counters minus the outstanding allocations.
type Drift struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Stored   int    `json:"stored"`
	Expected int    `json:"expected"`
}

// Reconcile compares every item's available quantity against the allocation
// ledger. With fix set, drifted items are overwritten with the expected value
// under the item row lock.
func (s *Service) Reconcile(ctx context.Context, fix bool) ([]Drift, error) {
	var drifts []Drift

	err := s.store.Transaction(ctx, func(tx store.Repository) error {
		drifts = drifts[:0]

		items, err := tx.ListItems(ctx)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		outstanding, err := tx.OutstandingByItem(ctx)
		if err != nil {
			return fmt.Errorf("sum outstanding allocations: %w", err)
		}

		for _, item := range items {
			expected := item.ExpectedAvailable(outstanding[item.ID])
			if expected == item.AvailableQuantity {
				continue
			}
			drifts = append(drifts, Drift{
				ItemID:   item.ID,
				Name:     item.Name,
				Stored:   item.AvailableQuantity,
				Expected: expected,
			})
			if !fix {
				continue
			}
			if _, err := tx.LockItem(ctx, item.ID); err != nil {
				return fmt.Errorf("lock item %s: %w", item.ID, err)
			}
			if err := tx.SetAvailableQuantity(ctx, item.ID, expected); err != nil {
				return fmt.Errorf("set available quantity of item %s: %w", item.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fix {
		metrics.InventoryDrift.Set(0)
	} else {
		metrics.InventoryDrift.Set(float64(len(drifts)))
	}
	for _, drift := range drifts {
		s.logger.Info("inventory drift",
			zap.String("item_id", drift.ItemID),
			zap.Int("stored", drift.Stored),
			zap.Int("expected", drift.Expected),
			zap.Bool("fixed", fix),
		)
	}
	return drifts, nil
}

// WatchDrift runs a read-only reconcile every interval until ctx is done so
// the drift gauge stays current between manual runs.
func (s *Service) WatchDrift(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Reconcile(ctx, false); err != nil && ctx.Err() == nil {
				s.logger.Error("drift check failed", zap.Error(err))
			}
		}
	}
}
