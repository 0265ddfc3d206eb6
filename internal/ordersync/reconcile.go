package ordersync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/imrishuroy/marketplace-ordersync/internal/marketplace"
	"github.com/imrishuroy/marketplace-ordersync/internal/orders"
	"github.com/imrishuroy/marketplace-ordersync/internal/status"
)

// ReconciliationSummary describes one reconciliation pass.
type ReconciliationSummary struct {
	OrdersChecked  int `json:"orders_checked"`
	ItemsUpdated   int `json:"items_updated"`
	ItemsUnchanged int `json:"items_unchanged"`
	// ItemsSkipped counts items the marketplace returned that are not tracked locally.
	ItemsSkipped int `json:"items_skipped"`
	// ItemsMissing counts tracked open items the marketplace did not return.
	ItemsMissing int `json:"items_missing"`
	Failed       int `json:"failed"`
}

// StatusChange is emitted for every applied status update.
type StatusChange struct {
	OrderID     string        `json:"order_id"`
	OrderItemID string        `json:"order_item_id"`
	From        status.Status `json:"from"`
	To          status.Status `json:"to"`
	DetectedAt  time.Time     `json:"detected_at"`
}

// Notifier receives applied status changes. Failures are logged only.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, change StatusChange) error
}

// Reconciler re-checks locally open records against the marketplace and
// applies detected drift.
type Reconciler struct {
	source       OrderSource
	store        OrderStore
	mapper       *status.Mapper
	openStatuses []status.Status
	notifier     Notifier
	logger       *zap.Logger
	nowFunc      func() time.Time
}

// NewReconciler builds a Reconciler over the internal open status set. A nil
// notifier disables notifications.
func NewReconciler(source OrderSource, store OrderStore, mapper *status.Mapper, openStatuses []status.Status, notifier Notifier, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		source:       source,
		store:        store,
		mapper:       mapper,
		openStatuses: append([]status.Status(nil), openStatuses...),
		notifier:     notifier,
		logger:       logger.Named("reconcile"),
		nowFunc:      time.Now,
	}
}

// ReconcileOpenOrders loads open records, re-fetches their orders and
// updates every record whose marketplace status has moved on. A source
// failure aborts the pass; update failures are aggregated and returned after
// all items have been processed.
func (r *Reconciler) ReconcileOpenOrders(ctx context.Context) (ReconciliationSummary, error) {
	var sum ReconciliationSummary

	tracked, err := r.loadOpen(ctx)
	if err != nil {
		return sum, err
	}
	if len(tracked) == 0 {
		r.logger.Info("no open orders to reconcile")
		return sum, nil
	}

	orderIDs := distinctOrderIDs(tracked)
	sum.OrdersChecked = len(orderIDs)

	var fetched []orderWithItems
	for start := 0; start < len(orderIDs); start += marketplace.MaxOrderIDsPerRequest {
		end := min(start+marketplace.MaxOrderIDsPerRequest, len(orderIDs))
		chunk, err := fetchOrders(ctx, r.source, marketplace.OrderFilter{OrderIDs: orderIDs[start:end]})
		if err != nil {
			return sum, err
		}
		fetched = append(fetched, chunk...)
	}

	var errs error
	seen := make(map[orders.Key]struct{}, len(tracked))
	for _, ow := range fetched {
		next, known := r.mapper.Lookup(ow.order.OrderStatus)
		for _, item := range ow.items {
			key := orders.Key{OrderID: ow.order.AmazonOrderID, OrderItemID: item.OrderItemID}
			local, ok := tracked[key]
			if !ok {
				sum.ItemsSkipped++
				continue
			}
			seen[key] = struct{}{}

			if err := r.reconcileItem(ctx, local, ow.order.OrderStatus, next, known, &sum); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	sum.ItemsMissing = len(tracked) - len(seen)
	if sum.ItemsMissing > 0 {
		r.logger.Warn("open items not returned by marketplace", zap.Int("count", sum.ItemsMissing))
	}

	r.logger.Info("reconciliation finished",
		zap.Int("orders_checked", sum.OrdersChecked),
		zap.Int("items_updated", sum.ItemsUpdated),
		zap.Int("items_unchanged", sum.ItemsUnchanged),
		zap.Int("items_skipped", sum.ItemsSkipped),
		zap.Int("items_missing", sum.ItemsMissing),
		zap.Int("failed", sum.Failed),
	)
	return sum, errs
}

func (r *Reconciler) reconcileItem(ctx context.Context, local orders.OrderItemRecord, raw string, next status.Status, known bool, sum *ReconciliationSummary) error {
	log := r.logger.With(
		zap.String("order_id", local.OrderID),
		zap.String("order_item_id", local.OrderItemID),
		zap.String("local_status", local.Status.String()),
	)

	switch {
	case !known:
		sum.ItemsUnchanged++
		log.Warn("unmapped marketplace status, leaving record as is", zap.String("marketplace_status", raw))
		return nil
	case next == local.Status:
		sum.ItemsUnchanged++
		return nil
	case status.IsRegression(local.Status, next):
		sum.ItemsUnchanged++
		log.Warn("refusing status regression", zap.String("marketplace_status", next.String()))
		return nil
	}

	err := r.store.UpdateStatus(ctx, local.OrderID, local.OrderItemID, local.Status, next)
	if errors.Is(err, orders.ErrStatusMismatch) {
		sum.ItemsUnchanged++
		fields := []zap.Field{zap.String("marketplace_status", next.String())}
		switch cur, gerr := r.store.Get(ctx, local.OrderID, local.OrderItemID); {
		case gerr != nil:
			fields = append(fields, zap.NamedError("lookup_error", gerr))
		case cur == nil:
			fields = append(fields, zap.Bool("deleted", true))
		default:
			fields = append(fields, zap.String("current_status", cur.Status.String()))
		}
		log.Info("record changed concurrently, skipping update", fields...)
		return nil
	}
	if err != nil {
		sum.Failed++
		log.Error("failed to update status", zap.String("marketplace_status", next.String()), zap.Error(err))
		return &PersistenceError{Op: "update status", OrderID: local.OrderID, OrderItemID: local.OrderItemID, Err: err}
	}

	sum.ItemsUpdated++
	log.Info("status drift applied", zap.String("new_status", next.String()))

	if r.notifier != nil {
		change := StatusChange{
			OrderID:     local.OrderID,
			OrderItemID: local.OrderItemID,
			From:        local.Status,
			To:          next,
			DetectedAt:  r.nowFunc().UTC(),
		}
		if err := r.notifier.NotifyStatusChange(ctx, change); err != nil {
			log.Warn("failed to publish status change", zap.Error(err))
		}
	}
	return nil
}

// loadOpen queries every open status in parallel and merges the results.
func (r *Reconciler) loadOpen(ctx context.Context) (map[orders.Key]orders.OrderItemRecord, error) {
	p := pool.NewWithResults[[]orders.OrderItemRecord]().WithContext(ctx)
	for _, st := range r.openStatuses {
		p.Go(func(ctx context.Context) ([]orders.OrderItemRecord, error) {
			recs, err := r.store.QueryByStatus(ctx, st)
			if err != nil {
				return nil, fmt.Errorf("query status %s: %w", st, err)
			}
			return recs, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("ordersync: load open records: %w", err)
	}

	tracked := make(map[orders.Key]orders.OrderItemRecord)
	for _, recs := range results {
		for _, rec := range recs {
			tracked[rec.Key()] = rec
		}
	}
	return tracked, nil
}

func distinctOrderIDs(tracked map[orders.Key]orders.OrderItemRecord) []string {
	set := make(map[string]struct{}, len(tracked))
	for k := range tracked {
		set[k.OrderID] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
