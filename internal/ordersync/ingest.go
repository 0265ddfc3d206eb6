package ordersync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/imrishuroy/marketplace-ordersync/internal/marketplace"
	"github.com/imrishuroy/marketplace-ordersync/internal/orders"
	"github.com/imrishuroy/marketplace-ordersync/internal/status"
)

// IngestResult describes one ingestion pass. Records holds every record
// built from the source, whether or not it was newly persisted.
type IngestResult struct {
	Records    []orders.OrderItemRecord `json:"-"`
	Inserted   int                      `json:"inserted"`
	Duplicates int                      `json:"duplicates"`
	Failed     int                      `json:"failed"`
	Unmapped   int                      `json:"unmapped"`
}

// Ingester pulls open orders created since a cutoff and inserts one record
// per line item, first write wins.
type Ingester struct {
	source       OrderSource
	store        OrderStore
	mapper       *status.Mapper
	openStatuses []string
	logger       *zap.Logger
	nowFunc      func() time.Time
}

// NewIngester builds an Ingester querying the marketplace for openStatuses.
func NewIngester(source OrderSource, store OrderStore, mapper *status.Mapper, openStatuses []string, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		source:       source,
		store:        store,
		mapper:       mapper,
		openStatuses: append([]string(nil), openStatuses...),
		logger:       logger.Named("ingest"),
		nowFunc:      time.Now,
	}
}

// IngestSince fetches and stores open orders created at or after cutoff.
// A source failure aborts the pass. Store failures are logged, counted and
// returned together once every record has been attempted.
func (i *Ingester) IngestSince(ctx context.Context, cutoff time.Time) (IngestResult, error) {
	var res IngestResult
	if cutoff.IsZero() || cutoff.After(i.nowFunc()) {
		return res, fmt.Errorf("%w: %v", ErrInvalidCutoff, cutoff)
	}

	fetched, err := fetchOrders(ctx, i.source, marketplace.OrderFilter{
		CreatedAfter: cutoff,
		Statuses:     i.openStatuses,
	})
	if err != nil {
		return res, err
	}

	for _, ow := range fetched {
		st, known := i.mapper.Lookup(ow.order.OrderStatus)
		if !known {
			res.Unmapped += len(ow.items)
			i.logger.Warn("unmapped marketplace status",
				zap.String("order_id", ow.order.AmazonOrderID),
				zap.String("marketplace_status", ow.order.OrderStatus),
			)
		}
		for _, item := range ow.items {
			res.Records = append(res.Records, newRecord(ow.order, item, st))
		}
	}

	var errs error
	for _, rec := range res.Records {
		inserted, err := i.store.PutIfAbsent(ctx, rec)
		switch {
		case err != nil:
			res.Failed++
			i.logger.Error("failed to store order item",
				zap.String("order_id", rec.OrderID),
				zap.String("order_item_id", rec.OrderItemID),
				zap.Error(err),
			)
			errs = multierr.Append(errs, &PersistenceError{
				Op:          "insert",
				OrderID:     rec.OrderID,
				OrderItemID: rec.OrderItemID,
				Err:         err,
			})
		case !inserted:
			res.Duplicates++
			i.logger.Debug("order item already stored",
				zap.String("order_id", rec.OrderID),
				zap.String("order_item_id", rec.OrderItemID),
			)
		default:
			res.Inserted++
		}
	}

	i.logger.Info("ingestion finished",
		zap.Time("cutoff", cutoff),
		zap.Int("orders", len(fetched)),
		zap.Int("records", len(res.Records)),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failed", res.Failed),
		zap.Int("unmapped", res.Unmapped),
	)
	return res, errs
}

func newRecord(o marketplace.Order, item marketplace.OrderItem, st status.Status) orders.OrderItemRecord {
	rec := orders.OrderItemRecord{
		OrderID:          o.AmazonOrderID,
		OrderItemID:      item.OrderItemID,
		SKU:              item.SellerSKU,
		Quantity:         item.QuantityOrdered,
		PurchaseDate:     o.PurchaseDate,
		EarliestShipDate: o.EarliestShipDate,
		LatestShipDate:   o.LatestShipDate,
		Status:           st,
	}
	if a := o.ShippingAddress; a != nil {
		rec.ShippingAddress = &orders.Address{
			Name:          a.Name,
			AddressLine1:  a.AddressLine1,
			AddressLine2:  a.AddressLine2,
			City:          a.City,
			StateOrRegion: a.StateOrRegion,
			PostalCode:    a.PostalCode,
			CountryCode:   a.CountryCode,
			Phone:         a.Phone,
		}
	}
	return rec
}
