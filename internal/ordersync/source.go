package ordersync

import (
	"context"

	"github.com/imrishuroy/marketplace-ordersync/internal/marketplace"
	"github.com/imrishuroy/marketplace-ordersync/internal/orders"
	"github.com/imrishuroy/marketplace-ordersync/internal/status"
)

// OrderSource is the marketplace capability. Both calls return one page and
// the token for the next one; an empty token ends the sequence.
type OrderSource interface {
	ListOrders(ctx context.Context, filter marketplace.OrderFilter, nextToken string) (marketplace.OrderPage, error)
	ListOrderItems(ctx context.Context, orderID, nextToken string) (marketplace.OrderItemPage, error)
}

// OrderStore is the persistence capability.
type OrderStore interface {
	PutIfAbsent(ctx context.Context, rec orders.OrderItemRecord) (bool, error)
	Get(ctx context.Context, orderID, orderItemID string) (*orders.OrderItemRecord, error)
	QueryByStatus(ctx context.Context, st status.Status) ([]orders.OrderItemRecord, error)
	UpdateStatus(ctx context.Context, orderID, orderItemID string, expected, newStatus status.Status) error
}

type orderWithItems struct {
	order marketplace.Order
	items []marketplace.OrderItem
}

// fetchOrders drains every page of orders for filter and, for each order,
// every page of its items.
func fetchOrders(ctx context.Context, src OrderSource, filter marketplace.OrderFilter) ([]orderWithItems, error) {
	var (
		out   []orderWithItems
		token string
	)
	for {
		page, err := src.ListOrders(ctx, filter, token)
		if err != nil {
			return nil, sourceError("list orders", err)
		}
		for _, o := range page.Orders {
			items, err := fetchItems(ctx, src, o.AmazonOrderID)
			if err != nil {
				return nil, err
			}
			out = append(out, orderWithItems{order: o, items: items})
		}
		if page.NextToken == "" {
			return out, nil
		}
		token = page.NextToken
	}
}

func fetchItems(ctx context.Context, src OrderSource, orderID string) ([]marketplace.OrderItem, error) {
	var (
		out   []marketplace.OrderItem
		token string
	)
	for {
		page, err := src.ListOrderItems(ctx, orderID, token)
		if err != nil {
			return nil, sourceError("list order items "+orderID, err)
		}
		out = append(out, page.Items...)
		if page.NextToken == "" {
			return out, nil
		}
		token = page.NextToken
	}
}
