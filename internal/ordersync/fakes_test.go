package ordersync

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/imrishuroy/marketplace-ordersync/internal/marketplace"
	"github.com/imrishuroy/marketplace-ordersync/internal/orders"
	"github.com/imrishuroy/marketplace-ordersync/internal/status"
)

// fakeSource serves a fixed order set, paging orders and items by offset.
type fakeSource struct {
	mu           sync.Mutex
	orders       []marketplace.Order
	items        map[string][]marketplace.OrderItem
	pageSize     int
	itemPageSize int
	listErr      error

	listCalls []marketplace.OrderFilter
	itemCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{items: map[string][]marketplace.OrderItem{}}
}

func (f *fakeSource) addOrder(id, st string, itemIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, marketplace.Order{
		AmazonOrderID: id,
		OrderStatus:   st,
		PurchaseDate:  "2024-01-01T00:00:00Z",
	})
	for _, itemID := range itemIDs {
		f.items[id] = append(f.items[id], marketplace.OrderItem{
			OrderItemID:     itemID,
			SellerSKU:       "SKU-" + itemID,
			QuantityOrdered: 1,
		})
	}
}

func (f *fakeSource) setStatus(id, st string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].AmazonOrderID == id {
			f.orders[i].OrderStatus = st
		}
	}
}

func (f *fakeSource) ListOrders(_ context.Context, filter marketplace.OrderFilter, nextToken string) (marketplace.OrderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, filter)
	if f.listErr != nil {
		return marketplace.OrderPage{}, f.listErr
	}

	var matched []marketplace.Order
	for _, o := range f.orders {
		if len(filter.OrderIDs) > 0 {
			if contains(filter.OrderIDs, o.AmazonOrderID) {
				matched = append(matched, o)
			}
			continue
		}
		if len(filter.Statuses) == 0 || contains(filter.Statuses, o.OrderStatus) {
			matched = append(matched, o)
		}
	}
	out, next := paginate(matched, f.pageSize, nextToken)
	return marketplace.OrderPage{Orders: out, NextToken: next}, nil
}

func (f *fakeSource) ListOrderItems(_ context.Context, orderID, nextToken string) (marketplace.OrderItemPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemCalls++
	out, next := paginate(f.items[orderID], f.itemPageSize, nextToken)
	return marketplace.OrderItemPage{Items: out, NextToken: next}, nil
}

func paginate[T any](all []T, size int, token string) ([]T, string) {
	start := 0
	if token != "" {
		start, _ = strconv.Atoi(token)
	}
	if size <= 0 || start+size >= len(all) {
		return all[start:], ""
	}
	return all[start : start+size], strconv.Itoa(start + size)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// memStore is an in-memory OrderStore with the same conditional semantics
// as the DynamoDB store.
type memStore struct {
	mu         sync.Mutex
	recs       map[orders.Key]orders.OrderItemRecord
	putFail    map[orders.Key]error
	updateFail map[orders.Key]error
	queryErr   error
	// beforeUpdate runs ahead of the conditional check, outside the lock.
	beforeUpdate func(key orders.Key)

	puts    int
	updates int
	gets    int
}

func newMemStore() *memStore {
	return &memStore{
		recs:       map[orders.Key]orders.OrderItemRecord{},
		putFail:    map[orders.Key]error{},
		updateFail: map[orders.Key]error{},
	}
}

func (m *memStore) seed(orderID, itemID string, st status.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := orders.Key{OrderID: orderID, OrderItemID: itemID}
	m.recs[k] = orders.OrderItemRecord{OrderID: orderID, OrderItemID: itemID, Status: st}
}

func (m *memStore) get(orderID, itemID string) (orders.OrderItemRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[orders.Key{OrderID: orderID, OrderItemID: itemID}]
	return r, ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func (m *memStore) PutIfAbsent(_ context.Context, rec orders.OrderItemRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putFail[rec.Key()]; err != nil {
		return false, err
	}
	if _, ok := m.recs[rec.Key()]; ok {
		return false, nil
	}
	m.puts++
	m.recs[rec.Key()] = rec
	return true, nil
}

func (m *memStore) Get(_ context.Context, orderID, orderItemID string) (*orders.OrderItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	r, ok := m.recs[orders.Key{OrderID: orderID, OrderItemID: orderItemID}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) QueryByStatus(_ context.Context, st status.Status) ([]orders.OrderItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []orders.OrderItemRecord
	for _, r := range m.recs {
		if r.Status == st {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].OrderItemID < out[j].OrderItemID
	})
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, orderID, orderItemID string, expected, newStatus status.Status) error {
	k := orders.Key{OrderID: orderID, OrderItemID: orderItemID}
	if m.beforeUpdate != nil {
		m.beforeUpdate(k)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if err := m.updateFail[k]; err != nil {
		return err
	}
	rec, ok := m.recs[k]
	if !ok || rec.Status != expected {
		return orders.ErrStatusMismatch
	}
	rec.Status = newStatus
	m.recs[k] = rec
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyStatusChange(ctx context.Context, change StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) PublishCounts(ctx context.Context, counts map[string]int, dimensions map[string]string) error {
	args := m.Called(ctx, counts, dimensions)
	return args.Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(ctx context.Context, body string, attributes map[string]string) error {
	args := m.Called(ctx, body, attributes)
	return args.Error(0)
}

var openMarketplaceStatuses = []string{"Unshipped", "PartiallyShipped"}

func newTestMapper() *status.Mapper { return status.NewMapper(status.DefaultTable()) }

func openInternalStatuses() []status.Status {
	return newTestMapper().MapAll(openMarketplaceStatuses)
}
