package orders

import (
	"time"

	"github.com/imrishuroy/marketplace-ordersync/internal/status"
)

// Attribute names on the orders table.
const (
	AttrPK           = "pk"
	AttrSK           = "sk"
	AttrStatus       = "status"
	AttrScrapped     = "scrappedStatus"
	AttrUpdatedAt    = "updatedAt"
	DefaultIndexName = "status-index"
	ScrappedYes      = "Yes"
	ScrappedNo       = "No"
)

// Address is the shipping address as reported by the marketplace. Fields may
// be empty when the marketplace restricts PII.
type Address struct {
	Name          string `dynamodbav:"name,omitempty"`
	AddressLine1  string `dynamodbav:"addressLine1,omitempty"`
	AddressLine2  string `dynamodbav:"addressLine2,omitempty"`
	City          string `dynamodbav:"city,omitempty"`
	StateOrRegion string `dynamodbav:"stateOrRegion,omitempty"`
	PostalCode    string `dynamodbav:"postalCode,omitempty"`
	CountryCode   string `dynamodbav:"countryCode,omitempty"`
	Phone         string `dynamodbav:"phone,omitempty"`
}

// OrderItemRecord is one order line item in the orders table, keyed by
// (OrderID, OrderItemID). Only Status is mutated after creation.
type OrderItemRecord struct {
	OrderID          string        `dynamodbav:"pk"` // PK, marketplace order id
	OrderItemID      string        `dynamodbav:"sk"` // SK
	SKU              string        `dynamodbav:"sku"`
	Quantity         int           `dynamodbav:"quantity"`
	PurchaseDate     string        `dynamodbav:"purchaseDate"`
	EarliestShipDate string        `dynamodbav:"earliestShipDate,omitempty"`
	LatestShipDate   string        `dynamodbav:"latestShipDate,omitempty"`
	ShippingAddress  *Address      `dynamodbav:"shippingAddress,omitempty"`
	Status           status.Status `dynamodbav:"status"` // status-index partition key
	ScrappedFlag     string        `dynamodbav:"scrappedStatus,omitempty"`
	CreatedAt        time.Time     `dynamodbav:"createdAt"`
	UpdatedAt        time.Time     `dynamodbav:"updatedAt"`
}

// Key identifies a record.
type Key struct {
	OrderID     string
	OrderItemID string
}

// Key returns the record's primary key.
func (r OrderItemRecord) Key() Key {
	return Key{OrderID: r.OrderID, OrderItemID: r.OrderItemID}
}
