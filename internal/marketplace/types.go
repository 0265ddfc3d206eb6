package marketplace

import (
	"errors"
	"fmt"
	"time"
)

// MaxOrderIDsPerRequest is the getOrders limit on AmazonOrderIds.
const MaxOrderIDsPerRequest = 50

var (
	ErrRequestFailed   = errors.New("marketplace: request failed")
	ErrInvalidResponse = errors.New("marketplace: invalid response")
	ErrInvalidFilter   = errors.New("marketplace: invalid order filter")
)

// OrderFilter selects orders either by creation cutoff plus statuses, or by
// an explicit list of order IDs. Exactly one form must be used.
type OrderFilter struct {
	CreatedAfter time.Time
	Statuses     []string
	OrderIDs     []string
}

// Validate checks the filter is one of the two supported forms.
func (f OrderFilter) Validate() error {
	byIDs := len(f.OrderIDs) > 0
	byDate := !f.CreatedAfter.IsZero()
	switch {
	case byIDs && byDate:
		return fmt.Errorf("%w: order ids and created-after are exclusive", ErrInvalidFilter)
	case !byIDs && !byDate:
		return fmt.Errorf("%w: order ids or created-after required", ErrInvalidFilter)
	case len(f.OrderIDs) > MaxOrderIDsPerRequest:
		return fmt.Errorf("%w: %d order ids exceeds limit of %d", ErrInvalidFilter, len(f.OrderIDs), MaxOrderIDsPerRequest)
	}
	return nil
}

// Address mirrors the Orders API ShippingAddress object.
type Address struct {
	Name          string `json:"Name,omitempty"`
	AddressLine1  string `json:"AddressLine1,omitempty"`
	AddressLine2  string `json:"AddressLine2,omitempty"`
	City          string `json:"City,omitempty"`
	StateOrRegion string `json:"StateOrRegion,omitempty"`
	PostalCode    string `json:"PostalCode,omitempty"`
	CountryCode   string `json:"CountryCode,omitempty"`
	Phone         string `json:"Phone,omitempty"`
}

// Order is the subset of the Orders API Order object the sync needs.
type Order struct {
	AmazonOrderID    string   `json:"AmazonOrderId" validate:"required"`
	OrderStatus      string   `json:"OrderStatus" validate:"required"`
	PurchaseDate     string   `json:"PurchaseDate"`
	EarliestShipDate string   `json:"EarliestShipDate,omitempty"`
	LatestShipDate   string   `json:"LatestShipDate,omitempty"`
	ShippingAddress  *Address `json:"ShippingAddress,omitempty"`
}

// OrderItem is the subset of the Orders API OrderItem object the sync needs.
type OrderItem struct {
	OrderItemID     string `json:"OrderItemId" validate:"required"`
	SellerSKU       string `json:"SellerSKU"`
	QuantityOrdered int    `json:"QuantityOrdered" validate:"gte=0"`
}

// OrderPage is one page of getOrders. NextToken is empty on the last page.
type OrderPage struct {
	Orders    []Order
	NextToken string
}

// OrderItemPage is one page of getOrderItems.
type OrderItemPage struct {
	Items     []OrderItem
	NextToken string
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type getOrdersResponse struct {
	Payload *struct {
		Orders    []Order `json:"Orders"`
		NextToken string  `json:"NextToken,omitempty"`
	} `json:"payload"`
	Errors []apiError `json:"errors,omitempty"`
}

type getOrderItemsResponse struct {
	Payload *struct {
		AmazonOrderID string      `json:"AmazonOrderId"`
		OrderItems    []OrderItem `json:"OrderItems"`
		NextToken     string      `json:"NextToken,omitempty"`
	} `json:"payload"`
	Errors []apiError `json:"errors,omitempty"`
}
