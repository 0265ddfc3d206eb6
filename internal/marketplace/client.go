package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/imrishuroy/marketplace-ordersync/internal/validation"
)

// maxResponseSize caps the body read from the Orders API (10MB).
const maxResponseSize = 10 * 1024 * 1024

const (
	ordersPath        = "/orders/v0/orders"
	maxResultsPerPage = "100"
)

// Config holds the Orders API connection settings.
type Config struct {
	Endpoint      string
	AccessToken   string
	MarketplaceID string
	Timeout       time.Duration
	MaxRetries    uint
}

// Client calls the Selling Partner Orders API. The access token is supplied
// by the caller; the client does not refresh it.
type Client struct {
	cfg        Config
	httpClient *http.Client
	validate   *validatorv10.Validate
	newBackOff func() backoff.BackOff
}

// NewClient returns a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		validate:   validation.New(),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// ListOrders fetches one page of getOrders for filter.
func (c *Client) ListOrders(ctx context.Context, filter OrderFilter, nextToken string) (OrderPage, error) {
	if err := filter.Validate(); err != nil {
		return OrderPage{}, err
	}

	q := url.Values{}
	q.Set("MarketplaceIds", c.cfg.MarketplaceID)
	q.Set("MaxResultsPerPage", maxResultsPerPage)
	if len(filter.OrderIDs) > 0 {
		q.Set("AmazonOrderIds", strings.Join(filter.OrderIDs, ","))
	} else {
		q.Set("CreatedAfter", filter.CreatedAfter.UTC().Format(time.RFC3339))
		if len(filter.Statuses) > 0 {
			q.Set("OrderStatuses", strings.Join(filter.Statuses, ","))
		}
	}
	if nextToken != "" {
		q.Set("NextToken", nextToken)
	}

	body, err := c.get(ctx, ordersPath, q)
	if err != nil {
		return OrderPage{}, err
	}

	var resp getOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderPage{}, fmt.Errorf("%w: failed to parse orders: %v", ErrInvalidResponse, err)
	}
	if resp.Payload == nil {
		return OrderPage{}, fmt.Errorf("%w: orders payload missing", ErrInvalidResponse)
	}
	for i := range resp.Payload.Orders {
		if err := c.validate.Struct(resp.Payload.Orders[i]); err != nil {
			return OrderPage{}, fmt.Errorf("%w: order %d: %v", ErrInvalidResponse, i, err)
		}
	}

	return OrderPage{Orders: resp.Payload.Orders, NextToken: resp.Payload.NextToken}, nil
}

// ListOrderItems fetches one page of getOrderItems for orderID.
func (c *Client) ListOrderItems(ctx context.Context, orderID, nextToken string) (OrderItemPage, error) {
	if orderID == "" {
		return OrderItemPage{}, fmt.Errorf("%w: empty order id", ErrInvalidFilter)
	}

	q := url.Values{}
	if nextToken != "" {
		q.Set("NextToken", nextToken)
	}

	body, err := c.get(ctx, ordersPath+"/"+url.PathEscape(orderID)+"/orderItems", q)
	if err != nil {
		return OrderItemPage{}, err
	}

	var resp getOrderItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderItemPage{}, fmt.Errorf("%w: failed to parse order items: %v", ErrInvalidResponse, err)
	}
	if resp.Payload == nil {
		return OrderItemPage{}, fmt.Errorf("%w: order items payload missing for %s", ErrInvalidResponse, orderID)
	}
	for i := range resp.Payload.OrderItems {
		if err := c.validate.Struct(resp.Payload.OrderItems[i]); err != nil {
			return OrderItemPage{}, fmt.Errorf("%w: order %s item %d: %v", ErrInvalidResponse, orderID, i, err)
		}
	}

	return OrderItemPage{Items: resp.Payload.OrderItems, NextToken: resp.Payload.NextToken}, nil
}

// get performs a GET, retrying throttling and server errors with
// exponential backoff. Client errors are permanent.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	target := c.cfg.Endpoint + path
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}

	// lastErr keeps the HTTP details of a throttled attempt; RetryAfter
	// errors carry only the delay.
	var lastErr error
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("marketplace: failed to create request: %w", err))
		}
		req.Header.Set("x-amz-access-token", c.cfg.AccessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("marketplace: failed to read response: %w", err)
		}

		if resp.StatusCode < 400 {
			return body, nil
		}

		reqErr := fmt.Errorf("%w: HTTP %d%s", ErrRequestFailed, resp.StatusCode, describeErrors(body))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
				lastErr = reqErr
				return nil, backoff.RetryAfter(secs)
			}
			return nil, reqErr
		case resp.StatusCode >= 500:
			return nil, reqErr
		default:
			return nil, backoff.Permanent(reqErr)
		}
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.cfg.MaxRetries+1),
	)
	var retryAfter *backoff.RetryAfterError
	if err != nil && lastErr != nil && errors.As(err, &retryAfter) {
		return nil, lastErr
	}
	return body, err
}

// describeErrors renders the API error list for inclusion in an error message.
func describeErrors(body []byte) string {
	var payload struct {
		Errors []apiError `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(payload.Errors))
	for _, e := range payload.Errors {
		parts = append(parts, e.Code+" - "+e.Message)
	}
	return ": " + strings.Join(parts, "; ")
}
