package ordersync

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceFetch wraps any failure talking to the marketplace. It aborts
	// the pipeline step that hit it.
	ErrSourceFetch = errors.New("ordersync: source fetch failed")
	// ErrInvalidCutoff is returned by IngestSince for a zero or future cutoff.
	ErrInvalidCutoff = errors.New("ordersync: invalid ingestion cutoff")
)

// PersistenceError is a store write or update failure other than a duplicate
// conflict. It is logged per item and aggregated into the run error.
type PersistenceError struct {
	Op          string
	OrderID     string
	OrderItemID string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ordersync: %s %s/%s: %v", e.Op, e.OrderID, e.OrderItemID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func sourceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceFetch, op, err)
}
