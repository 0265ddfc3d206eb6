package ordersync

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// MessageSender is the queue capability used for status-change events.
type MessageSender interface {
	SendMessage(ctx context.Context, body string, attributes map[string]string) error
}

// QueueNotifier publishes every applied status change as a JSON message.
type QueueNotifier struct {
	sender MessageSender
}

func NewQueueNotifier(sender MessageSender) *QueueNotifier {
	return &QueueNotifier{sender: sender}
}

func (n *QueueNotifier) NotifyStatusChange(ctx context.Context, change StatusChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}
	attrs := map[string]string{
		"event_type": "order_item.status_changed",
		"order_id":   change.OrderID,
		"new_status": change.To.String(),
	}
	if err := n.sender.SendMessage(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("notify status change %s/%s: %w", change.OrderID, change.OrderItemID, err)
	}
	return nil
}
