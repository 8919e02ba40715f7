package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	awsint "github.com/tesoroschoco/marketplace-api/internal/aws"
	"github.com/tesoroschoco/marketplace-api/internal/logging"
)

// Notifier publishes events to the notification queue. PublishAsync is what
// the API handlers use: a notification must never fail the request it
// decorates.
type Notifier struct {
	publisher *awsint.Publisher
}

func NewNotifier(publisher *awsint.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Publish enqueues one event.
func (n *Notifier) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.publisher.Send(ctx, string(body), map[string]string{
		"event_type": event.Type,
	})
}

// PublishAsync enqueues one event, logging instead of returning failures.
func (n *Notifier) PublishAsync(ctx context.Context, event Event) {
	if err := n.Publish(ctx, event); err != nil {
		logging.Log(logging.Fields{
			Service: "notifications",
			Event:   "publish_failed",
			Error:   err.Error(),
			Message: event.Type,
		})
	}
}
