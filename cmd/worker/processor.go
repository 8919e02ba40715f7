package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/tesoroschoco/marketplace-api/internal/aws"
	"github.com/tesoroschoco/marketplace-api/internal/logging"
	"github.com/tesoroschoco/marketplace-api/internal/notifications"
)

// Processor consumes notification events from the queue and delivers them as
// email through SES.
type Processor struct {
	ses    aws.SESAPI
	sender string
}

// NewProcessor creates a worker processor bound to a verified sender address.
func NewProcessor(ses aws.SESAPI, sender string) *Processor {
	return &Processor{ses: ses, sender: sender}
}

// Handle receives an SQS batch event and processes each message. A failure
// returns the error so the runtime retries and eventually dead-letters.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			logging.Log(logging.Fields{
				Service: "worker",
				Event:   "message_failed",
				Error:   err.Error(),
			})
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var event notifications.Event
	if err := json.Unmarshal([]byte(rec.Body), &event); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if event.Recipient == "" {
		// nobody to deliver to; dropping beats poisoning the queue
		logging.Log(logging.Fields{
			Service: "worker",
			Event:   "event_skipped",
			Message: "no recipient: " + event.Type,
		})
		return nil
	}

	subject := event.Subject
	if subject == "" {
		subject = defaultSubject(event.Type)
	}
	body := renderBody(event)

	_, err := p.ses.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &p.sender,
		Destination: &sestypes.Destination{
			ToAddresses: []string{event.Recipient},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: &subject},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: &body},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email for %s: %w", event.Type, err)
	}

	logging.Log(logging.Fields{
		Service: "worker",
		Event:   "email_sent",
		Message: event.Type,
	})
	return nil
}

func defaultSubject(eventType string) string {
	switch eventType {
	case notifications.EventOrderConfirmed:
		return "Order confirmed"
	case notifications.EventSellerApproved:
		return "Your seller account was approved"
	case notifications.EventSellerRejected:
		return "Your seller application was not approved"
	case notifications.EventAccountSuspended:
		return "Your account was suspended"
	case notifications.EventAccountReactivated:
		return "Your account was reactivated"
	case notifications.EventProductSuspended:
		return "A product listing was suspended"
	case notifications.EventProductReactivated:
		return "A product listing was reactivated"
	}
	return "Marketplace notification"
}

// renderBody produces a plain-text body from the event's template fields.
func renderBody(event notifications.Event) string {
	var b strings.Builder
	switch event.Type {
	case notifications.EventOrderConfirmed:
		fmt.Fprintf(&b, "Thanks for your purchase.\n\nOrder: %s\nTotal: %s\n",
			event.Data["order_id"], event.Data["total_price"])
	case notifications.EventSellerApproved:
		fmt.Fprintf(&b, "Your seller account %q is now active. You can start listing products.\n",
			event.Data["business_name"])
	case notifications.EventSellerRejected:
		b.WriteString("Your seller application was reviewed and not approved.\n")
	case notifications.EventAccountSuspended:
		b.WriteString("Your account has been suspended and can no longer be used.\n")
	case notifications.EventAccountReactivated:
		b.WriteString("Your account has been reactivated. Welcome back.\n")
	case notifications.EventProductSuspended:
		fmt.Fprintf(&b, "Your product %q was suspended by moderation.\n", event.Data["product_name"])
	case notifications.EventProductReactivated:
		fmt.Fprintf(&b, "Your product %q is visible again.\n", event.Data["product_name"])
	default:
		b.WriteString("You have a new notification.\n")
	}
	if reason := event.Data["reason"]; reason != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", reason)
	}
	return b.String()
}
