// Package notifications defines the events published to the notification
// queue and consumed by the email worker.
package notifications

// Event types on the notification queue.
const (
	EventOrderConfirmed     = "order_confirmed"
	EventSellerApproved     = "seller_approved"
	EventSellerRejected     = "seller_rejected"
	EventAccountSuspended   = "account_suspended"
	EventAccountReactivated = "account_reactivated"
	EventProductSuspended   = "product_suspended"
	EventProductReactivated = "product_reactivated"
)

// Event is one notification on the queue. Data carries the template fields
// for the email body (order id, product name, moderation reason, ...).
type Event struct {
	Type      string            `json:"type"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Data      map[string]string `json:"data,omitempty"`
}
