package orders

import "time"

// Order statuses. Transitions are restricted; see CanTransition.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransition reports whether an item may move from one status to another.
// Cancelling never returns stock to the product.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// OrderItem is a frozen snapshot of a product at checkout time. Name, price
// and image are denormalized so historical orders are immune to later
// product edits. Each item carries its own status so sellers can fulfill
// their part of a multi-seller order independently.
type OrderItem struct {
	ProductID      string    `dynamodbav:"product_id" json:"productId"`
	SellerID       string    `dynamodbav:"seller_id" json:"sellerId"`
	Name           string    `dynamodbav:"name" json:"name"`
	Price          float64   `dynamodbav:"price" json:"price"`
	Quantity       int       `dynamodbav:"quantity" json:"quantity"`
	Image          string    `dynamodbav:"image,omitempty" json:"image,omitempty"`
	Status         string    `dynamodbav:"status" json:"status"`
	TrackingNumber string    `dynamodbav:"tracking_number,omitempty" json:"trackingNumber,omitempty"`
	UpdatedAt      time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}

// Order is the item stored in the orders table. TotalPrice is fixed at
// creation and never recomputed.
type Order struct {
	OrderID         string      `dynamodbav:"order_id" json:"id"` // PK
	BuyerID         string      `dynamodbav:"buyer_id" json:"buyerId"`
	Items           []OrderItem `dynamodbav:"items" json:"items"`
	TotalPrice      float64     `dynamodbav:"total_price" json:"totalPrice"`
	Status          string      `dynamodbav:"status" json:"status"`
	ShippingAddress string      `dynamodbav:"shipping_address" json:"shippingAddress"`
	CreatedAt       time.Time   `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `dynamodbav:"updated_at" json:"updatedAt"`
}

// SellerOrderRef is the item stored in the seller-orders index table: one
// per distinct seller per order, written inside the checkout transaction.
// Seller order queries read this table instead of scanning orders.
type SellerOrderRef struct {
	SellerID  string    `dynamodbav:"seller_id" json:"sellerId"` // PK
	OrderID   string    `dynamodbav:"order_id" json:"orderId"`   // SK
	BuyerID   string    `dynamodbav:"buyer_id" json:"buyerId"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"createdAt"`
}

// DeriveStatus computes the order-level status from its items: cancelled if
// everything is cancelled, otherwise the least-advanced status among the
// items still in flight.
func DeriveStatus(items []OrderItem) string {
	rank := map[string]int{
		StatusPending:    0,
		StatusProcessing: 1,
		StatusShipped:    2,
		StatusDelivered:  3,
	}
	lowest := -1
	derived := StatusCancelled
	for _, it := range items {
		if it.Status == StatusCancelled {
			continue
		}
		if r := rank[it.Status]; lowest == -1 || r < lowest {
			lowest = r
			derived = it.Status
		}
	}
	return derived
}

// SellerView strips the order down to the items one seller owns.
func (o *Order) SellerView(sellerID string) Order {
	view := *o
	view.Items = nil
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			view.Items = append(view.Items, it)
		}
	}
	return view
}

// HasOpenItemsFor reports whether any pending or processing item in the
// order references the given product. Used to block product deletion.
func (o *Order) HasOpenItemsFor(productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID &&
			(it.Status == StatusPending || it.Status == StatusProcessing) {
			return true
		}
	}
	return false
}
