package products

import "time"

// Product is the item stored in the products table.
//
// Stock is only ever decremented by a committed checkout; seller updates may
// set it to any non-negative value (restock is an explicit edit, never
// implicit). IsActive is flipped by the owning seller or by admin moderation.
type Product struct {
	ProductID   string    `dynamodbav:"product_id" json:"id"` // PK
	SellerID    string    `dynamodbav:"seller_id" json:"sellerId"`
	SellerName  string    `dynamodbav:"seller_name,omitempty" json:"sellerName,omitempty"`
	Name        string    `dynamodbav:"name" json:"name"`
	Description string    `dynamodbav:"description" json:"description"`
	Price       float64   `dynamodbav:"price" json:"price"`
	Stock       int       `dynamodbav:"stock" json:"stock"`
	Category    string    `dynamodbav:"category" json:"category"`
	Images      []string  `dynamodbav:"images" json:"images"`
	IsActive    bool      `dynamodbav:"is_active" json:"isActive"`
	IsReported  bool      `dynamodbav:"is_reported" json:"isReported"`
	CreatedAt   time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}
