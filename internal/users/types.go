package users

import "time"

// Roles a profile can hold. Role changes are never client-settable; they
// happen through the seller-application flow or an admin action.
const (
	RoleBuyer         = "buyer"
	RoleSeller        = "seller"
	RolePendingVendor = "pending_vendor"
	RoleAdmin         = "admin"
)

// CartItem is one line of the cart embedded in the buyer's profile.
// Quantity vs. stock is checked when the item is added; checkout re-validates.
type CartItem struct {
	ProductID string    `dynamodbav:"product_id" json:"productId"`
	Quantity  int       `dynamodbav:"quantity" json:"quantity"`
	AddedAt   time.Time `dynamodbav:"added_at" json:"addedAt"`
}

// UserProfile is the item stored in the users table.
type UserProfile struct {
	UserID       string     `dynamodbav:"user_id" json:"id"` // PK
	Email        string     `dynamodbav:"email" json:"email"`
	Name         string     `dynamodbav:"name" json:"name"`
	Role         string     `dynamodbav:"role" json:"role"`
	IsApproved   bool       `dynamodbav:"is_approved" json:"isApproved"`
	Suspended    bool       `dynamodbav:"suspended" json:"suspended"`
	Phone        string     `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Address      string     `dynamodbav:"address,omitempty" json:"address,omitempty"`
	BusinessName string     `dynamodbav:"business_name,omitempty" json:"businessName,omitempty"`
	Bio          string     `dynamodbav:"bio,omitempty" json:"bio,omitempty"`
	Cart         []CartItem `dynamodbav:"cart,omitempty" json:"cart,omitempty"`
	CreatedAt    time.Time  `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `dynamodbav:"updated_at" json:"updatedAt"`
}

// CanSell reports whether the profile may list products and fulfill orders.
func (p *UserProfile) CanSell() bool {
	return p.Role == RoleSeller && p.IsApproved && !p.Suspended
}
