package validation

// CheckoutRequest is the payload for POST /buyer/checkout.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,min=5,max=500"`
}

// AddToCartRequest is the payload for POST /buyer/cart.
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

// UpdateCartItemRequest is the payload for PUT /buyer/cart/:productId.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

// CreateProductRequest is the payload for POST /seller/products.
type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=120"`
	Description string   `json:"description" validate:"max=2000"`
	Price       float64  `json:"price" validate:"required,gt=0"`
	Stock       int      `json:"stock" validate:"min=0"`
	Category    string   `json:"category" validate:"required,max=60"`
	Images      []string `json:"images" validate:"max=10,dive,url"`
}

// UpdateProductRequest is the payload for PUT /seller/products/:id. All
// fields are optional but at least one must be present; absent fields stay
// untouched.
type UpdateProductRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=2,max=120"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Price       *float64  `json:"price" validate:"omitempty,gt=0"`
	Stock       *int      `json:"stock" validate:"omitempty,min=0"`
	Category    *string   `json:"category" validate:"omitempty,max=60"`
	Images      *[]string `json:"images" validate:"omitempty,max=10,dive,url"`
	IsActive    *bool     `json:"is_active"`
}

// UpdateProfileRequest is the payload for PUT /users/profile. Role and
// approval are never client-settable and have no fields here.
type UpdateProfileRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=2,max=120"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Bio     *string `json:"bio" validate:"omitempty,max=1000"`
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
}

// RegisterSellerRequest is the payload for POST /users/register-seller.
type RegisterSellerRequest struct {
	BusinessName string `json:"business_name" validate:"required,min=2,max=120"`
	Bio          string `json:"bio" validate:"max=1000"`
	Phone        string `json:"phone" validate:"required,max=30"`
	Address      string `json:"address" validate:"required,max=500"`
}

// UpdateOrderStatusRequest is the payload for PUT /seller/orders/:id/status.
type UpdateOrderStatusRequest struct {
	Status         string  `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
	TrackingNumber *string `json:"tracking_number" validate:"omitempty,max=60"`
}

// ReasonRequest carries the optional reason on admin moderation actions.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
