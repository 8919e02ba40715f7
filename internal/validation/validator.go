package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation
// registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// a product update with no fields set is a no-op the client almost
	// certainly did not intend
	v.RegisterStructValidation(updateProductStructValidation, UpdateProductRequest{})
	v.RegisterStructValidation(updateProfileStructValidation, UpdateProfileRequest{})

	return v
}

func updateProductStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateProductRequest)
	if req.Name == nil && req.Description == nil && req.Price == nil &&
		req.Stock == nil && req.Category == nil && req.Images == nil && req.IsActive == nil {
		sl.ReportError(req, "request", "Request", "at_least_one_field", "")
	}
}

func updateProfileStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateProfileRequest)
	if req.Name == nil && req.Phone == nil && req.Address == nil && req.Bio == nil {
		sl.ReportError(req, "request", "Request", "at_least_one_field", "")
	}
}
