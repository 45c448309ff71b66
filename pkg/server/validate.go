package server

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// requestValidator checks request bodies after binding.
type requestValidator struct {
	*validator.Validate
}

func newRequestValidator(maxBytes int) *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	err := v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return maxBytes <= 0 || len(fl.Field().String()) <= maxBytes
	})
	if err != nil {
		panic(fmt.Sprintf("register maxbytes validation: %v", err))
	}

	return &requestValidator{Validate: v}
}
