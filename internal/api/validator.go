package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/yakoovad/squad-manager/internal/validation"
)

// Validator adapts go-playground/validator for echo, with the domain
// predicates registered as custom tags so request DTOs and the service
// layer agree on what a well-formed value is.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return validation.ValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("team_name", func(fl validator.FieldLevel) bool {
		return validation.ValidTeamName(fl.Field().String())
	})
	_ = v.RegisterValidation("user_password", func(fl validator.FieldLevel) bool {
		return validation.ValidPassword(fl.Field().String())
	})

	return &Validator{v: v}
}

func (v *Validator) Validate(i any) error {
	return v.v.Struct(i)
}
