package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/placementalarm/placement-api/internal/model"
)

// RegisterValidations installs the custom binding validators used by
// request structs. Must run before the first request is bound.
func RegisterValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("company_status", oneOf(model.StatusOptions))
	v.RegisterValidation("drive_type", oneOf(model.DriveTypeOptions))
	v.RegisterValidation("company_type", oneOf(model.TypeOptions))
}

func oneOf(options []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, o := range options {
			if o == value {
				return true
			}
		}
		return false
	}
}
