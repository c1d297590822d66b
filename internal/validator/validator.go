package validator

import (
	"reflect"
	"sync"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// NewValidator builds the shared validator with the decimal rules registered:
//
//	decimal_gt0  - value must be greater than zero
//	decimal_gte0 - value must not be negative
func NewValidator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("decimal_gt0", decimalCheck(func(d decimal.Decimal) bool { return d.IsPositive() }))
		_ = v.RegisterValidation("decimal_gte0", decimalCheck(func(d decimal.Decimal) bool { return !d.IsNegative() }))
		validate = v
	})
	return validate
}

func decimalCheck(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				return true
			}
			field = field.Elem()
		}
		d, isDecimal := field.Interface().(decimal.Decimal)
		return isDecimal && ok(d)
	}
}

func ValidateRequest(req interface{}) error {
	if err := NewValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, err := range validateErrs {
				details[err.Field()] = err.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
