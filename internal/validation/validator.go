package validation

import (
	"regexp"

	validatorv10 "github.com/go-playground/validator/v10"
)

var insuredIDPattern = regexp.MustCompile(`^[0-9]{5}$`)

// New returns a configured validator with the custom insured_id rule
// registered. The `numeric` builtin accepts signs and decimals, which is why
// the format gets its own rule.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	_ = v.RegisterValidation("insured_id", func(fl validatorv10.FieldLevel) bool {
		return insuredIDPattern.MatchString(fl.Field().String())
	})

	return v
}
