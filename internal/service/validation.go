package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,18}[0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

var tagMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"phone":    "must be a valid phone number",
	"max":      "exceeds the maximum",
	"min":      "is below the minimum",
	"gt":       "must be positive",
	"gte":      "must not be negative",
	"alphanum": "must contain only letters and digits",
	"alpha":    "must contain only letters",
	"oneof":    "has an unsupported value",
}

// checkStruct runs the struct tags of v and converts failures to a
// ValidationError keyed by prefix + json field name.
func checkStruct(prefix string, v any) *ValidationError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid(strings.TrimSuffix(prefix, "."), err.Error())
	}

	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		out.Fields[prefix+fieldPath(fe)] = msg
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Passenger is the traveler named on a booking
type Passenger struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"required,max=20,phone"`
}

// normalize trims whitespace and lower-cases the email.
func (p Passenger) normalize() Passenger {
	return Passenger{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Email:     strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:     strings.TrimSpace(p.Phone),
	}
}

// Validate checks the passenger fields after normalization.
func (p Passenger) Validate() error {
	if verr := checkStruct("passenger.", p.normalize()); verr != nil {
		return verr
	}
	return nil
}
