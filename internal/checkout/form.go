// Package checkout turns a cart into a mock order.
package checkout

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	cardNumberRe = regexp.MustCompile(`^(?:[0-9]{4}-){3}[0-9]{4}$|^[0-9]{16}$`)
	cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/?([0-9]{2})$`)
	cvvRe        = regexp.MustCompile(`^[0-9]{3,4}$`)
)

type ShippingAddress struct {
	FullName     string `json:"fullName"     validate:"required,min=2"`
	AddressLine1 string `json:"addressLine1" validate:"required,min=5"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"         validate:"required,min=2"`
	State        string `json:"state"        validate:"required,min=2"`
	ZipCode      string `json:"zipCode"      validate:"required,min=3"`
	Country      string `json:"country"      validate:"required,min=2"`
	PhoneNumber  string `json:"phoneNumber,omitempty" validate:"omitempty,min=7"`
}

// PaymentDetails is validated and discarded: no payment is processed.
type PaymentDetails struct {
	CardholderName string `json:"cardholderName" validate:"required,min=2"`
	CardNumber     string `json:"cardNumber"     validate:"required,cardnumber"`
	ExpiryDate     string `json:"expiryDate"     validate:"required,cardexpiry"`
	CVV            string `json:"cvv"            validate:"required,cvv"`
}

// Form is the checkout submission.
type Form struct {
	Shipping ShippingAddress `json:"shipping" validate:"required"`
	Payment  PaymentDetails  `json:"payment"  validate:"required"`
}

// NewValidator returns a validator that knows the card rules and reports fields by their JSON names.
// It panics if a card rule cannot be registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, re := range map[string]*regexp.Regexp{
		"cardnumber": cardNumberRe,
		"cardexpiry": cardExpiryRe,
		"cvv":        cvvRe,
	} {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("checkout: register %q validation: %v", tag, err))
		}
	}
	return v
}
