package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tournevent/parcelgate/pkg/shipping"
)

// LockerCarriersRequest asks which carriers serve lockers on an instance.
type LockerCarriersRequest struct {
	InstanceID int    `json:"instance_id" validate:"gt=0"`
	Token      string `json:"security"`
}

// UpdateLockerRequest records the locker picked in the map widget.
type UpdateLockerRequest struct {
	InstanceID    int    `json:"instance_id" validate:"gt=0"`
	CarrierID     int    `json:"carrier_id" validate:"gt=0"`
	LockerID      string `json:"locker_id" validate:"required,max=64"`
	LockerName    string `json:"locker_name" validate:"max=255"`
	LockerAddress string `json:"locker_address" validate:"max=512"`
	CarrierName   string `json:"carrier_name" validate:"max=128"`
	Token         string `json:"security"`
}

func (r UpdateLockerRequest) selection() shipping.LockerSelection {
	return shipping.LockerSelection{
		InstanceID:    r.InstanceID,
		CarrierID:     r.CarrierID,
		LockerID:      strings.TrimSpace(r.LockerID),
		LockerName:    strings.TrimSpace(r.LockerName),
		LockerAddress: strings.TrimSpace(r.LockerAddress),
		CarrierName:   strings.TrimSpace(r.CarrierName),
	}
}

// FindLockersRequest looks up lockers near a locality for the map widget.
type FindLockersRequest struct {
	InstanceID int    `json:"instance_id" validate:"gt=0"`
	Country    string `json:"country_code" validate:"omitempty,len=2,alpha"`
	County     string `json:"county_name" validate:"max=128"`
	Locality   string `json:"locality_name" validate:"required,max=128"`
	Token      string `json:"security"`
}

// CalculateRequest is the host's shipping-calculation call.
type CalculateRequest struct {
	InstanceID int                  `json:"instance_id" validate:"gt=0"`
	Package    shipping.CartPackage `json:"package"`
}

// OrderLockerRequest is the host's order-creation call.
type OrderLockerRequest struct {
	InstanceID int    `json:"instance_id" validate:"gte=0"`
	RateID     string `json:"rate_id" validate:"required"`
}

// Recipient is the delivery contact of an order.
type Recipient struct {
	Name     string `json:"name" validate:"required,max=255"`
	Company  string `json:"company" validate:"max=255"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"required,max=32"`
	Country  string `json:"country" validate:"omitempty,len=2,alpha"`
	County   string `json:"county" validate:"required,max=128"`
	Locality string `json:"locality" validate:"required,max=128"`
	Street   string `json:"street" validate:"max=255"`
	Number   string `json:"street_number" validate:"max=32"`
	Details  string `json:"street_details" validate:"max=255"`
}

// ShipmentRequest places the courier order of a completed checkout. Locker
// orders carry the locker frozen on the order; address orders name the carrier,
// which may be left out when the instance has a single address carrier.
type ShipmentRequest struct {
	InstanceID int                       `json:"instance_id" validate:"gt=0"`
	Reference  string                    `json:"reference" validate:"max=64"`
	CarrierID  int                       `json:"carrier_id" validate:"gte=0"`
	Recipient  Recipient                 `json:"recipient"`
	Locker     *shipping.OrderLockerMeta `json:"locker,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = validationMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
