package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	DefaultHomeLabel   = "Livrare la adresa"
	DefaultLockerLabel = "Livrare la locker"
	DefaultTitle       = "Europarcel Shipping"
)

// DefaultFixedPrice is the price used when an instance has no fixed price set.
var DefaultFixedPrice = decimal.NewFromInt(15)

// ShippingConfig is the configuration of one shipping-zone instance of the method.
type ShippingConfig struct {
	InstanceID int    `json:"instance_id" yaml:"instance_id"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Title      string `json:"title" yaml:"title"`
	APIKey     string `json:"api_key" yaml:"api_key"`

	DefaultPickupAddressID  int `json:"default_shipping" yaml:"default_shipping"`
	DefaultBillingAddressID int `json:"default_billing" yaml:"default_billing"`

	AvailableServices     []string `json:"available_services" yaml:"available_services"`
	ExcludedLockerClasses []string `json:"excluded_locker_classes" yaml:"excluded_locker_classes"`

	HomeLabel        string          `json:"title_for_h2h" yaml:"title_for_h2h"`
	HomeFixedPrice   decimal.Decimal `json:"fixed_price_h2h" yaml:"fixed_price_h2h"`
	LockerLabel      string          `json:"title_for_h2l" yaml:"title_for_h2l"`
	LockerFixedPrice decimal.Decimal `json:"fixed_price_h2l" yaml:"fixed_price_h2l"`

	FreeShippingAmountHome    decimal.Decimal `json:"free_shipping_amount_to_home" yaml:"free_shipping_amount_to_home"`
	FreeShippingAmountLocker  decimal.Decimal `json:"free_shipping_amount_to_locker" yaml:"free_shipping_amount_to_locker"`
	FreeShippingClassesHome   []string        `json:"free_shipping_classes_to_home" yaml:"free_shipping_classes_to_home"`
	FreeShippingClassesLocker []string        `json:"free_shipping_classes_to_locker" yaml:"free_shipping_classes_to_locker"`
}

// NewShippingConfig returns a config carrying the admin form defaults.
func NewShippingConfig(instanceID int) *ShippingConfig {
	return &ShippingConfig{
		InstanceID:       instanceID,
		Enabled:          true,
		Title:            DefaultTitle,
		HomeFixedPrice:   DefaultFixedPrice,
		LockerFixedPrice: DefaultFixedPrice,
	}
}

// Services resolves the configured service keys against the catalog.
func (c *ShippingConfig) Services() []ServiceDescriptor {
	if c == nil {
		return nil
	}
	return Resolve(c.AvailableServices)
}

// HomeCarriers returns the carriers configured for address delivery.
func (c *ShippingConfig) HomeCarriers() []int {
	return CarrierIDs(c.Services(), KindAddress)
}

// LockerCarriers returns the carriers configured for locker delivery.
func (c *ShippingConfig) LockerCarriers() []int {
	return CarrierIDs(c.Services(), KindLocker)
}

// HasLockerCarrier reports whether carrierID currently offers locker delivery
// for this instance.
func (c *ShippingConfig) HasLockerCarrier(carrierID int) bool {
	return carrierID != 0 && containsInt(c.LockerCarriers(), carrierID)
}

// Usable reports whether the instance can offer any rate at all.
func (c *ShippingConfig) Usable() bool {
	return c != nil && c.Enabled && c.APIKey != "" && len(c.Services()) > 0
}

// HomeLabelOrDefault returns the label shown for address delivery.
func (c *ShippingConfig) HomeLabelOrDefault() string {
	if c.HomeLabel == "" {
		return DefaultHomeLabel
	}
	return c.HomeLabel
}

// LockerLabelOrDefault returns the label shown for locker delivery.
func (c *ShippingConfig) LockerLabelOrDefault() string {
	if c.LockerLabel == "" {
		return DefaultLockerLabel
	}
	return c.LockerLabel
}

// ConfigRepository gives read/write access to instance configurations.
type ConfigRepository interface {
	// Get returns the config of an instance, or ErrInstanceNotFound.
	Get(ctx context.Context, instanceID int) (*ShippingConfig, error)

	// Save creates or replaces the config of an instance.
	Save(ctx context.Context, cfg *ShippingConfig) error

	// List returns every stored instance config ordered by instance id.
	List(ctx context.Context) ([]*ShippingConfig, error)
}
