package europarcel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/tournevent/parcelgate/pkg/shipping/europarcel"
)

func TestNewOrderRequest_CarrierServiceRules(t *testing.T) {
	tests := []struct {
		name        string
		services    []string
		allowLocker bool
		carrierID   int
		serviceID   int
	}{
		{"single service", []string{"easybox"}, false, 6, 2},
		{"one carrier two kinds with lockers", []string{"fan_courier", "fanbox"}, true, 3, 0},
		{"one carrier two kinds without lockers", []string{"fan_courier", "fanbox"}, false, 3, 1},
		{"many carriers same kind", []string{"easybox", "fanbox"}, true, 0, 2},
		{"many carriers mixed", []string{"sameday", "fanbox"}, true, 0, 0},
		{"many carriers address only", []string{"sameday", "fan_courier"}, false, 0, 1},
		{"unknown keys ignored", []string{"pigeon", "gls_national"}, true, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := shipping.NewShippingConfig(1)
			cfg.AvailableServices = tt.services

			req := europarcel.NewOrderRequest(cfg, tt.allowLocker)

			assert.Equal(t, tt.carrierID, req.CarrierID)
			assert.Equal(t, tt.serviceID, req.ServiceID)
		})
	}
}

func TestNewOrderRequest_Defaults(t *testing.T) {
	cfg := shipping.NewShippingConfig(1)
	cfg.AvailableServices = []string{"fan_courier"}
	cfg.DefaultBillingAddressID = 5
	cfg.DefaultPickupAddressID = 8

	req := europarcel.NewOrderRequest(cfg, false)

	assert.Equal(t, 5, req.BillingTo.BillingAddressID)
	assert.Equal(t, 8, req.AddressFrom.AddressID)
	assert.Equal(t, 1, req.Content.ParcelsCount)
	assert.Len(t, req.Content.Parcels, 1)
	assert.Equal(t, europarcel.ParcelSize{Weight: 1, Width: 15, Height: 15, Length: 15}, req.Content.Parcels[0].Size)
	assert.Equal(t, 1, req.Content.Parcels[0].SequenceNo)
	assert.Equal(t, "diverse", req.Extra.ParcelContent)
	assert.Equal(t, "RON", req.Extra.InsuranceAmountCurrency)
	assert.Equal(t, "RO", req.AddressTo.CountryCode)
}

func TestNewOrderRequest_NoServices(t *testing.T) {
	req := europarcel.NewOrderRequest(shipping.NewShippingConfig(1), true)

	assert.Zero(t, req.CarrierID)
	assert.Zero(t, req.ServiceID)
	assert.Zero(t, req.BillingTo.BillingAddressID)
}

func TestPriceDestination(t *testing.T) {
	profile := europarcel.Profile{Name: "Magazin", Email: "m@x.ro", Phone: "07"}

	addr := europarcel.PriceDestination(profile, shipping.Destination{Country: "RO", State: "Timis", City: "Timisoara"})

	assert.Equal(t, "Magazin", addr.Company, "company falls back to the account name")
	assert.Equal(t, "principala", addr.StreetName)
	assert.Equal(t, "1", addr.StreetNumber)
	assert.Equal(t, "Timis", addr.CountyName)
	assert.Equal(t, "Timisoara", addr.LocalityName)
}
