package europarcel

import (
	"github.com/tournevent/parcelgate/pkg/shipping"
)

const (
	defaultCountry       = "RO"
	defaultStreet        = "principala"
	defaultStreetNumber  = "1"
	defaultParcelContent = "diverse"
	defaultCurrency      = "RON"
)

// NewOrderRequest builds the request skeleton for an instance: one 1 kg
// 15x15x15 parcel, the instance's billing and pickup addresses, and the
// carrier/service pair derived from the configured services.
//
// With a single configured service its carrier and service are used. With
// several, the carrier is set only when all of them share one carrier. The
// service is set only when allowLocker is true and all share one kind;
// without lockers the request is pinned to address delivery.
func NewOrderRequest(cfg *shipping.ShippingConfig, allowLocker bool) *OrderRequest {
	req := &OrderRequest{
		AddressTo: DeliveryAddress{CountryCode: defaultCountry},
		Content: Content{
			ParcelsCount: 1,
			TotalWeight:  1,
			Parcels: []Parcel{{
				Size:       ParcelSize{Weight: 1, Width: 15, Height: 15, Length: 15},
				SequenceNo: 1,
			}},
		},
		Extra: Extra{
			ParcelContent:           defaultParcelContent,
			InsuranceAmountCurrency: defaultCurrency,
			BankRepaymentCurrency:   defaultCurrency,
		},
	}

	services := cfg.Services()
	if len(services) == 0 {
		return req
	}
	req.BillingTo.BillingAddressID = cfg.DefaultBillingAddressID
	req.AddressFrom.AddressID = cfg.DefaultPickupAddressID

	if len(services) == 1 {
		req.CarrierID = services[0].CarrierID
		req.ServiceID = int(services[0].ServiceID)
		return req
	}

	carriers := map[int]struct{}{}
	kinds := map[shipping.ServiceKind]struct{}{}
	for _, d := range services {
		carriers[d.CarrierID] = struct{}{}
		kinds[d.ServiceID] = struct{}{}
	}
	if len(carriers) == 1 {
		req.CarrierID = services[0].CarrierID
	}
	switch {
	case !allowLocker:
		req.ServiceID = int(shipping.KindAddress)
	case len(kinds) == 1:
		req.ServiceID = int(services[0].ServiceID)
	}
	return req
}

// PriceDestination builds the address used for price lookups. The recipient
// contact is the account itself since the shopper is not known yet.
func PriceDestination(profile Profile, dest shipping.Destination) DeliveryAddress {
	company := profile.Company
	if company == "" {
		company = profile.Name
	}
	street := dest.Address
	if street == "" {
		street = defaultStreet
	}
	country := dest.Country
	if country == "" {
		country = defaultCountry
	}
	return DeliveryAddress{
		Email:         profile.Email,
		Phone:         profile.Phone,
		Contact:       profile.Name,
		Company:       company,
		CountryCode:   country,
		CountyName:    dest.State,
		LocalityName:  dest.City,
		StreetName:    street,
		StreetNumber:  defaultStreetNumber,
		StreetDetails: "",
	}
}
