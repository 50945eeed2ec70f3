package checkout

import (
	"strconv"
	"strings"

	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/tournevent/parcelgate/pkg/shipping/europarcel"
	"github.com/tournevent/parcelgate/pkg/shipping/rates"
)

// Outcomes of a calculation pass, as recorded in metrics.
const (
	outcomeNone    = "none"
	outcomeCoupon  = "coupon"
	outcomeOffered = "offered"
)

// ChosenInstance extracts the instance id from the shipping method the host
// reports as chosen. It accepts the session form "europarcel_shipping:3", the
// embedded form "europarcel_shipping_3" and full rate ids.
func ChosenInstance(method string) (int, bool) {
	method = strings.TrimSpace(method)
	if !strings.HasPrefix(method, rates.MethodID) {
		return 0, false
	}
	if parsed, ok := rates.ParseID(method); ok {
		return parsed.InstanceID, true
	}

	rest := strings.TrimPrefix(method, rates.MethodID)
	if len(rest) < 2 || (rest[0] != ':' && rest[0] != '_') {
		return 0, false
	}
	id, err := strconv.Atoi(rest[1:])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func showLockerButton(method string, instances map[int][]int) bool {
	id, ok := ChosenInstance(method)
	if !ok {
		return false
	}
	if _, ok := instances[id]; !ok {
		return false
	}
	if parsed, ok := rates.ParseID(strings.TrimSpace(method)); ok {
		return parsed.Kind == shipping.RateLocker
	}
	return true
}

func rateOutcome(offered []shipping.Rate) string {
	switch {
	case len(offered) == 0:
		return outcomeNone
	case offered[0].Kind == shipping.RateCouponFree:
		return outcomeCoupon
	default:
		return outcomeOffered
	}
}

func recipientAddress(r Recipient) europarcel.DeliveryAddress {
	company := r.Company
	if company == "" {
		company = r.Name
	}
	return europarcel.DeliveryAddress{
		Email:         r.Email,
		Phone:         r.Phone,
		Contact:       r.Name,
		Company:       company,
		CountryCode:   strings.ToUpper(r.Country),
		CountyName:    r.County,
		LocalityName:  r.Locality,
		StreetName:    r.Street,
		StreetNumber:  r.Number,
		StreetDetails: r.Details,
	}
}

func instanceLockerCarriers(configs []*shipping.ShippingConfig) map[int][]int {
	out := make(map[int][]int)
	for _, cfg := range configs {
		if !cfg.Usable() {
			continue
		}
		if carriers := cfg.LockerCarriers(); len(carriers) > 0 {
			out[cfg.InstanceID] = carriers
		}
	}
	return out
}
