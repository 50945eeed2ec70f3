package shipping

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Destination is where the cart package ships to.
type Destination struct {
	Country string `json:"country"`
	State   string `json:"state"`
	City    string `json:"city"`
	Address string `json:"address"`
}

// Item is one cart line as seen by the rate engine.
type Item struct {
	ShippingClass string `json:"shipping_class"`
	NeedsShipping bool   `json:"needs_shipping"`
}

// Coupon is a coupon applied to the cart.
type Coupon struct {
	Code         string `json:"code"`
	FreeShipping bool   `json:"free_shipping"`
}

// CartPackage is the unit of shipment supplied by the host on every calculation pass.
type CartPackage struct {
	Contents    []Item          `json:"contents"`
	Destination Destination     `json:"destination"`
	Subtotal    decimal.Decimal `json:"cart_subtotal"`
	TaxTotal    decimal.Decimal `json:"tax_total"`
	Coupons     []Coupon        `json:"applied_coupons"`
}

// Amount is the value compared against free-shipping thresholds.
func (p CartPackage) Amount() decimal.Decimal {
	return p.Subtotal.Add(p.TaxTotal)
}

// RateKind tags a rate with what it delivers, so clients never infer it from labels.
type RateKind string

const (
	RateCouponFree RateKind = "coupon_free"
	RateHome       RateKind = "home"
	RateLocker     RateKind = "locker"
)

// RateMeta is the metadata attached to an offered rate.
type RateMeta struct {
	CarrierID       int         `json:"carrier_id"`
	ServiceID       ServiceKind `json:"service_id"`
	IsLocker        bool        `json:"is_locker"`
	FixedLocationID string      `json:"fixed_location_id,omitempty"`
}

// Rate is one offerable shipping rate. Rates are recomputed on every pass.
type Rate struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Cost  decimal.Decimal `json:"cost"`
	Kind  RateKind        `json:"kind"`
	Meta  RateMeta        `json:"meta_data"`
}

// LockerSelection is the locker a shopper picked for an instance.
type LockerSelection struct {
	InstanceID    int    `json:"instance_id"`
	CarrierID     int    `json:"carrier_id"`
	LockerID      string `json:"locker_id"`
	LockerName    string `json:"locker_name"`
	LockerAddress string `json:"locker_address"`
	CarrierName   string `json:"carrier_name"`
}

// Selections is the durable per-customer mapping instance id -> selection.
type Selections map[int]LockerSelection

// Merge returns a copy of s with sel replacing any entry for the same instance.
func (s Selections) Merge(sel LockerSelection) Selections {
	merged := make(Selections, len(s)+1)
	for k, v := range s {
		merged[k] = v
	}
	merged[sel.InstanceID] = sel
	return merged
}

// CarrierIDs lists the carrier of every stored selection, ordered by instance id.
func (s Selections) CarrierIDs() []int {
	ids := make([]int, 0, len(s))
	for _, instanceID := range s.instanceIDs() {
		ids = append(ids, s[instanceID].CarrierID)
	}
	return ids
}

func (s Selections) instanceIDs() []int {
	keys := make([]int, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Normalize re-keys entries by their embedded instance id. Older data was keyed
// by carrier id; entries that carry no instance id cannot be placed and are dropped.
// When two entries claim the same instance, the one already stored under its own
// instance key wins.
func (s Selections) Normalize() Selections {
	out := make(Selections, len(s))
	keys := s.instanceIDs()
	for _, key := range keys {
		if sel := s[key]; sel.LockerID != "" && sel.InstanceID == key {
			out[key] = sel
		}
	}
	for _, key := range keys {
		sel := s[key]
		if sel.InstanceID == 0 || sel.LockerID == "" || sel.InstanceID == key {
			continue
		}
		if _, taken := out[sel.InstanceID]; !taken {
			out[sel.InstanceID] = sel
		}
	}
	return out
}

// OrderLockerMeta is copied onto the order at creation time and never changes after.
type OrderLockerMeta struct {
	LockerID      string `json:"locker_id"`
	CarrierID     int    `json:"carrier_id"`
	InstanceID    int    `json:"instance_id"`
	LockerName    string `json:"locker_name"`
	LockerAddress string `json:"locker_address"`
	CarrierName   string `json:"carrier_name"`
}

// NewOrderLockerMeta freezes a selection into order metadata.
func NewOrderLockerMeta(sel LockerSelection) *OrderLockerMeta {
	return &OrderLockerMeta{
		LockerID:      sel.LockerID,
		CarrierID:     sel.CarrierID,
		InstanceID:    sel.InstanceID,
		LockerName:    sel.LockerName,
		LockerAddress: sel.LockerAddress,
		CarrierName:   sel.CarrierName,
	}
}

// Locker is a fixed pickup location returned by the courier API.
type Locker struct {
	ID           string  `json:"id"`
	CarrierID    int     `json:"carrier_id"`
	CarrierName  string  `json:"carrier_name"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	LocalityName string  `json:"locality_name,omitempty"`
	CountyName   string  `json:"county_name,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}
