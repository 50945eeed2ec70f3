// Package rates computes the shipping rates offered for a cart package.
//
// Calculate is pure: configuration, package and the already-resolved locker
// selection come in, rates come out. Misconfiguration never fails, it yields
// no rates so checkout is never blocked by this method.
package rates

import (
	"github.com/shopspring/decimal"
	"github.com/tournevent/parcelgate/pkg/shipping"
)

// CouponLabel is shown on the single rate emitted for a free-shipping coupon.
const CouponLabel = "Transport gratuit cupon"

// Eligibility is the outcome of scanning the package contents and totals.
type Eligibility struct {
	Shippable       int
	HomeClassHits   int
	LockerClassHits int
	LockerExcluded  bool
	FreeHome        bool
	FreeLocker      bool
}

// Calculate returns the rates to offer for pkg under cfg. sel is the shopper's
// resolved locker selection and may be nil. An unusable instance offers
// nothing, not even the coupon rate.
func Calculate(cfg *shipping.ShippingConfig, pkg shipping.CartPackage, sel *shipping.LockerSelection) []shipping.Rate {
	if !cfg.Usable() {
		return nil
	}
	if hasFreeShippingCoupon(pkg.Coupons) {
		return []shipping.Rate{couponRate(cfg)}
	}

	elig := Evaluate(cfg, pkg)
	services := cfg.Services()
	result := make([]shipping.Rate, 0, 2)

	if len(shipping.CarrierIDs(services, shipping.KindAddress)) > 0 {
		result = append(result, homeRate(cfg, elig.FreeHome))
	}

	lockerCarriers := shipping.CarrierIDs(services, shipping.KindLocker)
	if !elig.LockerExcluded && len(lockerCarriers) > 0 {
		result = append(result, lockerRate(cfg, elig.FreeLocker, validSelection(cfg, sel)))
	}

	return result
}

// Evaluate scans the package for class-based and amount-based free shipping and
// locker exclusions.
func Evaluate(cfg *shipping.ShippingConfig, pkg shipping.CartPackage) Eligibility {
	var e Eligibility
	homeClasses := toSet(cfg.FreeShippingClassesHome)
	lockerClasses := toSet(cfg.FreeShippingClassesLocker)
	excluded := toSet(cfg.ExcludedLockerClasses)

	for _, item := range pkg.Contents {
		if !item.NeedsShipping {
			continue
		}
		e.Shippable++
		if _, ok := homeClasses[item.ShippingClass]; ok {
			e.HomeClassHits++
		}
		if _, ok := lockerClasses[item.ShippingClass]; ok {
			e.LockerClassHits++
		}
		if _, ok := excluded[item.ShippingClass]; ok {
			e.LockerExcluded = true
		}
	}

	// A package with nothing to ship never earns free shipping by class.
	if e.Shippable > 0 {
		e.FreeHome = e.HomeClassHits == e.Shippable
		e.FreeLocker = e.LockerClassHits == e.Shippable
	}

	amount := pkg.Amount()
	if reachesThreshold(amount, cfg.FreeShippingAmountHome) {
		e.FreeHome = true
	}
	if reachesThreshold(amount, cfg.FreeShippingAmountLocker) {
		e.FreeLocker = true
	}
	return e
}

func hasFreeShippingCoupon(coupons []shipping.Coupon) bool {
	for _, c := range coupons {
		if c.FreeShipping {
			return true
		}
	}
	return false
}

func reachesThreshold(amount, threshold decimal.Decimal) bool {
	return threshold.IsPositive() && amount.GreaterThanOrEqual(threshold)
}

func couponRate(cfg *shipping.ShippingConfig) shipping.Rate {
	instanceID := 0
	if cfg != nil {
		instanceID = cfg.InstanceID
	}
	return shipping.Rate{
		ID:    FormatID(instanceID, shipping.RateCouponFree, true),
		Label: CouponLabel,
		Cost:  decimal.Zero,
		Kind:  shipping.RateCouponFree,
	}
}

func homeRate(cfg *shipping.ShippingConfig, free bool) shipping.Rate {
	cost := cfg.HomeFixedPrice
	if free {
		cost = decimal.Zero
	}
	return shipping.Rate{
		ID:    FormatID(cfg.InstanceID, shipping.RateHome, free),
		Label: cfg.HomeLabelOrDefault(),
		Cost:  nonNegative(cost),
		Kind:  shipping.RateHome,
		Meta: shipping.RateMeta{
			ServiceID: shipping.KindAddress,
		},
	}
}

func lockerRate(cfg *shipping.ShippingConfig, free bool, sel *shipping.LockerSelection) shipping.Rate {
	cost := cfg.LockerFixedPrice
	if free {
		cost = decimal.Zero
	}
	meta := shipping.RateMeta{
		ServiceID: shipping.KindLocker,
		IsLocker:  true,
	}
	if sel != nil {
		meta.CarrierID = sel.CarrierID
		meta.FixedLocationID = sel.LockerID
	}
	return shipping.Rate{
		ID:    FormatID(cfg.InstanceID, shipping.RateLocker, free),
		Label: cfg.LockerLabelOrDefault(),
		Cost:  nonNegative(cost),
		Kind:  shipping.RateLocker,
		Meta:  meta,
	}
}

// validSelection drops selections whose carrier no longer offers lockers here.
func validSelection(cfg *shipping.ShippingConfig, sel *shipping.LockerSelection) *shipping.LockerSelection {
	if sel == nil || sel.LockerID == "" || !cfg.HasLockerCarrier(sel.CarrierID) {
		return nil
	}
	return sel
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
