package rates

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tournevent/parcelgate/pkg/shipping"
)

// MethodID is the shipping method id registered with the host.
const MethodID = "europarcel_shipping"

// FormatID builds a rate id unique per instance, kind and free/fixed variant:
// europarcel_shipping_<instance>_<free|fixed>_<home|locker>, or
// europarcel_shipping_<instance>_free for the coupon rate.
func FormatID(instanceID int, kind shipping.RateKind, free bool) string {
	if kind == shipping.RateCouponFree {
		return fmt.Sprintf("%s_%d_free", MethodID, instanceID)
	}
	variant := "fixed"
	if free {
		variant = "free"
	}
	return fmt.Sprintf("%s_%d_%s_%s", MethodID, instanceID, variant, kind)
}

// ParsedID is the decoded form of a rate id.
type ParsedID struct {
	InstanceID int
	Kind       shipping.RateKind
	Free       bool
}

// ParseID decodes an id produced by FormatID. The host may prefix it with
// "<method>:" when it stores the chosen method; that form is accepted too.
func ParseID(id string) (ParsedID, bool) {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	rest, ok := strings.CutPrefix(id, MethodID+"_")
	if !ok {
		return ParsedID{}, false
	}

	parts := strings.Split(rest, "_")
	instanceID, err := strconv.Atoi(parts[0])
	if err != nil || instanceID < 0 {
		return ParsedID{}, false
	}

	switch {
	case len(parts) == 2 && parts[1] == "free":
		return ParsedID{InstanceID: instanceID, Kind: shipping.RateCouponFree, Free: true}, true
	case len(parts) == 3:
		var free bool
		switch parts[1] {
		case "free":
			free = true
		case "fixed":
		default:
			return ParsedID{}, false
		}
		kind := shipping.RateKind(parts[2])
		if kind != shipping.RateHome && kind != shipping.RateLocker {
			return ParsedID{}, false
		}
		return ParsedID{InstanceID: instanceID, Kind: kind, Free: free}, true
	default:
		return ParsedID{}, false
	}
}
