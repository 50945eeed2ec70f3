// Package shipping holds the domain model shared by the rate engine, the locker
// selection state and the checkout surface: the carrier/service catalog, the
// per-instance shipping configuration and the cart/rate/selection types.
package shipping

// ServiceKind distinguishes address delivery from locker delivery.
// The numeric values are the service_id the courier API expects.
type ServiceKind int

const (
	KindAddress ServiceKind = 1
	KindLocker  ServiceKind = 2
)

// String returns a short name for logs and metric labels.
func (k ServiceKind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindLocker:
		return "locker"
	default:
		return "unknown"
	}
}

// ServiceDescriptor maps a selectable service key to a carrier/service pair.
type ServiceDescriptor struct {
	Key       string
	CarrierID int
	ServiceID ServiceKind
	Label     string
}

// catalogOrder is the display order of the admin service list.
var catalogOrder = []string{
	"cargus_national",
	"dpd_standard",
	"fan_courier",
	"gls_national",
	"sameday",
	"bookurier",
	"easybox",
	"fanbox",
	"dpdbox",
}

var catalog = map[string]ServiceDescriptor{
	"cargus_national": {Key: "cargus_national", CarrierID: 1, ServiceID: KindAddress, Label: "Cargus - Delivery to address"},
	"dpd_standard":    {Key: "dpd_standard", CarrierID: 2, ServiceID: KindAddress, Label: "DPD - Delivery to address"},
	"fan_courier":     {Key: "fan_courier", CarrierID: 3, ServiceID: KindAddress, Label: "Fan Courier - Delivery to address"},
	"gls_national":    {Key: "gls_national", CarrierID: 4, ServiceID: KindAddress, Label: "GLS - Delivery to address"},
	"sameday":         {Key: "sameday", CarrierID: 6, ServiceID: KindAddress, Label: "SameDay - Delivery to address"},
	"bookurier":       {Key: "bookurier", CarrierID: 5, ServiceID: KindAddress, Label: "Bookurier - Delivery to address"},
	"easybox":         {Key: "easybox", CarrierID: 6, ServiceID: KindLocker, Label: "Sameday EasyBox - Delivery to locker"},
	"fanbox":          {Key: "fanbox", CarrierID: 3, ServiceID: KindLocker, Label: "Fan Courier FANbox - Delivery to locker"},
	"dpdbox":          {Key: "dpdbox", CarrierID: 2, ServiceID: KindLocker, Label: "DPD Box - Delivery to locker"},
}

// Services returns every service the catalog knows about, in display order.
func Services() []ServiceDescriptor {
	result := make([]ServiceDescriptor, 0, len(catalogOrder))
	for _, key := range catalogOrder {
		result = append(result, catalog[key])
	}
	return result
}

// Resolve converts service keys into descriptors, keeping the given order.
// Unknown keys are dropped so that stored settings survive catalog changes.
func Resolve(keys []string) []ServiceDescriptor {
	result := make([]ServiceDescriptor, 0, len(keys))
	for _, key := range keys {
		if d, ok := catalog[key]; ok {
			result = append(result, d)
		}
	}
	return result
}

// FilterByKind returns the descriptors offering the given kind of service.
func FilterByKind(descriptors []ServiceDescriptor, kind ServiceKind) []ServiceDescriptor {
	result := make([]ServiceDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.ServiceID == kind {
			result = append(result, d)
		}
	}
	return result
}

// CarrierIDs returns the de-duplicated carrier ids offering the given kind,
// in configured order.
func CarrierIDs(descriptors []ServiceDescriptor, kind ServiceKind) []int {
	seen := make(map[int]struct{}, len(descriptors))
	ids := make([]int, 0, len(descriptors))
	for _, d := range FilterByKind(descriptors, kind) {
		if _, ok := seen[d.CarrierID]; ok {
			continue
		}
		seen[d.CarrierID] = struct{}{}
		ids = append(ids, d.CarrierID)
	}
	return ids
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
