package shipping_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/tournevent/parcelgate/pkg/shipping"
)

func TestSelections_MergeKeepsOtherInstances(t *testing.T) {
	a := shipping.LockerSelection{InstanceID: 1, CarrierID: 6, LockerID: "EB1"}
	b := shipping.LockerSelection{InstanceID: 2, CarrierID: 3, LockerID: "FB2"}
	a2 := shipping.LockerSelection{InstanceID: 1, CarrierID: 3, LockerID: "FB9"}

	s := shipping.Selections{}.Merge(a).Merge(b)
	assert.Len(t, s, 2)

	s2 := s.Merge(a2)
	assert.Equal(t, "FB9", s2[1].LockerID)
	assert.Equal(t, "FB2", s2[2].LockerID)
	assert.Equal(t, "EB1", s[1].LockerID, "merge must not mutate the receiver")
}

func TestSelections_CarrierIDsOrderedByInstance(t *testing.T) {
	s := shipping.Selections{
		7: {InstanceID: 7, CarrierID: 2, LockerID: "x"},
		3: {InstanceID: 3, CarrierID: 6, LockerID: "y"},
	}
	assert.Equal(t, []int{6, 2}, s.CarrierIDs())
}

func TestSelections_NormalizeRekeysLegacyCarrierKeys(t *testing.T) {
	legacy := shipping.Selections{
		6: {InstanceID: 4, CarrierID: 6, LockerID: "EB1"},
		3: {CarrierID: 3, LockerID: "FB1"},
	}

	got := legacy.Normalize()

	assert.Len(t, got, 1)
	assert.Equal(t, "EB1", got[4].LockerID)
}

func TestSelections_NormalizePrefersInstanceKeyedEntry(t *testing.T) {
	mixed := shipping.Selections{
		4: {InstanceID: 4, CarrierID: 3, LockerID: "NEW"},
		6: {InstanceID: 4, CarrierID: 6, LockerID: "OLD"},
	}

	got := mixed.Normalize()

	assert.Len(t, got, 1)
	assert.Equal(t, "NEW", got[4].LockerID)
}

func TestSelections_NormalizeDropsEmptyLocker(t *testing.T) {
	got := shipping.Selections{1: {InstanceID: 1, CarrierID: 6}}.Normalize()
	assert.Empty(t, got)
}

func TestCartPackage_Amount(t *testing.T) {
	pkg := shipping.CartPackage{
		Subtotal: decimal.RequireFromString("99.50"),
		TaxTotal: decimal.RequireFromString("18.90"),
	}
	assert.True(t, decimal.RequireFromString("118.40").Equal(pkg.Amount()))
}

func TestNewOrderLockerMeta(t *testing.T) {
	meta := shipping.NewOrderLockerMeta(shipping.LockerSelection{
		InstanceID:    5,
		CarrierID:     6,
		LockerID:      "EB77",
		LockerName:    "easybox Mega Mall",
		LockerAddress: "Bd. Pierre de Coubertin 3-5",
		CarrierName:   "Sameday",
	})

	assert.Equal(t, "EB77", meta.LockerID)
	assert.Equal(t, 6, meta.CarrierID)
	assert.Equal(t, 5, meta.InstanceID)
	assert.Equal(t, "Sameday", meta.CarrierName)
}

func TestShippingConfig_Carriers(t *testing.T) {
	cfg := shipping.NewShippingConfig(1)
	cfg.APIKey = "k"
	cfg.AvailableServices = []string{"fan_courier", "fanbox", "easybox"}

	assert.True(t, cfg.Usable())
	assert.Equal(t, []int{3}, cfg.HomeCarriers())
	assert.Equal(t, []int{3, 6}, cfg.LockerCarriers())
	assert.True(t, cfg.HasLockerCarrier(6))
	assert.False(t, cfg.HasLockerCarrier(2))
	assert.False(t, cfg.HasLockerCarrier(0))
}

func TestShippingConfig_Usable(t *testing.T) {
	var nilCfg *shipping.ShippingConfig
	assert.False(t, nilCfg.Usable())

	cfg := shipping.NewShippingConfig(1)
	cfg.AvailableServices = []string{"fan_courier"}
	assert.False(t, cfg.Usable(), "missing api key")

	cfg.APIKey = "k"
	cfg.Enabled = false
	assert.False(t, cfg.Usable(), "disabled")

	cfg.Enabled = true
	cfg.AvailableServices = []string{"unknown"}
	assert.False(t, cfg.Usable(), "no resolvable services")
}

func TestShippingConfig_LabelDefaults(t *testing.T) {
	cfg := shipping.NewShippingConfig(1)
	assert.Equal(t, shipping.DefaultHomeLabel, cfg.HomeLabelOrDefault())
	assert.Equal(t, shipping.DefaultLockerLabel, cfg.LockerLabelOrDefault())

	cfg.HomeLabel = "Curier la adresa"
	assert.Equal(t, "Curier la adresa", cfg.HomeLabelOrDefault())
}

func TestCourierError(t *testing.T) {
	cause := errors.New("connection reset")
	err := shipping.NewCourierError("prices", "HTTP_503", "unavailable").
		WithStatusCode(503).
		WithRetryable(true).
		WithCause(cause)

	assert.Contains(t, err.Error(), "prices error (HTTP_503)")
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, shipping.NewCourierError("profile", "HTTP_503", "other")))
	assert.False(t, errors.Is(err, shipping.NewCourierError("profile", "HTTP_401", "other")))
	assert.Equal(t, 503, err.StatusCode)
	assert.True(t, shipping.IsRetryable(err))
}

func TestIsRetryable_Sentinels(t *testing.T) {
	assert.True(t, shipping.IsRetryable(shipping.ErrServiceUnavailable))
	assert.True(t, shipping.IsRetryable(shipping.ErrRateLimitExceeded))
	assert.False(t, shipping.IsRetryable(shipping.ErrAuthenticationFailed))
	assert.False(t, shipping.IsRetryable(shipping.NewCourierError("orders", "HTTP_400", "bad")))
}
