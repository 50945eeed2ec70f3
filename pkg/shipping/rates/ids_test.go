package rates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/tournevent/parcelgate/pkg/shipping/rates"
)

func TestFormatID(t *testing.T) {
	assert.Equal(t, "europarcel_shipping_7_free", rates.FormatID(7, shipping.RateCouponFree, true))
	assert.Equal(t, "europarcel_shipping_7_fixed_home", rates.FormatID(7, shipping.RateHome, false))
	assert.Equal(t, "europarcel_shipping_7_free_locker", rates.FormatID(7, shipping.RateLocker, true))
}

func TestParseID_RoundTrip(t *testing.T) {
	tests := []struct {
		kind shipping.RateKind
		free bool
	}{
		{shipping.RateCouponFree, true},
		{shipping.RateHome, true},
		{shipping.RateHome, false},
		{shipping.RateLocker, true},
		{shipping.RateLocker, false},
	}

	for _, tt := range tests {
		id := rates.FormatID(12, tt.kind, tt.free)
		got, ok := rates.ParseID(id)
		assert.True(t, ok, id)
		assert.Equal(t, 12, got.InstanceID, id)
		assert.Equal(t, tt.kind, got.Kind, id)
		assert.Equal(t, tt.free, got.Free, id)
	}
}

func TestParseID_AcceptsHostPrefix(t *testing.T) {
	got, ok := rates.ParseID("europarcel_shipping:europarcel_shipping_3_fixed_locker")

	assert.True(t, ok)
	assert.Equal(t, 3, got.InstanceID)
	assert.Equal(t, shipping.RateLocker, got.Kind)
}

func TestParseID_Rejects(t *testing.T) {
	for _, id := range []string{
		"",
		"flat_rate:4",
		"europarcel_shipping_x_fixed_home",
		"europarcel_shipping_3_cheap_home",
		"europarcel_shipping_3_fixed_drone",
		"europarcel_shipping_3",
		"europarcel_shipping_3_fixed_home_extra",
	} {
		_, ok := rates.ParseID(id)
		assert.False(t, ok, id)
	}
}
