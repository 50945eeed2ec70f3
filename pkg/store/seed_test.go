package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/tournevent/parcelgate/pkg/store"
	"github.com/tournevent/parcelgate/pkg/store/memory"
)

const seedYAML = `
instances:
  - instance_id: 3
    api_key: key-3
    default_billing: 11
    default_shipping: 21
    available_services: [fan_courier, fanbox]
    excluded_locker_classes: [bulky]
    fixed_price_h2h: "15"
    fixed_price_h2l: 12.5
    free_shipping_amount_to_home: 250
  - instance_id: 4
    enabled: false
    available_services: [easybox]
`

func TestParseInstances(t *testing.T) {
	configs, err := store.ParseInstances(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	first := configs[0]
	assert.Equal(t, 3, first.InstanceID)
	assert.Equal(t, "key-3", first.APIKey)
	assert.Equal(t, 11, first.DefaultBillingAddressID)
	assert.Equal(t, 21, first.DefaultPickupAddressID)
	assert.Equal(t, []string{"fan_courier", "fanbox"}, first.AvailableServices)
	assert.True(t, decimal.NewFromInt(15).Equal(first.HomeFixedPrice))
	assert.True(t, decimal.RequireFromString("12.5").Equal(first.LockerFixedPrice))
	assert.True(t, decimal.NewFromInt(250).Equal(first.FreeShippingAmountHome))
	assert.True(t, first.Enabled, "defaults are kept")
	assert.Equal(t, shipping.DefaultTitle, first.Title)

	second := configs[1]
	assert.False(t, second.Enabled)
	assert.True(t, shipping.DefaultFixedPrice.Equal(second.HomeFixedPrice))
}

func TestParseInstances_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing id": "instances:\n  - api_key: x\n",
		"duplicate":  "instances:\n  - instance_id: 1\n  - instance_id: 1\n",
		"bad yaml":   "instances: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := store.ParseInstances(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseInstances_Empty(t *testing.T) {
	configs, err := store.ParseInstances(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewConfigStore()
	configs, err := store.ParseInstances(strings.NewReader(seedYAML))
	require.NoError(t, err)

	require.NoError(t, store.Seed(ctx, repo, configs))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
