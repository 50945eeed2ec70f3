package checkout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/parcelgate/internal/checkout"
	"github.com/tournevent/parcelgate/internal/telemetry"
	"github.com/tournevent/parcelgate/pkg/nonce"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/tournevent/parcelgate/pkg/shipping/europarcel"
	"github.com/tournevent/parcelgate/pkg/shipping/locker"
	"github.com/tournevent/parcelgate/pkg/shipping/rates"
	"github.com/tournevent/parcelgate/pkg/store/memory"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type fixture struct {
	svc     *checkout.Service
	tokens  *nonce.Manager
	api     *europarcel.MockAPIClient
	metrics *telemetry.Metrics
	users   *memory.UserStore
}

// Instances: 1 offers fan_courier + fanbox, 2 only fan_courier, 3 is disabled.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := otelzap.New(zap.NewNop())

	configs := memory.NewConfigStore()
	mixed := shipping.NewShippingConfig(1)
	mixed.APIKey = "key-1"
	mixed.AvailableServices = []string{"fan_courier", "fanbox"}
	mixed.HomeFixedPrice = decimal.NewFromInt(15)
	mixed.LockerFixedPrice = decimal.NewFromInt(12)
	require.NoError(t, configs.Save(ctx, mixed))

	homeOnly := shipping.NewShippingConfig(2)
	homeOnly.APIKey = "key-2"
	homeOnly.AvailableServices = []string{"fan_courier"}
	require.NoError(t, configs.Save(ctx, homeOnly))

	disabled := shipping.NewShippingConfig(3)
	disabled.Enabled = false
	disabled.APIKey = "key-3"
	disabled.AvailableServices = []string{"easybox"}
	require.NoError(t, configs.Save(ctx, disabled))

	users := memory.NewUserStore()
	state := locker.NewState(configs, memory.NewSessionStore(0), users, logger)

	api := europarcel.NewMockAPIClient()
	courier := europarcel.NewWithAPIClient(europarcel.Config{}, api, logger, nil).
		WithLockerCache(memory.NewLockerCache())

	tokens, err := nonce.NewManager("test-secret", 0)
	require.NoError(t, err)

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	return &fixture{
		svc:     checkout.NewService(configs, state, courier, tokens, metrics, logger),
		tokens:  tokens,
		api:     api,
		metrics: metrics,
		users:   users,
	}
}

func (f *fixture) token(t *testing.T, shopper locker.Shopper) string {
	t.Helper()
	tok, err := f.tokens.Issue(shopper.SessionID, nonce.ActionLocker)
	require.NoError(t, err)
	return tok
}

var (
	customer = locker.Shopper{SessionID: "sess-1", CustomerID: "42"}
	guest    = locker.Shopper{SessionID: "sess-guest"}
)

func onePackage() shipping.CartPackage {
	return shipping.CartPackage{
		Contents:    []shipping.Item{{NeedsShipping: true}},
		Destination: shipping.Destination{Country: "RO", State: "Bucuresti", City: "Bucuresti"},
		Subtotal:    decimal.NewFromInt(100),
	}
}

func TestGetLockerCarriers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, customer)

	tests := []struct {
		name       string
		instanceID int
		want       []int
	}{
		{"locker instance", 1, []int{3}},
		{"address only", 2, []int{}},
		{"disabled", 3, []int{}},
		{"unknown", 99, []int{}},
		{"missing id", 0, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.GetLockerCarriers(ctx, customer, checkout.LockerCarriersRequest{InstanceID: tt.instanceID, Token: tok})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetLockerCarriers_InvalidToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetLockerCarriers(ctx, customer, checkout.LockerCarriersRequest{InstanceID: 1})
	assert.ErrorIs(t, err, checkout.ErrInvalidToken)

	other := f.token(t, guest)
	_, err = f.svc.GetLockerCarriers(ctx, customer, checkout.LockerCarriersRequest{InstanceID: 1, Token: other})
	assert.ErrorIs(t, err, checkout.ErrInvalidToken, "token of another session")
}

func TestUpdateLockerSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, customer)

	res, err := f.svc.UpdateLockerSelection(ctx, customer, checkout.UpdateLockerRequest{
		InstanceID:    1,
		CarrierID:     3,
		LockerID:      " LK100 ",
		LockerName:    "FANbox Mega Mall",
		LockerAddress: "Bd. Pierre de Coubertin 3-5",
		CarrierName:   "FAN Courier",
		Token:         tok,
	})
	require.NoError(t, err)

	assert.Equal(t, "LK100", res.Selection.LockerID)
	require.Contains(t, res.UserLockers, 1)
	assert.Equal(t, "LK100", res.UserLockers[1].LockerID)
	assert.Equal(t, []int{3}, res.OrderLockers)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LockerSelections.WithLabelValues("1")))
}

func TestUpdateLockerSelection_Guest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.UpdateLockerSelection(ctx, guest, checkout.UpdateLockerRequest{
		InstanceID: 1, CarrierID: 3, LockerID: "LK1", Token: f.token(t, guest),
	})
	require.NoError(t, err)

	assert.Equal(t, "LK1", res.Selection.LockerID)
	assert.Empty(t, res.UserLockers)
	assert.Empty(t, res.OrderLockers)

	offered := f.svc.CalculateShipping(ctx, guest, 1, onePackage())
	require.Len(t, offered, 2)
	assert.Equal(t, "LK1", offered[1].Meta.FixedLocationID, "session selection is used")
}

func TestUpdateLockerSelection_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, customer)

	_, err := f.svc.UpdateLockerSelection(ctx, customer, checkout.UpdateLockerRequest{
		InstanceID: 1, CarrierID: 3, LockerID: "LK1", Token: "forged",
	})
	assert.ErrorIs(t, err, checkout.ErrInvalidToken)

	_, err = f.svc.UpdateLockerSelection(ctx, customer, checkout.UpdateLockerRequest{
		InstanceID: 1, Token: tok,
	})
	require.ErrorIs(t, err, checkout.ErrInvalidRequest)
	var verr *checkout.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "carrier_id")
	assert.Contains(t, verr.Fields, "locker_id")
}

func TestCalculateShipping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offered := f.svc.CalculateShipping(ctx, customer, 1, onePackage())
	require.Len(t, offered, 2)
	assert.Equal(t, shipping.RateHome, offered[0].Kind)
	assert.True(t, decimal.NewFromInt(15).Equal(offered[0].Cost))
	assert.Equal(t, shipping.RateLocker, offered[1].Kind)
	assert.True(t, decimal.NewFromInt(12).Equal(offered[1].Cost))
	assert.Equal(t, 0, offered[1].Meta.CarrierID)

	_, err := f.svc.UpdateLockerSelection(ctx, customer, checkout.UpdateLockerRequest{
		InstanceID: 1, CarrierID: 3, LockerID: "LK100", Token: f.token(t, customer),
	})
	require.NoError(t, err)

	offered = f.svc.CalculateShipping(ctx, customer, 1, onePackage())
	require.Len(t, offered, 2)
	assert.Equal(t, "LK100", offered[1].Meta.FixedLocationID)
	assert.Equal(t, 3, offered[1].Meta.CarrierID)

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.RateCalculations.WithLabelValues("1", "offered")))
}

func TestCalculateShipping_Degrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Empty(t, f.svc.CalculateShipping(ctx, customer, 99, onePackage()))
	assert.Empty(t, f.svc.CalculateShipping(ctx, customer, 3, onePackage()))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RateCalculations.WithLabelValues("99", "none")))
}

func TestCalculateShipping_Coupon(t *testing.T) {
	f := newFixture(t)
	pkg := onePackage()
	pkg.Coupons = []shipping.Coupon{{Code: "FREE", FreeShipping: true}}

	offered := f.svc.CalculateShipping(context.Background(), customer, 1, pkg)
	require.Len(t, offered, 1)
	assert.Equal(t, shipping.RateCouponFree, offered[0].Kind)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RateCalculations.WithLabelValues("1", "coupon")))

	assert.Empty(t, f.svc.CalculateShipping(context.Background(), customer, 3, pkg), "instance 3 is disabled")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RateCalculations.WithLabelValues("3", "none")))
}

func TestCaptureOrderLocker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateLockerSelection(ctx, customer, checkout.UpdateLockerRequest{
		InstanceID: 1, CarrierID: 3, LockerID: "LK100", LockerName: "FANbox", CarrierName: "FAN Courier", Token: f.token(t, customer),
	})
	require.NoError(t, err)

	lockerRate := rates.FormatID(1, shipping.RateLocker, false)
	meta, err := f.svc.CaptureOrderLocker(ctx, customer, checkout.OrderLockerRequest{RateID: lockerRate})
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, shipping.OrderLockerMeta{
		LockerID: "LK100", CarrierID: 3, InstanceID: 1, LockerName: "FANbox", CarrierName: "FAN Courier",
	}, *meta)

	homeRate := rates.FormatID(1, shipping.RateHome, false)
	meta, err = f.svc.CaptureOrderLocker(ctx, customer, checkout.OrderLockerRequest{RateID: homeRate})
	require.NoError(t, err)
	assert.Nil(t, meta, "home rate carries no locker")

	meta, err = f.svc.CaptureOrderLocker(ctx, guest, checkout.OrderLockerRequest{RateID: lockerRate})
	require.NoError(t, err)
	assert.Nil(t, meta, "nothing selected")
}

func TestCaptureOrderLocker_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CaptureOrderLocker(ctx, customer, checkout.OrderLockerRequest{RateID: "flat_rate:4"})
	assert.ErrorIs(t, err, checkout.ErrInvalidRequest)

	_, err = f.svc.CaptureOrderLocker(ctx, customer, checkout.OrderLockerRequest{
		InstanceID: 2,
		RateID:     rates.FormatID(1, shipping.RateLocker, true),
	})
	assert.ErrorIs(t, err, checkout.ErrInvalidRequest)
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateLockerSelection(ctx, customer, checkout.UpdateLockerRequest{
		InstanceID: 1, CarrierID: 3, LockerID: "LK100", Token: f.token(t, customer),
	})
	require.NoError(t, err)

	data, err := f.svc.Bootstrap(ctx, customer, "europarcel_shipping:1", true)
	require.NoError(t, err)

	assert.NoError(t, f.tokens.Verify(data.Token, customer.SessionID, nonce.ActionLocker))
	assert.Equal(t, map[int][]int{1: {3}}, data.InstancesLockers)
	assert.Equal(t, []int{3}, data.OrderLockers)
	assert.Contains(t, data.UserLockers, 1)
	assert.Equal(t, checkout.CheckoutBlocks, data.CheckoutType)
	assert.True(t, data.ShowLockerButton)

	data, err = f.svc.Bootstrap(ctx, guest, "europarcel_shipping_2", false)
	require.NoError(t, err)
	assert.Empty(t, data.UserLockers)
	assert.Equal(t, checkout.CheckoutClassic, data.CheckoutType)
	assert.False(t, data.ShowLockerButton, "instance 2 has no locker carriers")
}

func TestBootstrap_LockerButtonFollowsRateKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		method string
		want   bool
	}{
		{"europarcel_shipping_1_fixed_home", false},
		{"europarcel_shipping_1_free_home", false},
		{"europarcel_shipping_1_free", false},
		{"europarcel_shipping:europarcel_shipping_1_fixed_home", false},
		{"europarcel_shipping_1_fixed_locker", true},
		{"europarcel_shipping:europarcel_shipping_1_free_locker", true},
		{"europarcel_shipping_2_fixed_locker", false},
		{"europarcel_shipping:1", true},
		{"flat_rate:4", false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			data, err := f.svc.Bootstrap(ctx, customer, tt.method, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data.ShowLockerButton)
		})
	}
}

func TestFindLockers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, customer)
	req := checkout.FindLockersRequest{InstanceID: 1, County: "Cluj", Locality: "Cluj-Napoca", Token: tok}

	lockers, err := f.svc.FindLockers(ctx, customer, req)
	require.NoError(t, err)
	require.Len(t, lockers, 2)
	assert.Equal(t, 3, lockers[0].CarrierID)

	_, err = f.svc.FindLockers(ctx, customer, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.api.Calls(), "second lookup served from cache")

	_, err = f.svc.FindLockers(ctx, customer, checkout.FindLockersRequest{InstanceID: 1, Token: tok})
	assert.ErrorIs(t, err, checkout.ErrInvalidRequest, "locality is required")

	lockers, err = f.svc.FindLockers(ctx, customer, checkout.FindLockersRequest{InstanceID: 99, Locality: "Iasi", Token: tok})
	require.NoError(t, err)
	assert.Empty(t, lockers)
}

func TestCreateShipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var gotCarrier, gotService int
	var gotLocation string
	f.api.OnCreateOrder = func(_ context.Context, apiKey string, req *europarcel.OrderRequest) (*europarcel.OrderResponse, error) {
		gotCarrier, gotService = req.CarrierID, req.ServiceID
		gotLocation = req.AddressTo.FixedLocationID
		return &europarcel.OrderResponse{Data: europarcel.CreatedOrder{ID: 7, AWB: "AWB7", CarrierID: req.CarrierID, ServiceID: req.ServiceID}}, nil
	}
	recipient := checkout.Recipient{Name: "Ion Popescu", Phone: "0712345678", County: "Cluj", Locality: "Cluj-Napoca", Street: "Memorandumului", Number: "1"}

	order, err := f.svc.CreateShipment(ctx, checkout.ShipmentRequest{
		InstanceID: 1,
		Recipient:  recipient,
		Locker:     &shipping.OrderLockerMeta{LockerID: "LK100", CarrierID: 3, InstanceID: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "AWB7", order.AWB)
	assert.Equal(t, 3, gotCarrier)
	assert.Equal(t, 2, gotService)
	assert.Equal(t, "LK100", gotLocation)

	_, err = f.svc.CreateShipment(ctx, checkout.ShipmentRequest{InstanceID: 2, Recipient: recipient})
	require.NoError(t, err, "single address carrier is implied")
	assert.Equal(t, 3, gotCarrier)
	assert.Equal(t, 1, gotService)
	assert.Empty(t, gotLocation)
}

func TestCreateShipment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := checkout.Recipient{Name: "Ion", Phone: "07", County: "Cluj", Locality: "Cluj-Napoca"}

	_, err := f.svc.CreateShipment(ctx, checkout.ShipmentRequest{InstanceID: 1})
	assert.ErrorIs(t, err, checkout.ErrInvalidRequest)

	_, err = f.svc.CreateShipment(ctx, checkout.ShipmentRequest{InstanceID: 99, Recipient: recipient})
	assert.ErrorIs(t, err, shipping.ErrInstanceNotFound)

	_, err = f.svc.CreateShipment(ctx, checkout.ShipmentRequest{InstanceID: 1, CarrierID: 6, Recipient: recipient})
	assert.ErrorIs(t, err, europarcel.ErrServiceNotConfigured)

	_, err = f.svc.CreateShipment(ctx, checkout.ShipmentRequest{
		InstanceID: 1,
		Recipient:  recipient,
		Locker:     &shipping.OrderLockerMeta{LockerID: "LK1", CarrierID: 3, InstanceID: 2},
	})
	assert.ErrorIs(t, err, checkout.ErrInvalidRequest)

	f.api.SimulateErrors = true
	_, err = f.svc.CreateShipment(ctx, checkout.ShipmentRequest{InstanceID: 2, Recipient: recipient})
	assert.ErrorIs(t, err, shipping.ErrServiceUnavailable)
}

func TestAccountOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overview, err := f.svc.AccountOverview(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, overview.Profile)
	assert.Len(t, overview.BillingAddresses, 1)
	assert.Len(t, overview.PickupAddresses, 2)

	_, err = f.svc.AccountOverview(ctx, 99)
	assert.ErrorIs(t, err, shipping.ErrInstanceNotFound)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, 1, onePackage())
	require.NoError(t, err)
	assert.Len(t, q.Rates, 2)
	require.NotNil(t, q.Live)
	assert.NotEmpty(t, q.Live.Home)
	assert.NotEmpty(t, q.Live.Locker)

	f.api.SimulateErrors = true
	q, err = f.svc.Quote(ctx, 1, onePackage())
	require.NoError(t, err)
	assert.Len(t, q.Rates, 2)
	assert.Nil(t, q.Live)
}
