package europarcel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/parcelgate/pkg/shipping"
)

// MockAPIClient is a mock implementation of APIClient for testing and demos.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetProfile        func(ctx context.Context, apiKey string) (*ProfileResponse, error)
	OnListAddresses     func(ctx context.Context, apiKey string, kind AddressKind) (*AddressListResponse, error)
	OnGetPrices         func(ctx context.Context, apiKey string, req *OrderRequest) (*PricesResponse, error)
	OnGetFixedLocations func(ctx context.Context, apiKey string, q LocationQuery) (*FixedLocationsResponse, error)
	OnCreateOrder       func(ctx context.Context, apiKey string, req *OrderRequest) (*OrderResponse, error)

	calls atomic.Int64
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Calls returns how many API calls the mock has served.
func (m *MockAPIClient) Calls() int64 {
	return m.calls.Load()
}

func (m *MockAPIClient) begin(operation string) error {
	m.calls.Add(1)
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return shipping.NewCourierError(operation, "MOCK_ERROR", "Simulated API error").
			WithStatusCode(500).
			WithCause(shipping.ErrServiceUnavailable).
			WithRetryable(true)
	}
	return nil
}

// GetProfile returns a mock profile.
func (m *MockAPIClient) GetProfile(ctx context.Context, apiKey string) (*ProfileResponse, error) {
	if err := m.begin("profile"); err != nil {
		return nil, err
	}
	if m.OnGetProfile != nil {
		return m.OnGetProfile(ctx, apiKey)
	}

	return &ProfileResponse{Data: Profile{
		Name:    "Magazin Demo",
		Email:   "contact@magazin-demo.ro",
		Phone:   "0722000000",
		Company: "Magazin Demo SRL",
	}}, nil
}

// ListAddresses returns a mock address book.
func (m *MockAPIClient) ListAddresses(ctx context.Context, apiKey string, kind AddressKind) (*AddressListResponse, error) {
	if err := m.begin("addresses"); err != nil {
		return nil, err
	}
	if m.OnListAddresses != nil {
		return m.OnListAddresses(ctx, apiKey, kind)
	}

	if kind == AddressBilling {
		return &AddressListResponse{List: []Address{
			{ID: 11, AddressType: "business", Company: "Magazin Demo SRL", LocalityName: "Bucuresti", StreetNo: "10"},
		}}, nil
	}
	return &AddressListResponse{List: []Address{
		{ID: 21, AddressType: "business", Company: "Depozit Demo", LocalityName: "Chiajna", StreetNo: "3"},
		{ID: 22, AddressType: "individual", Contact: "Ion Popescu", LocalityName: "Cluj-Napoca", StreetNo: "7"},
	}}, nil
}

// GetPrices returns a price for every catalog service matching the request's
// carrier and service filters.
func (m *MockAPIClient) GetPrices(ctx context.Context, apiKey string, req *OrderRequest) (*PricesResponse, error) {
	if err := m.begin("prices"); err != nil {
		return nil, err
	}
	if m.OnGetPrices != nil {
		return m.OnGetPrices(ctx, apiKey, req)
	}

	var quotes []PriceQuote
	for _, d := range shipping.Services() {
		if req.CarrierID != 0 && req.CarrierID != d.CarrierID {
			continue
		}
		if req.ServiceID != 0 && req.ServiceID != int(d.ServiceID) {
			continue
		}
		amount := decimal.NewFromInt(int64(10 + d.CarrierID*2 + int(d.ServiceID)))
		vat := amount.Mul(decimal.RequireFromString("0.19")).Round(2)
		quotes = append(quotes, PriceQuote{
			CarrierID: d.CarrierID,
			Carrier:   d.Label,
			ServiceID: int(d.ServiceID),
			Service:   d.ServiceID.String(),
			Price: Price{
				Amount:   amount,
				VAT:      vat,
				Total:    amount.Add(vat),
				Currency: "RON",
			},
		})
	}
	return &PricesResponse{Data: quotes}, nil
}

// GetFixedLocations returns two lockers per requested carrier.
func (m *MockAPIClient) GetFixedLocations(ctx context.Context, apiKey string, q LocationQuery) (*FixedLocationsResponse, error) {
	if err := m.begin("fixedlocations"); err != nil {
		return nil, err
	}
	if m.OnGetFixedLocations != nil {
		return m.OnGetFixedLocations(ctx, apiKey, q)
	}

	var locations []FixedLocation
	for _, carrierID := range q.CarrierIDs {
		for i := 1; i <= 2; i++ {
			locations = append(locations, FixedLocation{
				ID:           FlexibleID(fmt.Sprintf("%d%03d", carrierID, i)),
				CarrierID:    carrierID,
				CarrierName:  fmt.Sprintf("Carrier %d", carrierID),
				Name:         fmt.Sprintf("Locker %s %d", q.LocalityName, i),
				Address:      fmt.Sprintf("Strada Principala %d, %s", i, q.LocalityName),
				LocalityName: q.LocalityName,
				CountyName:   q.CountyName,
				Latitude:     44.4268 + float64(i)/1000,
				Longitude:    26.1025 + float64(carrierID)/1000,
			})
		}
	}
	return &FixedLocationsResponse{Data: locations}, nil
}

// CreateOrder creates a mock order.
func (m *MockAPIClient) CreateOrder(ctx context.Context, apiKey string, req *OrderRequest) (*OrderResponse, error) {
	if err := m.begin("orders"); err != nil {
		return nil, err
	}
	if m.OnCreateOrder != nil {
		return m.OnCreateOrder(ctx, apiKey, req)
	}

	awb := "EP" + uuid.New().String()[:8]
	return &OrderResponse{Data: CreatedOrder{
		ID:          int(time.Now().UnixNano() % 1000000),
		AWB:         awb,
		CarrierID:   req.CarrierID,
		ServiceID:   req.ServiceID,
		TrackingURL: "https://www.europarcel.com/tracking/" + awb,
		Price: Price{
			Amount:   decimal.NewFromInt(15),
			VAT:      decimal.RequireFromString("2.85"),
			Total:    decimal.RequireFromString("17.85"),
			Currency: "RON",
		},
	}}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
