// Package europarcel provides integration with the Europarcel courier API.
package europarcel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultLockerCacheTTL is how long locker lookups are served from cache.
const DefaultLockerCacheTTL = 2 * time.Hour

// ErrServiceNotConfigured is returned when an order names a carrier/service
// pair the instance does not offer.
var ErrServiceNotConfigured = errors.New("service not configured for instance")

// Config holds Europarcel configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	LockerCacheTTL time.Duration
	UseMock        bool // When true, uses mock API client
}

// LockerCache stores locker lookups. Implementations must be safe for concurrent use.
type LockerCache interface {
	GetLockers(ctx context.Context, key string) ([]shipping.Locker, bool, error)
	SetLockers(ctx context.Context, key string, lockers []shipping.Locker, ttl time.Duration) error
}

// Observer receives courier call outcomes and cache lookups.
type Observer interface {
	ObserveCourierCall(operation, status string, seconds float64)
	ObserveLockerCache(hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveCourierCall(string, string, float64) {}
func (nopObserver) ObserveLockerCache(bool)                    {}

// Client wraps an APIClient with the degradation rules of the checkout:
// lookups made while rendering never fail, they come back empty and the
// failure is logged. Only order creation reports errors to its caller.
type Client struct {
	config    Config
	apiClient APIClient
	cache     LockerCache
	observer  Observer
	lookups   singleflight.Group
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Europarcel client.
// If cfg.UseMock is true, it uses a mock API client.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Europarcel client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.LockerCacheTTL == 0 {
		cfg.LockerCacheTTL = DefaultLockerCacheTTL
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("europarcel")
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		observer:  nopObserver{},
		logger:    logger,
		tracer:    tracer,
	}
}

// WithLockerCache enables caching of locker lookups.
func (c *Client) WithLockerCache(cache LockerCache) *Client {
	c.cache = cache
	return c
}

// WithObserver reports call outcomes to o.
func (c *Client) WithObserver(o Observer) *Client {
	if o != nil {
		c.observer = o
	}
	return c
}

// instrument runs fn inside a span and records its outcome.
func (c *Client) instrument(ctx context.Context, operation string, instanceID int, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "europarcel."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("instance_id", instanceID)),
	)
	defer span.End()

	err := fn(ctx)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.observer.ObserveCourierCall(operation, status, time.Since(start).Seconds())
	return err
}

// Profile returns the account profile of the instance, or nil when it cannot
// be fetched.
func (c *Client) Profile(ctx context.Context, cfg *shipping.ShippingConfig) *Profile {
	if cfg == nil || cfg.APIKey == "" {
		return nil
	}

	var resp *ProfileResponse
	err := c.instrument(ctx, "profile", cfg.InstanceID, func(ctx context.Context) error {
		var err error
		resp, err = c.apiClient.GetProfile(ctx, cfg.APIKey)
		return err
	})
	if err != nil {
		c.logger.Ctx(ctx).Warn("Europarcel profile lookup failed",
			zap.Int("instance_id", cfg.InstanceID),
			zap.Error(err),
		)
		return nil
	}
	if resp.Data.Name == "" {
		return nil
	}
	return &resp.Data
}

// Addresses returns an address book of the instance's account; empty on failure.
func (c *Client) Addresses(ctx context.Context, cfg *shipping.ShippingConfig, kind AddressKind) []Address {
	if cfg == nil || cfg.APIKey == "" {
		return []Address{}
	}

	var resp *AddressListResponse
	err := c.instrument(ctx, "addresses_"+string(kind), cfg.InstanceID, func(ctx context.Context) error {
		var err error
		resp, err = c.apiClient.ListAddresses(ctx, cfg.APIKey, kind)
		return err
	})
	if err != nil {
		c.logger.Ctx(ctx).Warn("Europarcel address lookup failed",
			zap.Int("instance_id", cfg.InstanceID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return []Address{}
	}
	if resp.List == nil {
		return []Address{}
	}
	return resp.List
}

// AccountOverview is what the admin screen shows for an instance's API key.
type AccountOverview struct {
	Profile          *Profile  `json:"profile"`
	BillingAddresses []Address `json:"billing_addresses"`
	PickupAddresses  []Address `json:"pickup_addresses"`
}

// AccountOverview fetches the profile and both address books in parallel.
func (c *Client) AccountOverview(ctx context.Context, cfg *shipping.ShippingConfig) (*AccountOverview, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, shipping.ErrInstanceUnusable
	}

	overview := &AccountOverview{}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p := c.Profile(ctx, cfg)
		mu.Lock()
		defer mu.Unlock()
		overview.Profile = p
		return nil
	})
	g.Go(func() error {
		list := c.Addresses(ctx, cfg, AddressBilling)
		mu.Lock()
		defer mu.Unlock()
		overview.BillingAddresses = list
		return nil
	})
	g.Go(func() error {
		list := c.Addresses(ctx, cfg, AddressPickup)
		mu.Lock()
		defer mu.Unlock()
		overview.PickupAddresses = list
		return nil
	})

	_ = g.Wait()
	return overview, nil
}

// PriceOptions are live quotes split by delivery kind, cheapest first.
type PriceOptions struct {
	Home   []PriceQuote `json:"home"`
	Locker []PriceQuote `json:"locker"`
}

// GetPrices asks the API for live prices of the configured services. It
// reports false when the instance is not usable, the destination lacks a
// city or county, or the API call fails.
func (c *Client) GetPrices(ctx context.Context, cfg *shipping.ShippingConfig, pkg shipping.CartPackage, allowLocker bool) (*PriceOptions, bool) {
	if !cfg.Usable() {
		return nil, false
	}
	if pkg.Destination.City == "" || pkg.Destination.State == "" {
		c.logger.Ctx(ctx).Debug("Skipping price lookup",
			zap.Int("instance_id", cfg.InstanceID),
			zap.Error(shipping.ErrMissingDestination),
		)
		return nil, false
	}

	profile := c.Profile(ctx, cfg)
	if profile == nil {
		return nil, false
	}

	req := NewOrderRequest(cfg, allowLocker)
	req.AddressTo = PriceDestination(*profile, pkg.Destination)

	var resp *PricesResponse
	err := c.instrument(ctx, "prices", cfg.InstanceID, func(ctx context.Context) error {
		var err error
		resp, err = c.apiClient.GetPrices(ctx, cfg.APIKey, req)
		return err
	})
	if err != nil {
		c.logger.Ctx(ctx).Warn("Europarcel price lookup failed",
			zap.Int("instance_id", cfg.InstanceID),
			zap.Error(err),
		)
		return nil, false
	}

	return splitQuotes(cfg.Services(), resp.Data), true
}

func splitQuotes(services []shipping.ServiceDescriptor, quotes []PriceQuote) *PriceOptions {
	opts := &PriceOptions{Home: []PriceQuote{}, Locker: []PriceQuote{}}
	for _, d := range services {
		for _, q := range quotes {
			if q.CarrierID != d.CarrierID || q.ServiceID != int(d.ServiceID) {
				continue
			}
			switch d.ServiceID {
			case shipping.KindAddress:
				opts.Home = append(opts.Home, q)
			case shipping.KindLocker:
				opts.Locker = append(opts.Locker, q)
			}
		}
	}
	byTotal := func(list []PriceQuote) func(i, j int) bool {
		return func(i, j int) bool { return list[i].Price.Total.LessThan(list[j].Price.Total) }
	}
	sort.SliceStable(opts.Home, byTotal(opts.Home))
	sort.SliceStable(opts.Locker, byTotal(opts.Locker))
	return opts
}

// LockerQuery locates lockers near a place.
type LockerQuery struct {
	Country  string
	County   string
	Locality string
}

// FindLockers returns the lockers of the instance's locker carriers near q.
// Results are cached per instance and query; concurrent misses for the same
// key share one API call. Failures yield an empty list.
func (c *Client) FindLockers(ctx context.Context, cfg *shipping.ShippingConfig, q LockerQuery) []shipping.Locker {
	if cfg == nil || cfg.APIKey == "" {
		return []shipping.Locker{}
	}
	carriers := cfg.LockerCarriers()
	if len(carriers) == 0 {
		return []shipping.Locker{}
	}
	if q.Country == "" {
		q.Country = defaultCountry
	}

	key := lockerCacheKey(cfg.InstanceID, carriers, q)
	if c.cache != nil {
		cached, ok, err := c.cache.GetLockers(ctx, key)
		if err != nil {
			c.logger.Ctx(ctx).Warn("Locker cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.observer.ObserveLockerCache(ok)
		if ok {
			return cached
		}
	}

	v, err, _ := c.lookups.Do(key, func() (interface{}, error) {
		return c.fetchLockers(ctx, cfg, carriers, q, key)
	})
	if err != nil {
		c.logger.Ctx(ctx).Warn("Europarcel locker lookup failed",
			zap.Int("instance_id", cfg.InstanceID),
			zap.String("locality", q.Locality),
			zap.Error(err),
		)
		return []shipping.Locker{}
	}
	return v.([]shipping.Locker)
}

func (c *Client) fetchLockers(ctx context.Context, cfg *shipping.ShippingConfig, carriers []int, q LockerQuery, key string) ([]shipping.Locker, error) {
	var resp *FixedLocationsResponse
	err := c.instrument(ctx, "fixedlocations", cfg.InstanceID, func(ctx context.Context) error {
		var err error
		resp, err = c.apiClient.GetFixedLocations(ctx, cfg.APIKey, LocationQuery{
			CountryCode:  q.Country,
			CarrierIDs:   carriers,
			LocalityName: q.Locality,
			CountyName:   q.County,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	lockers := make([]shipping.Locker, 0, len(resp.Data))
	for _, loc := range resp.Data {
		lockers = append(lockers, shipping.Locker{
			ID:           string(loc.ID),
			CarrierID:    loc.CarrierID,
			CarrierName:  loc.CarrierName,
			Name:         loc.Name,
			Address:      loc.Address,
			LocalityName: loc.LocalityName,
			CountyName:   loc.CountyName,
			Latitude:     loc.Latitude,
			Longitude:    loc.Longitude,
		})
	}

	if c.cache != nil {
		if err := c.cache.SetLockers(ctx, key, lockers, c.config.LockerCacheTTL); err != nil {
			c.logger.Ctx(ctx).Warn("Locker cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return lockers, nil
}

func lockerCacheKey(instanceID int, carriers []int, q LockerQuery) string {
	ids := make([]string, len(carriers))
	for i, id := range carriers {
		ids[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("lockers:%d:%s:%s:%s:%s",
		instanceID,
		strings.Join(ids, ","),
		strings.ToLower(q.Country),
		strings.ToLower(q.County),
		strings.ToLower(q.Locality),
	)
}

// ShipmentRequest describes an order to place for a completed checkout.
type ShipmentRequest struct {
	CarrierID       int
	ServiceID       shipping.ServiceKind
	Recipient       DeliveryAddress
	FixedLocationID string
	Reference       string
}

// CreateOrder places a shipment order. Unlike the lookups it reports
// failures, since it runs on operator-facing paths.
func (c *Client) CreateOrder(ctx context.Context, cfg *shipping.ShippingConfig, sr ShipmentRequest) (*CreatedOrder, error) {
	if !cfg.Usable() {
		return nil, shipping.ErrInstanceUnusable
	}
	if !offers(cfg.Services(), sr.CarrierID, sr.ServiceID) {
		return nil, fmt.Errorf("%w: carrier %d service %d", ErrServiceNotConfigured, sr.CarrierID, sr.ServiceID)
	}

	reference := sr.Reference
	if reference == "" {
		reference = uuid.New().String()
	}

	req := NewOrderRequest(cfg, sr.ServiceID == shipping.KindLocker)
	req.CarrierID = sr.CarrierID
	req.ServiceID = int(sr.ServiceID)
	req.AddressTo = sr.Recipient
	if req.AddressTo.CountryCode == "" {
		req.AddressTo.CountryCode = defaultCountry
	}
	req.AddressTo.FixedLocationID = sr.FixedLocationID
	req.Extra.InternalIdentifier = reference

	c.logger.Ctx(ctx).Info("Creating Europarcel order",
		zap.Int("instance_id", cfg.InstanceID),
		zap.Int("carrier_id", sr.CarrierID),
		zap.Stringer("service", sr.ServiceID),
		zap.String("reference", reference),
	)

	var resp *OrderResponse
	err := c.instrument(ctx, "orders", cfg.InstanceID, func(ctx context.Context) error {
		var err error
		resp, err = c.apiClient.CreateOrder(ctx, cfg.APIKey, req)
		return err
	})
	if err != nil {
		c.logger.Ctx(ctx).Error("Europarcel API error", zap.Error(err))
		return nil, err
	}
	return &resp.Data, nil
}

func offers(services []shipping.ServiceDescriptor, carrierID int, kind shipping.ServiceKind) bool {
	for _, d := range services {
		if d.CarrierID == carrierID && d.ServiceID == kind {
			return true
		}
	}
	return false
}
