// Package checkout exposes the operations the checkout UI and the hosting
// shop call: locker carriers, locker selection, rate calculation and the
// order-time hooks.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/parcelgate/internal/telemetry"
	"github.com/tournevent/parcelgate/pkg/nonce"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/tournevent/parcelgate/pkg/shipping/europarcel"
	"github.com/tournevent/parcelgate/pkg/shipping/locker"
	"github.com/tournevent/parcelgate/pkg/shipping/rates"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Checkout types reported to the UI script.
const (
	CheckoutClassic = "classic"
	CheckoutBlocks  = "blocks"
)

// Service holds the dependencies of every checkout operation.
type Service struct {
	configs shipping.ConfigRepository
	lockers *locker.State
	courier *europarcel.Client
	tokens  *nonce.Manager
	metrics *telemetry.Metrics
	logger  *otelzap.Logger
}

// NewService creates a new checkout service with the given dependencies.
func NewService(
	configs shipping.ConfigRepository,
	lockers *locker.State,
	courier *europarcel.Client,
	tokens *nonce.Manager,
	metrics *telemetry.Metrics,
	logger *otelzap.Logger,
) *Service {
	return &Service{
		configs: configs,
		lockers: lockers,
		courier: courier,
		tokens:  tokens,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Service) verify(ctx context.Context, shopper locker.Shopper, token string) error {
	if err := s.tokens.Verify(token, shopper.SessionID, nonce.ActionLocker); err != nil {
		s.logger.Ctx(ctx).Debug("Rejected anti-forgery token",
			zap.String("session_id", shopper.SessionID),
			zap.Error(err),
		)
		return ErrInvalidToken
	}
	return nil
}

// config loads an instance config. Missing instances are not logged.
func (s *Service) config(ctx context.Context, instanceID int) (*shipping.ShippingConfig, error) {
	cfg, err := s.configs.Get(ctx, instanceID)
	if err != nil {
		if !errors.Is(err, shipping.ErrInstanceNotFound) {
			s.logger.Ctx(ctx).Warn("Loading instance config failed",
				zap.Int("instance_id", instanceID),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return cfg, nil
}

// GetLockerCarriers returns the carriers offering lockers on the instance.
// A misconfigured or unknown instance yields an empty list, never an error;
// only a bad token is reported.
func (s *Service) GetLockerCarriers(ctx context.Context, shopper locker.Shopper, req LockerCarriersRequest) ([]int, error) {
	if err := s.verify(ctx, shopper, req.Token); err != nil {
		return nil, err
	}
	if req.InstanceID <= 0 {
		return []int{}, nil
	}

	cfg, err := s.config(ctx, req.InstanceID)
	if err != nil || !cfg.Usable() {
		return []int{}, nil
	}
	carriers := cfg.LockerCarriers()
	if carriers == nil {
		carriers = []int{}
	}
	return carriers, nil
}

// UpdateLockerResult is returned after a locker was recorded. UserLockers is
// the customer's durable mapping (empty for guests) and OrderLockers the
// carriers of its entries.
type UpdateLockerResult struct {
	Selection    shipping.LockerSelection `json:"selection"`
	UserLockers  shipping.Selections      `json:"user_locker"`
	OrderLockers []int                    `json:"order_lockers"`
}

// UpdateLockerSelection records the locker picked for an instance.
func (s *Service) UpdateLockerSelection(ctx context.Context, shopper locker.Shopper, req UpdateLockerRequest) (*UpdateLockerResult, error) {
	if err := s.verify(ctx, shopper, req.Token); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	sel, sels, err := s.lockers.Record(ctx, shopper, req.selection())
	if err != nil {
		if errors.Is(err, locker.ErrIncompleteSelection) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, err
	}
	s.metrics.RecordLockerSelection(sel.InstanceID)

	return &UpdateLockerResult{
		Selection:    sel,
		UserLockers:  sels,
		OrderLockers: sels.CarrierIDs(),
	}, nil
}

// CalculateShipping runs one calculation pass for the host. It never fails:
// anything that prevents pricing yields no rates.
func (s *Service) CalculateShipping(ctx context.Context, shopper locker.Shopper, instanceID int, pkg shipping.CartPackage) []shipping.Rate {
	cfg, err := s.config(ctx, instanceID)
	if err != nil {
		s.metrics.RecordRateCalculation(instanceID, outcomeNone)
		return []shipping.Rate{}
	}

	sel := s.lockers.Resolve(ctx, instanceID, shopper)
	offered := rates.Calculate(cfg, pkg, sel)
	if offered == nil {
		offered = []shipping.Rate{}
	}

	outcome := rateOutcome(offered)
	s.metrics.RecordRateCalculation(instanceID, outcome)
	s.logger.Ctx(ctx).Debug("Calculated shipping rates",
		zap.Int("instance_id", instanceID),
		zap.String("outcome", outcome),
		zap.Int("rates", len(offered)),
		zap.Bool("locker_selected", sel != nil),
	)
	return offered
}

// CaptureOrderLocker freezes the shopper's locker onto a new order. It returns
// nil when the chosen rate is not a locker rate or no valid locker is selected.
func (s *Service) CaptureOrderLocker(ctx context.Context, shopper locker.Shopper, req OrderLockerRequest) (*shipping.OrderLockerMeta, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	parsed, ok := rates.ParseID(req.RateID)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"rate_id": "is not a europarcel rate"}}
	}
	if req.InstanceID != 0 && req.InstanceID != parsed.InstanceID {
		return nil, &ValidationError{Fields: map[string]string{"rate_id": "belongs to another instance"}}
	}
	if parsed.Kind != shipping.RateLocker {
		return nil, nil
	}

	sel := s.lockers.Resolve(ctx, parsed.InstanceID, shopper)
	if sel == nil {
		s.logger.Ctx(ctx).Warn("Locker rate chosen without a locker",
			zap.Int("instance_id", parsed.InstanceID),
			zap.String("session_id", shopper.SessionID),
		)
		return nil, nil
	}

	meta := shipping.NewOrderLockerMeta(*sel)
	s.logger.Ctx(ctx).Info("Captured order locker",
		zap.Int("instance_id", meta.InstanceID),
		zap.Int("carrier_id", meta.CarrierID),
		zap.String("locker_id", meta.LockerID),
	)
	return meta, nil
}

// BootstrapData is what the checkout script needs on page load.
type BootstrapData struct {
	Token            string              `json:"nonce"`
	UserLockers      shipping.Selections `json:"user_lockers"`
	OrderLockers     []int               `json:"order_lockers"`
	InstancesLockers map[int][]int       `json:"instances_lockers"`
	CheckoutType     string              `json:"checkout_type"`
	ShowLockerButton bool                `json:"show_locker_button"`
}

// Bootstrap issues a fresh token and gathers the shopper's lockers together
// with the locker carriers of every usable instance. chosenMethod is the
// shipping method the host reports as chosen; the locker button is shown for a
// locker rate, or for a bare method reference to an instance with lockers.
func (s *Service) Bootstrap(ctx context.Context, shopper locker.Shopper, chosenMethod string, blocks bool) (*BootstrapData, error) {
	token, err := s.tokens.Issue(shopper.SessionID, nonce.ActionLocker)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	configs, err := s.configs.List(ctx)
	if err != nil {
		s.logger.Ctx(ctx).Warn("Listing instance configs failed", zap.Error(err))
	}
	instances := instanceLockerCarriers(configs)

	sels := s.lockers.Selections(ctx, shopper)
	data := &BootstrapData{
		Token:            token,
		UserLockers:      sels,
		OrderLockers:     sels.CarrierIDs(),
		InstancesLockers: instances,
		CheckoutType:     CheckoutClassic,
	}
	if blocks {
		data.CheckoutType = CheckoutBlocks
	}
	data.ShowLockerButton = showLockerButton(chosenMethod, instances)
	return data, nil
}

// FindLockers lists the lockers the map widget can show for an instance.
// Lookup failures yield an empty list.
func (s *Service) FindLockers(ctx context.Context, shopper locker.Shopper, req FindLockersRequest) ([]shipping.Locker, error) {
	if err := s.verify(ctx, shopper, req.Token); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	cfg, err := s.config(ctx, req.InstanceID)
	if err != nil {
		return []shipping.Locker{}, nil
	}
	return s.courier.FindLockers(ctx, cfg, europarcel.LockerQuery{
		Country:  req.Country,
		County:   req.County,
		Locality: req.Locality,
	}), nil
}

// CreateShipment places the courier order of a completed checkout.
func (s *Service) CreateShipment(ctx context.Context, req ShipmentRequest) (*europarcel.CreatedOrder, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	cfg, err := s.config(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}

	sr := europarcel.ShipmentRequest{
		Recipient: recipientAddress(req.Recipient),
		Reference: req.Reference,
	}
	switch {
	case req.Locker != nil:
		if req.Locker.InstanceID != 0 && req.Locker.InstanceID != req.InstanceID {
			return nil, &ValidationError{Fields: map[string]string{"locker": "belongs to another instance"}}
		}
		if req.Locker.CarrierID <= 0 || req.Locker.LockerID == "" {
			return nil, &ValidationError{Fields: map[string]string{"locker": "is incomplete"}}
		}
		sr.CarrierID = req.Locker.CarrierID
		sr.ServiceID = shipping.KindLocker
		sr.FixedLocationID = req.Locker.LockerID
	case req.CarrierID > 0:
		sr.CarrierID = req.CarrierID
		sr.ServiceID = shipping.KindAddress
	default:
		homes := cfg.HomeCarriers()
		if len(homes) != 1 {
			return nil, &ValidationError{Fields: map[string]string{"carrier_id": "is required"}}
		}
		sr.CarrierID = homes[0]
		sr.ServiceID = shipping.KindAddress
	}

	return s.courier.CreateOrder(ctx, cfg, sr)
}

// AccountOverview returns the Europarcel account behind an instance's API key.
func (s *Service) AccountOverview(ctx context.Context, instanceID int) (*europarcel.AccountOverview, error) {
	cfg, err := s.config(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return s.courier.AccountOverview(ctx, cfg)
}

// Quote compares the configured fixed rates with live courier prices.
type Quote struct {
	Rates []shipping.Rate          `json:"rates"`
	Live  *europarcel.PriceOptions `json:"live,omitempty"`
}

// Quote prices a package for an instance without any locker selection. Live
// prices are left out when the courier cannot price the destination.
func (s *Service) Quote(ctx context.Context, instanceID int, pkg shipping.CartPackage) (*Quote, error) {
	cfg, err := s.config(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	q := &Quote{Rates: rates.Calculate(cfg, pkg, nil)}
	allowLocker := true
	if elig := rates.Evaluate(cfg, pkg); elig.LockerExcluded {
		allowLocker = false
	}
	if live, ok := s.courier.GetPrices(ctx, cfg, pkg, allowLocker); ok {
		q.Live = live
	}
	return q, nil
}
