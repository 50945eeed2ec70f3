// Package locker keeps track of the locker a shopper picked for each shipping
// instance, across the short-lived session and the customer's durable profile.
package locker

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ErrIncompleteSelection is returned by Record when the selection cannot be stored.
var ErrIncompleteSelection = errors.New("locker selection incomplete")

// Shopper identifies who is checking out. An empty CustomerID is a guest.
type Shopper struct {
	SessionID  string
	CustomerID string
}

// Authenticated reports whether the shopper has a durable customer profile.
func (s Shopper) Authenticated() bool {
	return s.CustomerID != ""
}

// SessionStore holds the most recent selection of a checkout session.
type SessionStore interface {
	// GetSelection returns the session selection, or nil when none was recorded.
	GetSelection(ctx context.Context, sessionID string) (*shipping.LockerSelection, error)
	SetSelection(ctx context.Context, sessionID string, sel shipping.LockerSelection) error
}

// DurableUserStore holds the instance_id -> selection mapping of a customer.
type DurableUserStore interface {
	// GetSelections returns the stored mapping as persisted. It may still be in
	// the legacy carrier-keyed shape; State normalizes it on read.
	GetSelections(ctx context.Context, customerID string) (shipping.Selections, error)
	SetSelections(ctx context.Context, customerID string, sels shipping.Selections) error
}

// State resolves and records locker selections.
type State struct {
	configs  shipping.ConfigRepository
	sessions SessionStore
	users    DurableUserStore
	logger   *otelzap.Logger
}

// NewState creates a State over the given stores.
func NewState(configs shipping.ConfigRepository, sessions SessionStore, users DurableUserStore, logger *otelzap.Logger) *State {
	return &State{
		configs:  configs,
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// Resolve returns the selection to use for instanceID, or nil. The durable
// selection of an authenticated shopper wins over the session one. The session
// selection only applies to the instance it was made on. Either is used only
// while its carrier still offers lockers on the instance.
// Resolve never fails: any lookup error degrades to no selection.
func (s *State) Resolve(ctx context.Context, instanceID int, shopper Shopper) *shipping.LockerSelection {
	cfg, err := s.configs.Get(ctx, instanceID)
	if err != nil {
		if !errors.Is(err, shipping.ErrInstanceNotFound) {
			s.logger.Ctx(ctx).Warn("Loading instance config failed",
				zap.Int("instance_id", instanceID),
				zap.Error(err),
			)
		}
		return nil
	}

	if shopper.Authenticated() {
		if sel, ok := s.Selections(ctx, shopper)[instanceID]; ok && cfg.HasLockerCarrier(sel.CarrierID) {
			return &sel
		}
	}

	if shopper.SessionID == "" {
		return nil
	}
	sel, err := s.sessions.GetSelection(ctx, shopper.SessionID)
	if err != nil {
		s.logger.Ctx(ctx).Warn("Reading session selection failed", zap.Error(err))
		return nil
	}
	if sel == nil || sel.LockerID == "" || sel.InstanceID != instanceID || !cfg.HasLockerCarrier(sel.CarrierID) {
		return nil
	}
	return sel
}

// Record stores sel in the session and, for authenticated shoppers, merges it
// into the durable mapping. It returns the stored selection and the shopper's
// full durable mapping after the merge (empty for guests).
func (s *State) Record(ctx context.Context, shopper Shopper, sel shipping.LockerSelection) (shipping.LockerSelection, shipping.Selections, error) {
	if sel.InstanceID <= 0 || sel.CarrierID <= 0 || sel.LockerID == "" {
		return shipping.LockerSelection{}, nil, ErrIncompleteSelection
	}

	if shopper.SessionID != "" {
		if err := s.sessions.SetSelection(ctx, shopper.SessionID, sel); err != nil {
			return shipping.LockerSelection{}, nil, fmt.Errorf("storing session selection: %w", err)
		}
	}

	if !shopper.Authenticated() {
		return sel, shipping.Selections{}, nil
	}

	// A failed read must not be merged as empty: the write would drop every
	// other instance's entry.
	stored, err := s.users.GetSelections(ctx, shopper.CustomerID)
	if err != nil {
		return shipping.LockerSelection{}, nil, fmt.Errorf("reading customer selections: %w", err)
	}
	merged := stored.Normalize().Merge(sel)
	if err := s.users.SetSelections(ctx, shopper.CustomerID, merged); err != nil {
		return shipping.LockerSelection{}, nil, fmt.Errorf("storing customer selections: %w", err)
	}

	s.logger.Ctx(ctx).Info("Locker selection recorded",
		zap.Int("instance_id", sel.InstanceID),
		zap.Int("carrier_id", sel.CarrierID),
		zap.String("locker_id", sel.LockerID),
	)
	return sel, merged, nil
}

// Selections returns the durable mapping of an authenticated shopper, keyed
// by instance id. Guests and lookup failures yield an empty mapping.
func (s *State) Selections(ctx context.Context, shopper Shopper) shipping.Selections {
	if !shopper.Authenticated() {
		return shipping.Selections{}
	}
	stored, err := s.users.GetSelections(ctx, shopper.CustomerID)
	if err != nil {
		s.logger.Ctx(ctx).Warn("Reading customer selections failed",
			zap.String("customer_id", shopper.CustomerID),
			zap.Error(err),
		)
		return shipping.Selections{}
	}
	return stored.Normalize()
}
