// Package memory provides in-process implementations of the configuration,
// session, customer and locker-cache stores. They are safe for concurrent use
// and lose everything on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tournevent/parcelgate/pkg/shipping"
)

// ConfigStore is an in-memory shipping.ConfigRepository.
type ConfigStore struct {
	configs map[int]*shipping.ShippingConfig
	mu      sync.RWMutex
}

// NewConfigStore creates an empty config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		configs: make(map[int]*shipping.ShippingConfig),
	}
}

// Get returns a copy of the instance config.
func (s *ConfigStore) Get(_ context.Context, instanceID int) (*shipping.ShippingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[instanceID]
	if !ok {
		return nil, shipping.ErrInstanceNotFound
	}
	cp := *cfg
	return &cp, nil
}

// Save stores a copy of cfg.
func (s *ConfigStore) Save(_ context.Context, cfg *shipping.ShippingConfig) error {
	cp := *cfg
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.InstanceID] = &cp
	return nil
}

// List returns every config ordered by instance id.
func (s *ConfigStore) List(_ context.Context) ([]*shipping.ShippingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*shipping.ShippingConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		cp := *cfg
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].InstanceID < result[j].InstanceID
	})
	return result, nil
}

type sessionEntry struct {
	sel     shipping.LockerSelection
	expires time.Time
}

func (e sessionEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// SessionStore keeps one selection per session, expiring after ttl of inactivity.
type SessionStore struct {
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]sessionEntry
	mu       sync.RWMutex
}

// NewSessionStore creates a session store. A ttl of zero never expires entries.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]sessionEntry),
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// GetSelection returns the session's selection or nil.
func (s *SessionStore) GetSelection(_ context.Context, sessionID string) (*shipping.LockerSelection, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	now := s.now()
	if !entry.expired(now) {
		sel := entry.sel
		return &sel, nil
	}

	// The entry may have been replaced since the read lock was released.
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok = s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if entry.expired(now) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	sel := entry.sel
	return &sel, nil
}

// SetSelection replaces the session's selection.
func (s *SessionStore) SetSelection(_ context.Context, sessionID string, sel shipping.LockerSelection) error {
	entry := sessionEntry{sel: sel}
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = entry
	return nil
}

// UserStore keeps the durable selection mapping of each customer.
type UserStore struct {
	users map[string]shipping.Selections
	mu    sync.RWMutex
}

// NewUserStore creates an empty customer store.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]shipping.Selections),
	}
}

// GetSelections returns a copy of the customer's mapping.
func (s *UserStore) GetSelections(_ context.Context, customerID string) (shipping.Selections, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySelections(s.users[customerID]), nil
}

// SetSelections replaces the customer's mapping.
func (s *UserStore) SetSelections(_ context.Context, customerID string, sels shipping.Selections) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[customerID] = copySelections(sels)
	return nil
}

func copySelections(sels shipping.Selections) shipping.Selections {
	out := make(shipping.Selections, len(sels))
	for k, v := range sels {
		out[k] = v
	}
	return out
}

type cacheEntry struct {
	lockers []shipping.Locker
	expires time.Time
}

// LockerCache caches locker lookups until their ttl elapses.
type LockerCache struct {
	entries map[string]cacheEntry
	mu      sync.RWMutex
}

// NewLockerCache creates an empty locker cache.
func NewLockerCache() *LockerCache {
	return &LockerCache{
		entries: make(map[string]cacheEntry),
	}
}

// GetLockers returns the cached lockers for key and whether they were found.
func (c *LockerCache) GetLockers(_ context.Context, key string) ([]shipping.Locker, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, false, nil
	}
	out := make([]shipping.Locker, len(entry.lockers))
	copy(out, entry.lockers)
	return out, true, nil
}

// SetLockers caches lockers for key during ttl.
func (c *LockerCache) SetLockers(_ context.Context, key string, lockers []shipping.Locker, ttl time.Duration) error {
	stored := make([]shipping.Locker, len(lockers))
	copy(stored, lockers)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{lockers: stored, expires: time.Now().Add(ttl)}
	return nil
}
