// Package redisstore keeps sessions, customer selections and the locker cache
// in Redis, so several service replicas share them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tournevent/parcelgate/pkg/shipping"
)

const (
	keyNamespace     = "parcelgate"
	sessionPrefix    = "session"
	userLockerPrefix = "user_lockers"
	lockerPrefix     = "lockers"
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Store implements locker.SessionStore, locker.DurableUserStore and
// europarcel.LockerCache on top of Redis.
type Store struct {
	store      cmdable
	raw        *redis.Client
	sessionTTL time.Duration
}

// New connects to the Redis server at url and verifies connectivity.
// Session entries expire after sessionTTL; zero keeps them forever.
func New(ctx context.Context, url string, sessionTTL time.Duration) (*Store, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{store: raw, raw: raw, sessionTTL: sessionTTL}, nil
}

// GetSelection returns the session's selection or nil.
func (s *Store) GetSelection(ctx context.Context, sessionID string) (*shipping.LockerSelection, error) {
	var sel shipping.LockerSelection
	found, err := s.getJSON(ctx, s.buildKey(sessionPrefix, sessionID), &sel)
	if err != nil || !found {
		return nil, err
	}
	return &sel, nil
}

// SetSelection replaces the session's selection.
func (s *Store) SetSelection(ctx context.Context, sessionID string, sel shipping.LockerSelection) error {
	return s.setJSON(ctx, s.buildKey(sessionPrefix, sessionID), sel, s.sessionTTL)
}

// GetSelections returns the customer's durable mapping.
func (s *Store) GetSelections(ctx context.Context, customerID string) (shipping.Selections, error) {
	sels := shipping.Selections{}
	if _, err := s.getJSON(ctx, s.buildKey(userLockerPrefix, customerID), &sels); err != nil {
		return nil, err
	}
	return sels, nil
}

// SetSelections replaces the customer's durable mapping.
func (s *Store) SetSelections(ctx context.Context, customerID string, sels shipping.Selections) error {
	return s.setJSON(ctx, s.buildKey(userLockerPrefix, customerID), sels, 0)
}

// GetLockers returns cached lockers for key.
func (s *Store) GetLockers(ctx context.Context, key string) ([]shipping.Locker, bool, error) {
	var lockers []shipping.Locker
	found, err := s.getJSON(ctx, s.buildKey(lockerPrefix, key), &lockers)
	if err != nil || !found {
		return nil, false, err
	}
	return lockers, true, nil
}

// SetLockers caches lockers for key during ttl.
func (s *Store) SetLockers(ctx context.Context, key string, lockers []shipping.Locker, ttl time.Duration) error {
	return s.setJSON(ctx, s.buildKey(lockerPrefix, key), lockers, ttl)
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.store == nil {
		return errors.New("redis client not initialized")
	}
	return s.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (s *Store) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	if s.store == nil {
		return false, errors.New("redis client not initialized")
	}
	raw, err := s.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.store == nil {
		return errors.New("redis client not initialized")
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
