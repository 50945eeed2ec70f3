// Package nonce issues and verifies the anti-forgery tokens the checkout UI
// sends back with every AJAX action. A token is an HS256 JWT bound to the
// shopper's session and to one action name.
package nonce

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ActionLocker is the action the locker endpoints are protected with.
const ActionLocker = "europarcel_locker"

// DefaultTTL is the lifetime of a token.
const DefaultTTL = 12 * time.Hour

const issuer = "parcelgate"

var signingMethod = jwt.SigningMethodHS256

var (
	// ErrInvalid is returned for any token that fails verification.
	ErrInvalid = errors.New("invalid security token")

	// ErrMissingSecret is returned when the manager has no signing secret.
	ErrMissingSecret = errors.New("nonce secret is required")
)

// Claims are the claims carried by a token.
type Claims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

// Manager mints and verifies tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager. A zero ttl uses DefaultTTL.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue mints a token for the session and action.
func (m *Manager) Issue(sessionID, action string) (string, error) {
	now := m.now()
	claims := Claims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing nonce: %w", err)
	}
	return signed, nil
}

// Verify checks that token was issued by this manager for sessionID and
// action and has not expired. Every failure wraps ErrInvalid.
func (m *Manager) Verify(token, sessionID, action string) error {
	if token == "" {
		return fmt.Errorf("%w: missing", ErrInvalid)
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(sessionID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Action != action {
		return fmt.Errorf("%w: action mismatch", ErrInvalid)
	}
	return nil
}
