package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/parcelgate/pkg/shipping/locker"
)

const (
	// SessionCookie carries the shopper's checkout session id.
	SessionCookie = "parcelgate_session"
	// SessionHeader lets the hosting shop pass the session id on server-side calls.
	SessionHeader = "X-Session-ID"
	// CustomerHeader is set by the hosting shop for logged-in customers.
	CustomerHeader = "X-Customer-ID"

	sessionCookieMaxAge = 48 * time.Hour
)

type shopperKey struct{}

// identifyShopper resolves the shopper of the request. A session cookie is
// issued when the request carries no session at all.
func (s *Server) identifyShopper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shopper := locker.Shopper{
			SessionID:  strings.TrimSpace(r.Header.Get(SessionHeader)),
			CustomerID: strings.TrimSpace(r.Header.Get(CustomerHeader)),
		}
		if shopper.SessionID == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				shopper.SessionID = c.Value
			}
		}
		if shopper.SessionID == "" {
			shopper.SessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    shopper.SessionID,
				Path:     "/",
				MaxAge:   int(sessionCookieMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), shopperKey{}, shopper)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func shopperFrom(ctx context.Context) locker.Shopper {
	shopper, _ := ctx.Value(shopperKey{}).(locker.Shopper)
	return shopper
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
				writeFailure(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
