package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/ledger"
)

// ErrInvalidToken covers missing, malformed, forged and expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// =============================================================================
// SESSIONS - HS256 bearer tokens carrying the user id
// =============================================================================

type Claims struct {
	UserID ledger.ID `json:"uid"`
	jwt.RegisteredClaims
}

type Sessions struct {
	secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret), TTL: 24 * time.Hour, Now: time.Now}
}

// Issue signs a token for the user.
func (s *Sessions) Issue(u ledger.User) (string, time.Time, error) {
	now := s.Now()
	expires := now.Add(s.TTL)
	claims := Claims{
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(int64(u.ID), 10),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, expires, err
}

// Parse validates a token and returns the user id it was issued for.
func (s *Sessions) Parse(token string) (ledger.ID, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil || !parsed.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type actorKey struct{}

// Authenticate resolves the bearer token to a user of the current state.
// A token for a deleted user is rejected.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header", nil)
			return
		}
		id, err := h.Sessions.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}
		actor, ok := h.Engine.Current().State.User(id)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unknown user", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

// RequireCapability rejects actors lacking every one of caps.
func RequireCapability(caps ...access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := actorFrom(r)
			for _, c := range caps {
				if access.Can(actor, c) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Forbidden", errors.New("requires "+strings.Join(caps, " or ")))
		})
	}
}

func actorFrom(r *http.Request) ledger.User {
	u, _ := r.Context().Value(actorKey{}).(ledger.User)
	return u
}
