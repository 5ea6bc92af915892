package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"p9e.in/launchpad/models"
	"p9e.in/launchpad/pkg/workflow"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "session_id"

// Claims are the custom payload of the session token.
type Claims struct {
	UserID string      `json:"userId"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// unexported type prevents collisions in context
type ctxKey int

const (
	userClaimsKey ctxKey = iota
)

// Auth issues and checks HS256 session tokens.
type Auth struct {
	key          []byte
	ttl          time.Duration
	secureCookie bool
	now          func() time.Time
}

func NewAuth(secret string, ttl time.Duration, secureCookie bool) *Auth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{key: []byte(secret), ttl: ttl, secureCookie: secureCookie, now: time.Now}
}

// GenerateToken creates a signed token for u valid for the session TTL.
func (a *Auth) GenerateToken(u models.User) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		UserID: u.ID.String(),
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.key)
	return signed, expires, err
}

func (a *Auth) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (a *Auth) SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(a.ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Auth) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// tokenFromRequest prefers the Authorization header over the cookie.
func tokenFromRequest(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// Middleware validates the session token and stashes the Claims in ctx.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := tokenFromRequest(r)
		if !ok || tokenStr == "" {
			writeError(w, http.StatusUnauthorized, workflow.KindUnauthenticated, "authentication required")
			return
		}
		claims, err := a.ParseToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, workflow.KindUnauthenticated, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := Actor(r)
			if !actor.Authenticated() {
				writeError(w, http.StatusUnauthorized, workflow.KindUnauthenticated, "authentication required")
				return
			}
			if !actor.HasRole(roles...) {
				writeError(w, http.StatusForbidden, workflow.KindForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, userClaimsKey, c)
}

// GetClaims pulls the *Claims out of the request context (or nil)
func GetClaims(r *http.Request) *Claims {
	if c, ok := r.Context().Value(userClaimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// Actor returns the workflow caller; anonymous when no claims are present.
func Actor(r *http.Request) workflow.Actor {
	c := GetClaims(r)
	if c == nil {
		return workflow.Actor{}
	}
	return workflow.Actor{ID: c.UserID, Name: c.Name, Role: c.Role}
}
