package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p9e.in/launchpad/models"
)

func testUser(role models.Role) models.User {
	return models.User{ID: uuid.New(), Name: "Priya", Email: "priya@example.com", Role: role}
}

func whoAmI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := Actor(r)
		json.NewEncoder(w).Encode(map[string]string{"id": a.ID, "role": string(a.Role)})
	})
}

func TestAuthMiddlewareAcceptsBearerAndCookie(t *testing.T) {
	auth := NewAuth("secret", time.Hour, false)
	user := testUser(models.RoleDeploymentEngineer)
	token, expires, err := auth.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	h := auth.Middleware(whoAmI())

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), user.ID.String())
		assert.Contains(t, rec.Body.String(), "deployment_engineer")
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthMiddlewareRejects(t *testing.T) {
	auth := NewAuth("secret", time.Hour, false)
	other := NewAuth("other-secret", time.Hour, false)
	foreign, _, err := other.GenerateToken(testUser(models.RoleAdmin))
	require.NoError(t, err)

	expired := NewAuth("secret", time.Hour, false)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := expired.GenerateToken(testUser(models.RoleAdmin))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage", header: "Bearer not-a-token"},
		{name: "wrong key", header: "Bearer " + foreign},
		{name: "expired", header: "Bearer " + stale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			auth.Middleware(whoAmI()).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "UNAUTHORIZED", body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin, models.RoleOpsManager)(whoAmI())

	serve := func(c *Claims) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c != nil {
			req = req.WithContext(WithClaims(req.Context(), c))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(&Claims{UserID: "u1", Role: models.RoleDeploymentEngineer}))
	assert.Equal(t, http.StatusOK, serve(&Claims{UserID: "u2", Role: models.RoleOpsManager}))
}

func TestSessionCookie(t *testing.T) {
	auth := NewAuth("secret", time.Hour, true)
	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, "tok", time.Now().Add(time.Hour))
	auth.ClearSessionCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.Equal(t, -1, cookies[1].MaxAge)
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS("https://app.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/sites", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = httptest.NewRecorder()
	CORS("")(whoAmI()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(whoAmI())

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/otp/send", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestObserveUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Observe(zerolog.Nop()))
	r.HandleFunc("/sites/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sites/abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
