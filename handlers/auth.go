package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/models"
	"p9e.in/launchpad/pkg/metrics"
	"p9e.in/launchpad/pkg/otp"
	"p9e.in/launchpad/pkg/workflow"
)

type otpRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type userView struct {
	ID    uuid.UUID   `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

func viewUser(u models.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (h *Handler) findActiveUser(r *http.Request, email string) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(r.Context()).
		Where("LOWER(email) = ? AND is_active = ?", otp.NormalizeEmail(email), true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, workflow.Internal(err, "failed to load user")
	}
	return &user, nil
}

// SendOTP mails a login code to a registered user.
// POST /api/v1/auth/otp/send
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	email := otp.NormalizeEmail(req.Email)
	if email == "" {
		h.writeError(w, r, workflow.FieldErrors("email is required", map[string]string{"email": "is required"}, false))
		return
	}

	user, err := h.findActiveUser(r, email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user == nil {
		metrics.OTPIssued.WithLabelValues("send", "unknown_user").Inc()
		h.writeError(w, r, workflow.Validation("user is not registered"))
		return
	}

	code, err := h.otp.Issue(r.Context(), email)
	if err != nil {
		metrics.OTPIssued.WithLabelValues("send", "error").Inc()
		h.writeError(w, r, workflow.Internal(err, "failed to issue otp"))
		return
	}
	payload := otp.EmailPayload{Email: email, Code: code, TTL: h.otpTTL.String()}
	if err := h.sender.Send(r.Context(), payload); err != nil {
		metrics.OTPIssued.WithLabelValues("send", "error").Inc()
		h.writeError(w, r, workflow.Internal(err, "failed to send otp"))
		return
	}

	metrics.OTPIssued.WithLabelValues("send", "ok").Inc()
	writeJSON(w, http.StatusOK, "OTP sent successfully to "+email, nil)
}

// VerifyOTP exchanges a valid code for a session.
// POST /api/v1/auth/otp/verify
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	email := otp.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.OTP)
	if email == "" || code == "" {
		details := map[string]string{}
		if email == "" {
			details["email"] = "is required"
		}
		if code == "" {
			details["otp"] = "is required"
		}
		h.writeError(w, r, workflow.FieldErrors("email and otp are required", details, false))
		return
	}

	ok, err := h.otp.Verify(r.Context(), email, code)
	if err != nil {
		h.writeError(w, r, workflow.Internal(err, "failed to verify otp"))
		return
	}
	if !ok {
		metrics.OTPIssued.WithLabelValues("verify", "rejected").Inc()
		h.writeError(w, r, workflow.Validation("invalid or expired otp"))
		return
	}

	user, err := h.findActiveUser(r, email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user == nil {
		h.writeError(w, r, workflow.Validation("user is not registered"))
		return
	}

	now := h.now()
	if err := h.db.WithContext(r.Context()).Model(user).Update("last_logged_in", now).Error; err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to record login time")
	}

	token, expires, err := h.auth.GenerateToken(*user)
	if err != nil {
		h.writeError(w, r, workflow.Internal(err, "failed to issue session"))
		return
	}
	h.auth.SetSessionCookie(w, token, expires)

	metrics.OTPIssued.WithLabelValues("verify", "ok").Inc()
	h.log.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("user logged in")
	writeJSON(w, http.StatusOK, "Login successful", map[string]any{
		"user":       viewUser(*user),
		"token":      token,
		"expires_at": expires,
	})
}

// Me returns the logged in user.
// GET /api/v1/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		h.writeError(w, r, workflow.Unauthenticated())
		return
	}
	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.writeError(w, r, workflow.Unauthenticated())
			return
		}
		h.writeError(w, r, workflow.Internal(err, "failed to load user"))
		return
	}
	writeJSON(w, http.StatusOK, "Successfully fetched user", viewUser(user))
}

// Logout clears the session cookie.
// POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, "Logged out", nil)
}
