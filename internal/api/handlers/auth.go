package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pramothar/farmwith/internal/api/middleware"
	"github.com/pramothar/farmwith/internal/auth"
	"github.com/pramothar/farmwith/internal/config"
	"github.com/pramothar/farmwith/internal/db/repository"
	"github.com/pramothar/farmwith/internal/mail"
	"github.com/pramothar/farmwith/internal/models"
)

// MailSender delivers notification email. Satisfied by mail.Sender.
// Send reports mail.ErrNotConfigured when no transport is available.
type MailSender interface {
	Send(to, subject, body string) error
}

// AuthHandler handles registration, login and password recovery
type AuthHandler struct {
	config   *config.Config
	userRepo *repository.UserRepository
	tokens   *auth.TokenIssuer
	mailer   MailSender
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	cfg *config.Config,
	userRepo *repository.UserRepository,
	tokens *auth.TokenIssuer,
	mailer MailSender,
) *AuthHandler {
	return &AuthHandler{
		config:   cfg,
		userRepo: userRepo,
		tokens:   tokens,
		mailer:   mailer,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
	TOTPCode string `json:"totp_code"`
}

// TokenResponse carries an issued bearer token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ForgotPasswordRequest represents a password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ConfigResponse describes the SSO capabilities exposed to the frontend
type ConfigResponse struct {
	EnableSSO        bool   `json:"enable_sso"`
	OIDCProviderName string `json:"oidc_provider_name"`
}

// Register handles account creation
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if len(req.Password) < auth.MinPasswordLength {
		RespondError(c, http.StatusBadRequest, "weak_password",
			fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to create user")
		return
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: &hash,
		AuthMethod:   models.AuthMethodLocal,
	}
	if err := h.userRepo.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			RespondError(c, http.StatusConflict, "email_exists", "Email already registered")
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login handles credential verification and token issuance
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.userRepo.GetByEmail(req.Email)
	if err != nil || !user.HasPassword() {
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}

	if !auth.VerifyPassword(req.Password, *user.PasswordHash) {
		if err := h.userRepo.RecordFailedLogin(user.ID); err != nil {
			log.Printf("failed to record login attempt for %s: %v", user.ID, err)
		}
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}

	if user.MFAEnabled {
		if user.TOTPSecret == nil || *user.TOTPSecret == "" {
			// MFA flagged on without a secret is a data-integrity violation;
			// fatal to the request, not to the process.
			log.Printf("user %s has mfa_enabled without a TOTP secret", user.ID)
			RespondError(c, http.StatusInternalServerError, "internal_error", "MFA misconfigured for this account")
			return
		}
		if req.TOTPCode == "" {
			RespondError(c, http.StatusBadRequest, "totp_required", "TOTP code required")
			return
		}
		if !auth.ValidateTOTP(*user.TOTPSecret, req.TOTPCode) {
			RespondError(c, http.StatusUnauthorized, "invalid_totp", "Invalid TOTP code")
			return
		}
	}

	if err := h.userRepo.RecordSuccessfulLogin(user.ID); err != nil {
		log.Printf("failed to record successful login for %s: %v", user.ID, err)
	}

	token, err := h.tokens.Issue(user.ID, req.Remember)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Config reports whether SSO is available and under which provider name
// GET /auth/config
func (h *AuthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, ConfigResponse{
		EnableSSO:        h.config.SSOEnabled(),
		OIDCProviderName: h.config.SSO.ProviderName,
	})
}

// Me returns the authenticated user's record
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// ForgotPassword resets the password to a random value and emails it.
// The stored hash is overwritten before delivery is attempted, so the old
// password is invalid even when the send fails.
// POST /auth/forgot
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.userRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", "User not found")
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to look up user")
		return
	}

	newPassword, err := auth.GenerateResetPassword()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to reset password")
		return
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to reset password")
		return
	}
	if err := h.userRepo.SetPasswordHash(user.ID, hash); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to reset password")
		return
	}

	body := fmt.Sprintf(
		"Hello,\n\nYour password has been reset by an administrator.\nNew password: %s\n\nPlease sign in and update your password if needed.",
		newPassword,
	)
	if err := h.mailer.Send(user.Email, "Your FarmWith password has been reset", body); err != nil {
		if errors.Is(err, mail.ErrNotConfigured) {
			RespondError(c, http.StatusBadRequest, "email_not_configured", err.Error())
			return
		}
		RespondError(c, http.StatusInternalServerError, "email_failed", "Unable to send reset email")
		return
	}

	RespondMessage(c, "Password reset email sent")
}
