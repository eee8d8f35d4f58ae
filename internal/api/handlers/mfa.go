package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pramothar/farmwith/internal/api/middleware"
	"github.com/pramothar/farmwith/internal/auth"
	"github.com/pramothar/farmwith/internal/db/repository"
)

// MFAHandler handles TOTP enrollment and verification
type MFAHandler struct {
	userRepo *repository.UserRepository
	issuer   string
}

// NewMFAHandler creates a new MFA handler. issuer is the name shown in
// authenticator apps.
func NewMFAHandler(userRepo *repository.UserRepository, issuer string) *MFAHandler {
	return &MFAHandler{userRepo: userRepo, issuer: issuer}
}

// SetupResponse carries the shared secret for authenticator enrollment
type SetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// VerifyRequest represents an MFA verification request
type VerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// Setup returns the user's TOTP secret, generating one on first call.
// Idempotent: repeat calls return the existing secret. MFA is only enabled
// once Verify succeeds.
// POST /auth/mfa/setup
func (h *MFAHandler) Setup(c *gin.Context) {
	user := middleware.CurrentUser(c)

	secret := ""
	if user.TOTPSecret != nil {
		secret = *user.TOTPSecret
	}

	if secret == "" {
		generated, err := auth.GenerateTOTPSecret(h.issuer, user.Email)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to generate secret")
			return
		}
		if err := h.userRepo.SetTOTPSecret(user.ID, generated); err != nil {
			RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to store secret")
			return
		}
		secret = generated
	}

	c.JSON(http.StatusOK, SetupResponse{
		Secret:     secret,
		OTPAuthURL: auth.ProvisioningURI(secret, user.Email, h.issuer),
	})
}

// Verify checks a code against the stored secret and enables MFA
// POST /auth/mfa/verify
func (h *MFAHandler) Verify(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		RespondError(c, http.StatusBadRequest, "mfa_not_initialized", "MFA setup has not been performed")
		return
	}

	if !auth.ValidateTOTP(*user.TOTPSecret, req.Code) {
		RespondError(c, http.StatusBadRequest, "invalid_totp", "Invalid TOTP code")
		return
	}

	if err := h.userRepo.EnableMFA(user.ID); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to enable MFA")
		return
	}

	RespondMessage(c, "MFA enabled")
}
