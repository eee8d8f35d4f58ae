package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/pramothar/farmwith/internal/auth"
	"github.com/pramothar/farmwith/internal/config"
	"github.com/pramothar/farmwith/internal/db/repository"
	"github.com/pramothar/farmwith/internal/models"
	"github.com/pramothar/farmwith/internal/oidc"
)

const stateCookie = "sso_state"

// stateCookieMaxAge bounds how long a provider round trip may take
const stateCookieMaxAge = 600

// SSOClient performs the provider side of the authorization-code flow.
// Satisfied by oidc.Client.
type SSOClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Identity(ctx context.Context, token *oauth2.Token) (*oidc.Identity, error)
}

// SSOHandler handles the federated login flow
type SSOHandler struct {
	config   *config.Config
	userRepo *repository.UserRepository
	tokens   *auth.TokenIssuer
	client   SSOClient
	states   *oidc.StateCodec
}

// NewSSOHandler creates a new SSO handler. client may be nil when SSO is
// disabled or the provider could not be constructed.
func NewSSOHandler(
	cfg *config.Config,
	userRepo *repository.UserRepository,
	tokens *auth.TokenIssuer,
	client SSOClient,
	states *oidc.StateCodec,
) *SSOHandler {
	return &SSOHandler{
		config:   cfg,
		userRepo: userRepo,
		tokens:   tokens,
		client:   client,
		states:   states,
	}
}

// Login redirects the browser to the identity provider
// GET /auth/sso/login
func (h *SSOHandler) Login(c *gin.Context) {
	if !h.config.SSOEnabled() {
		RespondError(c, http.StatusNotFound, "sso_disabled", "SSO disabled")
		return
	}
	if h.client == nil {
		RespondError(c, http.StatusServiceUnavailable, "sso_unavailable", "SSO provider unavailable")
		return
	}

	state, err := h.states.New()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to start SSO flow")
		return
	}

	c.SetCookie(stateCookie, state, stateCookieMaxAge, "/auth/sso", "", false, true)
	c.Redirect(http.StatusFound, h.client.AuthCodeURL(state))
}

// Callback exchanges the authorization code, links or provisions the user
// and redirects to the frontend with a bearer token.
// GET /auth/sso/callback
func (h *SSOHandler) Callback(c *gin.Context) {
	if !h.config.SSOEnabled() {
		RespondError(c, http.StatusNotFound, "sso_disabled", "SSO disabled")
		return
	}
	if h.client == nil {
		RespondError(c, http.StatusServiceUnavailable, "sso_unavailable", "SSO provider unavailable")
		return
	}

	state := c.Query("state")
	cookie, err := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/auth/sso", "", false, true)
	if err != nil || state == "" || state != cookie || !h.states.Verify(state) {
		RespondError(c, http.StatusBadRequest, "invalid_state", "SSO state mismatch")
		return
	}

	code := c.Query("code")
	if code == "" {
		RespondError(c, http.StatusBadRequest, "missing_code", "Missing authorization code")
		return
	}

	token, err := h.client.Exchange(c.Request.Context(), code)
	if err != nil {
		h.respondProviderError(c, err, "SSO authorization failed")
		return
	}

	identity, err := h.client.Identity(c.Request.Context(), token)
	if err != nil {
		h.respondProviderError(c, err, "Failed to retrieve identity")
		return
	}

	user, err := h.userRepo.GetByEmail(identity.Email)
	if errors.Is(err, repository.ErrNotFound) {
		user = &models.User{
			Email:      identity.Email,
			AuthMethod: models.AuthMethodOIDC,
		}
		err = h.userRepo.Create(user)
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to provision user")
		return
	}

	if err := h.userRepo.LinkOIDC(user.ID, h.config.SSO.ProviderName, identity.Subject); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to link identity")
		return
	}

	accessToken, err := h.tokens.Issue(user.ID, false)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to issue token")
		return
	}

	c.Redirect(http.StatusFound, h.config.URLs.Frontend+"/sso/callback?token="+accessToken)
}

func (h *SSOHandler) respondProviderError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, oidc.ErrUnavailable):
		log.Printf("identity provider error: %v", err)
		RespondError(c, http.StatusServiceUnavailable, "sso_unavailable", message)
	case errors.Is(err, oidc.ErrNoToken):
		RespondError(c, http.StatusBadRequest, "sso_failed", "SSO authorization failed")
	case errors.Is(err, oidc.ErrNoEmail):
		RespondError(c, http.StatusBadRequest, "missing_email", "Email not provided by identity provider")
	default:
		RespondError(c, http.StatusBadRequest, "sso_failed", message)
	}
}
