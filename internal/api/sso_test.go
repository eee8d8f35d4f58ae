package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pramothar/farmwith/internal/config"
	"github.com/pramothar/farmwith/internal/models"
	"github.com/pramothar/farmwith/internal/oidc"
)

// fakeIdP is a minimal OAuth token + userinfo endpoint pair
type fakeIdP struct {
	server       *httptest.Server
	tokenStatus  int
	userinfo     map[string]any
	userinfoCode int
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	idp := &fakeIdP{
		tokenStatus:  http.StatusOK,
		userinfoCode: http.StatusOK,
		userinfo:     map[string]any{"email": "sso@x.com", "sub": "subject-1"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if idp.tokenStatus != http.StatusOK {
			w.WriteHeader(idp.tokenStatus)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer provider-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if idp.userinfoCode != http.StatusOK {
			w.WriteHeader(idp.userinfoCode)
			return
		}
		json.NewEncoder(w).Encode(idp.userinfo)
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func newSSOTestEnv(t *testing.T, idp *fakeIdP) *testEnv {
	t.Helper()

	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.SSO.Enabled = true
		cfg.SSO.ClientID = "client-id"
		cfg.SSO.ClientSecret = "client-secret"
		cfg.SSO.AuthorizeURL = idp.server.URL + "/authorize"
		cfg.SSO.TokenURL = idp.server.URL + "/token"
		cfg.SSO.UserinfoURL = idp.server.URL + "/userinfo"
	})

	client, err := oidc.NewClient(context.Background(), env.cfg)
	require.NoError(t, err)
	env.server = NewServer(env.cfg, env.repo, env.tokens, env.mailer, client)
	return env
}

// ssoUser provisions an SSO-only account directly through the repository
func ssoUser(t *testing.T, env *testEnv, email string) *models.User {
	t.Helper()

	user := &models.User{Email: email, AuthMethod: models.AuthMethodOIDC}
	require.NoError(t, env.repo.Create(user))
	return user
}

// ssoRoundTrip performs the login redirect and callback, returning the
// final callback response.
func ssoRoundTrip(t *testing.T, env *testEnv, code string) *httptest.ResponseRecorder {
	t.Helper()

	w := env.do(t, http.MethodGet, "/auth/sso/login", "", nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	cookie := w.Result().Cookies()
	require.NotEmpty(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code="+code+"&state="+url.QueryEscape(state), nil)
	for _, c := range cookie {
		req.AddCookie(c)
	}
	cb := httptest.NewRecorder()
	env.server.Router().ServeHTTP(cb, req)
	return cb
}

func TestSSODisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/auth/sso/login", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/auth/sso/callback", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSSOConfiguredWithoutClient(t *testing.T) {
	// Enabled in config but provider construction failed at startup
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.SSO.Enabled = true
		cfg.SSO.ClientID = "client-id"
		cfg.SSO.ClientSecret = "client-secret"
		cfg.SSO.ConfigurationURL = "https://unreachable.example.com/.well-known/openid-configuration"
	})

	w := env.do(t, http.MethodGet, "/auth/sso/login", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSSORedirectTargetsProvider(t *testing.T) {
	idp := newFakeIdP(t)
	env := newSSOTestEnv(t, idp)

	w := env.do(t, http.MethodGet, "/auth/sso/login", "", nil)
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(w.Header().Get("Location"), idp.server.URL+"/authorize"))
	q := location.Query()
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, env.cfg.CallbackURL(), q.Get("redirect_uri"))
	require.Contains(t, q.Get("scope"), "openid")
}

func TestSSOCallbackProvisionsUser(t *testing.T) {
	idp := newFakeIdP(t)
	env := newSSOTestEnv(t, idp)

	cb := ssoRoundTrip(t, env, "good-code")
	require.Equal(t, http.StatusFound, cb.Code, cb.Body.String())

	location := cb.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, env.cfg.URLs.Frontend+"/sso/callback?token="))

	redirect, err := url.Parse(location)
	require.NoError(t, err)
	token := redirect.Query().Get("token")
	sub, err := env.tokens.Subject(token)
	require.NoError(t, err)

	user, err := env.repo.GetByEmail("sso@x.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, sub)
	require.Equal(t, models.AuthMethodOIDC, user.AuthMethod)
	require.False(t, user.HasPassword())
	require.NotNil(t, user.OIDCProvider)
	require.Equal(t, "Authentik", *user.OIDCProvider)
	require.NotNil(t, user.OIDCSubject)
	require.Equal(t, "subject-1", *user.OIDCSubject)

	// A second round trip links the same record instead of duplicating it
	cb = ssoRoundTrip(t, env, "good-code")
	require.Equal(t, http.StatusFound, cb.Code)
	again, err := env.repo.GetByEmail("sso@x.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, again.ID)
}

func TestSSOCallbackLinksExistingLocalAccount(t *testing.T) {
	idp := newFakeIdP(t)
	idp.userinfo = map[string]any{"email": "a@x.com", "sub": "subject-9"}
	env := newSSOTestEnv(t, idp)
	env.register(t, "a@x.com", "longpass1")

	cb := ssoRoundTrip(t, env, "good-code")
	require.Equal(t, http.StatusFound, cb.Code, cb.Body.String())

	user, err := env.repo.GetByEmail("a@x.com")
	require.NoError(t, err)
	require.Equal(t, models.AuthMethodOIDC, user.AuthMethod)
	require.NotNil(t, user.OIDCSubject)

	// Linking must not cost the account its password
	w, _ := env.login(t, map[string]any{"email": "a@x.com", "password": "longpass1"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSSOCallbackStateMismatch(t *testing.T) {
	idp := newFakeIdP(t)
	env := newSSOTestEnv(t, idp)

	// No cookie at all
	w := env.do(t, http.MethodGet, "/auth/sso/callback?code=x&state=forged", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Cookie present but query state does not match it
	login := env.do(t, http.MethodGet, "/auth/sso/login", "", nil)
	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=x&state=forged", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	cb := httptest.NewRecorder()
	env.server.Router().ServeHTTP(cb, req)
	require.Equal(t, http.StatusBadRequest, cb.Code)
}

func TestSSOCallbackMissingCode(t *testing.T) {
	idp := newFakeIdP(t)
	env := newSSOTestEnv(t, idp)

	cb := ssoRoundTrip(t, env, "")
	require.Equal(t, http.StatusBadRequest, cb.Code)
}

func TestSSOCallbackExchangeRejected(t *testing.T) {
	idp := newFakeIdP(t)
	idp.tokenStatus = http.StatusBadRequest
	env := newSSOTestEnv(t, idp)

	cb := ssoRoundTrip(t, env, "bad-code")
	require.Equal(t, http.StatusBadRequest, cb.Code)
}

func TestSSOCallbackProviderDown(t *testing.T) {
	idp := newFakeIdP(t)
	env := newSSOTestEnv(t, idp)
	idp.server.Close()

	cb := ssoRoundTrip(t, env, "good-code")
	require.Equal(t, http.StatusServiceUnavailable, cb.Code)
}

func TestSSOCallbackUserinfoFailure(t *testing.T) {
	idp := newFakeIdP(t)
	idp.userinfoCode = http.StatusInternalServerError
	env := newSSOTestEnv(t, idp)

	cb := ssoRoundTrip(t, env, "good-code")
	require.Equal(t, http.StatusServiceUnavailable, cb.Code)
}

func TestSSOCallbackMissingEmailClaim(t *testing.T) {
	idp := newFakeIdP(t)
	idp.userinfo = map[string]any{"sub": "subject-1"}
	env := newSSOTestEnv(t, idp)

	cb := ssoRoundTrip(t, env, "good-code")
	require.Equal(t, http.StatusBadRequest, cb.Code)
}
