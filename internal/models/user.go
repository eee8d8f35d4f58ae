package models

import "time"

// Auth method values stored on a user record. The tag reflects the most
// recent successful authentication path, not how the account was created.
const (
	AuthMethodLocal = "local"
	AuthMethodOIDC  = "oidc"
)

// User represents a user account
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  *string    `json:"-"` // Never expose password hash in JSON
	TOTPSecret    *string    `json:"-"` // Never expose TOTP secret in JSON
	MFAEnabled    bool       `json:"mfa_enabled"`
	LoginAttempts int        `json:"-"`
	LastAttempt   *time.Time `json:"-"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	OIDCProvider  *string    `json:"-"`
	OIDCSubject   *string    `json:"-"`
	AuthMethod    string     `json:"auth_method"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasPassword reports whether the account can authenticate with a local
// password. SSO-provisioned accounts may carry no hash at all.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
