package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Session  SessionConfig  `yaml:"session"`
	SSO      SSOConfig      `yaml:"sso"`
	URLs     URLConfig      `yaml:"urls"`
	CORS     CORSConfig     `yaml:"cors"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Mode       string `yaml:"mode"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// JWTConfig contains bearer token configuration
type JWTConfig struct {
	Secret             string `yaml:"secret"`
	Algorithm          string `yaml:"algorithm"`
	ExpireMinutes      int    `yaml:"expire_minutes"`
	RememberExpireDays int    `yaml:"remember_expire_days"`
}

// SessionConfig contains the signing secret for short-lived state cookies
type SessionConfig struct {
	Secret string `yaml:"secret"`
}

// SSOConfig contains OIDC provider configuration
type SSOConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ProviderName     string `yaml:"provider_name"`
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	ConfigurationURL string `yaml:"configuration_url"`
	AuthorizeURL     string `yaml:"authorize_url"`
	TokenURL         string `yaml:"token_url"`
	UserinfoURL      string `yaml:"userinfo_url"`
	LogoutURL        string `yaml:"logout_url"`
}

// URLConfig contains the public base URLs of the deployment
type URLConfig struct {
	Frontend string `yaml:"frontend"`
	Backend  string `yaml:"backend"`
}

// CORSConfig contains allowed cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SMTPConfig contains outbound email configuration
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.Algorithm != "" && c.JWT.Algorithm != "HS256" {
		return fmt.Errorf("jwt.algorithm must be 'HS256'")
	}
	if c.JWT.ExpireMinutes <= 0 {
		return fmt.Errorf("jwt.expire_minutes must be positive")
	}
	if c.JWT.RememberExpireDays <= 0 {
		return fmt.Errorf("jwt.remember_expire_days must be positive")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}

	if c.URLs.Frontend == "" {
		return fmt.Errorf("urls.frontend is required")
	}
	if c.URLs.Backend == "" {
		return fmt.Errorf("urls.backend is required")
	}

	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be a valid port number")
	}

	return nil
}

// SSOEnabled reports whether the SSO flow is fully configured: the flag
// must be set, client credentials present, and either a discovery URL or
// the complete set of explicit endpoints given.
func (c *Config) SSOEnabled() bool {
	if !c.SSO.Enabled {
		return false
	}
	if c.SSO.ClientID == "" || c.SSO.ClientSecret == "" {
		return false
	}
	if c.SSO.ConfigurationURL != "" {
		return true
	}
	return c.SSO.AuthorizeURL != "" && c.SSO.TokenURL != "" && c.SSO.UserinfoURL != ""
}

// SMTPConfigured reports whether outbound email can be attempted
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.Username != "" && c.SMTP.Password != ""
}

// AccessTokenDuration returns the default bearer token validity
func (c *Config) AccessTokenDuration() time.Duration {
	return time.Duration(c.JWT.ExpireMinutes) * time.Minute
}

// RememberTokenDuration returns the extended "remember me" validity
func (c *Config) RememberTokenDuration() time.Duration {
	return time.Duration(c.JWT.RememberExpireDays) * 24 * time.Hour
}

// CallbackURL returns the OIDC redirect URI registered with the provider
func (c *Config) CallbackURL() string {
	return c.URLs.Backend + "/auth/sso/callback"
}
