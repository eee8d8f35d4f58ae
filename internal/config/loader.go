package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment variable overrides
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)

	// Validate again after env overrides
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8000",
		},
		JWT: JWTConfig{
			Algorithm:          "HS256",
			ExpireMinutes:      30,
			RememberExpireDays: 30,
		},
		SSO: SSOConfig{
			ProviderName: "Authentik",
		},
		SMTP: SMTPConfig{
			Port:   587,
			UseTLS: true,
		},
	}
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "true", "yes", "on":
				*dst = true
			default:
				*dst = false
			}
		}
	}

	setString("FARMWITH_LISTEN_ADDR", &cfg.Server.ListenAddr)
	setString("DATABASE_URL", &cfg.Database.Path)
	setString("JWT_SECRET_KEY", &cfg.JWT.Secret)
	setInt("ACCESS_TOKEN_EXPIRE_MINUTES", &cfg.JWT.ExpireMinutes)
	setInt("REMEMBER_ME_EXPIRE_DAYS", &cfg.JWT.RememberExpireDays)
	setString("SESSION_SECRET_KEY", &cfg.Session.Secret)

	setBool("ENABLE_SSO", &cfg.SSO.Enabled)
	setString("OIDC_PROVIDER_NAME", &cfg.SSO.ProviderName)
	setString("OIDC_CLIENT_ID", &cfg.SSO.ClientID)
	setString("OIDC_CLIENT_SECRET", &cfg.SSO.ClientSecret)
	setString("OIDC_CONFIGURATION_URL", &cfg.SSO.ConfigurationURL)
	setString("OIDC_AUTHORIZE_URL", &cfg.SSO.AuthorizeURL)
	setString("OIDC_TOKEN_URL", &cfg.SSO.TokenURL)
	setString("OIDC_USERINFO_URL", &cfg.SSO.UserinfoURL)
	setString("OIDC_LOGOUT_URL", &cfg.SSO.LogoutURL)

	setString("FRONTEND_URL", &cfg.URLs.Frontend)
	setString("BACKEND_URL", &cfg.URLs.Backend)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}

	setString("SMTP_HOST", &cfg.SMTP.Host)
	setInt("SMTP_PORT", &cfg.SMTP.Port)
	setString("SMTP_USERNAME", &cfg.SMTP.Username)
	setString("SMTP_PASSWORD", &cfg.SMTP.Password)
	setString("SMTP_FROM", &cfg.SMTP.From)
	setBool("SMTP_USE_TLS", &cfg.SMTP.UseTLS)
}
