package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/modercon/auth-front/internal/log"
)

const currentVersion = "v1"

const defaultBackendTimeout = 15 * time.Second

// Load reads and validates a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Version != currentVersion {
		return nil, fmt.Errorf("unsupported config version %q (expected %q)", cfg.Version, currentVersion)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = defaultBackendTimeout
	}
	if cfg.Session.ModeratorPath == "" {
		cfg.Session.ModeratorPath = "/moderation"
	}
	if cfg.Session.CabinetPath == "" {
		cfg.Session.CabinetPath = "/cabinet"
	}
	if cfg.Session.LoginPath == "" {
		cfg.Session.LoginPath = "/login"
	}
	if cfg.Provider.Scope == "" {
		cfg.Provider.Scope = "login:email login:info mail:imap_full"
	}
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Provider.Name == "" {
		errs = append(errs, "provider.name is required")
	}
	if cfg.Provider.AuthURL == "" {
		errs = append(errs, "provider.authUrl is required")
	} else if err := validateURL(cfg.Provider.AuthURL); err != nil {
		errs = append(errs, fmt.Sprintf("provider.authUrl: %v", err))
	}
	if cfg.Provider.TokenURL == "" {
		errs = append(errs, "provider.tokenUrl is required")
	} else if err := validateURL(cfg.Provider.TokenURL); err != nil {
		errs = append(errs, fmt.Sprintf("provider.tokenUrl: %v", err))
	}
	if cfg.Provider.IdentityURL == "" {
		errs = append(errs, "provider.identityUrl is required")
	} else if err := validateURL(cfg.Provider.IdentityURL); err != nil {
		errs = append(errs, fmt.Sprintf("provider.identityUrl: %v", err))
	}
	if cfg.Provider.MailAPIURL != "" {
		if err := validateURL(cfg.Provider.MailAPIURL); err != nil {
			errs = append(errs, fmt.Sprintf("provider.mailApiUrl: %v", err))
		}
	}
	if cfg.Provider.RedirectURI != "" {
		if err := validateURL(cfg.Provider.RedirectURI); err != nil {
			errs = append(errs, fmt.Sprintf("provider.redirectUri: %v", err))
		}
	}
	if cfg.Backend.BaseURL == "" {
		errs = append(errs, "backend.baseURL is required")
	} else if err := validateURL(cfg.Backend.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("backend.baseURL: %v", err))
	}

	// Missing credentials are not fatal: login endpoints answer 500 until the
	// operator supplies them, but everything else keeps serving.
	if cfg.Provider.ClientID == "" || cfg.Provider.ClientSecret == "" {
		log.LogWarnWithFields("config", "provider client credentials not configured, login will be unavailable", map[string]any{
			"provider": cfg.Provider.Name,
		})
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
