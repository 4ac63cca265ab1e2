package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Config is the full auth-front configuration
type Config struct {
	Version  string         `json:"version"`
	Server   ServerConfig   `json:"server"`
	Provider ProviderConfig `json:"provider"`
	Backend  BackendConfig  `json:"backend"`
	Session  SessionConfig  `json:"session"`
}

// ServerConfig configures the broker's own HTTP listener
type ServerConfig struct {
	Addr    string `json:"addr"`
	BaseURL string `json:"baseURL"`
}

// ProviderConfig describes the third-party identity/mail provider the broker
// runs the authorization-code flow against. Name doubles as the prefix of all
// provider cookie names.
type ProviderConfig struct {
	Name        string `json:"name"`
	AuthURL     string `json:"authUrl"`
	TokenURL    string `json:"tokenUrl"`
	IdentityURL string `json:"identityUrl"`
	MailAPIURL  string `json:"mailApiUrl"`
	Scope       string `json:"scope"`
	RedirectURI string `json:"redirectUri"`

	ClientIDRaw     json.RawMessage `json:"clientId,omitempty"`
	ClientSecretRaw json.RawMessage `json:"clientSecret,omitempty"`

	// Computed fields
	ClientID     string `json:"-"`
	ClientSecret Secret `json:"-"`
}

// BackendConfig points at the console backend that owns users and mints the
// application session token
type BackendConfig struct {
	BaseURL string        `json:"baseURL"`
	Timeout time.Duration `json:"-"`

	TimeoutRaw string `json:"timeout,omitempty"`
}

// SessionConfig controls landing routes and the moderator account
type SessionConfig struct {
	MasterEmail   string `json:"masterEmail"`
	ModeratorPath string `json:"moderatorPath"`
	CabinetPath   string `json:"cabinetPath"`
	LoginPath     string `json:"loginPath"`
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig so client
// credentials can be supplied as {"$env": "VAR"} references
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider ProviderConfig
	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ProviderConfig(raw)

	if p.ClientIDRaw != nil {
		parsed, err := ParseConfigValue(p.ClientIDRaw)
		if err != nil {
			return fmt.Errorf("parsing clientId: %w", err)
		}
		p.ClientID = parsed
	}

	if p.ClientSecretRaw != nil {
		parsed, err := ParseConfigValue(p.ClientSecretRaw)
		if err != nil {
			return fmt.Errorf("parsing clientSecret: %w", err)
		}
		p.ClientSecret = Secret(parsed)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for BackendConfig to parse the
// timeout duration
func (b *BackendConfig) UnmarshalJSON(data []byte) error {
	type rawBackend BackendConfig
	var raw rawBackend
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = BackendConfig(raw)

	if b.TimeoutRaw != "" {
		timeout, err := time.ParseDuration(b.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		b.Timeout = timeout
	}

	return nil
}

// ParseConfigValue resolves a config value that is either a plain string or an
// {"$env": "VAR_NAME"} reference
func ParseConfigValue(raw json.RawMessage) (string, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}
