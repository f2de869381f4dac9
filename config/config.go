package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// BrokerConfig holds all configuration for the authentication broker.
// Tags use mapstructure for Viper unmarshalling and bind to environment variables.
type BrokerConfig struct {
	HTTPPort  string `mapstructure:"BROKER_HTTP_PORT"`
	BaseURL   string `mapstructure:"BROKER_BASE_URL"` // public base URL, used to build the callback URL
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// OAuth2 client registration with the identity provider.
	OAuthClientID     string `mapstructure:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `mapstructure:"OAUTH_CLIENT_SECRET"`
	OAuthScope        string `mapstructure:"OAUTH_SCOPE"`

	// Provider endpoints.
	ProviderAuthorizeURL  string `mapstructure:"PROVIDER_AUTHORIZE_URL"`
	ProviderTokenURL      string `mapstructure:"PROVIDER_TOKEN_URL"`
	ProviderIntrospectURL string `mapstructure:"PROVIDER_INTROSPECT_URL"`
	ProviderTimeoutSec    int    `mapstructure:"PROVIDER_TIMEOUT_SEC"`

	// Lifetimes for the in-memory flow stores.
	StateTTLMin     int `mapstructure:"STATE_TTL_MIN"`
	RedirectTTLHour int `mapstructure:"REDIRECT_TTL_HOUR"`
}

// CallbackURL returns the absolute URL the provider redirects back to.
func (c *BrokerConfig) CallbackURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/callback"
}

// WelcomeURL returns the default post-login landing location.
func (c *BrokerConfig) WelcomeURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/welcome"
}

// RelyingConfig holds all configuration for the sample relying service.
type RelyingConfig struct {
	HTTPPort      string `mapstructure:"RELYING_HTTP_PORT"`
	BaseURL       string `mapstructure:"RELYING_BASE_URL"`
	BrokerBaseURL string `mapstructure:"RELYING_BROKER_URL"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogPretty     bool   `mapstructure:"LOG_PRETTY"`
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/oauth2-broker/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

func readConfig(v *viper.Viper, out any) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return nil
}

// LoadBrokerConfig reads broker configuration from file, environment variables, and defaults.
func LoadBrokerConfig() (*BrokerConfig, error) {
	v := newViper()

	v.SetDefault("BROKER_HTTP_PORT", "6000")
	v.SetDefault("BROKER_BASE_URL", "http://lvh.me:6000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OAUTH_CLIENT_ID", "")
	v.SetDefault("OAUTH_CLIENT_SECRET", "")
	v.SetDefault("OAUTH_SCOPE", "read:user")
	v.SetDefault("PROVIDER_AUTHORIZE_URL", "https://github.com/login/oauth/authorize")
	v.SetDefault("PROVIDER_TOKEN_URL", "https://github.com/login/oauth/access_token")
	v.SetDefault("PROVIDER_INTROSPECT_URL", "")
	v.SetDefault("PROVIDER_TIMEOUT_SEC", 10)
	v.SetDefault("STATE_TTL_MIN", 15)
	v.SetDefault("REDIRECT_TTL_HOUR", 24)

	var cfg BrokerConfig
	if err := readConfig(v, &cfg); err != nil {
		return nil, err
	}

	if cfg.OAuthClientID == "" || cfg.OAuthClientSecret == "" {
		return nil, fmt.Errorf("OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET must be set")
	}

	return &cfg, nil
}

// LoadRelyingConfig reads relying-service configuration from file, environment variables, and defaults.
func LoadRelyingConfig() (*RelyingConfig, error) {
	v := newViper()

	v.SetDefault("RELYING_HTTP_PORT", "7000")
	v.SetDefault("RELYING_BASE_URL", "http://lvh.me:7000")
	v.SetDefault("RELYING_BROKER_URL", "http://lvh.me:6000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	var cfg RelyingConfig
	if err := readConfig(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
