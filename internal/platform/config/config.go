package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Session   SessionConfig   `mapstructure:"session"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Relay     RelayConfig     `mapstructure:"relay"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Domains   DomainsConfig   `mapstructure:"domains"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Global GlobalDBConfig `mapstructure:"global"`
	Tenant TenantDBConfig `mapstructure:"tenant"`
}

type GlobalDBConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type TenantDBConfig struct {
	BasePath                string `mapstructure:"base_path"`
	MaxConnectionsPerTenant int    `mapstructure:"max_connections_per_tenant"`
}

type SessionConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	CookieDomain    string        `mapstructure:"cookie_domain"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
}

// IdentityConfig points at the external identity service. The API key is
// only ever used server-side.
type IdentityConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	OrgID          string        `mapstructure:"org_id"`
	ApplicationID  string        `mapstructure:"application_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SuperadminSlug string        `mapstructure:"superadmin_slug"`
}

type RelayConfig struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type RateLimitConfig struct {
	RedeemPerMinute  int `mapstructure:"redeem_per_minute"`
	SessionPerMinute int `mapstructure:"session_per_minute"`
	MFAPerMinute     int `mapstructure:"mfa_per_minute"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type DomainsConfig struct {
	AppDomain     string `mapstructure:"app_domain"`
	SignInPath    string `mapstructure:"sign_in_path"`
	DashboardPath string `mapstructure:"dashboard_path"`
	ChallengePath string `mapstructure:"challenge_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Relay.TokenTTL == 0 {
		config.Relay.TokenTTL = 5 * time.Minute
	}
	if config.Identity.SuperadminSlug == "" {
		config.Identity.SuperadminSlug = "superadmin"
	}

	return &config, nil
}
