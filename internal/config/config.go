package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("auth-gateway version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	OIDC       OIDCConfig       `mapstructure:"oidc"`
	Session    SessionConfig    `mapstructure:"session"`
	Downstream DownstreamConfig `mapstructure:"downstream"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Audit      AuditConfig      `mapstructure:"audit"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AppURL is the externally visible base URL, used for the OAuth
	// redirect URI and to decide whether cookies are marked Secure.
	AppURL string `mapstructure:"app_url"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

type OIDCConfig struct {
	Issuer       string `mapstructure:"issuer"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Scopes       string `mapstructure:"scopes"`
	// PostLogoutRedirect is passed to the issuer's end-session endpoint.
	PostLogoutRedirect string `mapstructure:"post_logout_redirect"`
}

type SessionConfig struct {
	CookieName    string        `mapstructure:"cookie_name"`
	Secret        string        `mapstructure:"secret"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

type DownstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// OverflowPolicy controls what happens when the audit queue is full.
type OverflowPolicy string

const (
	DropNewest OverflowPolicy = "drop_newest"
	Block      OverflowPolicy = "block"
)

type AuditConfig struct {
	BufferSize int            `mapstructure:"buffer_size"`
	Overflow   OverflowPolicy `mapstructure:"overflow"`
	PathPrefix string         `mapstructure:"path_prefix"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("config", "", "Path to the config file")
	pflag.String("storage.path", "", "Path to the SQLite database file")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("AUTH_GATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	setDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/auth-gateway")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Env-only deployments run without a config file.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.app_url", "http://localhost:3000")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("oidc.scopes", "openid profile email offline_access")
	viper.SetDefault("session.cookie_name", "sid")
	viper.SetDefault("session.ttl", 24*time.Hour)
	viper.SetDefault("session.sweep_interval", 10*time.Minute)
	viper.SetDefault("session.sweep_batch", 500)
	viper.SetDefault("downstream.timeout", 30*time.Second)
	viper.SetDefault("storage.path", "./gateway.db")
	viper.SetDefault("audit.buffer_size", 256)
	viper.SetDefault("audit.overflow", string(DropNewest))
	viper.SetDefault("audit.path_prefix", "/api/")
}

func (c *Config) validate() error {
	required := map[string]string{
		"oidc.issuer":         c.OIDC.Issuer,
		"oidc.client_id":      c.OIDC.ClientID,
		"oidc.client_secret":  c.OIDC.ClientSecret,
		"session.secret":      c.Session.Secret,
		"downstream.base_url": c.Downstream.BaseURL,
	}
	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s (set them in config.yaml or via AUTH_GATEWAY_* environment variables)", strings.Join(missing, ", "))
	}
	return nil
}

// SecureCookies reports whether the deployment serves over TLS.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.AppURL, "https")
}
