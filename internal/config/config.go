package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Resource is one addressable Document Intelligence instance. The API
// key is never stored here; it is resolved from the vault at run time.
type Resource struct {
	Name       string `mapstructure:"name"`
	Endpoint   string `mapstructure:"endpoint"`
	VaultURL   string `mapstructure:"vault_url"`
	SecretName string `mapstructure:"secret_name"`
}

// Validate checks the fields a resource needs before any call is made.
func (r Resource) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("resource has no name")
	}
	if !strings.HasPrefix(r.Endpoint, "https://") {
		return fmt.Errorf("resource %s: endpoint must be an https URL, got %q", r.Name, r.Endpoint)
	}
	if !strings.HasPrefix(r.VaultURL, "https://") {
		return fmt.Errorf("resource %s: vault_url must be an https URL, got %q", r.Name, r.VaultURL)
	}
	if r.SecretName == "" {
		return fmt.Errorf("resource %s: secret_name is required", r.Name)
	}
	return nil
}

// AzureConfig holds the AAD client-credential settings used for Key
// Vault access.
type AzureConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Config holds all configuration for modelmigrate.
type Config struct {
	Source          Resource    `mapstructure:"source"`
	Targets         []Resource  `mapstructure:"targets"`
	Azure           AzureConfig `mapstructure:"azure"`
	PollInterval    string      `mapstructure:"poll_interval"`
	PollMaxAttempts int         `mapstructure:"poll_max_attempts"`
	CacheDir        string      `mapstructure:"cache_dir"`
	CacheTTL        string      `mapstructure:"cache_ttl"`
	NoCache         bool        `mapstructure:"no_cache"`
	ReportDir       string      `mapstructure:"report_dir"`
	LogLevel        string      `mapstructure:"log_level"`
}

// Target returns the configured target with the given name.
func (c *Config) Target(name string) (Resource, error) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, nil
		}
	}
	return Resource{}, fmt.Errorf("unknown target: %s", name)
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("poll_interval", "5s")
	v.SetDefault("poll_max_attempts", 60)
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_ttl", "10m")
	v.SetDefault("no_cache", false)
	v.SetDefault("report_dir", "reports")
	v.SetDefault("log_level", "info")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/modelmigrate")
	}

	// Environment variables
	v.SetEnvPrefix("MODELMIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The AAD settings use the conventional Azure variable names so an
	// existing service-principal environment works unchanged.
	_ = v.BindEnv("azure.tenant_id", "AZURE_TENANT_ID")
	_ = v.BindEnv("azure.client_id", "AZURE_CLIENT_ID")
	_ = v.BindEnv("azure.client_secret", "AZURE_CLIENT_SECRET")
	_ = v.BindEnv("source.endpoint", "MODELMIGRATE_SOURCE_ENDPOINT")
	_ = v.BindEnv("source.vault_url", "MODELMIGRATE_SOURCE_VAULT_URL")
	_ = v.BindEnv("source.secret_name", "MODELMIGRATE_SOURCE_SECRET_NAME")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Source.Name == "" {
		cfg.Source.Name = "source"
	}

	names := make(map[string]bool, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if names[t.Name] {
			return nil, fmt.Errorf("duplicate target name: %s", t.Name)
		}
		names[t.Name] = true
	}

	return &cfg, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/modelmigrate-cache"
	}
	return filepath.Join(home, ".cache", "modelmigrate")
}
