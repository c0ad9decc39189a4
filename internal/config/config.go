package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DateLayout is the layout of all calendar dates exchanged with the member store.
const DateLayout = "2006-01-02"

// Config holds all configuration of the contacts sync tool and the member store.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Remote     RemoteConfig     `yaml:"remote"`
	Membership MembershipConfig `yaml:"membership"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
}

// SourceConfig names the columns of the address book export.
type SourceConfig struct {
	Path                 string `yaml:"path"`
	EmailPrimaryColumn   string `yaml:"email_primary_column"`
	EmailSecondaryColumn string `yaml:"email_secondary_column"`
	FirstNameColumn      string `yaml:"first_name_column"`
	LastNameColumn       string `yaml:"last_name_column"`
	PhoneColumn          string `yaml:"phone_column"`
}

// RemoteConfig describes the member store endpoint the contacts are uploaded to.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	MembersPath    string `yaml:"members_path"`
	Prefer         string `yaml:"prefer"`
	OnConflict     string `yaml:"on_conflict"`
	TimeoutSeconds int    `yaml:"timeout_seconds"` // 0 means no timeout
}

// MembershipConfig holds the fixed values every uploaded member receives.
type MembershipConfig struct {
	NumberPrefix    string `yaml:"number_prefix"`
	NumberYear      int    `yaml:"number_year"` // 0 means the year of the issue date
	Type            string `yaml:"type"`
	ExpiryDate      string `yaml:"expiry_date"`
	DefaultPassword string `yaml:"default_password"`
}

// StoreConfig holds the member store's database and listener settings.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "postgres"
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	APIKey   string `yaml:"api_key"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Timeout returns the HTTP client timeout for uploads.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML configuration file and applies defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads a .env file if present, reads the configuration file and finally lets
// environment variables override individual settings.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MEMBERS_API_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("MEMBERS_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
		if cfg.Store.APIKey == "" {
			cfg.Store.APIKey = v
		}
	}
	if v := os.Getenv("DBDRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("DBHOST"); v != "" {
		cfg.Store.Host = v
	}
	if v := os.Getenv("DBUSER"); v != "" {
		cfg.Store.User = v
	}
	if v := os.Getenv("DBPWD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("DBNAME"); v != "" {
		cfg.Store.Name = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("could not parse PORT env variable: %w", err)
		}
		cfg.Store.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.EmailPrimaryColumn == "" {
		c.Source.EmailPrimaryColumn = "Email 1"
	}
	if c.Source.EmailSecondaryColumn == "" {
		c.Source.EmailSecondaryColumn = "Email 2"
	}
	if c.Source.FirstNameColumn == "" {
		c.Source.FirstNameColumn = "First Name"
	}
	if c.Source.LastNameColumn == "" {
		c.Source.LastNameColumn = "Last Name"
	}
	if c.Source.PhoneColumn == "" {
		c.Source.PhoneColumn = "Phone 1"
	}
	if c.Remote.MembersPath == "" {
		c.Remote.MembersPath = "/rest/v1/members"
	}
	if c.Remote.Prefer == "" {
		c.Remote.Prefer = "resolution=merge-duplicates"
	}
	if c.Membership.NumberPrefix == "" {
		c.Membership.NumberPrefix = "CUC"
	}
	if c.Membership.Type == "" {
		c.Membership.Type = "Full Membership"
	}
	if c.Membership.ExpiryDate == "" {
		c.Membership.ExpiryDate = "2026-12-31"
	}
	if c.Membership.DefaultPassword == "" {
		c.Membership.DefaultPassword = "password123"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "mysql"
	}
	if c.Store.Host == "" {
		c.Store.Host = "localhost"
	}
	if c.Store.Name == "" {
		c.Store.Name = "members"
	}
	if c.Store.Port == 0 {
		c.Store.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.RedactPII == nil {
		redact := true
		c.Log.RedactPII = &redact
	}
}

// Validate checks the settings an upload run depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url is required"))
	} else if !strings.HasPrefix(c.Remote.BaseURL, "http://") && !strings.HasPrefix(c.Remote.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("remote.base_url %q must be an http(s) URL", c.Remote.BaseURL))
	}
	if c.Remote.APIKey == "" {
		errs = append(errs, errors.New("remote.api_key is required"))
	}
	if c.Remote.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("remote.timeout_seconds must not be negative"))
	}
	if _, err := time.Parse(DateLayout, c.Membership.ExpiryDate); err != nil {
		errs = append(errs, fmt.Errorf("membership.expiry_date %q is not a YYYY-MM-DD date", c.Membership.ExpiryDate))
	}
	if c.Membership.NumberYear < 0 || c.Membership.NumberYear > 9999 {
		errs = append(errs, fmt.Errorf("membership.number_year %d is out of range", c.Membership.NumberYear))
	}
	if c.Store.Driver != "mysql" && c.Store.Driver != "postgres" {
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}
	return errors.Join(errs...)
}
