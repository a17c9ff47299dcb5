// Package config loads the portal configuration from an optional YAML file
// and environment variables. Environment variables always win.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port           int      `yaml:"port"`
	PublicURL      string   `yaml:"public_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Schema   string `yaml:"schema"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	AdminRole string `yaml:"admin_role"`
}

// VendorConfig holds the endpoint and credentials for one validation vendor.
type VendorConfig struct {
	BaseURL    string `yaml:"base_url"`
	PartnerKey string `yaml:"partner_key"`
	WebhookKey string `yaml:"webhook_key"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	SuccessURL    string `yaml:"success_url"`
	CancelURL     string `yaml:"cancel_url"`
}

// CardGatewayConfig configures an NMI-compatible gateway (NMI, Merchantic).
type CardGatewayConfig struct {
	Endpoint    string `yaml:"endpoint"`
	SecurityKey string `yaml:"security_key"`
}

type PricingConfig struct {
	CentsPerThousand int64  `yaml:"cents_per_thousand"`
	MinCredits       int    `yaml:"min_credits"`
	Currency         string `yaml:"currency"`
}

type PollingConfig struct {
	Attempts          int           `yaml:"attempts"`
	Interval          time.Duration `yaml:"interval"`
	ReconcileSchedule string        `yaml:"reconcile_schedule"`
	ReconcileAfter    time.Duration `yaml:"reconcile_after"`
}

type ArchiveConfig struct {
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	Endpoint   string        `yaml:"endpoint"`
	Prefix     string        `yaml:"prefix"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

type Config struct {
	Server       ServerConfig      `yaml:"server"`
	Database     DatabaseConfig    `yaml:"database"`
	Auth         AuthConfig        `yaml:"auth"`
	Deeep        VendorConfig      `yaml:"deeep"`
	InstantEmail VendorConfig      `yaml:"instantemail"`
	Stripe       StripeConfig      `yaml:"stripe"`
	NMI          CardGatewayConfig `yaml:"nmi"`
	Merchantic   CardGatewayConfig `yaml:"merchantic"`
	Pricing      PricingConfig     `yaml:"pricing"`
	Polling      PollingConfig     `yaml:"polling"`
	Archive      ArchiveConfig     `yaml:"archive"`
}

// Load reads path (when it exists), applies defaults and then environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 1337
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:1337"
	}
	if c.Auth.AdminRole == "" {
		c.Auth.AdminRole = "admin"
	}
	if c.Pricing.CentsPerThousand == 0 {
		c.Pricing.CentsPerThousand = 300
	}
	if c.Pricing.MinCredits == 0 {
		c.Pricing.MinCredits = 1000
	}
	if c.Pricing.Currency == "" {
		c.Pricing.Currency = "usd"
	}
	if c.Polling.Attempts == 0 {
		c.Polling.Attempts = 10
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = 3 * time.Second
	}
	if c.Polling.ReconcileSchedule == "" {
		c.Polling.ReconcileSchedule = "@every 1m"
	}
	if c.Polling.ReconcileAfter == 0 {
		c.Polling.ReconcileAfter = 2 * time.Minute
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "results/"
	}
	if c.Archive.PresignTTL == 0 {
		c.Archive.PresignTTL = 15 * time.Minute
	}
}

func (c *Config) applyEnv() error {
	setString(&c.Server.PublicURL, "PORTAL_PUBLIC_URL")
	if v, ok := lookup("PORTAL_PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORTAL_PORT has invalid value %q: %w", v, err)
		}
		c.Server.Port = p
	}
	if v, ok := lookup("PORTAL_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Host, "DB_HOSTNAME")
	setString(&c.Database.Username, "DB_USERNAME")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_DBNAME")
	setString(&c.Database.Schema, "DB_SCHEMA")

	setString(&c.Auth.JWTSecret, "SUPABASE_JWT_SECRET")
	setString(&c.Auth.AdminRole, "PORTAL_ADMIN_ROLE")

	setString(&c.Deeep.BaseURL, "DEEEP_BASE_URL")
	setString(&c.Deeep.PartnerKey, "DEEEP_PARTNER_KEY")
	setString(&c.Deeep.WebhookKey, "DEEEP_WEBHOOK_KEY")
	setString(&c.InstantEmail.BaseURL, "INSTANTEMAIL_BASE_URL")
	setString(&c.InstantEmail.PartnerKey, "INSTANTEMAIL_PARTNER_KEY")
	setString(&c.InstantEmail.WebhookKey, "INSTANTEMAIL_WEBHOOK_KEY")

	setString(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&c.Stripe.SuccessURL, "STRIPE_SUCCESS_URL")
	setString(&c.Stripe.CancelURL, "STRIPE_CANCEL_URL")
	setString(&c.NMI.Endpoint, "NMI_ENDPOINT")
	setString(&c.NMI.SecurityKey, "NMI_SECURITY_KEY")
	setString(&c.Merchantic.Endpoint, "MERCHANTIC_ENDPOINT")
	setString(&c.Merchantic.SecurityKey, "MERCHANTIC_SECURITY_KEY")

	if v, ok := lookup("PRICING_CENTS_PER_THOUSAND"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PRICING_CENTS_PER_THOUSAND has invalid value %q: %w", v, err)
		}
		c.Pricing.CentsPerThousand = n
	}
	if v, ok := lookup("PRICING_MIN_CREDITS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRICING_MIN_CREDITS has invalid value %q: %w", v, err)
		}
		c.Pricing.MinCredits = n
	}
	setString(&c.Pricing.Currency, "PRICING_CURRENCY")
	if err := setDuration(&c.Polling.Interval, "POLL_INTERVAL"); err != nil {
		return err
	}
	if v, ok := lookup("POLL_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("POLL_ATTEMPTS has invalid value %q: %w", v, err)
		}
		c.Polling.Attempts = n
	}
	setString(&c.Polling.ReconcileSchedule, "RECONCILE_SCHEDULE")
	if err := setDuration(&c.Polling.ReconcileAfter, "RECONCILE_AFTER"); err != nil {
		return err
	}

	setString(&c.Archive.Bucket, "RESULTS_BUCKET")
	setString(&c.Archive.Region, "RESULTS_REGION")
	setString(&c.Archive.Endpoint, "RESULTS_ENDPOINT")
	setString(&c.Archive.Prefix, "RESULTS_PREFIX")
	return setDuration(&c.Archive.PresignTTL, "RESULTS_PRESIGN_TTL")
}

// Validate reports missing settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Username == "" || c.Database.Name == "") {
		errs = append(errs, errors.New("missing DB settings; need DATABASE_URL or DB_HOSTNAME, DB_USERNAME, DB_DBNAME"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("missing SUPABASE_JWT_SECRET"))
	}
	if c.Deeep.BaseURL != "" && c.Deeep.WebhookKey == "" {
		errs = append(errs, errors.New("missing DEEEP_WEBHOOK_KEY; deeep callbacks would be unauthenticated"))
	}
	if c.InstantEmail.BaseURL != "" && c.InstantEmail.WebhookKey == "" {
		errs = append(errs, errors.New("missing INSTANTEMAIL_WEBHOOK_KEY; instantemail callbacks would be unauthenticated"))
	}
	return errors.Join(errs...)
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	host := c.Database.Host
	if !strings.Contains(host, ":") {
		host += ":5432"
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   host,
		Path:   c.Database.Name,
	}
	u.User = url.UserPassword(c.Database.Username, c.Database.Password)

	q := u.Query()
	if strings.TrimSpace(c.Database.Schema) != "" {
		q.Set("search_path", c.Database.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
