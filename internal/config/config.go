package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	Mode            string        `yaml:"mode"` // gin mode: debug|release|test
}

type DatabaseConfig struct {
	DSN             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	AppURL       string `yaml:"app_url"`
}

// Enabled is false when no SMTP host is configured; mail is then only logged.
func (c EmailConfig) Enabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type SelectorConfig struct {
	Item          string `yaml:"item"`
	CaseNumber    string `yaml:"case_number"`
	ParcelID      string `yaml:"parcel_id"`
	Address       string `yaml:"address"`
	CityStateZip  string `yaml:"city_state_zip"`
	OpeningBid    string `yaml:"opening_bid"`
	AssessedValue string `yaml:"assessed_value"`
	AuctionDate   string `yaml:"auction_date"`
	PropertyType  string `yaml:"property_type"`
	DetailLink    string `yaml:"detail_link"`
	NextPage      string `yaml:"next_page"`
}

type ScraperSource struct {
	Name       string         `yaml:"name"`
	County     string         `yaml:"county"`
	State      string         `yaml:"state"`
	BaseURL    string         `yaml:"base_url"`
	ListPath   string         `yaml:"list_path"`
	DateLayout string         `yaml:"date_layout"`
	MaxPages   int            `yaml:"max_pages"`
	Selectors  SelectorConfig `yaml:"selectors"`
	Enabled    *bool          `yaml:"enabled"`
}

func (s ScraperSource) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type ScraperConfig struct {
	UserAgent      string          `yaml:"user_agent"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	PageDelay      time.Duration   `yaml:"page_delay"`
	MaxPages       int             `yaml:"max_pages"`
	Sources        []ScraperSource `yaml:"sources"`
}

type EnrichmentConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	GeocoderURL    string        `yaml:"geocoder_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MinComparables int           `yaml:"min_comparables"`
}

type SchedulerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Timezone         string        `yaml:"timezone"`
	ScrapeSpec       string        `yaml:"scrape"`
	EnrichSpec       string        `yaml:"enrich"`
	FollowUpSpec     string        `yaml:"follow_up_reminders"`
	SubscriptionSpec string        `yaml:"subscription_sweep"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"include_caller"`
}

type PDFConfig struct {
	FontPath string `yaml:"font_path"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Email      EmailConfig      `yaml:"email"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
	PDF        PDFConfig        `yaml:"pdf"`
}

// Load reads the YAML file at path, overlays environment variables and applies defaults.
// A missing file is tolerated only for the default path.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := &Config{}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// env-only configuration
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = 15 * time.Minute
	}
	if cfg.JWT.RefreshTTL == 0 {
		cfg.JWT.RefreshTTL = 30 * 24 * time.Hour
	}

	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.FromEmail == "" {
		cfg.Email.FromEmail = "no-reply@reicrm.local"
	}

	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if cfg.Scraper.RequestTimeout == 0 {
		cfg.Scraper.RequestTimeout = 30 * time.Second
	}
	if cfg.Scraper.MaxPages == 0 {
		cfg.Scraper.MaxPages = 5
	}

	if cfg.Enrichment.BatchSize == 0 {
		cfg.Enrichment.BatchSize = 100
	}
	if cfg.Enrichment.StaleAfter == 0 {
		cfg.Enrichment.StaleAfter = 7 * 24 * time.Hour
	}
	if cfg.Enrichment.GeocoderURL == "" {
		cfg.Enrichment.GeocoderURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	}
	if cfg.Enrichment.RequestTimeout == 0 {
		cfg.Enrichment.RequestTimeout = 15 * time.Second
	}
	if cfg.Enrichment.MinComparables == 0 {
		cfg.Enrichment.MinComparables = 3
	}

	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
	if cfg.Scheduler.ScrapeSpec == "" {
		cfg.Scheduler.ScrapeSpec = "0 2 * * *"
	}
	if cfg.Scheduler.EnrichSpec == "" {
		cfg.Scheduler.EnrichSpec = "0 4 * * *"
	}
	if cfg.Scheduler.FollowUpSpec == "" {
		cfg.Scheduler.FollowUpSpec = "0 8 * * *"
	}
	if cfg.Scheduler.SubscriptionSpec == "" {
		cfg.Scheduler.SubscriptionSpec = "0 0 * * *"
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 2 * time.Hour
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "reicrm"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt secret is required (jwt.secret or JWT_SECRET)")
	}
	for i, s := range c.Scraper.Sources {
		if s.Name == "" || s.BaseURL == "" {
			return fmt.Errorf("scraper source #%d: name and base_url are required", i)
		}
		if s.Selectors.Item == "" || s.Selectors.Address == "" {
			return fmt.Errorf("scraper source %q: item and address selectors are required", s.Name)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setString(&cfg.Server.Mode, "GIN_MODE")
	if err := setInt(&cfg.Server.Port, "SERVER_PORT"); err != nil {
		return err
	}
	if v := os.Getenv("SERVER_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitCSV(v)
	}

	setString(&cfg.Database.DSN, "DATABASE_URL")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	if err := setDuration(&cfg.JWT.AccessTTL, "JWT_ACCESS_TTL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.JWT.RefreshTTL, "JWT_REFRESH_TTL"); err != nil {
		return err
	}

	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	if err := setInt(&cfg.Email.SMTPPort, "SMTP_PORT"); err != nil {
		return err
	}
	setString(&cfg.Email.SMTPUser, "SMTP_USER")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.FromEmail, "EMAIL_FROM")
	setString(&cfg.Email.AppURL, "APP_URL")

	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
		cfg.Telegram.AdminChatID = id
	}

	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULER_ENABLED: %w", err)
		}
		cfg.Scheduler.Enabled = b
	}

	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitCSV(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
