package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Magento   MagentoConfig
	Report    ReportConfig
	JobStore  JobStoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// MagentoConfig holds the upstream commerce platform settings
type MagentoConfig struct {
	BaseURL              string
	TimeoutSeconds       int
	LookupTimeoutSeconds int // per-SKU product lookup deadline
	PageSize             int // searchCriteria page size for order queries
}

// ReportConfig holds report-generation behavior switches
type ReportConfig struct {
	ClassificationMode string // lookup-per-sku-cached, fixed-default
	DefaultHSNCode     string // code used in fixed-default mode
	B2CGranularity     string // line-item, order
	DateBoundary       string // utc, local
	Timezone           string // IANA zone for local boundary mode
	DocumentSort       string // numeric, lexicographic
	FetchItemsPerOrder bool   // hydrate items via per-order fetches
}

// JobStoreConfig holds background job persistence settings
type JobStoreConfig struct {
	Backend   string        // memory, redis, database
	Retention time.Duration // how long finished jobs stay pollable
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	RequestTimeout   time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with GST_ prefix (e.g., GST_MAGENTO_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("GST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Magento: MagentoConfig{
			BaseURL:              v.GetString("magento.base_url"),
			TimeoutSeconds:       v.GetInt("magento.timeout_seconds"),
			LookupTimeoutSeconds: v.GetInt("magento.lookup_timeout_seconds"),
			PageSize:             v.GetInt("magento.page_size"),
		},
		Report: ReportConfig{
			ClassificationMode: v.GetString("report.classification_mode"),
			DefaultHSNCode:     v.GetString("report.default_hsn_code"),
			B2CGranularity:     v.GetString("report.b2c_granularity"),
			DateBoundary:       v.GetString("report.date_boundary"),
			Timezone:           v.GetString("report.timezone"),
			DocumentSort:       v.GetString("report.document_sort"),
			FetchItemsPerOrder: v.GetBool("report.fetch_items_per_order"),
		},
		JobStore: JobStoreConfig{
			Backend:   v.GetString("jobstore.backend"),
			Retention: v.GetDuration("jobstore.retention"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			RequestTimeout:   v.GetDuration("http.request_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg, v)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.App.Name == "" {
		cfg.App.Name = "gst-filing-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Magento.TimeoutSeconds == 0 {
		cfg.Magento.TimeoutSeconds = 30
	}
	if cfg.Magento.LookupTimeoutSeconds == 0 {
		cfg.Magento.LookupTimeoutSeconds = 5
	}
	if cfg.Magento.PageSize == 0 {
		cfg.Magento.PageSize = 100
	}
	if cfg.Report.ClassificationMode == "" {
		cfg.Report.ClassificationMode = "fixed-default"
	}
	if cfg.Report.DefaultHSNCode == "" {
		cfg.Report.DefaultHSNCode = "N/A"
	}
	if cfg.Report.B2CGranularity == "" {
		cfg.Report.B2CGranularity = "line-item"
	}
	if cfg.Report.DateBoundary == "" {
		cfg.Report.DateBoundary = "utc"
	}
	if cfg.Report.DocumentSort == "" {
		cfg.Report.DocumentSort = "numeric"
	}
	if !v.IsSet("report.fetch_items_per_order") {
		cfg.Report.FetchItemsPerOrder = true
	}
	if cfg.JobStore.Backend == "" {
		cfg.JobStore.Backend = "memory"
	}
	if cfg.JobStore.Retention == 0 {
		cfg.JobStore.Retention = time.Hour
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "gstfiling"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 120 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "gst-filing-backend"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Report.ClassificationMode {
	case "lookup-per-sku-cached", "fixed-default":
	default:
		return fmt.Errorf("report.classification_mode must be 'lookup-per-sku-cached' or 'fixed-default', got %q", c.Report.ClassificationMode)
	}
	switch c.Report.B2CGranularity {
	case "line-item", "order":
	default:
		return fmt.Errorf("report.b2c_granularity must be 'line-item' or 'order', got %q", c.Report.B2CGranularity)
	}
	switch c.Report.DateBoundary {
	case "utc", "local":
	default:
		return fmt.Errorf("report.date_boundary must be 'utc' or 'local', got %q", c.Report.DateBoundary)
	}
	switch c.Report.DocumentSort {
	case "numeric", "lexicographic":
	default:
		return fmt.Errorf("report.document_sort must be 'numeric' or 'lexicographic', got %q", c.Report.DocumentSort)
	}
	switch c.JobStore.Backend {
	case "memory", "redis", "database":
	default:
		return fmt.Errorf("jobstore.backend must be 'memory', 'redis' or 'database', got %q", c.JobStore.Backend)
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Magento.BaseURL == "" {
			return fmt.Errorf("magento.base_url is required in production")
		}
		if !strings.HasPrefix(c.Magento.BaseURL, "https://") {
			return fmt.Errorf("magento.base_url must use https in production")
		}
		if c.JobStore.Backend == "database" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
