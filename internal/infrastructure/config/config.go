package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Log           LogConfig
	HTTP          HTTPConfig
	HTTPClient    HTTPClientConfig
	Sync          SyncConfig
	Webhook       WebhookConfig
	Platforms     PlatformsConfig
	Tracking      TrackingConfig
	Trending      TrendingConfig
	Notifications NotificationsConfig
	Scheduler     SchedulerConfig
	Telemetry     TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	BaseURL string // Public origin used to build tracking and callback URLs
}

// IsProduction reports whether the app runs with production guards
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds settings for service-to-service bearer tokens
type JWTConfig struct {
	Secret          string
	Issuer          string
	TokenExpiration time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// HTTPClientConfig tunes the outbound resilient client
type HTTPClientConfig struct {
	Timeout     time.Duration // Per attempt
	MaxAttempts int           // Retries after the initial attempt
	BaseDelay   time.Duration
	MaxDelay    time.Duration // Cap for a single backoff wait
	MaxElapsed  time.Duration // Cap for the sum of all backoff waits
	// Adapter-level retry layered over the client
	AdapterMaxAttempts int
	AdapterBaseDelay   time.Duration
	AdapterMaxDelay    time.Duration
}

// SyncConfig holds sync orchestration settings
type SyncConfig struct {
	Cooldown           time.Duration
	OrderWorkers       int
	PageSize           int
	MaxPages           int
	MaxSlugAttempts    int
	SyncOrdersDefault  bool
	TokenRefreshSkew   time.Duration
	StoreURLPathFormat string // e.g. "%s/p/%s" applied to (store url, external id)
}

// WebhookConfig holds webhook ingestion settings
type WebhookConfig struct {
	AllowUnsigned bool // Never honored when App.Env is production
	MaxBodySize   int64
}

// PlatformConfig holds settings for one e-commerce platform
type PlatformConfig struct {
	Enabled                bool
	APIBaseURL             string
	TokenURL               string
	ClientID               string
	ClientSecret           string
	WebhookSecret          string
	WebhookSignatureHeader string
	DeliveryIDHeader       string
	SignatureMode          string // hmac-sha256, hmac-sha256-base64, token
	PageSize               int
}

// PlatformsConfig holds one section per supported platform
type PlatformsConfig struct {
	Salla PlatformConfig
	Zid   PlatformConfig
}

// TrackingConfig holds click attribution and event filter settings
type TrackingConfig struct {
	ClickTTL             time.Duration
	UTMSource            string
	UTMMedium            string
	UTMCampaign          string
	AllowedReferrerPaths []string // Path prefixes of internal pages that may emit events
	BotUserAgents        []string // Lowercase substrings
	PerIPLimit           int
	PerIPProductLimit    int
	RateLimitWindow      time.Duration
	IPHashKey            string // Keys the BLAKE2b hash of client IPs, at most 64 bytes
}

// TrendingConfig holds trending score policy
type TrendingConfig struct {
	ViewWeight  float64
	SaveWeight  float64
	ClickWeight float64
	OrderWeight float64
	Window      time.Duration
	HalfLife    time.Duration
}

// NotificationsConfig holds outbound domain event delivery settings
type NotificationsConfig struct {
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	Enabled           bool
	AutoSyncInterval  time.Duration // How often merchants with auto sync enabled are queued
	TrendingInterval  time.Duration // 0 disables the periodic recompute
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	QueueSize         int
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	Enabled           bool    // Tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	ProfilingEnabled  bool
	ProfilingServer   string
}

// Load loads configuration from .env, TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SOUQ_ prefix (e.g., SOUQ_DATABASE_PASSWORD)
// 2. .env file in the working directory (does not override the real environment)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/souq")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SOUQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			BaseURL: v.GetString("app.base_url"),
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
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("jwt.secret"),
			Issuer:          v.GetString("jwt.issuer"),
			TokenExpiration: v.GetDuration("jwt.token_expiration"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		HTTPClient: HTTPClientConfig{
			Timeout:            v.GetDuration("http_client.timeout"),
			MaxAttempts:        v.GetInt("http_client.max_attempts"),
			BaseDelay:          v.GetDuration("http_client.base_delay"),
			MaxDelay:           v.GetDuration("http_client.max_delay"),
			MaxElapsed:         v.GetDuration("http_client.max_elapsed"),
			AdapterMaxAttempts: v.GetInt("http_client.adapter_max_attempts"),
			AdapterBaseDelay:   v.GetDuration("http_client.adapter_base_delay"),
			AdapterMaxDelay:    v.GetDuration("http_client.adapter_max_delay"),
		},
		Sync: SyncConfig{
			Cooldown:           v.GetDuration("sync.cooldown"),
			OrderWorkers:       v.GetInt("sync.order_workers"),
			PageSize:           v.GetInt("sync.page_size"),
			MaxPages:           v.GetInt("sync.max_pages"),
			MaxSlugAttempts:    v.GetInt("sync.max_slug_attempts"),
			SyncOrdersDefault:  v.GetBool("sync.sync_orders_default"),
			TokenRefreshSkew:   v.GetDuration("sync.token_refresh_skew"),
			StoreURLPathFormat: v.GetString("sync.store_url_path_format"),
		},
		Webhook: WebhookConfig{
			AllowUnsigned: v.GetBool("webhook.allow_unsigned"),
			MaxBodySize:   v.GetInt64("webhook.max_body_size"),
		},
		Platforms: PlatformsConfig{
			Salla: loadPlatform(v, "salla"),
			Zid:   loadPlatform(v, "zid"),
		},
		Tracking: TrackingConfig{
			ClickTTL:             v.GetDuration("tracking.click_ttl"),
			UTMSource:            v.GetString("tracking.utm_source"),
			UTMMedium:            v.GetString("tracking.utm_medium"),
			UTMCampaign:          v.GetString("tracking.utm_campaign"),
			AllowedReferrerPaths: v.GetStringSlice("tracking.allowed_referrer_paths"),
			BotUserAgents:        v.GetStringSlice("tracking.bot_user_agents"),
			PerIPLimit:           v.GetInt("tracking.per_ip_limit"),
			PerIPProductLimit:    v.GetInt("tracking.per_ip_product_limit"),
			RateLimitWindow:      v.GetDuration("tracking.rate_limit_window"),
			IPHashKey:            v.GetString("tracking.ip_hash_key"),
		},
		Trending: TrendingConfig{
			ViewWeight:  v.GetFloat64("trending.view_weight"),
			SaveWeight:  v.GetFloat64("trending.save_weight"),
			ClickWeight: v.GetFloat64("trending.click_weight"),
			OrderWeight: v.GetFloat64("trending.order_weight"),
			Window:      v.GetDuration("trending.window"),
			HalfLife:    v.GetDuration("trending.half_life"),
		},
		Notifications: NotificationsConfig{
			KafkaEnabled: v.GetBool("notifications.kafka_enabled"),
			KafkaBrokers: v.GetStringSlice("notifications.kafka_brokers"),
			KafkaTopic:   v.GetString("notifications.kafka_topic"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			AutoSyncInterval:  v.GetDuration("scheduler.auto_sync_interval"),
			TrendingInterval:  v.GetDuration("scheduler.trending_interval"),
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			QueueSize:         v.GetInt("scheduler.queue_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadPlatform(v *viper.Viper, name string) PlatformConfig {
	prefix := "platforms." + name + "."
	return PlatformConfig{
		Enabled:                v.GetBool(prefix + "enabled"),
		APIBaseURL:             v.GetString(prefix + "api_base_url"),
		TokenURL:               v.GetString(prefix + "token_url"),
		ClientID:               v.GetString(prefix + "client_id"),
		ClientSecret:           v.GetString(prefix + "client_secret"),
		WebhookSecret:          v.GetString(prefix + "webhook_secret"),
		WebhookSignatureHeader: v.GetString(prefix + "webhook_signature_header"),
		DeliveryIDHeader:       v.GetString(prefix + "delivery_id_header"),
		SignatureMode:          v.GetString(prefix + "signature_mode"),
		PageSize:               v.GetInt(prefix + "page_size"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "souq-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}
	cfg.App.BaseURL = strings.TrimRight(cfg.App.BaseURL, "/")

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
		cfg.Database.DBName = "souq"
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
		cfg.Database.ConnMaxIdleTime = 10
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "souq-backend"
	}
	if cfg.JWT.TokenExpiration == 0 {
		cfg.JWT.TokenExpiration = time.Hour
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Sync requests page through whole catalogs
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 120 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	}

	if cfg.HTTPClient.Timeout == 0 {
		cfg.HTTPClient.Timeout = 20 * time.Second
	}
	if cfg.HTTPClient.MaxAttempts == 0 {
		cfg.HTTPClient.MaxAttempts = 4
	}
	if cfg.HTTPClient.BaseDelay == 0 {
		cfg.HTTPClient.BaseDelay = 500 * time.Millisecond
	}
	if cfg.HTTPClient.MaxDelay == 0 {
		cfg.HTTPClient.MaxDelay = 10 * time.Second
	}
	if cfg.HTTPClient.MaxElapsed == 0 {
		cfg.HTTPClient.MaxElapsed = 30 * time.Second
	}
	if cfg.HTTPClient.AdapterMaxAttempts == 0 {
		cfg.HTTPClient.AdapterMaxAttempts = 2
	}
	if cfg.HTTPClient.AdapterBaseDelay == 0 {
		cfg.HTTPClient.AdapterBaseDelay = time.Second
	}
	if cfg.HTTPClient.AdapterMaxDelay == 0 {
		cfg.HTTPClient.AdapterMaxDelay = 15 * time.Second
	}

	if cfg.Sync.Cooldown == 0 {
		cfg.Sync.Cooldown = 5 * time.Minute
	}
	if cfg.Sync.OrderWorkers == 0 {
		cfg.Sync.OrderWorkers = 4
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 50
	}
	if cfg.Sync.MaxPages == 0 {
		cfg.Sync.MaxPages = 500
	}
	if cfg.Sync.MaxSlugAttempts == 0 {
		cfg.Sync.MaxSlugAttempts = 20
	}
	if cfg.Sync.TokenRefreshSkew == 0 {
		cfg.Sync.TokenRefreshSkew = time.Minute
	}
	if cfg.Sync.StoreURLPathFormat == "" {
		cfg.Sync.StoreURLPathFormat = "%s/p/%s"
	}

	if cfg.Webhook.MaxBodySize == 0 {
		cfg.Webhook.MaxBodySize = 1 << 20
	}

	applyPlatformDefaults(&cfg.Platforms.Salla, PlatformConfig{
		APIBaseURL:             "https://api.salla.dev/admin/v2",
		TokenURL:               "https://accounts.salla.sa/oauth2/token",
		WebhookSignatureHeader: "X-Salla-Signature",
		DeliveryIDHeader:       "X-Salla-Delivery-Id",
		SignatureMode:          "hmac-sha256",
		PageSize:               cfg.Sync.PageSize,
	})
	applyPlatformDefaults(&cfg.Platforms.Zid, PlatformConfig{
		APIBaseURL:             "https://api.zid.sa/v1",
		TokenURL:               "https://oauth.zid.sa/oauth/token",
		WebhookSignatureHeader: "X-Zid-Signature",
		DeliveryIDHeader:       "X-Zid-Delivery-Id",
		SignatureMode:          "hmac-sha256-base64",
		PageSize:               cfg.Sync.PageSize,
	})

	if cfg.Tracking.ClickTTL == 0 {
		cfg.Tracking.ClickTTL = 30 * 24 * time.Hour
	}
	if cfg.Tracking.UTMSource == "" {
		cfg.Tracking.UTMSource = "souq"
	}
	if cfg.Tracking.UTMMedium == "" {
		cfg.Tracking.UTMMedium = "marketplace"
	}
	if cfg.Tracking.UTMCampaign == "" {
		cfg.Tracking.UTMCampaign = "product_click"
	}
	if len(cfg.Tracking.AllowedReferrerPaths) == 0 {
		cfg.Tracking.AllowedReferrerPaths = []string{"/", "/products/", "/p/", "/search", "/category/", "/trending", "/stores/"}
	}
	if len(cfg.Tracking.BotUserAgents) == 0 {
		cfg.Tracking.BotUserAgents = []string{
			"bot", "crawler", "spider", "slurp", "curl", "wget", "python-requests",
			"httpclient", "headlesschrome", "phantomjs", "facebookexternalhit", "preview",
		}
	}
	if cfg.Tracking.PerIPLimit == 0 {
		cfg.Tracking.PerIPLimit = 120
	}
	if cfg.Tracking.PerIPProductLimit == 0 {
		cfg.Tracking.PerIPProductLimit = 5
	}
	if cfg.Tracking.RateLimitWindow == 0 {
		cfg.Tracking.RateLimitWindow = time.Hour
	}

	if cfg.Trending.ViewWeight == 0 {
		cfg.Trending.ViewWeight = 1
	}
	if cfg.Trending.SaveWeight == 0 {
		cfg.Trending.SaveWeight = 3
	}
	if cfg.Trending.ClickWeight == 0 {
		cfg.Trending.ClickWeight = 5
	}
	if cfg.Trending.OrderWeight == 0 {
		cfg.Trending.OrderWeight = 20
	}
	if cfg.Trending.Window == 0 {
		cfg.Trending.Window = 7 * 24 * time.Hour
	}
	if cfg.Trending.HalfLife == 0 {
		cfg.Trending.HalfLife = 48 * time.Hour
	}

	if cfg.Notifications.KafkaTopic == "" {
		cfg.Notifications.KafkaTopic = "souq.domain-events"
	}

	if cfg.Scheduler.AutoSyncInterval == 0 {
		cfg.Scheduler.AutoSyncInterval = time.Hour
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 2
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 15 * time.Minute
	}
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = 100
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
	}
}

func applyPlatformDefaults(p *PlatformConfig, d PlatformConfig) {
	if p.APIBaseURL == "" {
		p.APIBaseURL = d.APIBaseURL
	}
	p.APIBaseURL = strings.TrimRight(p.APIBaseURL, "/")
	if p.TokenURL == "" {
		p.TokenURL = d.TokenURL
	}
	if p.WebhookSignatureHeader == "" {
		p.WebhookSignatureHeader = d.WebhookSignatureHeader
	}
	if p.DeliveryIDHeader == "" {
		p.DeliveryIDHeader = d.DeliveryIDHeader
	}
	if p.SignatureMode == "" {
		p.SignatureMode = d.SignatureMode
	}
	if p.PageSize == 0 {
		p.PageSize = d.PageSize
	}
}

func (c *Config) validate() error {
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
	if c.Sync.OrderWorkers < 1 {
		return fmt.Errorf("sync.order_workers must be at least 1")
	}
	if c.HTTPClient.MaxAttempts < 1 {
		return fmt.Errorf("http_client.max_attempts must be at least 1")
	}
	if len(c.Tracking.IPHashKey) > 64 {
		return fmt.Errorf("tracking.ip_hash_key cannot exceed 64 bytes")
	}
	for name, p := range map[string]PlatformConfig{"salla": c.Platforms.Salla, "zid": c.Platforms.Zid} {
		switch p.SignatureMode {
		case "hmac-sha256", "hmac-sha256-base64", "token":
		default:
			return fmt.Errorf("platforms.%s.signature_mode %q is not supported", name, p.SignatureMode)
		}
	}

	if c.App.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Webhook.AllowUnsigned {
			return fmt.Errorf("webhook.allow_unsigned must be false in production")
		}
		for name, p := range map[string]PlatformConfig{"salla": c.Platforms.Salla, "zid": c.Platforms.Zid} {
			if p.Enabled && p.WebhookSecret == "" {
				return fmt.Errorf("platforms.%s.webhook_secret is required in production", name)
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
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
