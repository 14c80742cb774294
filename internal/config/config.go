// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the store, the conversation agent, outbound channels, the worker
// pool, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma separated
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "orderflow-agent")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StoreConfig selects the database.
type StoreConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH (sqlite)
	DSN    string // DB_DSN (postgres)
}

// AgentConfig tunes the conversation pipeline.
type AgentConfig struct {
	CountryCode        string        // COUNTRY_CODE for local phone numbers
	DefaultSMSReceiver string        // DEFAULT_SMS_RECEIVER when a gateway omits the receiver
	ThreadIdleTTL      time.Duration // THREAD_IDLE_TTL; 0 disables idle close
	MatchThreshold     float64       // MATCH_THRESHOLD in (0,1)
	CateringQuantity   int           // CATERING_QUANTITY
	CatalogCacheTTL    time.Duration // CATALOG_CACHE_TTL
}

// ChannelsConfig holds outbound provider credentials.
type ChannelsConfig struct {
	SMSGatewayURL   string // SMS_GATEWAY_URL; empty logs replies instead
	SMSGatewayToken string // SMS_GATEWAY_TOKEN
	SMSSender       string // SMS_SENDER
	MetaVerifyToken string // META_VERIFY_TOKEN
	MetaAppSecret   string // META_APP_SECRET; empty skips signature checks
	MetaPageToken   string // META_PAGE_ACCESS_TOKEN
	MetaGraphURL    string // META_GRAPH_URL
	SendTimeout     time.Duration // SEND_TIMEOUT per provider call
}

// WorkerConfig sizes the processing pool.
type WorkerConfig struct {
	Count     int // WORKER_COUNT
	QueueSize int // WORKER_QUEUE_SIZE
}

// RedisConfig configures escalation events. Empty Addr disables them.
type RedisConfig struct {
	Addr     string // REDIS_ADDR
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
	Channel  string // REDIS_CHANNEL for PUBLISH
}

// OpenAIConfig configures the optional free-text responder. Empty APIKey
// disables it.
type OpenAIConfig struct {
	APIKey  string // OPENAI_API_KEY
	Model   string // OPENAI_MODEL
	BaseURL string // OPENAI_BASE_URL for compatible gateways
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	ShutdownTimeout   time.Duration

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	Store    StoreConfig
	Agent    AgentConfig
	Channels ChannelsConfig
	Worker   WorkerConfig

	// Rate limiting, per sender on webhooks
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency of admin POSTs
	IdempotencyTTL time.Duration

	Redis  RedisConfig
	OpenAI OpenAIConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 15*time.Second),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		Store: StoreConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "orderflow.db"),
			DSN:    getenv("DB_DSN", ""),
		},
		Agent: AgentConfig{
			CountryCode:        strings.TrimPrefix(getenv("COUNTRY_CODE", "45"), "+"),
			DefaultSMSReceiver: getenv("DEFAULT_SMS_RECEIVER", "1272"),
			ThreadIdleTTL:      getdur("THREAD_IDLE_TTL", 24*time.Hour),
			MatchThreshold:     getfloat("MATCH_THRESHOLD", 0.6),
			CateringQuantity:   getint("CATERING_QUANTITY", 15),
			CatalogCacheTTL:    getdur("CATALOG_CACHE_TTL", time.Minute),
		},
		Channels: ChannelsConfig{
			SMSGatewayURL:   getenv("SMS_GATEWAY_URL", ""),
			SMSGatewayToken: getenv("SMS_GATEWAY_TOKEN", ""),
			SMSSender:       getenv("SMS_SENDER", ""),
			MetaVerifyToken: getenv("META_VERIFY_TOKEN", ""),
			MetaAppSecret:   getenv("META_APP_SECRET", ""),
			MetaPageToken:   getenv("META_PAGE_ACCESS_TOKEN", ""),
			MetaGraphURL:    getenv("META_GRAPH_URL", "https://graph.facebook.com/v21.0"),
			SendTimeout:     getdur("SEND_TIMEOUT", 10*time.Second),
		},
		Worker: WorkerConfig{
			Count:     getint("WORKER_COUNT", 4),
			QueueSize: getint("WORKER_QUEUE_SIZE", 256),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			Channel:  getenv("REDIS_CHANNEL", "orderflow.escalations"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getenv("OPENAI_API_KEY", ""),
			Model:   getenv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getenv("OPENAI_BASE_URL", ""),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "orderflow-agent"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Store.Driver == "postgresql" {
		cfg.Store.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.Store.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.Store.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.Store.DSN) == "" {
			return cfg, errors.New("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Agent.CountryCode == "" || strings.Trim(cfg.Agent.CountryCode, "0123456789") != "" {
		return cfg, errors.New("COUNTRY_CODE must be digits")
	}
	if cfg.Agent.ThreadIdleTTL < 0 {
		return cfg, errors.New("THREAD_IDLE_TTL must be >= 0")
	}
	if cfg.Agent.MatchThreshold <= 0 || cfg.Agent.MatchThreshold >= 1 {
		return cfg, errors.New("MATCH_THRESHOLD must be between 0 and 1")
	}
	if cfg.Agent.CateringQuantity < 1 {
		return cfg, errors.New("CATERING_QUANTITY must be >= 1")
	}
	if cfg.Worker.Count < 1 || cfg.Worker.QueueSize < 1 {
		return cfg, errors.New("WORKER_COUNT and WORKER_QUEUE_SIZE must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
