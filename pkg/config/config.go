package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all gateway configuration
type Config struct {
	// Environment gates the demo tenant fallback; anything but production
	// allows it
	Environment string `yaml:"environment"`

	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Store         StoreConfig         `yaml:"store"`
	Database      DatabaseConfig      `yaml:"database"`
	RBAC          RBACConfig          `yaml:"rbac"`
	Security      SecurityConfig      `yaml:"security"`
	RateLimits    RateLimitConfig     `yaml:"rateLimits"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwtSecret"`
	PublicKeyFile string        `yaml:"publicKeyFile"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	Leeway        time.Duration `yaml:"leeway"`
	TokenTTL      time.Duration `yaml:"tokenTTL"`
}

// StoreConfig selects the backend for rate limit, lockout, CSRF and session
// state
type StoreConfig struct {
	Backend       string `yaml:"backend"`
	RedisURL      string `yaml:"redisURL"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	RedisPoolSize int    `yaml:"redisPoolSize"`
	Prefix        string `yaml:"prefix"`
}

// DatabaseConfig configures PostgreSQL
type DatabaseConfig struct {
	PostgresURL   string `yaml:"postgresURL"`
	MaxOpenConns  int    `yaml:"maxOpenConns"`
	RunMigrations bool   `yaml:"runMigrations"`
}

// RBACConfig selects the identity store
type RBACConfig struct {
	Backend   string        `yaml:"backend"`
	SeedFile  string        `yaml:"seedFile"`
	CacheSize int           `yaml:"cacheSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
}

// SecurityConfig holds feature toggles and limits of the security filters.
// TrustedProxies lists the CIDRs or addresses whose X-Forwarded-For and
// X-Real-IP headers are believed; when empty the peer address is used.
type SecurityConfig struct {
	EnableCSRF            bool          `yaml:"enableCSRF"`
	EnableRateLimit       bool          `yaml:"enableRateLimit"`
	EnableSecurityHeaders bool          `yaml:"enableSecurityHeaders"`
	EnableSlowDown        bool          `yaml:"enableSlowDown"`
	EnableSessionMonitor  bool          `yaml:"enableSessionMonitor"`
	AllowedOrigins        []string      `yaml:"allowedOrigins"`
	TrustedProxies        []string      `yaml:"trustedProxies"`
	MaxBodyBytes          int64         `yaml:"maxBodyBytes"`
	CSRFTokenTTL          time.Duration `yaml:"csrfTokenTTL"`
	LockoutThreshold      int           `yaml:"lockoutThreshold"`
	LockoutDuration       time.Duration `yaml:"lockoutDuration"`
	SessionTimeout        time.Duration `yaml:"sessionTimeout"`
}

// LimitConfig is one rate limit window
type LimitConfig struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

// SlowDownConfig configures progressive delays
type SlowDownConfig struct {
	Window     time.Duration `yaml:"window"`
	DelayAfter int           `yaml:"delayAfter"`
	DelayStep  time.Duration `yaml:"delayStep"`
	MaxDelay   time.Duration `yaml:"maxDelay"`
}

// RateLimitConfig holds every rate limit policy
type RateLimitConfig struct {
	General  LimitConfig    `yaml:"general"`
	Auth     LimitConfig    `yaml:"auth"`
	API      LimitConfig    `yaml:"api"`
	Trading  LimitConfig    `yaml:"trading"`
	Tenant   LimitConfig    `yaml:"tenant"`
	SlowDown SlowDownConfig `yaml:"slowDown"`
}

// AuditConfig selects the audit sinks
type AuditConfig struct {
	// Sinks lists any of "log", "file" and "db"
	Sinks       []string      `yaml:"sinks"`
	FilePath    string        `yaml:"filePath"`
	MaxFileSize int64         `yaml:"maxFileSize"`
	MaxFiles    int           `yaml:"maxFiles"`
	EmitTimeout time.Duration `yaml:"emitTimeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	MetricsEnabled bool `yaml:"metricsEnabled"`

	OTelEnabled        bool    `yaml:"otelEnabled"`
	OTelEndpoint       string  `yaml:"otelEndpoint"`
	OTelServiceName    string  `yaml:"otelServiceName"`
	OTelServiceVersion string  `yaml:"otelServiceVersion"`
	OTelInsecure       bool    `yaml:"otelInsecure"`
	OTelSampleRatio    float64 `yaml:"otelSampleRatio"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Leeway:   30 * time.Second,
			TokenTTL: time.Hour,
		},
		Store: StoreConfig{
			Backend: "memory",
			Prefix:  "renx",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
		},
		RBAC: RBACConfig{
			Backend:   "memory",
			CacheSize: 10000,
			CacheTTL:  5 * time.Minute,
		},
		Security: SecurityConfig{
			EnableCSRF:            true,
			EnableRateLimit:       true,
			EnableSecurityHeaders: true,
			EnableSlowDown:        true,
			EnableSessionMonitor:  true,
			MaxBodyBytes:          10 << 20,
			CSRFTokenTTL:          15 * time.Minute,
			LockoutThreshold:      5,
			LockoutDuration:       15 * time.Minute,
			SessionTimeout:        30 * time.Minute,
		},
		RateLimits: RateLimitConfig{
			General: LimitConfig{Window: 15 * time.Minute, Max: 100},
			Auth:    LimitConfig{Window: 15 * time.Minute, Max: 5},
			API:     LimitConfig{Window: time.Minute, Max: 60},
			Trading: LimitConfig{Window: time.Minute, Max: 30},
			Tenant:  LimitConfig{Window: 15 * time.Minute, Max: 1000},
			SlowDown: SlowDownConfig{
				Window:     15 * time.Minute,
				DelayAfter: 50,
				DelayStep:  500 * time.Millisecond,
				MaxDelay:   20 * time.Second,
			},
		},
		Audit: AuditConfig{
			Sinks:       []string{"log"},
			FilePath:    "/var/log/renx/audit",
			MaxFileSize: 100 << 20,
			MaxFiles:    10,
			EmitTimeout: 2 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "renx-gateway",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, and RENX_* environment variables, in that order of precedence
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("RENX_CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields whose environment variable is set
func (c *Config) applyEnv() {
	c.Environment = getEnv("RENX_ENV", getEnv("NODE_ENV", c.Environment))

	c.Server.Host = getEnv("RENX_HOST", c.Server.Host)
	c.Server.Port = getEnv("RENX_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("RENX_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("RENX_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("RENX_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("RENX_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Auth.JWTSecret = getEnv("RENX_JWT_SECRET", getEnv("JWT_SECRET", c.Auth.JWTSecret))
	c.Auth.PublicKeyFile = getEnv("RENX_JWT_PUBLIC_KEY_FILE", c.Auth.PublicKeyFile)
	c.Auth.Issuer = getEnv("RENX_JWT_ISSUER", c.Auth.Issuer)
	c.Auth.Audience = getEnv("RENX_JWT_AUDIENCE", c.Auth.Audience)
	c.Auth.Leeway = getEnvDuration("RENX_JWT_LEEWAY", c.Auth.Leeway)
	c.Auth.TokenTTL = getEnvDuration("RENX_JWT_TTL", c.Auth.TokenTTL)

	c.Store.Backend = getEnv("RENX_STORE_BACKEND", c.Store.Backend)
	c.Store.RedisURL = getEnv("RENX_REDIS_URL", c.Store.RedisURL)
	c.Store.RedisPassword = getEnv("RENX_REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = getEnvInt("RENX_REDIS_DB", c.Store.RedisDB)
	c.Store.RedisPoolSize = getEnvInt("RENX_REDIS_POOL_SIZE", c.Store.RedisPoolSize)
	c.Store.Prefix = getEnv("RENX_REDIS_PREFIX", c.Store.Prefix)

	c.Database.PostgresURL = getEnv("RENX_POSTGRES_URL", getEnv("DATABASE_URL", c.Database.PostgresURL))
	c.Database.MaxOpenConns = getEnvInt("RENX_POSTGRES_MAX_CONNS", c.Database.MaxOpenConns)
	c.Database.RunMigrations = getEnvBool("RENX_RUN_MIGRATIONS", c.Database.RunMigrations)

	c.RBAC.Backend = getEnv("RENX_RBAC_BACKEND", c.RBAC.Backend)
	c.RBAC.SeedFile = getEnv("RENX_RBAC_SEED_FILE", c.RBAC.SeedFile)
	c.RBAC.CacheSize = getEnvInt("RENX_RBAC_CACHE_SIZE", c.RBAC.CacheSize)
	c.RBAC.CacheTTL = getEnvDuration("RENX_RBAC_CACHE_TTL", c.RBAC.CacheTTL)

	c.Security.EnableCSRF = getEnvBool("ENABLE_CSRF", c.Security.EnableCSRF)
	c.Security.EnableRateLimit = getEnvBool("ENABLE_RATE_LIMIT", c.Security.EnableRateLimit)
	c.Security.EnableSecurityHeaders = getEnvBool("ENABLE_SECURITY_HEADERS", c.Security.EnableSecurityHeaders)
	c.Security.EnableSlowDown = getEnvBool("ENABLE_SLOW_DOWN", c.Security.EnableSlowDown)
	c.Security.EnableSessionMonitor = getEnvBool("ENABLE_SESSION_MONITOR", c.Security.EnableSessionMonitor)
	if origins := getEnv("RENX_ALLOWED_ORIGINS", ""); origins != "" {
		c.Security.AllowedOrigins = splitList(origins)
	}
	if proxies := getEnv("RENX_TRUSTED_PROXIES", ""); proxies != "" {
		c.Security.TrustedProxies = splitList(proxies)
	}
	c.Security.MaxBodyBytes = getEnvInt64("RENX_MAX_BODY_BYTES", c.Security.MaxBodyBytes)
	c.Security.CSRFTokenTTL = getEnvDuration("RENX_CSRF_TTL", c.Security.CSRFTokenTTL)
	c.Security.LockoutThreshold = getEnvInt("RENX_LOCKOUT_THRESHOLD", c.Security.LockoutThreshold)
	c.Security.LockoutDuration = getEnvDuration("RENX_LOCKOUT_DURATION", c.Security.LockoutDuration)
	c.Security.SessionTimeout = getEnvDuration("RENX_SESSION_TIMEOUT", c.Security.SessionTimeout)

	c.RateLimits.General = getEnvLimit("RENX_RATE_LIMIT_GENERAL", c.RateLimits.General)
	c.RateLimits.Auth = getEnvLimit("RENX_RATE_LIMIT_AUTH", c.RateLimits.Auth)
	c.RateLimits.API = getEnvLimit("RENX_RATE_LIMIT_API", c.RateLimits.API)
	c.RateLimits.Trading = getEnvLimit("RENX_RATE_LIMIT_TRADING", c.RateLimits.Trading)
	c.RateLimits.Tenant = getEnvLimit("RENX_RATE_LIMIT_TENANT", c.RateLimits.Tenant)

	if sinks := getEnv("RENX_AUDIT_SINKS", ""); sinks != "" {
		c.Audit.Sinks = splitList(sinks)
	}
	c.Audit.FilePath = getEnv("RENX_AUDIT_FILE_PATH", c.Audit.FilePath)
	c.Audit.EmitTimeout = getEnvDuration("RENX_AUDIT_TIMEOUT", c.Audit.EmitTimeout)

	c.Observability.LogLevel = getEnv("RENX_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("RENX_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsEnabled = getEnvBool("RENX_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("RENX_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("RENX_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("RENX_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("RENX_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("RENX_OTEL_INSECURE", c.Observability.OTelInsecure)
	c.Observability.OTelSampleRatio = getEnvFloat("RENX_OTEL_SAMPLE_RATIO", c.Observability.OTelSampleRatio)
}

// IsProduction reports whether the gateway runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Auth.JWTSecret == "" && c.Auth.PublicKeyFile == "" {
		if c.IsProduction() {
			return fmt.Errorf("a JWT secret or public key is required in production")
		}
	}
	if c.IsProduction() && c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes in production")
	}

	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis store backend")
		}
	default:
		return fmt.Errorf("invalid store backend: %s (must be memory or redis)", c.Store.Backend)
	}

	switch c.RBAC.Backend {
	case "memory":
	case "postgres":
		if c.Database.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the postgres RBAC backend")
		}
	default:
		return fmt.Errorf("invalid RBAC backend: %s (must be memory or postgres)", c.RBAC.Backend)
	}

	for name, l := range map[string]LimitConfig{
		"general": c.RateLimits.General,
		"auth":    c.RateLimits.Auth,
		"api":     c.RateLimits.API,
		"trading": c.RateLimits.Trading,
		"tenant":  c.RateLimits.Tenant,
	} {
		if l.Window <= 0 || l.Max <= 0 {
			return fmt.Errorf("rate limit %s needs a positive window and max", name)
		}
	}
	sd := c.RateLimits.SlowDown
	if sd.Window <= 0 || sd.DelayAfter < 0 || sd.DelayStep < 0 || sd.MaxDelay < 0 {
		return fmt.Errorf("slow-down settings must not be negative and need a positive window")
	}

	if _, err := httputil.ParseTrustedProxies(c.Security.TrustedProxies); err != nil {
		return err
	}

	if c.Security.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.Security.LockoutThreshold <= 0 || c.Security.LockoutDuration <= 0 {
		return fmt.Errorf("lockout threshold and duration must be positive")
	}

	for _, sink := range c.Audit.Sinks {
		switch sink {
		case "log", "file":
		case "db":
			if c.Database.PostgresURL == "" {
				return fmt.Errorf("postgres URL is required for the db audit sink")
			}
		default:
			return fmt.Errorf("invalid audit sink: %s (must be log, file or db)", sink)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvLimit reads a "max/window" pair such as "100/15m"
func getEnvLimit(key string, defaultValue LimitConfig) LimitConfig {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	maxStr, windowStr, ok := strings.Cut(value, "/")
	if !ok {
		return defaultValue
	}
	max, err := strconv.Atoi(strings.TrimSpace(maxStr))
	if err != nil {
		return defaultValue
	}
	window, err := time.ParseDuration(strings.TrimSpace(windowStr))
	if err != nil {
		return defaultValue
	}
	return LimitConfig{Window: window, Max: max}
}
