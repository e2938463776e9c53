// Package config loads gateway configuration from built-in defaults, an
// optional YAML file and environment variables, in increasing precedence.
//
// # Environment variables
//
// Server and identity:
//
//	RENX_ENV="production"           # NODE_ENV is honored as a fallback
//	RENX_PORT="8080"
//	RENX_JWT_SECRET="..."           # or RENX_JWT_PUBLIC_KEY_FILE
//	RENX_RBAC_BACKEND="postgres"    # memory, postgres
//	RENX_POSTGRES_URL="postgres://localhost/renx?sslmode=disable"
//
// Shared security state:
//
//	RENX_STORE_BACKEND="redis"      # memory, redis
//	RENX_REDIS_URL="redis://localhost:6379/0"
//
// Feature toggles, all on by default:
//
//	ENABLE_CSRF, ENABLE_RATE_LIMIT, ENABLE_SECURITY_HEADERS,
//	ENABLE_SLOW_DOWN, ENABLE_SESSION_MONITOR
//
// Rate limits are written as max/window:
//
//	RENX_RATE_LIMIT_TRADING="30/1m"
//
// # Usage
//
//	cfg, err := config.LoadConfig(os.Getenv("RENX_CONFIG_FILE"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if cfg.IsProduction() { ... }
package config
