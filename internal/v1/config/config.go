// Package config validates and loads the signaling server's environment
// configuration (§ Configuration), accumulating every violation into a
// single error instead of failing on the first one.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration.
type Config struct {
	Port    string
	NodeEnv string

	AllowedOrigins []string
	RouterEnabled  bool
	DebugSDP       bool

	TURNURL        string
	TURNSURL       string
	TURNUsername   string
	TURNCredential string

	AuthMode      string
	Auth0Domain   string
	Auth0Audience string

	RedisAddr     string
	RedisPassword string

	OtelCollectorAddr string

	// ulule/limiter formatted rates (e.g. "100-M") used by
	// ratelimit.NewRateLimiter. ValidateEnv does not load these.
	RateLimitAPIGlobal   string
	RateLimitAPIPublic   string
	RateLimitAPIRooms    string
	RateLimitAPIMessages string
	RateLimitWsIP        string
	RateLimitWsUser      string
}

// ValidateEnv validates all environment variables and returns a Config.
// Returns an error listing every violation found, not just the first.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// PORT (default 5050)
	cfg.Port = getEnvOrDefault("PORT", "5050")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	cfg.NodeEnv = getEnvOrDefault("NODE_ENV", "production")

	cfg.AllowedOrigins = splitCSV(os.Getenv("ALLOWED_ORIGINS"))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
		slog.Warn("ALLOWED_ORIGINS not set, using default development origins")
	}

	cfg.RouterEnabled = os.Getenv("ROUTER_ENABLED") != "false"
	cfg.DebugSDP = os.Getenv("DEBUG_SDP") == "true"

	cfg.TURNURL = os.Getenv("TURN_URL")
	cfg.TURNSURL = os.Getenv("TURNS_URL")
	cfg.TURNUsername = os.Getenv("TURN_USERNAME")
	cfg.TURNCredential = os.Getenv("TURN_CREDENTIAL")

	cfg.AuthMode = getEnvOrDefault("AUTH_MODE", "passthrough")
	if cfg.AuthMode != "passthrough" && cfg.AuthMode != "jwt" {
		errs = append(errs, fmt.Sprintf("AUTH_MODE must be 'passthrough' or 'jwt' (got '%s')", cfg.AuthMode))
	}
	cfg.Auth0Domain = os.Getenv("AUTH0_DOMAIN")
	cfg.Auth0Audience = os.Getenv("AUTH0_AUDIENCE")
	if cfg.AuthMode == "jwt" && (cfg.Auth0Domain == "" || cfg.Auth0Audience == "") {
		errs = append(errs, "AUTH0_DOMAIN and AUTH0_AUDIENCE are required when AUTH_MODE=jwt")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr != "" && !isValidHostPort(cfg.RedisAddr) {
		errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.OtelCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return parts[0] != ""
}

// logValidatedConfig logs the validated configuration with secrets redacted.
func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"node_env", cfg.NodeEnv,
		"allowed_origins", cfg.AllowedOrigins,
		"router_enabled", cfg.RouterEnabled,
		"auth_mode", cfg.AuthMode,
		"redis_addr", cfg.RedisAddr,
		"redis_password", redactSecret(cfg.RedisPassword),
		"otel_collector_addr", cfg.OtelCollectorAddr,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default
// value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret, showing only whether it is set.
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
