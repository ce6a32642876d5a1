// Package serverconfig binds the server's environment-variable
// configuration surface (spec §6) through viper, the same way the
// teacher's cmd/thv-registry-api/app/serve.go binds its own flags.
package serverconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Mode selects which transport the server runs (spec §4.8).
type Mode string

const (
	ModeHTTP  Mode = "http"
	ModeStdio Mode = "stdio"
)

// Config is the fully resolved set of spec §6 configuration options.
type Config struct {
	DatabaseURL                string
	SubscriptionRegistryURL    string
	JWTSecret                  string
	SecurityProfile            string
	RateLimitPerMinuteOverride int
	LogLevel                   string
	ServerMode                 Mode
	ServerHost                 string
	ServerPort                 int
	IdentityNamespace          string
	SubscriptionCacheTTLSeconds int
	RedisURL                   string
}

// Addr returns the host:port bind address for the HTTP transport.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// BindFlags registers the flags serve/stdio commands share and binds them
// into viper, mirroring the teacher's serveCmd.Flags()+viper.BindPFlag
// pairing.
func BindFlags(flags *pflag.FlagSet) error {
	flags.String("database-url", "", "Relational store connection string (DATABASE_URL)")
	flags.String("subscription-registry-url", "", "Subscription registry source (SUBSCRIPTION_REGISTRY_URL)")
	flags.String("jwt-secret", "", "Reserved for future signed-token mode (JWT_SECRET)")
	flags.String("security-profile", "moderate", "strict|moderate; parsed into Config, no component reads it (SECURITY_PROFILE)")
	flags.Int("rate-limit-per-minute", 0, "Parsed into Config; no component reads it, rate limits come from the tier catalog (RATE_LIMIT_PER_MINUTE)")
	flags.String("log-level", "info", "debug|info|warning|error (LOG_LEVEL)")
	flags.String("server-mode", "http", "http|stdio (SERVER_MODE)")
	flags.String("server-host", "0.0.0.0", "Bind host (SERVER_HOST)")
	flags.Int("server-port", 8080, "Bind port (SERVER_PORT)")
	flags.String("identity-namespace", "fortunamind", "Per-deployment namespace for user-handle derivation (IDENTITY_NAMESPACE)")
	flags.Int("subscription-cache-ttl-seconds", 300, "Parsed into Config; the subscription cache uses fixed TTLs (5m valid, 30s invalid) and does not read it (SUBSCRIPTION_CACHE_TTL_SECONDS)")
	flags.String("redis-url", "", "Redis connection string for subscription cache and rate limiter (REDIS_URL)")

	bindings := map[string]string{
		"database-url":                  "DATABASE_URL",
		"subscription-registry-url":     "SUBSCRIPTION_REGISTRY_URL",
		"jwt-secret":                     "JWT_SECRET",
		"security-profile":               "SECURITY_PROFILE",
		"rate-limit-per-minute":          "RATE_LIMIT_PER_MINUTE",
		"log-level":                      "LOG_LEVEL",
		"server-mode":                    "SERVER_MODE",
		"server-host":                    "SERVER_HOST",
		"server-port":                    "SERVER_PORT",
		"identity-namespace":             "IDENTITY_NAMESPACE",
		"subscription-cache-ttl-seconds": "SUBSCRIPTION_CACHE_TTL_SECONDS",
		"redis-url":                      "REDIS_URL",
	}
	for flag, env := range bindings {
		if err := viper.BindPFlag(flag, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", flag, err)
		}
		if err := viper.BindEnv(flag, env); err != nil {
			return fmt.Errorf("failed to bind %s env var: %w", flag, err)
		}
	}
	return nil
}

// Load resolves a Config from viper after BindFlags has run.
func Load() (Config, error) {
	mode := Mode(strings.ToLower(viper.GetString("server-mode")))
	if mode != ModeHTTP && mode != ModeStdio {
		return Config{}, fmt.Errorf("invalid SERVER_MODE %q: must be %q or %q", mode, ModeHTTP, ModeStdio)
	}
	if secret := viper.GetString("jwt-secret"); secret != "" && len(secret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters when set, got %d", len(secret))
	}

	return Config{
		DatabaseURL:                 viper.GetString("database-url"),
		SubscriptionRegistryURL:     viper.GetString("subscription-registry-url"),
		JWTSecret:                   viper.GetString("jwt-secret"),
		SecurityProfile:             viper.GetString("security-profile"),
		RateLimitPerMinuteOverride:  viper.GetInt("rate-limit-per-minute"),
		LogLevel:                    viper.GetString("log-level"),
		ServerMode:                  mode,
		ServerHost:                  viper.GetString("server-host"),
		ServerPort:                  viper.GetInt("server-port"),
		IdentityNamespace:           viper.GetString("identity-namespace"),
		SubscriptionCacheTTLSeconds: viper.GetInt("subscription-cache-ttl-seconds"),
		RedisURL:                    viper.GetString("redis-url"),
	}, nil
}
