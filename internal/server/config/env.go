package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// lookupFunc matches os.LookupEnv; tests pass a map-backed version.
type lookupFunc func(key string) (string, bool)

var lookupEnv lookupFunc = os.LookupEnv

// parseEnv overlays config with environment variables. Variable names follow
// the deployment conventions of the service:
//
//	PORT                   listen port, bound on all interfaces
//	DATABASE_DRIVER        pgx or sqlite
//	DATABASE_DSN           database DSN
//	REDIS_ADDR             Redis address for the refresh-token ledger
//	JWT_ACCESS_SECRET      access token secret
//	JWT_REFRESH_SECRET     refresh token secret
//	ACCESS_TOKEN_EXPIRY    access token lifetime ("15m", "900", "1d")
//	REFRESH_TOKEN_EXPIRY   refresh token lifetime
//	BCRYPT_COST            password hash cost
//	LEDGER_SWEEP_INTERVAL  expired ledger rows sweep period, "0" disables
//	LOG_LEVEL              debug, info, warn or error
func parseEnv(config *Config, lookup lookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("PORT: invalid port %q", v)
		}
		config.EndpointAddrHTTP = ":" + v
	}
	if v, ok := get("DATABASE_DRIVER"); ok {
		config.DatabaseDriver = v
	}
	if v, ok := get("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		config.RedisAddr = v
	}
	if v, ok := get("JWT_ACCESS_SECRET"); ok {
		config.AccessTokenSecret = v
	}
	if v, ok := get("JWT_REFRESH_SECRET"); ok {
		config.RefreshTokenSecret = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		config.LogLevel = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"ACCESS_TOKEN_EXPIRY", &config.AccessTokenValidityDuration},
		{"REFRESH_TOKEN_EXPIRY", &config.RefreshTokenValidityDuration},
		{"LEDGER_SWEEP_INTERVAL", &config.LedgerSweepInterval},
	}
	for _, d := range durations {
		v, ok := get(d.key)
		if !ok {
			continue
		}
		parsed, err := timex.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := get("BCRYPT_COST"); ok {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BCRYPT_COST: invalid value %q", v)
		}
		config.BcryptCost = cost
	}

	return nil
}
