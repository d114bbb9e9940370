package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. It is decoded from
// JSON or, for files ending in ".toml", from TOML, and then merged into the
// runtime Config. Zero values mean "not set" and leave the target untouched.
type FileConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http" toml:"endpoint_addr_http"`
	DatabaseDriver               string         `json:"database_driver" toml:"database_driver"`
	DatabaseDSN                  string         `json:"database_dsn" toml:"database_dsn"`
	RedisAddr                    string         `json:"redis_addr" toml:"redis_addr"`
	AccessTokenSecret            string         `json:"access_token_secret" toml:"access_token_secret"`
	RefreshTokenSecret           string         `json:"refresh_token_secret" toml:"refresh_token_secret"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration" toml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration" toml:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost" toml:"bcrypt_cost"`
	LedgerSweepInterval          timex.Duration `json:"ledger_sweep_interval" toml:"ledger_sweep_interval"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout" toml:"shutdown_timeout"`
	LogLevel                     string         `json:"log_level" toml:"log_level"`
}

// parseFile loads the file named by -c/-config, if any, into config.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}
	return loadFile(config, path)
}

func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fc := &FileConfig{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, fc); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, fc); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	fc.mergeInto(config)
	return nil
}

func (fc *FileConfig) mergeInto(c *Config) {
	setString(&c.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&c.DatabaseDriver, fc.DatabaseDriver)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.AccessTokenSecret, fc.AccessTokenSecret)
	setString(&c.RefreshTokenSecret, fc.RefreshTokenSecret)
	setString(&c.LogLevel, fc.LogLevel)

	if fc.AccessTokenValidityDuration.Duration != 0 {
		c.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	if fc.RefreshTokenValidityDuration.Duration != 0 {
		c.RefreshTokenValidityDuration = fc.RefreshTokenValidityDuration.Duration
	}
	if fc.LedgerSweepInterval.Duration != 0 {
		c.LedgerSweepInterval = fc.LedgerSweepInterval.Duration
	}
	if fc.ShutdownTimeout.Duration != 0 {
		c.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
	if fc.BcryptCost != 0 {
		c.BcryptCost = fc.BcryptCost
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
