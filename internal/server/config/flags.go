package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-g", "-d", "-k", "-s", "-S", "-t", "-r", "-b", "-w", "-l"}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":4000")
//	-g string   database driver (pgx or sqlite)
//	-d string   database DSN
//	-k string   Redis address for the refresh-token ledger
//	-s string   access token secret
//	-S string   refresh token secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-b int      bcrypt cost
//	-w int      ledger sweep interval, minutes (0 disables)
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs first, so -c/-config and any
// unknown arguments do not make parsing fail.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "g", config.DatabaseDriver, "database driver (pgx or sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "k", config.RedisAddr, "redis address for the refresh token ledger")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "S", config.RefreshTokenSecret, "refresh token secret")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	sweepInterval := fs.Int("w", int(config.LedgerSweepInterval.Minutes()), "ledger sweep interval (in minutes, 0 disables)")

	fs.IntVar(&config.BcryptCost, "b", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Minute flags only override when given, so sub-minute values from the
	// file or environment survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
		case "w":
			config.LedgerSweepInterval = time.Duration(*sweepInterval) * time.Minute
		}
	})

	return nil
}
