package config

import (
	"flag"
	"io"
	"os"
	"strings"
	"time"
)

// Config holds runtime settings for the TokenKeeper CLI.
type Config struct {
	ServerAddr     string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:4000"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig builds a Config from defaults, the environment and args (without
// the program name). It returns the arguments left after the flags.
func LoadConfig(args []string) (*Config, []string, error) {
	return load(args, os.LookupEnv, io.Discard)
}

func load(args []string, lookup func(string) (string, bool), usage io.Writer) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if v, ok := lookup("TOKENKEEPER_SERVER"); ok && v != "" {
		cfg.ServerAddr = v
	}

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "base URL of the server API")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "request timeout")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg.ServerAddr = normalizeAddr(cfg.ServerAddr)
	return cfg, fs.Args(), nil
}

// normalizeAddr accepts a bare host:port and strips a trailing slash.
func normalizeAddr(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/")
}
