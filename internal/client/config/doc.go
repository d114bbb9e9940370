// Package config loads runtime configuration for the TokenKeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. The TOKENKEEPER_SERVER environment variable.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     base URL of the TokenKeeper HTTP API
//	-t duration   per-request timeout, Go syntax ("5s")
//
// Flags must precede the command; everything from the first positional
// argument on is returned to the caller untouched.
package config
