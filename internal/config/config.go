// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// Default values applied after all configuration sources are merged.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 5037
	DefaultServerBinary  = "adb"
	DefaultDialTimeout   = 2 * time.Second
	DefaultWorkers       = 4
	DefaultStartAttempts = 5
	DefaultStartBackoff  = 250 * time.Millisecond
	DefaultListAttempts  = 1
	DefaultListDelay     = 100 * time.Millisecond
)

// StructuredConfig is the top-level configuration container for the adbx
// client. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, and an optional
// JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Server holds the background server's address and lifecycle settings.
	Server Server `envPrefix:"ADBX_SERVER_"`

	// Transfer holds file-transfer settings.
	Transfer Transfer `envPrefix:"ADBX_TRANSFER_"`

	// Registry holds device-enumeration retry settings.
	Registry Registry `envPrefix:"ADBX_REGISTRY_"`

	// Aliases maps user-chosen names to device serials. Populated from the
	// JSON file only; aliases are persisted here, never by the core.
	Aliases map[string]string

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the ADBX_CONFIG environment variable or the -c flag.
	JSONFilePath string `env:"ADBX_CONFIG"`
}

// Server holds the background server's network address and process
// lifecycle settings.
type Server struct {
	// Host is the server host. Env: ADBX_SERVER_HOST
	Host string `env:"HOST"`

	// Port is the server's listening port, the well-known debugging port
	// by default. Env: ADBX_SERVER_PORT
	Port int `env:"PORT"`

	// Binary is the server executable spawned by start requests.
	// Env: ADBX_SERVER_BINARY
	Binary string `env:"BINARY"`

	// DialTimeout bounds connection establishment (e.g. "2s").
	// Env: ADBX_SERVER_DIAL_TIMEOUT
	DialTimeout time.Duration `env:"DIAL_TIMEOUT"`

	// StartAttempts is how many status polls a server start performs
	// before giving up. Env: ADBX_SERVER_START_ATTEMPTS
	StartAttempts int `env:"START_ATTEMPTS"`

	// StartBackoff is the base delay between start polls; the delay
	// doubles after every failed poll. Env: ADBX_SERVER_START_BACKOFF
	StartBackoff time.Duration `env:"START_BACKOFF"`
}

// Transfer holds file-transfer settings.
type Transfer struct {
	// Workers bounds the worker pool used by recursive transfers. Each
	// worker owns its own connection. Env: ADBX_TRANSFER_WORKERS
	Workers int `env:"WORKERS"`

	// OutputDir is the default local destination for pulls when the
	// caller gives none. Env: ADBX_TRANSFER_OUTPUT_DIR
	OutputDir string `env:"OUTPUT_DIR"`
}

// Registry holds the bounded retry applied when an enumeration right after
// a server start transiently reports zero devices.
type Registry struct {
	// ListRetryAttempts is the number of extra enumeration attempts.
	// Env: ADBX_REGISTRY_LIST_RETRY_ATTEMPTS
	ListRetryAttempts int `env:"LIST_RETRY_ATTEMPTS"`

	// ListRetryDelay is the pause before each retry.
	// Env: ADBX_REGISTRY_LIST_RETRY_DELAY
	ListRetryDelay time.Duration `env:"LIST_RETRY_DELAY"`
}

// GetConfig builds the final client configuration: environment variables
// first, command-line flags on top, then the optional JSON file, merged in
// order and completed with defaults.
func GetConfig() (*StructuredConfig, error) {
	cfg, err := newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, cfg.validate()
}

// LookupAlias resolves a user-chosen device name to the serial it was
// assigned to. The second return value reports whether the alias exists.
func (cfg *StructuredConfig) LookupAlias(name string) (string, bool) {
	serial, ok := cfg.Aliases[name]
	return serial, ok
}

func (cfg *StructuredConfig) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Binary == "" {
		cfg.Server.Binary = DefaultServerBinary
	}
	if cfg.Server.DialTimeout <= 0 {
		cfg.Server.DialTimeout = DefaultDialTimeout
	}
	if cfg.Server.StartAttempts <= 0 {
		cfg.Server.StartAttempts = DefaultStartAttempts
	}
	if cfg.Server.StartBackoff <= 0 {
		cfg.Server.StartBackoff = DefaultStartBackoff
	}
	if cfg.Transfer.Workers <= 0 {
		cfg.Transfer.Workers = DefaultWorkers
	}
	if cfg.Registry.ListRetryAttempts <= 0 {
		cfg.Registry.ListRetryAttempts = DefaultListAttempts
	}
	if cfg.Registry.ListRetryDelay <= 0 {
		cfg.Registry.ListRetryDelay = DefaultListDelay
	}
}

// validate checks that the final merged [StructuredConfig] satisfies the
// client's invariants before it is used at startup.
func (cfg *StructuredConfig) validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return ErrInvalidServerConfigs
	}
	if cfg.Transfer.Workers < 1 {
		return ErrInvalidTransferConfigs
	}
	return nil
}
