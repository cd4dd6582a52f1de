package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tonimelisma/objectstorage-go/internal/swift"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal and come with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags. The
// result is validated again since env and flags bypass the file checks.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	env.Apply(cfg)

	setIf(&cfg.Auth.Datacenter, cli.Datacenter)
	setIf(&cfg.Auth.Network, cli.Network)
	setIf(&cfg.Transfers.ChunkSize, cli.ChunkSize)
	setIf(&cfg.Logging.LogLevel, cli.LogLevel)

	if cli.Verify != nil {
		cfg.Transfers.VerifyChecksums = *cli.Verify
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Credentials returns the account credentials for the authenticator.
func (c *Config) Credentials() swift.Credentials {
	return swift.Credentials{
		Username:   c.Auth.Username,
		APIKey:     c.Auth.APIKey,
		Token:      c.Auth.AuthToken,
		StorageURL: c.Auth.StorageURL,
	}
}

// Endpoint returns the auth endpoint selection.
func (c *Config) Endpoint() swift.EndpointSelection {
	return swift.EndpointSelection{
		AuthURL:    c.Auth.AuthURL,
		Datacenter: c.Auth.Datacenter,
		Network:    c.Auth.Network,
		Protocol:   c.Auth.Protocol,
	}
}

// ChunkBytes returns transfers.chunk_size in bytes. The value has been
// validated, so a parse failure falls back to the default.
func (c *Config) ChunkBytes() int {
	n, err := ParseSize(c.Transfers.ChunkSize)
	if err != nil || n <= 0 {
		n, _ = ParseSize(defaultChunkSize)
	}

	return int(n)
}

// ConnectTimeout returns network.connect_timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return durationOr(c.Network.ConnectTimeout, defaultConnectTimeout)
}

// DataTimeout returns network.data_timeout.
func (c *Config) DataTimeout() time.Duration {
	return durationOr(c.Network.DataTimeout, defaultDataTimeout)
}

func durationOr(v, def string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}

	return d
}
