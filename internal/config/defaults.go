package config

import (
	"path/filepath"

	"github.com/tonimelisma/objectstorage-go/internal/swift"
)

// Default values for configuration options.
const (
	defaultConnectTimeout  = "10s"
	defaultDataTimeout     = "60s"
	defaultChunkSize       = "64KiB"
	defaultParallelUploads = 4
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	sessionFileName        = "session.json"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Datacenter:  swift.DefaultDatacenter,
			Network:     swift.DefaultNetwork,
			Protocol:    swift.DefaultProtocol,
			SessionFile: defaultSessionFile(),
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
			UserAgent:      swift.UserAgent,
		},
		Transfers: TransfersConfig{
			ChunkSize:       defaultChunkSize,
			ParallelUploads: defaultParallelUploads,
			VerifyChecksums: true,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}

func defaultSessionFile() string {
	dir := DefaultCacheDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, sessionFileName)
}
