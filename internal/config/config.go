// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for objectstorage-go. Values are layered
// as defaults -> config file -> environment -> CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth      AuthConfig      `toml:"auth"`
	Network   NetworkConfig   `toml:"network"`
	Transfers TransfersConfig `toml:"transfers"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// AuthConfig identifies the account and the auth endpoint. Either
// username + api_key or auth_token + storage_url must be present once all
// layers are applied.
type AuthConfig struct {
	Username   string `toml:"username"`
	APIKey     string `toml:"api_key"`
	AuthToken  string `toml:"auth_token"`
	StorageURL string `toml:"storage_url"`
	AuthURL    string `toml:"auth_url"`
	Datacenter string `toml:"datacenter"`
	Network    string `toml:"network"`
	Protocol   string `toml:"protocol"`
	// SessionFile caches the session between runs. Empty disables caching.
	SessionFile string `toml:"session_file"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout     string `toml:"connect_timeout"`
	DataTimeout        string `toml:"data_timeout"`
	UserAgent          string `toml:"user_agent"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// TransfersConfig controls chunking and parallelism of file transfers.
type TransfersConfig struct {
	ChunkSize       string `toml:"chunk_size"`
	ParallelUploads int    `toml:"parallel_uploads"`
	VerifyChecksums bool   `toml:"verify_checksums"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// MetricsConfig controls the Prometheus textfile written at exit.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish
// "not specified" (nil) from an explicit zero value.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	EnvFile    string // --env-file flag
	Datacenter string
	Network    string
	ChunkSize  string
	LogLevel   string
	Verify     *bool
}
