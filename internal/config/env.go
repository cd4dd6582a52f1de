package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names for overrides.
const (
	EnvConfig     = "OBJECTSTORAGE_CONFIG"
	EnvUsername   = "OBJECTSTORAGE_USERNAME"
	EnvAPIKey     = "OBJECTSTORAGE_API_KEY"
	EnvAuthToken  = "OBJECTSTORAGE_AUTH_TOKEN"
	EnvStorageURL = "OBJECTSTORAGE_STORAGE_URL"
	EnvAuthURL    = "OBJECTSTORAGE_AUTH_URL"
	EnvDatacenter = "OBJECTSTORAGE_DATACENTER"
	EnvNetwork    = "OBJECTSTORAGE_NETWORK"
	EnvLogLevel   = "OBJECTSTORAGE_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables. Empty
// fields were not set.
type EnvOverrides struct {
	ConfigPath string
	Username   string
	APIKey     string
	AuthToken  string
	StorageURL string
	AuthURL    string
	Datacenter string
	Network    string
	LogLevel   string
}

// LoadEnvFile adds the variables in a dotenv file to the process
// environment. Variables already set win over the file. A missing file is
// not an error unless it was asked for explicitly.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("loading env file %s: %w", path, err)
	}

	return nil
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify a Config; Apply does.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Username:   os.Getenv(EnvUsername),
		APIKey:     os.Getenv(EnvAPIKey),
		AuthToken:  os.Getenv(EnvAuthToken),
		StorageURL: os.Getenv(EnvStorageURL),
		AuthURL:    os.Getenv(EnvAuthURL),
		Datacenter: os.Getenv(EnvDatacenter),
		Network:    os.Getenv(EnvNetwork),
		LogLevel:   os.Getenv(EnvLogLevel),
	}
}

// Apply copies every set override into cfg.
func (e EnvOverrides) Apply(cfg *Config) {
	setIf(&cfg.Auth.Username, e.Username)
	setIf(&cfg.Auth.APIKey, e.APIKey)
	setIf(&cfg.Auth.AuthToken, e.AuthToken)
	setIf(&cfg.Auth.StorageURL, e.StorageURL)
	setIf(&cfg.Auth.AuthURL, e.AuthURL)
	setIf(&cfg.Auth.Datacenter, e.Datacenter)
	setIf(&cfg.Auth.Network, e.Network)
	setIf(&cfg.Logging.LogLevel, e.LogLevel)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
