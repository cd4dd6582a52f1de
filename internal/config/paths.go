package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Application directory name used across all platforms.
const appName = "objectstorage-go"

const configFileName = "config.toml"

// appDir describes where one kind of per-user directory lives.
type appDir struct {
	xdgEnv string // honored on Linux only
	unix   string // relative to $HOME
	darwin string // relative to $HOME
}

var (
	configDirs = appDir{xdgEnv: "XDG_CONFIG_HOME", unix: ".config", darwin: "Library/Application Support"}
	cacheDirs  = appDir{xdgEnv: "XDG_CACHE_HOME", unix: ".cache", darwin: "Library/Caches"}
)

// resolve returns the application directory for goos under home.
func (d appDir) resolve(goos, home string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, filepath.FromSlash(d.darwin), appName)
	case "linux":
		if xdg := os.Getenv(d.xdgEnv); xdg != "" {
			return filepath.Join(xdg, appName)
		}
	}

	return filepath.Join(home, d.unix, appName)
}

func (d appDir) current() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return d.resolve(runtime.GOOS, home)
}

// DefaultConfigDir returns the platform-specific directory for config files:
// $XDG_CONFIG_HOME/objectstorage-go or ~/.config/objectstorage-go on Linux,
// ~/Library/Application Support/objectstorage-go on macOS.
func DefaultConfigDir() string {
	return configDirs.current()
}

// DefaultCacheDir returns the directory holding the session cache:
// $XDG_CACHE_HOME/objectstorage-go or ~/.cache/objectstorage-go on Linux,
// ~/Library/Caches/objectstorage-go on macOS.
func DefaultCacheDir() string {
	return cacheDirs.current()
}

// DefaultConfigPath returns the full path to the default config file, used
// when neither OBJECTSTORAGE_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}
