package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/tonimelisma/objectstorage-go/internal/swift"
)

// Validation range constants.
const (
	minParallelUploads = 1
	maxParallelUploads = 64
	minChunkBytes      = 1024
	maxChunkBytes      = 64 << 20
	minConnectTimeout  = 1 * time.Second
	minDataTimeout     = 5 * time.Second
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if a.AuthURL != "" {
		errs = append(errs, validateURL("auth_url", a.AuthURL)...)
	} else if a.Datacenter != "" && !slices.Contains(swift.Datacenters(), strings.ToLower(a.Datacenter)) {
		errs = append(errs, fmt.Errorf("datacenter: unknown datacenter %q; known: %s",
			a.Datacenter, strings.Join(swift.Datacenters(), ", ")))
	}

	if a.StorageURL != "" {
		errs = append(errs, validateURL("storage_url", a.StorageURL)...)
	}

	switch strings.ToLower(a.Network) {
	case "", swift.NetworkPublic, swift.NetworkPrivate:
	default:
		errs = append(errs, fmt.Errorf("network: must be %q or %q, got %q",
			swift.NetworkPublic, swift.NetworkPrivate, a.Network))
	}

	switch strings.ToLower(a.Protocol) {
	case "", swift.ProtocolHTTP, swift.ProtocolHTTPS:
	default:
		errs = append(errs, fmt.Errorf("protocol: must be %q or %q, got %q",
			swift.ProtocolHTTP, swift.ProtocolHTTPS, a.Protocol))
	}

	return errs
}

func validateURL(field, value string) []error {
	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []error{fmt.Errorf("%s: must be an absolute http(s) URL, got %q", field, value)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	if t.ParallelUploads < minParallelUploads || t.ParallelUploads > maxParallelUploads {
		errs = append(errs, fmt.Errorf("parallel_uploads: must be between %d and %d, got %d",
			minParallelUploads, maxParallelUploads, t.ParallelUploads))
	}

	errs = append(errs, validateChunkSize(t.ChunkSize)...)

	return errs
}

func validateChunkSize(s string) []error {
	bytes, err := ParseSize(s)
	if err != nil {
		return []error{fmt.Errorf("chunk_size: %w", err)}
	}

	if bytes < minChunkBytes || bytes > maxChunkBytes {
		return []error{fmt.Errorf("chunk_size: must be between %s and %s, got %s",
			FormatSize(minChunkBytes), FormatSize(maxChunkBytes), s)}
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}
