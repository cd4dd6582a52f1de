package config

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
)

// ParseSize converts a human-readable size string to bytes. IEC suffixes
// (KiB, MiB, GiB) are binary, SI suffixes (KB, MB, GB) are decimal and a
// bare number is raw bytes. Empty string and "0" return 0.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	parse := units.FromHumanSize
	if strings.Contains(strings.ToUpper(s), "IB") {
		parse = units.RAMInBytes
	}

	n, err := parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	return n, nil
}

// FormatSize renders n bytes with binary units, e.g. "1.5MiB".
func FormatSize(n int64) string {
	return units.BytesSize(float64(n))
}
