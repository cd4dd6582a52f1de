// Package testutil provides shared helpers for E2E tests that run the built
// binary against a live storage account. E2E tests cannot import internal/,
// so nothing here depends on the module's own packages.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by the E2E suite.
const (
	// EnvAllowedAccounts is a comma-separated list of usernames (or storage
	// URLs for token auth) that tests may create and delete containers in.
	EnvAllowedAccounts = "OBJECTSTORAGE_ALLOWED_TEST_ACCOUNTS"
	envUsername        = "OBJECTSTORAGE_USERNAME"
	envStorageURL      = "OBJECTSTORAGE_STORAGE_URL"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly). Existing env
// vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	_ = godotenv.Load(envPath)
}

// Account returns the identity the E2E suite will run as: the username, or
// the storage URL when a pre-issued token is used. Empty when no live
// credentials are configured.
func Account() string {
	if u := os.Getenv(envUsername); u != "" {
		return u
	}

	return os.Getenv(envStorageURL)
}

// ValidateAllowlist crashes the process if the configured account is not in
// OBJECTSTORAGE_ALLOWED_TEST_ACCOUNTS. The suite creates and deletes
// containers, so it must never run against an arbitrary account.
func ValidateAllowlist(account string) {
	allowlist := os.Getenv(EnvAllowedAccounts)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvAllowedAccounts)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=SLOS123456-2:alice\n", EnvAllowedAccounts)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == account {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: account %q is not in %s=%q\n", account, EnvAllowedAccounts, allowlist)
	os.Exit(1)
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
