package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/objectstorage-go/internal/sessioncache"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate and cache the session",
		Long: `Exchange the configured credentials for an auth token and cache the
resulting session so later commands skip the auth round trip. Prints the
storage URL of the account.`,
		Args: cobra.NoArgs,
		RunE: runAuth,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

// authOutput is the JSON schema for `auth --json`.
type authOutput struct {
	StorageURL string `json:"storage_url"`
	Expires    string `json:"expires,omitempty"`
	Cached     bool   `json:"cached"`
}

func runAuth(cmd *cobra.Command, _ []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	session, err := ss.Auth.Authenticate(cmd.Context())
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	ss.Logger.Info("authenticated", "storage_url", session.StorageURL)

	out := authOutput{
		StorageURL: session.StorageURL,
		Cached:     ss.sessionFile != "",
	}

	if !session.Expiry.IsZero() {
		out.Expires = session.Expiry.Format(time.RFC3339)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	fmt.Fprintln(cmd.OutOrStdout(), out.StorageURL)

	if out.Expires != "" {
		statusf("Token expires %s\n", out.Expires)
	}

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	path := resolvedCfg.Auth.SessionFile
	if path == "" {
		statusf("Session caching is disabled; nothing to remove.\n")
		return nil
	}

	if err := sessioncache.Remove(path); err != nil {
		return err
	}

	logger.Info("logout successful", "path", path)
	statusf("Logged out.\n")

	return nil
}
