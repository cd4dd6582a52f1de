package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/objectstorage-go/internal/config"
)

// redacted replaces secrets in config show output.
const redacted = "<redacted>"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	shown := redactConfig(resolvedCfg)

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), shown)
	}

	if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(shown); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// redactConfig returns a copy of cfg with credentials masked.
func redactConfig(cfg *config.Config) config.Config {
	shown := *cfg

	if shown.Auth.APIKey != "" {
		shown.Auth.APIKey = redacted
	}

	if shown.Auth.AuthToken != "" {
		shown.Auth.AuthToken = redacted
	}

	return shown
}
