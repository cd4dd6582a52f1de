package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/objectstorage-go/internal/config"
	"github.com/tonimelisma/objectstorage-go/internal/swift"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagEnvFile    string
	flagDatacenter string
	flagNetwork    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Config

// metricsRegistry collects transport metrics for the current invocation.
// Written to [metrics] textfile after the command finishes.
var (
	metricsRegistry *prometheus.Registry
	cliMetrics      *swift.Metrics
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "objectstorage-go",
		Short:   "Swift object storage CLI client",
		Long:    "A command line client for Swift-compatible object storage.",
		Version: version,
		// Errors and usage are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return writeMetrics()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "load environment overrides from this dotenv file")
	cmd.PersistentFlags().StringVar(&flagDatacenter, "datacenter", "", "datacenter of the auth endpoint (e.g. dal05)")
	cmd.PersistentFlags().StringVar(&flagNetwork, "network", "", "endpoint network: public or private")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newCatCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newCpCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newMetaCmd())
	cmd.AddCommand(newVerifyCmd())

	return cmd
}

// loadConfig resolves the effective configuration and stores it in
// resolvedCfg for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(flagEnvFile, flagEnvFile != ""); err != nil {
		return err
	}

	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		EnvFile:    flagEnvFile,
		Datacenter: flagDatacenter,
		Network:    flagNetwork,
	}

	if f := cmd.Flags().Lookup("chunk-size"); f != nil && f.Changed {
		cli.ChunkSize = f.Value.String()
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved
	metricsRegistry = prometheus.NewRegistry()
	cliMetrics = swift.NewMetrics(metricsRegistry)

	return nil
}

// writeMetrics exports the invocation's metrics for the node exporter
// textfile collector when configured.
func writeMetrics() error {
	if resolvedCfg == nil || resolvedCfg.Metrics.Textfile == "" || metricsRegistry == nil {
		return nil
	}

	if err := prometheus.WriteToTextfile(resolvedCfg.Metrics.Textfile, metricsRegistry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. --verbose and --quiet override the config file level. With
// log_format "auto" a terminal gets text and anything else gets JSON.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	format := "auto"

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = resolvedCfg.Logging.LogFormat
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if useJSONLogs(format, os.Stderr.Fd()) {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func useJSONLogs(format string, fd uintptr) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	default:
		return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
