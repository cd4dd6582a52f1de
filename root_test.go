package main

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/objectstorage-go/internal/config"
)

func TestNewRootCmd_RegistersCommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	sort.Strings(names)

	for _, want := range []string{
		"auth", "cat", "config", "cp", "get", "logout", "ls", "meta",
		"mkdir", "mv", "put", "rm", "stat", "verify",
	} {
		assert.Contains(t, names, want)
	}
}

func TestUseJSONLogs(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, useJSONLogs("json", f.Fd()))
	assert.False(t, useJSONLogs("text", f.Fd()))
	assert.True(t, useJSONLogs("auto", f.Fd()), "a regular file is not a terminal")
}

func TestBuildLogger_Levels(t *testing.T) {
	t.Cleanup(func() {
		resolvedCfg, flagVerbose, flagQuiet = nil, false, false
	})

	tests := []struct {
		name    string
		level   string
		verbose bool
		quiet   bool
		want    slog.Level
	}{
		{"config debug", "debug", false, false, slog.LevelDebug},
		{"config warn", "warn", false, false, slog.LevelWarn},
		{"config error", "error", false, false, slog.LevelError},
		{"default info", "info", false, false, slog.LevelInfo},
		{"verbose wins", "error", true, false, slog.LevelDebug},
		{"quiet wins", "debug", false, true, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Logging.LogLevel = tt.level
			cfg.Logging.LogFormat = "text"

			resolvedCfg, flagVerbose, flagQuiet = cfg, tt.verbose, tt.quiet

			logger := buildLogger()
			ctx := context.Background()

			assert.True(t, logger.Enabled(ctx, tt.want))

			if tt.want > slog.LevelDebug {
				assert.False(t, logger.Enabled(ctx, tt.want-1))
			}
		})
	}
}

func TestRedactConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Auth.Username = "alice"
	cfg.Auth.APIKey = "secret"

	shown := redactConfig(cfg)
	assert.Equal(t, "alice", shown.Auth.Username)
	assert.Equal(t, redacted, shown.Auth.APIKey)
	assert.Empty(t, shown.Auth.AuthToken, "unset secrets stay empty")
	assert.Equal(t, "secret", cfg.Auth.APIKey, "original is untouched")
}

func TestWatchSignals_FirstCancelsSecondForces(t *testing.T) {
	flagQuiet = true
	t.Cleanup(func() { flagQuiet = false })

	parent, stopParent := context.WithCancel(context.Background())
	defer stopParent()

	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	forced := make(chan struct{})

	done := make(chan struct{})

	go func() {
		watchSignals(ctx, parent, cancel, sigCh, func() { close(forced) })
		close(done)
	}()

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("first signal did not cancel the context")
	}

	sigCh <- os.Interrupt

	select {
	case <-forced:
	case <-time.After(5 * time.Second):
		t.Fatal("second signal did not force exit")
	}

	<-done
}

func TestWatchSignals_ReturnsWhenContextEnds(t *testing.T) {
	parent, stopParent := context.WithCancel(context.Background())
	ctx, cancel := context.WithCancel(parent)

	done := make(chan struct{})

	go func() {
		watchSignals(ctx, parent, cancel, make(chan os.Signal, 1), func() { t.Error("unexpected force exit") })
		close(done)
	}()

	stopParent()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not return")
	}
}
