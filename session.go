package main

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/tonimelisma/objectstorage-go/internal/config"
	"github.com/tonimelisma/objectstorage-go/internal/sessioncache"
	"github.com/tonimelisma/objectstorage-go/internal/swift"
	"github.com/tonimelisma/objectstorage-go/internal/transfer"
)

// StorageSession holds the authenticator, the request client and the
// transfer manager built from the resolved config.
type StorageSession struct {
	Auth     *swift.Authenticator
	Client   *swift.Client
	Account  *swift.Account
	Transfer *transfer.Manager
	Logger   *slog.Logger

	sessionFile string
}

// NewStorageSession wires the transport from cfg. A cached session is
// restored when it was issued for the same user and auth endpoint, and
// every new session is written back to the cache.
func NewStorageSession(cfg *config.Config, logger *slog.Logger, metrics *swift.Metrics) (*StorageSession, error) {
	creds := cfg.Credentials()
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%w (set [auth] in the config file or %s/%s)",
			err, config.EnvUsername, config.EnvAPIKey)
	}

	endpoint := cfg.Endpoint()

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout()}
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.Network.InsecureSkipVerify} //nolint:gosec // opt-in via config

	httpClient := &http.Client{
		// No overall timeout: downloads stream for as long as they need.
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSClientConfig:       tlsConfig,
			ResponseHeaderTimeout: cfg.DataTimeout(),
			ForceAttemptHTTP2:     true,
		},
	}

	auth := swift.NewAuthenticator(creds, endpoint, httpClient, logger)

	s := &StorageSession{
		Auth:   auth,
		Logger: logger,
	}

	if creds.Token == "" && cfg.Auth.SessionFile != "" {
		s.sessionFile = cfg.Auth.SessionFile
		s.restoreCachedSession(cfg, endpoint)
	}

	s.Client = swift.NewClient(auth, swift.ClientConfig{
		HTTPClient:  httpClient,
		Logger:      logger,
		UserAgent:   cfg.Network.UserAgent,
		Metrics:     metrics,
		Dialer:      dialer,
		TLSConfig:   tlsConfig,
		DataTimeout: cfg.DataTimeout(),
	})
	s.Account = swift.NewAccount(s.Client)
	s.Transfer = transfer.NewManager(transfer.Options{
		ChunkSize: cfg.ChunkBytes(),
		Workers:   cfg.Transfers.ParallelUploads,
		Verify:    cfg.Transfers.VerifyChecksums,
	}, logger)

	return s, nil
}

func (s *StorageSession) restoreCachedSession(cfg *config.Config, endpoint swift.EndpointSelection) {
	authURL, err := endpoint.ResolveAuthURL()
	if err != nil {
		// Authenticate reports this with full context.
		return
	}

	meta := map[string]string{
		sessioncache.MetaAuthURL:  authURL,
		sessioncache.MetaUsername: cfg.Auth.Username,
	}

	s.Auth.OnSessionChange = sessioncache.Persister(s.sessionFile, meta, s.Logger)

	cached, cachedMeta, err := sessioncache.Load(s.sessionFile)
	if err != nil {
		s.Logger.Warn("ignoring unreadable session cache",
			slog.String("path", s.sessionFile), slog.String("error", err.Error()))

		return
	}

	if cached == nil {
		return
	}

	if cachedMeta[sessioncache.MetaAuthURL] != authURL || cachedMeta[sessioncache.MetaUsername] != cfg.Auth.Username {
		s.Logger.Debug("session cache belongs to another account, ignoring")
		return
	}

	if s.Auth.Restore(cached) {
		s.Logger.Debug("restored cached session", slog.String("path", s.sessionFile))
	}
}

// newStorageSession builds a StorageSession from the globals set up by the
// root command.
func newStorageSession() (*StorageSession, error) {
	return NewStorageSession(resolvedCfg, buildLogger(), cliMetrics)
}
