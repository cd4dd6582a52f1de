package swift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Auth protocol header names.
const (
	headerStorageUser  = "X-Storage-User"
	headerStoragePass  = "X-Storage-Pass"
	headerAuthToken    = "X-Auth-Token"
	headerStorageURL   = "X-Storage-Url"
	headerTokenExpires = "X-Auth-Token-Expires"
)

// catalogDefaultKey names the entry in the storage catalog that points at
// the network to use when the caller did not ask for one.
const catalogDefaultKey = "default"

// maxCatalogBody caps how much of an auth response body is read.
const maxCatalogBody = 1 << 20

// Credentials identify the account. Either Username+APIKey or Token is set.
// A pre-issued Token needs a StorageURL since no auth exchange takes place.
type Credentials struct {
	Username   string
	APIKey     string
	Token      string
	StorageURL string
}

// Validate checks that exactly one credential form is present.
func (c Credentials) Validate() error {
	hasKey := c.Username != "" || c.APIKey != ""
	hasToken := c.Token != ""

	switch {
	case hasKey && hasToken:
		return fmt.Errorf("%w: username/api key and token are mutually exclusive", ErrAuthentication)
	case hasToken:
		if c.StorageURL == "" {
			return fmt.Errorf("%w: a pre-issued token requires a storage URL", ErrAuthentication)
		}

		return nil
	case c.Username == "" || c.APIKey == "":
		return fmt.Errorf("%w: username and api key are required", ErrAuthentication)
	default:
		return nil
	}
}

// Session is the result of a successful authentication. Sessions are
// immutable; re-authentication publishes a new one.
type Session struct {
	Token      string
	StorageURL string
	IssuedAt   time.Time
	Expiry     time.Time // zero if the server did not say
}

// Headers returns the identity headers for this session.
func (s *Session) Headers() http.Header {
	return http.Header{headerAuthToken: []string{s.Token}}
}

// Expired reports whether the server-declared expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

// Authenticator holds credentials and the current Session. Authenticate may
// be called from many goroutines: exchanges are serialized and readers see
// either the old or the new session in full.
type Authenticator struct {
	creds      Credentials
	selection  EndpointSelection
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	mu      sync.Mutex // serializes exchanges
	session atomic.Pointer[Session]

	// OnSessionChange is called after a new session is published. It runs
	// outside the exchange lock.
	OnSessionChange func(*Session)

	nowFunc func() time.Time
}

// NewAuthenticator creates an Authenticator. No request is made until
// Authenticate or Current is called.
func NewAuthenticator(
	creds Credentials, selection EndpointSelection, httpClient *http.Client, logger *slog.Logger,
) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Authenticator{
		creds:      creds,
		selection:  selection,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  UserAgent,
		nowFunc:    time.Now,
	}
}

// Session returns the currently published session, or nil.
func (a *Authenticator) Session() *Session {
	return a.session.Load()
}

// Restore publishes a previously cached session without contacting the
// auth endpoint. Nil or expired sessions are ignored.
func (a *Authenticator) Restore(s *Session) bool {
	if s == nil || s.Token == "" || s.StorageURL == "" || s.Expired(a.nowFunc()) {
		return false
	}

	a.session.Store(s)
	a.logger.Debug("restored cached session", slog.Time("expiry", s.Expiry))

	return true
}

// Current returns the published session, authenticating first if there is
// none yet.
func (a *Authenticator) Current(ctx context.Context) (*Session, error) {
	if s := a.session.Load(); s != nil {
		return s, nil
	}

	return a.Refresh(ctx, nil)
}

// Refresh re-authenticates unless the published session is already newer
// than stale. Concurrent callers holding the same stale session trigger a
// single exchange; the rest pick up its result.
func (a *Authenticator) Refresh(ctx context.Context, stale *Session) (*Session, error) {
	a.mu.Lock()

	cur := a.session.Load()
	if cur != nil && cur != stale {
		a.mu.Unlock()
		a.logger.Debug("session already refreshed by another caller")

		return cur, nil
	}

	s, err := a.exchange(ctx)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}

	a.session.Store(s)
	a.mu.Unlock()

	if a.OnSessionChange != nil {
		a.OnSessionChange(s)
	}

	return s, nil
}

// Authenticate performs an auth exchange unconditionally and publishes the
// resulting session.
func (a *Authenticator) Authenticate(ctx context.Context) (*Session, error) {
	return a.Refresh(ctx, a.session.Load())
}

// exchange obtains a new session. Callers hold a.mu.
func (a *Authenticator) exchange(ctx context.Context) (*Session, error) {
	if err := a.creds.Validate(); err != nil {
		return nil, err
	}

	if a.creds.Token != "" {
		a.logger.Debug("using pre-issued token")

		return &Session{
			Token:      a.creds.Token,
			StorageURL: a.creds.StorageURL,
			IssuedAt:   a.nowFunc(),
		}, nil
	}

	authURL, err := a.selection.ResolveAuthURL()
	if err != nil {
		return nil, err
	}

	a.logger.Info("authenticating",
		slog.String("username", a.creds.Username),
		slog.String("network", valueOrDefault(a.selection.Network, "default")),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("swift: creating auth request: %w", err)
	}

	req.Header.Set(headerStorageUser, a.creds.Username)
	req.Header.Set(headerStoragePass, a.creds.APIKey)
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("auth request failed", slog.String("error", err.Error()))
		return nil, &ConnectionError{Op: "auth request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBody))
	if err != nil {
		return nil, &ConnectionError{Op: "reading auth response", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		a.logger.Warn("auth rejected: invalid credentials")
		return nil, fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	}

	if !isSuccess(resp.StatusCode) {
		a.logger.Error("auth request returned error status", slog.Int("status", resp.StatusCode))
		return nil, newResponseError(resp.StatusCode, resp.Header, body)
	}

	return a.sessionFromResponse(resp, body)
}

// sessionFromResponse extracts token and storage URL from a 2xx auth
// response. A non-empty body is a JSON service catalog; otherwise the
// X-Storage-Url header is used.
func (a *Authenticator) sessionFromResponse(resp *http.Response, body []byte) (*Session, error) {
	token := resp.Header.Get(headerAuthToken)
	if token == "" {
		return nil, fmt.Errorf("%w: invalid authentication response (no token)", ErrAuthentication)
	}

	storageURL := resp.Header.Get(headerStorageURL)

	if len(strings.TrimSpace(string(body))) > 0 {
		catalog, err := parseCatalog(body)
		if err != nil {
			a.logger.Warn("could not parse service catalog", slog.String("error", err.Error()))
			return nil, &CatalogError{Token: token, FallbackURL: storageURL, Err: err}
		}

		storageURL, err = catalog.resolve(a.selection.Network)
		if err != nil {
			return nil, err
		}
	}

	if storageURL == "" {
		return nil, fmt.Errorf("%w: invalid authentication response (no storage URL)", ErrAuthentication)
	}

	now := a.nowFunc()
	s := &Session{
		Token:      token,
		StorageURL: storageURL,
		IssuedAt:   now,
	}

	if raw := resp.Header.Get(headerTokenExpires); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
			s.Expiry = now.Add(time.Duration(secs) * time.Second)
		} else {
			a.logger.Warn("ignoring malformed token expiry", slog.String("raw", raw))
		}
	}

	a.logger.Info("authenticated", slog.Time("expiry", s.Expiry))

	return s, nil
}

// storageCatalog is the set of storage endpoints keyed by network type,
// plus a "default" entry naming one of the other keys.
type storageCatalog map[string]string

func parseCatalog(body []byte) (storageCatalog, error) {
	var doc struct {
		Storage storageCatalog `json:"storage"`
	}

	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	if doc.Storage == nil {
		return nil, errors.New("missing \"storage\" object")
	}

	return doc.Storage, nil
}

// resolve applies the endpoint policy: the catalog default when network is
// empty, otherwise the entry for network.
func (c storageCatalog) resolve(network string) (string, error) {
	key := strings.ToLower(network)
	if key == "" {
		key = c[catalogDefaultKey]
		if key == "" {
			return "", fmt.Errorf("%w: catalog declares no default network", ErrStorageEndpointNotFound)
		}
	}

	u, ok := c[key]
	if !ok || u == "" || key == catalogDefaultKey {
		return "", fmt.Errorf("%w: no %q entry in catalog", ErrStorageEndpointNotFound, key)
	}

	return u, nil
}
