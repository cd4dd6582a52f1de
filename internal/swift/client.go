package swift

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserAgent identifies this client on every request.
const UserAgent = "objectstorage-go/0.1"

// headerTransIDExtra is echoed by Swift into X-Trans-Id, which lets a client
// correlate its own logs with the proxy's.
const headerTransIDExtra = "X-Trans-Id-Extra"

// SessionSource supplies auth sessions. Defined at the consumer; satisfied
// by *Authenticator.
type SessionSource interface {
	// Current returns the published session, authenticating if needed.
	Current(ctx context.Context) (*Session, error)
	// Refresh replaces stale with a freshly authenticated session.
	Refresh(ctx context.Context, stale *Session) (*Session, error)
}

// Request describes one call against the storage endpoint.
type Request struct {
	Method string
	// Path segments below the storage URL. Each is percent-encoded on its own.
	Path []string
	// URL, if set, is used instead of storage URL + Path.
	URL    string
	Header http.Header
	Query  url.Values
	// Body is replayed after re-authentication when it implements
	// io.ReaderAt (with a known size) or io.Seeker. Other readers are sent
	// once and a 401 on them surfaces as ErrBodyNotReplayable.
	Body io.Reader
	// ContentLength of Body, or 0 to let net/http work it out.
	ContentLength int64
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte // nil for HEAD and DELETE
}

// ClientConfig carries the optional collaborators of a Client.
type ClientConfig struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
	Metrics    *Metrics
	// Dialer and TLSConfig are used by chunked upload streams, which manage
	// their own connection.
	Dialer    *net.Dialer
	TLSConfig *tls.Config
	// Proxy picks the proxy for upload streams. Defaults to the Proxy of
	// HTTPClient's transport.
	Proxy func(*http.Request) (*url.URL, error)
	// DataTimeout bounds each read and write on an upload stream. Defaults
	// to HTTPClient.Timeout; zero disables it.
	DataTimeout time.Duration
}

// Client executes requests against the storage endpoint. It attaches auth
// headers, re-authenticates and replays exactly once on a 401, and
// classifies terminal statuses into typed errors.
type Client struct {
	auth       SessionSource
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	metrics    *Metrics
	dialer     *net.Dialer
	tlsConfig  *tls.Config
	proxy      func(*http.Request) (*url.URL, error)

	// dataTimeout of zero leaves upload connections without deadlines.
	dataTimeout time.Duration

	// newTransID generates X-Trans-Id-Extra values. Tests override it.
	newTransID func() string
}

// NewClient creates a Client that authenticates through auth.
func NewClient(auth SessionSource, cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgent
	}

	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}

	if cfg.Proxy == nil {
		cfg.Proxy = transportProxy(cfg.HTTPClient)
	}

	if cfg.DataTimeout == 0 {
		cfg.DataTimeout = cfg.HTTPClient.Timeout
	}

	return &Client{
		auth:        auth,
		httpClient:  cfg.HTTPClient,
		logger:      cfg.Logger,
		userAgent:   cfg.UserAgent,
		metrics:     cfg.Metrics,
		dialer:      cfg.Dialer,
		tlsConfig:   cfg.TLSConfig,
		proxy:       cfg.Proxy,
		dataTimeout: cfg.DataTimeout,
		newTransID:  uuid.NewString,
	}
}

// transportProxy returns the proxy function hc's requests go through. A nil
// transport means http.DefaultTransport.
func transportProxy(hc *http.Client) func(*http.Request) (*url.URL, error) {
	rt := hc.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	if t, ok := rt.(*http.Transport); ok {
		return t.Proxy
	}

	return nil
}

// StorageURL returns the storage endpoint of the current session,
// authenticating first if necessary.
func (c *Client) StorageURL(ctx context.Context) (string, error) {
	s, err := c.auth.Current(ctx)
	if err != nil {
		return "", err
	}

	return s.StorageURL, nil
}

// Do executes req and reads the whole response body (except for HEAD and
// DELETE, whose responses carry none).
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
	}

	if !hasResponseBody(req.Method) {
		return out, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Op: "reading response body", Err: err}
	}

	out.Body = body

	return out, nil
}

// send executes req and returns a 2xx response with an open body. On a 401
// it re-authenticates once and replays; any other failure is terminal.
func (c *Client) send(ctx context.Context, req *Request) (*http.Response, error) {
	sess, err := c.auth.Current(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.doOnce(ctx, req, sess, 0)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drainAndClose(resp)

		c.logger.Info("token rejected, re-authenticating",
			slog.String("method", req.Method),
			slog.String("path", req.logPath()),
		)
		c.metrics.reauthenticated()

		fresh, authErr := c.auth.Refresh(ctx, sess)
		if authErr != nil {
			return nil, fmt.Errorf("swift: re-authenticating after 401: %w", authErr)
		}

		resp, err = c.doOnce(ctx, req, fresh, 1)
		if err != nil {
			return nil, err
		}
	}

	if isSuccess(resp.StatusCode) {
		c.logger.Debug("request succeeded",
			slog.String("method", req.Method),
			slog.String("path", req.logPath()),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	var errBody []byte
	if hasResponseBody(req.Method) {
		errBody, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1)) //nolint:errcheck // best-effort read for error message
	}

	resp.Body.Close()

	respErr := newResponseError(resp.StatusCode, resp.Header, errBody)

	c.logger.Debug("request failed",
		slog.String("method", req.Method),
		slog.String("path", req.logPath()),
		slog.Int("status", resp.StatusCode),
		slog.String("trans_id", respErr.TransID),
	)

	return nil, respErr
}

// doOnce issues a single HTTP request with headers from sess.
func (c *Client) doOnce(ctx context.Context, req *Request, sess *Session, attempt int) (*http.Response, error) {
	target, err := req.resolveURL(sess.StorageURL)
	if err != nil {
		return nil, err
	}

	body, length, err := req.bodyForAttempt(attempt)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("swift: creating request: %w", err)
	}

	if length > 0 {
		httpReq.ContentLength = length
	}

	c.applyHeaders(httpReq, req.Header, sess)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.requestDone(req.Method, 0)

		op := "request failed"
		if ctx.Err() != nil {
			op = "request canceled"
		}

		c.logger.Warn("request failed at transport level",
			slog.String("method", req.Method),
			slog.String("path", req.logPath()),
			slog.String("error", err.Error()),
		)

		return nil, &ConnectionError{Op: fmt.Sprintf("%s %s %s", req.Method, req.logPath(), op), Err: err}
	}

	c.metrics.requestDone(req.Method, resp.StatusCode)

	return resp, nil
}

// applyHeaders merges caller headers with session headers. The auth token
// always comes from the session; everything else the caller set explicitly
// wins over our defaults.
func (c *Client) applyHeaders(httpReq *http.Request, caller http.Header, sess *Session) {
	for k, vs := range caller {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	for k, vs := range sess.Headers() {
		httpReq.Header[k] = vs
	}

	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	if httpReq.Header.Get(headerTransIDExtra) == "" {
		httpReq.Header.Set(headerTransIDExtra, c.newTransID())
	}
}

// resolveURL returns the absolute URL for the request.
func (r *Request) resolveURL(storageURL string) (string, error) {
	if r.URL != "" {
		if q := EncodeQuery(r.Query); q != "" {
			sep := "?"
			if strings.Contains(r.URL, "?") {
				sep = "&"
			}

			return r.URL + sep + q, nil
		}

		return r.URL, nil
	}

	if storageURL == "" {
		return "", fmt.Errorf("%w: session has no storage URL", ErrStorageEndpointNotFound)
	}

	return JoinURL(storageURL, r.Path, r.Query), nil
}

// bodyForAttempt returns a fresh reader over the request body. Attempt 0 may
// use the body directly; later attempts need a replayable body.
func (r *Request) bodyForAttempt(attempt int) (io.Reader, int64, error) {
	if r.Body == nil {
		return http.NoBody, 0, nil
	}

	size := r.ContentLength
	if size <= 0 {
		if s, ok := r.Body.(interface{ Size() int64 }); ok {
			size = s.Size()
		}
	}

	if ra, ok := r.Body.(io.ReaderAt); ok && size > 0 {
		return io.NewSectionReader(ra, 0, size), size, nil
	}

	if attempt == 0 {
		return r.Body, size, nil
	}

	if err := rewindBody(r.Body); err != nil {
		return nil, 0, err
	}

	return r.Body, size, nil
}

// rewindBody seeks a replayable body back to the start.
func rewindBody(body io.Reader) error {
	seeker, ok := body.(io.Seeker)
	if !ok {
		return ErrBodyNotReplayable
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewinding: %w", ErrBodyNotReplayable, err)
	}

	return nil
}

// logPath is the request path for logs. Never includes the storage host or
// any token.
func (r *Request) logPath() string {
	if r.URL != "" {
		if u, err := url.Parse(r.URL); err == nil {
			return u.Path
		}

		return "(url)"
	}

	return "/" + strings.Join(r.Path, "/")
}

// hasResponseBody reports whether a response to method defines a body.
func hasResponseBody(method string) bool {
	return method != http.MethodHead && method != http.MethodDelete
}

// drainAndClose discards what is left of a body so the connection can be
// reused, then closes it.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort drain
	resp.Body.Close()
}

// bytesBody wraps b as a replayable request body.
func bytesBody(b []byte) io.Reader {
	return bytes.NewReader(b)
}
