package swift

import (
	"bufio"
	"context"
	"crypto/md5" //nolint:gosec // Swift ETags are MD5 digests
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// UnknownSize opens an upload stream in chunked transfer-encoding mode.
const UnknownSize int64 = -1

// earlyResponseWait bounds the read for a status the server may have sent
// before dropping a body it refused.
const earlyResponseWait = 2 * time.Second

// UploadStream writes an object body straight to the wire. With a known size
// the request carries Content-Length and the writes must add up to exactly
// that size; otherwise every Write is sent as one chunk frame.
//
// A stream is owned by one goroutine. Call Finish to complete the request,
// or Close to abandon it; both release the connection.
type UploadStream struct {
	client  *Client
	session *Session
	ctx     context.Context //nolint:containedctx // bound to the one request being streamed
	path    string

	conn      net.Conn
	w         *bufio.Writer
	stopWatch func() bool
	// proxy is set when a plain-http request goes through a forward proxy;
	// the request line then carries the absolute URL.
	proxy *url.URL

	size     int64 // UnknownSize in chunked mode
	written  int64
	digest   hash.Hash
	finished bool
	closed   bool
}

// OpenUpload starts a PUT to path (segments below the storage URL) and
// returns a stream for its body. header may carry metadata and content
// type; in chunked mode any Content-Length or ETag in it is dropped since
// neither is known up front.
func (c *Client) OpenUpload(ctx context.Context, path []string, header http.Header, size int64) (*UploadStream, error) {
	sess, err := c.auth.Current(ctx)
	if err != nil {
		return nil, err
	}

	if sess.StorageURL == "" {
		return nil, fmt.Errorf("%w: session has no storage URL", ErrStorageEndpointNotFound)
	}

	target, err := url.Parse(JoinURL(sess.StorageURL, path, nil))
	if err != nil {
		return nil, fmt.Errorf("swift: parsing upload URL: %w", err)
	}

	conn, proxy, err := c.dialStorage(ctx, target)
	if err != nil {
		return nil, &ConnectionError{Op: "dialing for upload", Err: err}
	}

	s := &UploadStream{
		client:  c,
		session: sess,
		ctx:     ctx,
		path:    "/" + EncodePath(path...),
		conn:    conn,
		proxy:   proxy,
		w:       bufio.NewWriter(conn),
		size:    size,
		digest:  md5.New(), //nolint:gosec // see import
	}

	// Unblock any pending read or write once ctx is done.
	s.stopWatch = context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0)) //nolint:errcheck // conn is being torn down
	})

	s.armDeadline()

	if err := s.writeRequestHead(target, header); err != nil {
		s.release()
		return nil, &ConnectionError{Op: "writing upload request", Err: s.ctxErr(err)}
	}

	c.logger.Debug("upload stream opened",
		slog.String("path", s.path),
		slog.Bool("chunked", s.chunked()),
		slog.Int64("size", size),
	)

	return s, nil
}

// dialStorage opens a raw connection for a request to target, with TLS for
// https URLs. When the configured proxy applies, plain http goes to the proxy
// as a forward request (the returned URL is that proxy) and https is
// tunneled with CONNECT.
func (c *Client) dialStorage(ctx context.Context, target *url.URL) (net.Conn, *url.URL, error) {
	addr := hostPort(target)

	var proxy *url.URL

	if c.proxy != nil {
		p, err := c.proxy(&http.Request{Method: http.MethodPut, URL: target, Header: http.Header{}})
		if err != nil {
			return nil, nil, fmt.Errorf("resolving proxy: %w", err)
		}

		proxy = p
	}

	if proxy == nil {
		conn, err := c.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, err
		}

		if target.Scheme != "https" {
			return conn, nil, nil
		}

		tlsConn, err := c.handshake(ctx, conn, target.Hostname())

		return tlsConn, nil, err
	}

	if proxy.Scheme != "http" {
		return nil, nil, fmt.Errorf("proxy %s: scheme %q is not supported for upload streams", proxy.Redacted(), proxy.Scheme)
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", hostPort(proxy))
	if err != nil {
		return nil, nil, fmt.Errorf("dialing proxy %s: %w", proxy.Host, err)
	}

	if target.Scheme != "https" {
		return conn, proxy, nil
	}

	if err := c.connectTunnel(ctx, conn, addr, proxy); err != nil {
		conn.Close()
		return nil, nil, err
	}

	tlsConn, err := c.handshake(ctx, conn, target.Hostname())

	return tlsConn, nil, err
}

// connectTunnel asks the proxy on conn for a tunnel to addr.
func (c *Client) connectTunnel(ctx context.Context, conn net.Conn, addr string, proxy *url.URL) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0)) //nolint:errcheck // conn is being torn down
	})
	defer stop()

	if c.dataTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.dataTimeout)) //nolint:errcheck // best effort
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: http.Header{"User-Agent": []string{c.userAgent}},
	}

	if auth := proxyAuthorization(proxy); auth != "" {
		req.Header.Set("Proxy-Authorization", auth)
	}

	if err := req.Write(conn); err != nil {
		return fmt.Errorf("proxy CONNECT to %s: %w", addr, err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return fmt.Errorf("proxy CONNECT to %s: %w", addr, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy CONNECT to %s: %s", addr, resp.Status)
	}

	return conn.SetDeadline(time.Time{})
}

func (c *Client) handshake(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.tlsConfig != nil {
		cfg = c.tlsConfig.Clone()
	}

	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return tlsConn, nil
}

// hostPort returns the host:port of u, filling in the scheme's default port.
func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}

	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}

	return net.JoinHostPort(u.Hostname(), port)
}

// proxyAuthorization returns the Basic credentials carried in the proxy URL,
// or "".
func proxyAuthorization(proxy *url.URL) string {
	if proxy.User == nil {
		return ""
	}

	password, _ := proxy.User.Password()

	return "Basic " + base64.StdEncoding.EncodeToString([]byte(proxy.User.Username()+":"+password))
}

func (s *UploadStream) chunked() bool {
	return s.size < 0
}

// writeRequestHead writes the request line and headers.
func (s *UploadStream) writeRequestHead(target *url.URL, caller http.Header) error {
	h := make(http.Header, len(caller)+6)

	for k, vs := range caller {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	h.Del("Content-Length")
	h.Del("Transfer-Encoding")

	if s.chunked() {
		h.Del("Etag")
		h.Set("Transfer-Encoding", "chunked")
	} else {
		h.Set("Content-Length", strconv.FormatInt(s.size, 10))
	}

	for k, vs := range s.session.Headers() {
		h[k] = vs
	}

	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", s.client.userAgent)
	}

	if h.Get(headerTransIDExtra) == "" {
		h.Set(headerTransIDExtra, s.client.newTransID())
	}

	h.Set("Connection", "close")

	requestURI := target.RequestURI()

	if s.proxy != nil {
		requestURI = target.String()

		if auth := proxyAuthorization(s.proxy); auth != "" {
			h.Set("Proxy-Authorization", auth)
		}
	}

	if _, err := fmt.Fprintf(s.w, "PUT %s HTTP/1.1\r\nHost: %s\r\n", requestURI, target.Host); err != nil {
		return err
	}

	if err := h.Write(s.w); err != nil {
		return err
	}

	if _, err := s.w.WriteString("\r\n"); err != nil {
		return err
	}

	return s.w.Flush()
}

// Write sends p. In chunked mode p becomes exactly one frame; empty writes
// send nothing, since an empty frame would end the body.
func (s *UploadStream) Write(p []byte) (int, error) {
	if s.finished || s.closed {
		return 0, ErrUploadFinished
	}

	if len(p) == 0 {
		return 0, nil
	}

	if !s.chunked() && s.written+int64(len(p)) > s.size {
		return 0, fmt.Errorf("%w: writing %d bytes would exceed declared size %d (already sent %d)",
			ErrSizeMismatch, len(p), s.size, s.written)
	}

	s.armDeadline()

	if err := s.writeFrame(p); err != nil {
		defer s.release()

		if refusal := s.earlyResponse(); refusal != nil {
			return 0, refusal
		}

		return 0, &ConnectionError{Op: "writing upload body", Err: s.ctxErr(err)}
	}

	s.digest.Write(p)
	s.written += int64(len(p))
	s.client.metrics.addUploaded(len(p))

	return len(p), nil
}

func (s *UploadStream) writeFrame(p []byte) error {
	if s.chunked() {
		if _, err := fmt.Fprintf(s.w, "%X\r\n", len(p)); err != nil {
			return err
		}
	}

	if _, err := s.w.Write(p); err != nil {
		return err
	}

	if s.chunked() {
		if _, err := s.w.WriteString("\r\n"); err != nil {
			return err
		}
	}

	return s.w.Flush()
}

// Finish completes the body, reads the response and releases the
// connection. A fixed-size stream that received fewer bytes than declared
// fails with ErrSizeMismatch without sending anything more.
//
// A 401 here cannot be replayed since the body is gone; the session is
// refreshed so the caller's next attempt uses a new token, and the
// ResponseError (ErrUnauthorized) is returned.
func (s *UploadStream) Finish() (*Response, error) {
	if s.finished || s.closed {
		return nil, ErrUploadFinished
	}

	s.finished = true
	defer s.release()

	if !s.chunked() && s.written != s.size {
		return nil, fmt.Errorf("%w: sent %d of %d declared bytes", ErrSizeMismatch, s.written, s.size)
	}

	if s.chunked() {
		s.armDeadline()

		if _, err := s.w.WriteString("0\r\n\r\n"); err != nil {
			return nil, &ConnectionError{Op: "finishing upload body", Err: s.ctxErr(err)}
		}

		if err := s.w.Flush(); err != nil {
			return nil, &ConnectionError{Op: "finishing upload body", Err: s.ctxErr(err)}
		}
	}

	s.armDeadline()

	resp, err := http.ReadResponse(bufio.NewReader(s.conn), &http.Request{Method: http.MethodPut})
	if err != nil {
		s.client.metrics.requestDone(http.MethodPut, 0)
		return nil, &ConnectionError{Op: "reading upload response", Err: s.ctxErr(err)}
	}
	defer resp.Body.Close()

	s.client.metrics.requestDone(http.MethodPut, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBody))
	if err != nil {
		return nil, &ConnectionError{Op: "reading upload response body", Err: s.ctxErr(err)}
	}

	if !isSuccess(resp.StatusCode) {
		return nil, s.rejected(resp, body)
	}

	s.client.logger.Debug("upload finished",
		slog.String("path", s.path),
		slog.Int("status", resp.StatusCode),
		slog.Int64("bytes", s.written),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// rejected builds the error for a non-2xx upload response. A 401 cannot be
// replayed since the body is gone; the session is refreshed so the caller's
// next attempt uses a new token.
func (s *UploadStream) rejected(resp *http.Response, body []byte) error {
	respErr := newResponseError(resp.StatusCode, resp.Header, body)

	if resp.StatusCode == http.StatusUnauthorized {
		s.client.logger.Info("upload rejected with 401, refreshing session", slog.String("path", s.path))
		s.client.metrics.reauthenticated()

		if _, authErr := s.client.auth.Refresh(s.ctx, s.session); authErr != nil {
			s.client.logger.Warn("re-authentication after upload 401 failed", slog.String("error", authErr.Error()))
		}
	}

	return respErr
}

// earlyResponse reads a status the server sent before closing on a body it
// would not accept. It returns nil unless a non-2xx response arrives within
// earlyResponseWait.
func (s *UploadStream) earlyResponse() error {
	if s.ctx.Err() != nil {
		return nil
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(earlyResponseWait)) //nolint:errcheck // a failed read falls back to the write error

	resp, err := http.ReadResponse(bufio.NewReader(s.conn), &http.Request{Method: http.MethodPut})
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if isSuccess(resp.StatusCode) {
		return nil
	}

	s.client.metrics.requestDone(http.MethodPut, resp.StatusCode)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBody))

	s.client.logger.Debug("upload refused mid-body",
		slog.String("path", s.path),
		slog.Int("status", resp.StatusCode),
		slog.Int64("bytes", s.written),
	)

	return s.rejected(resp, body)
}

// Close abandons the stream if it has not been finished. The server sees a
// truncated request. Safe to call more than once and after Finish.
func (s *UploadStream) Close() error {
	if !s.finished && !s.closed {
		s.client.logger.Debug("upload stream abandoned",
			slog.String("path", s.path),
			slog.Int64("bytes", s.written),
		)
	}

	s.release()

	return nil
}

// Written returns the number of body bytes sent so far.
func (s *UploadStream) Written() int64 {
	return s.written
}

// Checksum returns the hex MD5 of the bytes sent so far.
func (s *UploadStream) Checksum() string {
	return hex.EncodeToString(s.digest.Sum(nil))
}

func (s *UploadStream) release() {
	if s.closed {
		return
	}

	s.closed = true

	if s.stopWatch != nil {
		s.stopWatch()
	}

	s.conn.Close()
}

// armDeadline bounds the next read or write by the client's data timeout. A
// done context keeps the past deadline set by the cancel watcher.
func (s *UploadStream) armDeadline() {
	if s.client.dataTimeout <= 0 {
		return
	}

	_ = s.conn.SetDeadline(time.Now().Add(s.client.dataTimeout)) //nolint:errcheck // surfaces on the next read or write

	if s.ctx.Err() != nil {
		_ = s.conn.SetDeadline(time.Unix(1, 0)) //nolint:errcheck // conn is being torn down
	}
}

// ctxErr prefers the context error over the deadline error it caused.
func (s *UploadStream) ctxErr(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}

	return err
}
