package swift

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // matches the ETag digest
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedUpload is what the raw server saw on one connection.
type capturedUpload struct {
	req *http.Request
	raw []byte // body bytes exactly as framed on the wire
	err error
}

// startRawServer accepts connections on a plain TCP listener, parses the
// request head, keeps the body bytes unparsed, then writes the response
// produced by respond.
func startRawServer(t *testing.T, respond func(c capturedUpload) string) (string, <-chan capturedUpload) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	captured := make(chan capturedUpload, 4)

	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}

			go serveRawUpload(conn, respond, captured)
		}
	}()

	return "http://" + ln.Addr().String() + "/v1/AUTH_test", captured
}

func serveRawUpload(conn net.Conn, respond func(c capturedUpload) string, captured chan<- capturedUpload) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	br := bufio.NewReader(conn)

	req, err := http.ReadRequest(br)
	if err != nil {
		captured <- capturedUpload{err: err}
		return
	}

	c := capturedUpload{req: req}

	if req.ContentLength >= 0 {
		c.raw = make([]byte, req.ContentLength)
		_, c.err = io.ReadFull(br, c.raw)
	} else {
		c.raw, c.err = readUntilTerminator(br)
	}

	if c.err == nil {
		_, _ = io.WriteString(conn, respond(c))
	}

	captured <- c
}

func readUntilTerminator(br *bufio.Reader) ([]byte, error) {
	var raw []byte

	for !bytes.HasSuffix(raw, []byte("0\r\n\r\n")) {
		b, err := br.ReadByte()
		if err != nil {
			return raw, err
		}

		raw = append(raw, b)
	}

	return raw, nil
}

// etagResponse answers 201 with the MD5 of the decoded body as ETag.
func etagResponse(c capturedUpload) string {
	body := c.raw
	if c.req.ContentLength < 0 {
		body = decodeChunks(c.raw)
	}

	sum := md5.Sum(body) //nolint:gosec // see import

	return fmt.Sprintf("HTTP/1.1 201 Created\r\nEtag: %s\r\nContent-Length: 0\r\n\r\n", hex.EncodeToString(sum[:]))
}

func decodeChunks(raw []byte) []byte {
	body, _ := io.ReadAll(newChunkedReader(raw))
	return body
}

// newChunkedReader decodes a chunked body through net/http.
func newChunkedReader(raw []byte) io.Reader {
	resp, err := http.ReadResponse(bufio.NewReader(io.MultiReader(
		strings.NewReader("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"),
		bytes.NewReader(raw),
	)), nil)
	if err != nil {
		return bytes.NewReader(nil)
	}

	return resp.Body
}

func fixedResponse(status string, header string) func(capturedUpload) string {
	return func(capturedUpload) string {
		return "HTTP/1.1 " + status + "\r\n" + header + "Content-Length: 0\r\n\r\n"
	}
}

func receive(t *testing.T, ch <-chan capturedUpload) capturedUpload {
	t.Helper()

	select {
	case c := <-ch:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("raw server saw no upload")
		return capturedUpload{}
	}
}

func TestUploadStream_ChunkedFrames(t *testing.T) {
	storageURL, captured := startRawServer(t, etagResponse)
	client := NewClient(newFakeSessions(storageURL), ClientConfig{})

	header := http.Header{
		"Content-Length": []string{"99"},
		"Etag":           []string{"stale"},
		"Content-Type":   []string{"text/plain"},
	}

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, header, UnknownSize)
	require.NoError(t, err)

	n, err := stream.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = stream.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "an empty write must not emit a terminating frame")

	_, err = stream.Write([]byte("defgh"))
	require.NoError(t, err)

	resp, err := stream.Finish()
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	c := receive(t, captured)
	require.NoError(t, c.err)

	assert.Equal(t, "3\r\nabc\r\n5\r\ndefgh\r\n0\r\n\r\n", string(c.raw))
	assert.Equal(t, []string{"chunked"}, c.req.TransferEncoding)
	assert.Equal(t, int64(-1), c.req.ContentLength)
	assert.Empty(t, c.req.Header.Get("Etag"))
	assert.Equal(t, "text/plain", c.req.Header.Get("Content-Type"))
	assert.Equal(t, "tok-0", c.req.Header.Get("X-Auth-Token"))
	assert.Equal(t, UserAgent, c.req.Header.Get("User-Agent"))
	assert.Equal(t, "/v1/AUTH_test/c/o", c.req.URL.Path)

	assert.Equal(t, int64(8), stream.Written())
	sum := md5.Sum([]byte("abcdefgh")) //nolint:gosec // test digest
	assert.Equal(t, hex.EncodeToString(sum[:]), stream.Checksum())
	assert.Equal(t, stream.Checksum(), resp.Header.Get("Etag"))
}

func TestUploadStream_FixedSize(t *testing.T) {
	storageURL, captured := startRawServer(t, etagResponse)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := NewClient(newFakeSessions(storageURL), ClientConfig{Metrics: metrics})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "dir", "name with space"}, nil, 8)
	require.NoError(t, err)

	for _, part := range []string{"abc", "defgh"} {
		_, err = stream.Write([]byte(part))
		require.NoError(t, err)
	}

	_, err = stream.Finish()
	require.NoError(t, err)

	c := receive(t, captured)
	require.NoError(t, c.err)

	assert.Equal(t, "abcdefgh", string(c.raw))
	assert.Equal(t, int64(8), c.req.ContentLength)
	assert.Empty(t, c.req.TransferEncoding)
	assert.Equal(t, "/v1/AUTH_test/c/dir/name%20with%20space", c.req.URL.EscapedPath())

	assert.InDelta(t, 8, testutil.ToFloat64(metrics.uploaded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.requests.WithLabelValues("PUT", "201")), 0)
}

func TestUploadStream_OverSizeWriteRejected(t *testing.T) {
	storageURL, _ := startRawServer(t, etagResponse)
	client := NewClient(newFakeSessions(storageURL), ClientConfig{})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, 4)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Write([]byte("abc"))
	require.NoError(t, err)

	n, err := stream.Write([]byte("de"))
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(3), stream.Written())
}

func TestUploadStream_ShortFinishRejected(t *testing.T) {
	storageURL, captured := startRawServer(t, etagResponse)
	client := NewClient(newFakeSessions(storageURL), ClientConfig{})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, 10)
	require.NoError(t, err)

	_, err = stream.Write([]byte("abc"))
	require.NoError(t, err)

	_, err = stream.Finish()
	require.ErrorIs(t, err, ErrSizeMismatch)

	c := receive(t, captured)
	assert.Error(t, c.err, "the server sees a truncated body")
	assert.Equal(t, "abc", string(c.raw[:3]))
}

func TestUploadStream_UseAfterFinish(t *testing.T) {
	storageURL, _ := startRawServer(t, etagResponse)
	client := NewClient(newFakeSessions(storageURL), ClientConfig{})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, UnknownSize)
	require.NoError(t, err)

	_, err = stream.Write([]byte("x"))
	require.NoError(t, err)

	_, err = stream.Finish()
	require.NoError(t, err)

	_, err = stream.Write([]byte("y"))
	assert.ErrorIs(t, err, ErrUploadFinished)

	_, err = stream.Finish()
	assert.ErrorIs(t, err, ErrUploadFinished)

	assert.NoError(t, stream.Close())
}

func TestUploadStream_CloseAbandons(t *testing.T) {
	storageURL, captured := startRawServer(t, etagResponse)
	client := NewClient(newFakeSessions(storageURL), ClientConfig{})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, UnknownSize)
	require.NoError(t, err)

	_, err = stream.Write([]byte("abc"))
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	c := receive(t, captured)
	assert.Error(t, c.err)
	assert.Equal(t, "3\r\nabc\r\n", string(c.raw))

	_, err = stream.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrUploadFinished)
}

func TestUploadStream_ErrorStatus(t *testing.T) {
	storageURL, _ := startRawServer(t, fixedResponse("422 Unprocessable Entity", "X-Trans-Id: tx9\r\n"))
	client := NewClient(newFakeSessions(storageURL), ClientConfig{})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, UnknownSize)
	require.NoError(t, err)

	_, err = stream.Write([]byte("abc"))
	require.NoError(t, err)

	_, err = stream.Finish()
	require.ErrorIs(t, err, ErrClientError)

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, 422, respErr.StatusCode)
	assert.Equal(t, "tx9", respErr.TransID)
}

func TestUploadStream_401RefreshesSession(t *testing.T) {
	storageURL, _ := startRawServer(t, fixedResponse("401 Unauthorized", ""))
	sessions := newFakeSessions(storageURL)
	client := NewClient(sessions, ClientConfig{})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, UnknownSize)
	require.NoError(t, err)

	_, err = stream.Finish()
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), sessions.refreshes.Load())
}

func TestUploadStream_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(newFakeSessions("http://"+addr+"/v1/A"), ClientConfig{})

	_, err = client.OpenUpload(context.Background(), []string{"c", "o"}, nil, UnknownSize)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestObjectUpload_ChecksumVerified(t *testing.T) {
	storageURL, captured := startRawServer(t, etagResponse)
	client := NewClient(newFakeSessions(storageURL), ClientConfig{})

	obj := NewObject(client, "c", "notes.txt")

	res, err := obj.Upload(context.Background(), strings.NewReader("hello world"), 11, UploadOptions{
		Meta:      map[string]string{"Author": "me"},
		ChunkSize: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(11), res.Size)
	assert.Equal(t, res.Checksum, res.ETag)
	assert.Equal(t, int64(11), obj.Info().Size)

	c := receive(t, captured)
	assert.Equal(t, "hello world", string(c.raw))
	assert.Equal(t, "me", c.req.Header.Get("X-Object-Meta-Author"))
	assert.Equal(t, "text/plain; charset=utf-8", c.req.Header.Get("Content-Type"))
}

func TestObjectUpload_ChecksumMismatch(t *testing.T) {
	storageURL, _ := startRawServer(t, fixedResponse("201 Created", "Etag: 00000000000000000000000000000000\r\n"))
	client := NewClient(newFakeSessions(storageURL), ClientConfig{})

	obj := NewObject(client, "c", "data.bin")

	res, err := obj.Upload(context.Background(), strings.NewReader("payload"), UnknownSize, UploadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	var mismatch *ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "c/data.bin", mismatch.Path)
	assert.Equal(t, "00000000000000000000000000000000", mismatch.Remote)

	// The HTTP exchange itself succeeded.
	require.NotNil(t, res)
	assert.Equal(t, int64(7), res.Size)

	_, err = obj.Upload(context.Background(), strings.NewReader("payload"), UnknownSize, UploadOptions{SkipVerify: true})
	assert.NoError(t, err)
}

func TestObjectUpload_RetriesSeekableAfter401(t *testing.T) {
	storageURL, captured := startRawServer(t, func(c capturedUpload) string {
		if c.req.Header.Get("X-Auth-Token") == "tok-0" {
			return "HTTP/1.1 401 Unauthorized\r\nContent-Length: 0\r\n\r\n"
		}

		return etagResponse(c)
	})

	sessions := newFakeSessions(storageURL)
	client := NewClient(sessions, ClientConfig{})

	obj := NewObject(client, "c", "o")

	_, err := obj.Upload(context.Background(), bytes.NewReader([]byte("again")), 5, UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), sessions.refreshes.Load())

	for range 2 {
		c := receive(t, captured)
		assert.Equal(t, "again", string(c.raw))
	}
}

func TestUploadStream_ForwardProxy(t *testing.T) {
	proxyAddr, captured := startRawServer(t, etagResponse)

	proxyURL, err := url.Parse(proxyAddr)
	require.NoError(t, err)

	proxyURL.Path = ""
	proxyURL.User = url.UserPassword("alice", "s3cret")

	client := NewClient(newFakeSessions("http://storage.invalid/v1/AUTH_test"), ClientConfig{
		Proxy: http.ProxyURL(proxyURL),
	})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, 5)
	require.NoError(t, err)

	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)

	_, err = stream.Finish()
	require.NoError(t, err)

	c := receive(t, captured)
	require.NoError(t, c.err)

	assert.Equal(t, "http://storage.invalid/v1/AUTH_test/c/o", c.req.RequestURI)
	assert.Equal(t, "storage.invalid", c.req.Host)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:s3cret")),
		c.req.Header.Get("Proxy-Authorization"))
	assert.Equal(t, "hello", string(c.raw))
}

// startConnectProxy runs a proxy that tunnels CONNECT requests and answers
// anything else with status. Each tunnel target is sent on the channel.
func startConnectProxy(t *testing.T, status string) (*url.URL, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	targets := make(chan string, 4)

	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}

			go tunnel(conn, status, targets)
		}
	}()

	return &url.URL{Scheme: "http", Host: ln.Addr().String()}, targets
}

func tunnel(conn net.Conn, status string, targets chan<- string) {
	defer conn.Close()

	br := bufio.NewReader(conn)

	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}

	targets <- req.Method + " " + req.Host

	if req.Method != http.MethodConnect || status != "200 OK" {
		_, _ = io.WriteString(conn, "HTTP/1.1 "+status+"\r\nContent-Length: 0\r\n\r\n")
		return
	}

	upstream, err := net.Dial("tcp", req.Host)
	if err != nil {
		_, _ = io.WriteString(conn, "HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
		return
	}
	defer upstream.Close()

	_, _ = io.WriteString(conn, "HTTP/1.1 200 Connection established\r\n\r\n")

	go func() { _, _ = io.Copy(upstream, br) }()

	_, _ = io.Copy(conn, upstream)
}

func TestUploadStream_ConnectTunnel(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sum := md5.Sum(body) //nolint:gosec // see import

		w.Header().Set("Etag", hex.EncodeToString(sum[:]))
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	proxyURL, targets := startConnectProxy(t, "200 OK")

	transport, ok := srv.Client().Transport.(*http.Transport)
	require.True(t, ok)

	client := NewClient(newFakeSessions(srv.URL+"/v1/AUTH_test"), ClientConfig{
		Proxy:     http.ProxyURL(proxyURL),
		TLSConfig: transport.TLSClientConfig,
	})

	obj := NewObject(client, "c", "tunneled.bin")

	res, err := obj.Upload(context.Background(), strings.NewReader("through the tunnel"), UnknownSize, UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, res.Checksum, res.ETag)

	select {
	case got := <-targets:
		assert.Equal(t, "CONNECT "+srv.Listener.Addr().String(), got)
	case <-time.After(5 * time.Second):
		t.Fatal("proxy saw no CONNECT")
	}
}

func TestUploadStream_ProxyRefusesTunnel(t *testing.T) {
	proxyURL, _ := startConnectProxy(t, "407 Proxy Authentication Required")

	client := NewClient(newFakeSessions("https://storage.invalid/v1/AUTH_test"), ClientConfig{
		Proxy: http.ProxyURL(proxyURL),
	})

	_, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, UnknownSize)
	require.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "407")
}

func TestUploadStream_UnsupportedProxyScheme(t *testing.T) {
	client := NewClient(newFakeSessions("http://storage.invalid/v1/AUTH_test"), ClientConfig{
		Proxy: http.ProxyURL(&url.URL{Scheme: "socks5", Host: "127.0.0.1:1080"}),
	})

	_, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, UnknownSize)
	require.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "socks5")
}

func TestNewClient_UploadDefaultsFromHTTPClient(t *testing.T) {
	proxyURL := &url.URL{Scheme: "http", Host: "proxy.invalid:3128"}

	client := NewClient(newFakeSessions("http://storage.invalid"), ClientConfig{
		HTTPClient: &http.Client{
			Timeout:   7 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		},
	})

	require.NotNil(t, client.proxy)

	got, err := client.proxy(&http.Request{URL: &url.URL{Scheme: "http", Host: "storage.invalid"}})
	require.NoError(t, err)
	assert.Equal(t, proxyURL, got)
	assert.Equal(t, 7*time.Second, client.dataTimeout)
}

// startSilentServer accepts connections and reads them to EOF without ever
// answering.
func startSilentServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}

			go func() {
				defer conn.Close()
				_, _ = io.Copy(io.Discard, conn)
			}()
		}
	}()

	return "http://" + ln.Addr().String() + "/v1/AUTH_test"
}

func TestUploadStream_DataTimeoutOnSilentServer(t *testing.T) {
	client := NewClient(newFakeSessions(startSilentServer(t)), ClientConfig{
		DataTimeout: 200 * time.Millisecond,
	})

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, UnknownSize)
	require.NoError(t, err)

	_, err = stream.Write([]byte("abc"))
	require.NoError(t, err)

	start := time.Now()

	_, err = stream.Finish()
	require.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestUploadStream_RefusedMidBodySurfacesStatus(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		if _, readErr := http.ReadRequest(bufio.NewReader(conn)); readErr != nil {
			return
		}

		_, _ = io.WriteString(conn, "HTTP/1.1 401 Unauthorized\r\nContent-Length: 0\r\n\r\n")
		time.Sleep(100 * time.Millisecond)
	}()

	sessions := newFakeSessions("http://" + ln.Addr().String() + "/v1/AUTH_test")
	client := NewClient(sessions, ClientConfig{})

	const size = 64 << 20

	stream, err := client.OpenUpload(context.Background(), []string{"c", "o"}, nil, size)
	require.NoError(t, err)
	defer stream.Close()

	chunk := make([]byte, 64<<10)

	for stream.Written() < size {
		if _, err = stream.Write(chunk); err != nil {
			break
		}
	}

	require.Error(t, err, "the server closed before the body was complete")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrConnection)
	assert.Equal(t, int32(1), sessions.refreshes.Load())
}

func TestObjectUpload_ReplaysAfterMidBody401(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	payload := bytes.Repeat([]byte("0123456789abcdef"), 256<<10)
	bodies := make(chan []byte, 1)

	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}

			go func() {
				defer conn.Close()

				br := bufio.NewReader(conn)

				req, readErr := http.ReadRequest(br)
				if readErr != nil {
					return
				}

				if req.Header.Get("X-Auth-Token") == "tok-0" {
					_, _ = io.WriteString(conn, "HTTP/1.1 401 Unauthorized\r\nContent-Length: 0\r\n\r\n")
					time.Sleep(50 * time.Millisecond)

					return
				}

				body := make([]byte, req.ContentLength)
				if _, readErr = io.ReadFull(br, body); readErr != nil {
					return
				}

				bodies <- body

				sum := md5.Sum(body) //nolint:gosec // see import
				_, _ = fmt.Fprintf(conn, "HTTP/1.1 201 Created\r\nEtag: %x\r\nContent-Length: 0\r\n\r\n", sum)
			}()
		}
	}()

	sessions := newFakeSessions("http://" + ln.Addr().String() + "/v1/AUTH_test")
	client := NewClient(sessions, ClientConfig{})

	obj := NewObject(client, "c", "big.bin")

	res, err := obj.Upload(context.Background(), bytes.NewReader(payload), int64(len(payload)), UploadOptions{ChunkSize: 64 << 10})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), res.Size)
	assert.Equal(t, int32(1), sessions.refreshes.Load())

	select {
	case got := <-bodies:
		assert.Equal(t, payload, got)
	case <-time.After(5 * time.Second):
		t.Fatal("the replayed upload never arrived")
	}
}
