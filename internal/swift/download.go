package swift

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
)

// DefaultChunkSize is used by download iterators opened with a chunk size
// of zero or less.
const DefaultChunkSize = 64 * 1024

// ChunkIterator yields an object body in fixed-size chunks. The request is
// made on the first call to Next (or Open); each call then reads at most the
// chunk size from the connection and only returns a short chunk at the end
// of the body. An iterator is single-use: reading the object again needs a
// new iterator, which opens a new connection.
//
// Close must be called if the iterator is abandoned before Next returns
// io.EOF or an error.
type ChunkIterator struct {
	ctx       context.Context //nolint:containedctx // the iterator is bound to one request
	client    *Client
	req       *Request
	chunkSize int

	resp   *http.Response
	header http.Header
	status int
	done   bool
	err    error
}

// OpenDownload returns a lazy iterator over the body of a GET for req.
func (c *Client) OpenDownload(ctx context.Context, req *Request, chunkSize int) *ChunkIterator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &ChunkIterator{
		ctx:       ctx,
		client:    c,
		req:       req,
		chunkSize: chunkSize,
	}
}

// Open sends the request if it has not been sent yet. Calling it is only
// needed to inspect response headers before the first chunk.
func (it *ChunkIterator) Open() error {
	if it.resp != nil || it.done {
		return it.err
	}

	resp, err := it.client.send(it.ctx, it.req)
	if err != nil {
		it.done = true
		it.err = err

		return err
	}

	it.resp = resp
	it.header = resp.Header
	it.status = resp.StatusCode

	it.client.logger.Debug("download stream opened",
		slog.String("path", it.req.logPath()),
		slog.Int("status", resp.StatusCode),
		slog.Int64("content_length", resp.ContentLength),
		slog.Int("chunk_size", it.chunkSize),
	)

	return nil
}

// Header returns the response headers, or nil before the request is sent.
func (it *ChunkIterator) Header() http.Header {
	return it.header
}

// StatusCode returns the response status, or 0 before the request is sent.
func (it *ChunkIterator) StatusCode() int {
	return it.status
}

// Next returns the next chunk. It returns io.EOF once the body is exhausted;
// the connection is released at that point. Every returned chunk is a fresh
// slice the caller may keep.
func (it *ChunkIterator) Next() ([]byte, error) {
	if it.done {
		if it.err != nil {
			return nil, it.err
		}

		return nil, io.EOF
	}

	if err := it.Open(); err != nil {
		return nil, err
	}

	buf := make([]byte, it.chunkSize)

	n, err := io.ReadFull(it.resp.Body, buf)
	it.client.metrics.addDownloaded(n)

	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		it.release()

		if n == 0 {
			return nil, io.EOF
		}

		return buf[:n], nil
	default:
		it.release()
		it.err = &ConnectionError{Op: "reading download stream", Err: err}

		if n > 0 {
			// Hand out what arrived; the error surfaces on the next call.
			return buf[:n], nil
		}

		return nil, it.err
	}
}

// All ranges over the remaining chunks. Iteration stops at the end of the
// body or after yielding a non-nil error. Breaking out of the loop releases
// the connection.
func (it *ChunkIterator) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer it.Close()

		for {
			chunk, err := it.Next()
			if errors.Is(err, io.EOF) {
				return
			}

			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the connection. Safe to call more than once.
func (it *ChunkIterator) Close() error {
	it.release()
	return nil
}

func (it *ChunkIterator) release() {
	it.done = true

	if it.resp != nil {
		it.resp.Body.Close()
		it.resp = nil
	}
}
