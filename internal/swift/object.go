package swift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
)

// Object is a named blob inside a container. Names may contain "/" to form
// pseudo-directories.
//
// An Object caches the properties of its last Load; it is not safe for
// concurrent use.
type Object struct {
	client    *Client
	container string
	name      string
	info      ObjectInfo
}

// UploadOptions tune Object.Upload.
type UploadOptions struct {
	// ContentType defaults to a guess from the object name.
	ContentType string
	Meta        map[string]string
	// ChunkSize is the size of each write to the stream. Default
	// DefaultChunkSize.
	ChunkSize int
	// SkipVerify disables the MD5 vs ETag comparison.
	SkipVerify bool
}

// UploadResult describes a completed upload.
type UploadResult struct {
	Size     int64
	Checksum string // hex MD5 of the bytes sent
	ETag     string // as returned by the server
}

// NewObject returns a handle for container/name. No request is made.
func NewObject(c *Client, container, name string) *Object {
	return &Object{client: c, container: container, name: name}
}

// Container returns the name of the container holding the object.
func (o *Object) Container() string { return o.container }

// Name returns the object name within its container.
func (o *Object) Name() string { return o.name }

// Path returns "container/name".
func (o *Object) Path() string { return o.container + "/" + o.name }

// segments are the path segments of the object. Slashes inside the name
// separate segments, so pseudo-directories stay readable on the wire.
func (o *Object) segments() []string {
	return append([]string{o.container}, strings.Split(o.name, "/")...)
}

// wirePath is the encoded "/container/name" form used by X-Copy-From and
// Destination.
func (o *Object) wirePath() string {
	return "/" + EncodePath(o.segments()...)
}

// URL returns the object's full URL under the current storage URL.
func (o *Object) URL(ctx context.Context) (string, error) {
	base, err := o.client.StorageURL(ctx)
	if err != nil {
		return "", err
	}

	return JoinURL(base, o.segments(), nil), nil
}

// IsDir reports whether the cached content type marks a directory.
func (o *Object) IsDir() bool {
	return o.info.IsDir()
}

// Info returns the properties from the last Load, or from the listing that
// produced o.
func (o *Object) Info() ObjectInfo {
	return o.info
}

// Load fetches the object's properties with a HEAD.
func (o *Object) Load(ctx context.Context) error {
	resp, err := o.client.Do(ctx, &Request{Method: http.MethodHead, Path: o.segments()})
	if err != nil {
		return err
	}

	o.info = parseObjectHeaders(o.container, o.name, resp.Header)
	return nil
}

// Exists reports whether the object exists. Only a 404 maps to false.
func (o *Object) Exists(ctx context.Context) (bool, error) {
	err := o.Load(ctx)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (o *Object) rangeRequest(r ByteRange) (*Request, error) {
	req := &Request{Method: http.MethodGet, Path: o.segments()}

	h, err := r.Header()
	if err != nil {
		return nil, err
	}

	if h != "" {
		req.Header = http.Header{"Range": []string{h}}
	}

	return req, nil
}

// Read returns the selected bytes of the object in one buffer.
func (o *Object) Read(ctx context.Context, r ByteRange) ([]byte, error) {
	req, err := o.rangeRequest(r)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	o.client.metrics.addDownloaded(len(resp.Body))

	return resp.Body, nil
}

// Download returns a lazy chunk iterator over the selected bytes. The caller
// must drain or Close it.
func (o *Object) Download(ctx context.Context, r ByteRange, chunkSize int) (*ChunkIterator, error) {
	req, err := o.rangeRequest(r)
	if err != nil {
		return nil, err
	}

	return o.client.OpenDownload(ctx, req, chunkSize), nil
}

// Upload streams src into the object. size may be UnknownSize, in which case
// chunked transfer-encoding is used. Unless opts.SkipVerify is set, the MD5
// of the bytes sent is compared with the ETag the server returns and a
// difference is reported as *ChecksumMismatchError.
//
// If the token expired and src implements io.Seeker, the upload is retried
// once from the start.
func (o *Object) Upload(ctx context.Context, src io.Reader, size int64, opts UploadOptions) (*UploadResult, error) {
	res, err := o.uploadOnce(ctx, src, size, opts)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return res, err
	}

	if rewindErr := rewindBody(src); rewindErr != nil {
		return nil, err
	}

	o.client.logger.Info("retrying upload after re-authentication", slog.String("path", o.Path()))

	return o.uploadOnce(ctx, src, size, opts)
}

func (o *Object) uploadOnce(ctx context.Context, src io.Reader, size int64, opts UploadOptions) (*UploadResult, error) {
	h := metaHeaders(objectMetaPrefix, opts.Meta)
	h.Set("Content-Type", o.contentType(opts.ContentType))

	stream, err := o.client.OpenUpload(ctx, o.segments(), h, size)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	buf := make([]byte, chunkSize)

	// Plain Read loop: every read becomes one Write, hence one chunk frame.
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := stream.Write(buf[:n]); err != nil {
				return nil, err
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("swift: reading upload source for %s: %w", o.Path(), readErr)
		}
	}

	resp, err := stream.Finish()
	if err != nil {
		return nil, err
	}

	res := &UploadResult{
		Size:     stream.Written(),
		Checksum: stream.Checksum(),
		ETag:     trimETag(resp.Header.Get("Etag")),
	}

	o.info = ObjectInfo{
		Container:   o.container,
		Name:        o.name,
		Size:        res.Size,
		ContentType: h.Get("Content-Type"),
		ETag:        res.ETag,
		Meta:        opts.Meta,
	}

	if !opts.SkipVerify && res.ETag != "" && !strings.EqualFold(res.ETag, res.Checksum) {
		return res, &ChecksumMismatchError{Path: o.Path(), Local: res.Checksum, Remote: res.ETag}
	}

	return res, nil
}

// contentType returns explicit, or a guess from the object name.
func (o *Object) contentType(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if t := mime.TypeByExtension(path.Ext(o.name)); t != "" {
		return t
	}

	return ContentTypeOctetStream
}

// Create writes an empty object with a content type guessed from its name.
func (o *Object) Create(ctx context.Context) error {
	return o.create(ctx, o.contentType(""))
}

// MakeDir writes a zero-byte directory marker.
func (o *Object) MakeDir(ctx context.Context) error {
	return o.create(ctx, ContentTypeDirectory)
}

func (o *Object) create(ctx context.Context, contentType string) error {
	_, err := o.client.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   o.segments(),
		Header: http.Header{
			"Content-Type":   []string{contentType},
			"Content-Length": []string{"0"},
		},
		Body: bytesBody(nil),
	})
	if err != nil {
		return err
	}

	o.info = ObjectInfo{Container: o.container, Name: o.name, ContentType: contentType}

	return nil
}

// SetMetadata replaces the object's metadata. Keys are sent as
// X-Object-Meta-<key>.
func (o *Object) SetMetadata(ctx context.Context, meta map[string]string) error {
	_, err := o.client.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   o.segments(),
		Header: metaHeaders(objectMetaPrefix, meta),
	})

	return err
}

// CopyFrom replaces o with a server-side copy of src.
func (o *Object) CopyFrom(ctx context.Context, src *Object) error {
	_, err := o.client.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   o.segments(),
		Header: http.Header{
			"X-Copy-From":    []string{src.wirePath()},
			"Content-Length": []string{"0"},
		},
		Body: bytesBody(nil),
	})

	return err
}

// CopyTo makes a server-side copy of o at dst.
func (o *Object) CopyTo(ctx context.Context, dst *Object) error {
	_, err := o.client.Do(ctx, &Request{
		Method: "COPY",
		Path:   o.segments(),
		Header: http.Header{
			"Destination":    []string{dst.wirePath()},
			"Content-Length": []string{"0"},
		},
	})

	return err
}

// Rename copies o to dst and deletes o. If the delete fails the copy is
// left in place.
func (o *Object) Rename(ctx context.Context, dst *Object) error {
	if err := dst.CopyFrom(ctx, o); err != nil {
		return fmt.Errorf("swift: renaming %s: %w", o.Path(), err)
	}

	if err := o.Delete(ctx); err != nil {
		return fmt.Errorf("swift: renaming %s: copied to %s but delete failed: %w", o.Path(), dst.Path(), err)
	}

	return nil
}

// Delete removes the object.
func (o *Object) Delete(ctx context.Context) error {
	_, err := o.client.Do(ctx, &Request{Method: http.MethodDelete, Path: o.segments()})

	return err
}
