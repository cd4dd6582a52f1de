package swift

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Metadata header prefixes per resource kind.
const (
	accountMetaPrefix   = "X-Account-Meta-"
	containerMetaPrefix = "X-Container-Meta-"
	objectMetaPrefix    = "X-Object-Meta-"
)

// Content types that mark an object as a pseudo-directory.
const (
	ContentTypeDirectory     = "application/directory"
	contentTypeTextDirectory = "text/directory"
	ContentTypeOctetStream   = "application/octet-stream"
)

// AccountInfo is the parsed result of a HEAD on the account.
type AccountInfo struct {
	ContainerCount int64
	ObjectCount    int64
	BytesUsed      int64
	Meta           map[string]string
}

// ContainerInfo is the parsed result of a HEAD on a container, or an entry
// of an account listing (which only fills Name, ObjectCount and BytesUsed).
type ContainerInfo struct {
	Name        string
	ObjectCount int64
	BytesUsed   int64
	ReadACL     string
	WriteACL    string
	CDNTTL      int64
	Meta        map[string]string
}

// ObjectInfo is the parsed result of a HEAD on an object, or an entry of a
// container listing.
type ObjectInfo struct {
	Container       string
	Name            string
	Size            int64
	ContentType     string
	ETag            string
	LastModified    time.Time
	Manifest        string
	ContentEncoding string
	CacheControl    string
	Meta            map[string]string
}

// IsDir reports whether the object is a pseudo-directory marker.
func (o ObjectInfo) IsDir() bool {
	return o.ContentType == ContentTypeDirectory || o.ContentType == contentTypeTextDirectory
}

type intField struct {
	header string
	dst    *int64
}

type stringField struct {
	header string
	dst    *string
}

func applyInts(h http.Header, fields []intField) {
	for _, f := range fields {
		if v := h.Get(f.header); v != "" {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				*f.dst = n
			}
		}
	}
}

func applyStrings(h http.Header, fields []stringField) {
	for _, f := range fields {
		*f.dst = h.Get(f.header)
	}
}

func parseAccountHeaders(h http.Header) AccountInfo {
	var info AccountInfo

	applyInts(h, []intField{
		{"X-Account-Container-Count", &info.ContainerCount},
		{"X-Account-Object-Count", &info.ObjectCount},
		{"X-Account-Bytes-Used", &info.BytesUsed},
	})

	info.Meta = parseMeta(h, accountMetaPrefix)

	return info
}

func parseContainerHeaders(name string, h http.Header) ContainerInfo {
	info := ContainerInfo{Name: name}

	applyInts(h, []intField{
		{"X-Container-Object-Count", &info.ObjectCount},
		{"X-Container-Bytes-Used", &info.BytesUsed},
		{"X-Cdn-Ttl", &info.CDNTTL},
	})
	applyStrings(h, []stringField{
		{"X-Container-Read", &info.ReadACL},
		{"X-Container-Write", &info.WriteACL},
	})

	info.Meta = parseMeta(h, containerMetaPrefix)

	return info
}

func parseObjectHeaders(container, name string, h http.Header) ObjectInfo {
	info := ObjectInfo{Container: container, Name: name}

	applyInts(h, []intField{
		{"Content-Length", &info.Size},
	})
	applyStrings(h, []stringField{
		{"Content-Type", &info.ContentType},
		{"Etag", &info.ETag},
		{"X-Object-Manifest", &info.Manifest},
		{"Content-Encoding", &info.ContentEncoding},
		{"Cache-Control", &info.CacheControl},
	})

	info.ETag = trimETag(info.ETag)

	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}

	info.Meta = parseMeta(h, objectMetaPrefix)

	return info
}

// parseMeta collects headers starting with prefix, keyed by the lower-cased
// remainder.
func parseMeta(h http.Header, prefix string) map[string]string {
	meta := make(map[string]string)

	for k, vs := range h {
		if len(vs) == 0 || len(k) <= len(prefix) {
			continue
		}

		if strings.EqualFold(k[:len(prefix)], prefix) {
			meta[strings.ToLower(k[len(prefix):])] = vs[0]
		}
	}

	return meta
}

// metaHeaders turns meta into prefixed headers.
func metaHeaders(prefix string, meta map[string]string) http.Header {
	h := make(http.Header, len(meta))
	for k, v := range meta {
		h.Set(prefix+k, v)
	}

	return h
}

// trimETag drops the quotes some proxies put around the entity tag.
func trimETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), `"`)
}
