package swift

import (
	"net/url"
	"sort"
	"strings"
)

// EncodeSegment percent-encodes a single path segment. Everything outside
// the RFC 3986 unreserved set is escaped, including "/", so a segment always
// survives a round trip through JoinURL and url.PathUnescape.
func EncodeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := range len(s) {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}

		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}

	return b.String()
}

const upperhex = "0123456789ABCDEF"

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	default:
		return false
	}
}

// EncodePath encodes each segment individually and joins them with "/".
func EncodePath(segments ...string) string {
	encoded := make([]string, len(segments))
	for i, s := range segments {
		encoded[i] = EncodeSegment(s)
	}

	return strings.Join(encoded, "/")
}

// SplitObjectPath splits "container/a/b" into ("container", "a/b"). Object
// names keep their slashes; they are pseudo-directories, not path segments.
func SplitObjectPath(p string) (container, object string) {
	p = strings.TrimLeft(p, "/")

	container, object, _ = strings.Cut(p, "/")

	return container, object
}

// EncodeQuery encodes params with each key and value escaped the same way as
// path segments. Keys are sorted so the output is deterministic.
func EncodeQuery(params url.Values) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var parts []string

	for _, k := range keys {
		for _, v := range params[k] {
			parts = append(parts, EncodeSegment(k)+"="+EncodeSegment(v))
		}
	}

	return strings.Join(parts, "&")
}

// JoinURL appends encoded path segments and an encoded query to base.
// base is the storage endpoint and is used as-is (it is already a URL).
func JoinURL(base string, segments []string, params url.Values) string {
	u := strings.TrimRight(base, "/")

	if len(segments) > 0 {
		u += "/" + EncodePath(segments...)
	}

	if q := EncodeQuery(params); q != "" {
		u += "?" + q
	}

	return u
}
