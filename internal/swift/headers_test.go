package swift

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAccountHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Account-Container-Count", "4")
	h.Set("X-Account-Object-Count", "120")
	h.Set("X-Account-Bytes-Used", "987654")
	h.Set("X-Account-Meta-Owner", "ops")
	h.Set("X-Account-Meta-CostCenter", "42")

	info := parseAccountHeaders(h)

	assert.Equal(t, int64(4), info.ContainerCount)
	assert.Equal(t, int64(120), info.ObjectCount)
	assert.Equal(t, int64(987654), info.BytesUsed)
	assert.Equal(t, map[string]string{"owner": "ops", "costcenter": "42"}, info.Meta)
}

func TestParseContainerHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Container-Object-Count", "3")
	h.Set("X-Container-Bytes-Used", "300")
	h.Set("X-Container-Read", ".r:*")
	h.Set("X-Container-Write", "acct:user")
	h.Set("X-Cdn-Ttl", "3600")
	h.Set("X-Container-Meta-Color", "blue")
	h.Set("X-Object-Meta-Ignored", "x")

	info := parseContainerHeaders("photos", h)

	assert.Equal(t, ContainerInfo{
		Name:        "photos",
		ObjectCount: 3,
		BytesUsed:   300,
		ReadACL:     ".r:*",
		WriteACL:    "acct:user",
		CDNTTL:      3600,
		Meta:        map[string]string{"color": "blue"},
	}, info)
}

func TestParseObjectHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Length", "512")
	h.Set("Content-Type", "image/png")
	h.Set("Etag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	h.Set("Last-Modified", "Tue, 15 Nov 1994 12:45:26 GMT")
	h.Set("X-Object-Manifest", "segments/big")
	h.Set("Content-Encoding", "gzip")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Object-Meta-Camera", "X100")

	info := parseObjectHeaders("c", "a/b.png", h)

	assert.Equal(t, "c", info.Container)
	assert.Equal(t, "a/b.png", info.Name)
	assert.Equal(t, int64(512), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", info.ETag)
	assert.Equal(t, time.Date(1994, 11, 15, 12, 45, 26, 0, time.UTC), info.LastModified)
	assert.Equal(t, "segments/big", info.Manifest)
	assert.Equal(t, "gzip", info.ContentEncoding)
	assert.Equal(t, "no-cache", info.CacheControl)
	assert.Equal(t, map[string]string{"camera": "X100"}, info.Meta)
	assert.False(t, info.IsDir())
}

func TestObjectInfo_IsDir(t *testing.T) {
	assert.True(t, ObjectInfo{ContentType: "application/directory"}.IsDir())
	assert.True(t, ObjectInfo{ContentType: "text/directory"}.IsDir())
	assert.False(t, ObjectInfo{ContentType: "text/plain"}.IsDir())
}

func TestParseObjectListing(t *testing.T) {
	body := []byte(`[
		{"name":"a.txt","hash":"abc","bytes":3,"content_type":"text/plain","last_modified":"2012-02-24T16:56:55.118580"},
		{"subdir":"photos/"}
	]`)

	infos, err := parseObjectListing("c", body)
	assert.NoError(t, err)
	assert.Len(t, infos, 2)

	assert.Equal(t, "a.txt", infos[0].Name)
	assert.Equal(t, int64(3), infos[0].Size)
	assert.Equal(t, "abc", infos[0].ETag)
	assert.Equal(t, time.Date(2012, 2, 24, 16, 56, 55, 118580000, time.UTC), infos[0].LastModified)

	assert.Equal(t, "photos", infos[1].Name)
	assert.True(t, infos[1].IsDir())

	empty, err := parseObjectListing("c", nil)
	assert.NoError(t, err)
	assert.Empty(t, empty)

	_, err = parseObjectListing("c", []byte("{oops"))
	assert.Error(t, err)
}
