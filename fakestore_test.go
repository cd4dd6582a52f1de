package main

import (
	"crypto/md5" //nolint:gosec // ETag digest
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeObject is one stored object.
type fakeObject struct {
	data        []byte
	contentType string
	meta        map[string]string
}

// fakeStore is an in-memory storage account served over HTTP. It speaks
// enough of the protocol for the CLI commands.
type fakeStore struct {
	*httptest.Server

	mu         sync.Mutex
	containers map[string]map[string]*fakeObject
	cdnTTL     map[string]string // CDN-enabled containers
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()

	fs := &fakeStore{
		containers: make(map[string]map[string]*fakeObject),
		cdnTTL:     make(map[string]string),
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.Close)

	return fs
}

func (fs *fakeStore) object(container, name string) (*fakeObject, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	objs, ok := fs.containers[container]
	if !ok {
		return nil, false
	}

	o, ok := objs[name]

	return o, ok
}

func (fs *fakeStore) hasContainer(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, ok := fs.containers[name]

	return ok
}

func etagOf(b []byte) string {
	sum := md5.Sum(b) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

func metaFrom(h http.Header, prefix string) map[string]string {
	meta := make(map[string]string)

	for k, v := range h {
		if strings.HasPrefix(strings.ToLower(k), strings.ToLower(prefix)) && len(v) > 0 {
			meta[strings.ToLower(k[len(prefix):])] = v[0]
		}
	}

	return meta
}

func (fs *fakeStore) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Auth-Token") != "cli-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	container, name, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	switch {
	case container == "":
		fs.serveAccount(w, r)
	case name == "":
		fs.serveContainer(w, r, container)
	default:
		fs.serveObject(w, r, container, name)
	}
}

func (fs *fakeStore) serveAccount(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(fs.containers))
	for n := range fs.containers {
		names = append(names, n)
	}

	sort.Strings(names)

	if r.Method == http.MethodHead {
		w.Header().Set("X-Account-Container-Count", strconv.Itoa(len(names)))
		w.WriteHeader(http.StatusNoContent)

		return
	}

	type entry struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
		Bytes int    `json:"bytes"`
	}

	out := make([]entry, 0, len(names))

	for _, n := range names {
		total := 0
		for _, o := range fs.containers[n] {
			total += len(o.data)
		}

		out = append(out, entry{Name: n, Count: len(fs.containers[n]), Bytes: total})
	}

	_ = json.NewEncoder(w).Encode(out)
}

func (fs *fakeStore) serveContainer(w http.ResponseWriter, r *http.Request, container string) {
	objs, exists := fs.containers[container]

	switch r.Method {
	case http.MethodPut:
		if !exists {
			fs.containers[container] = make(map[string]*fakeObject)
		}

		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		switch {
		case !exists:
			w.WriteHeader(http.StatusNotFound)
		case len(objs) > 0:
			w.WriteHeader(http.StatusConflict)
		default:
			delete(fs.containers, container)
			w.WriteHeader(http.StatusNoContent)
		}
	case http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if _, ok := fs.cdnTTL[container]; ok && r.Header.Get("X-Context") == "cdn" {
			w.Header().Set("X-Cdn-Url", "http://cdn.test/"+container)
			w.Header().Set("X-Cdn-Ssl-Url", "https://cdn.test/"+container)
		}

		w.Header().Set("X-Container-Object-Count", strconv.Itoa(len(objs)))
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if r.Header.Get("X-Container-Read") == ".r:*" {
			fs.cdnTTL[container] = r.Header.Get("X-Cdn-Ttl")
		} else {
			delete(fs.cdnTTL, container)
		}

		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_ = json.NewEncoder(w).Encode(listObjects(objs, r.URL.Query()))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listObjects(objs map[string]*fakeObject, q url.Values) []map[string]any {
	prefix, delim, marker := q.Get("prefix"), q.Get("delimiter"), q.Get("marker")

	names := make([]string, 0, len(objs))
	for n := range objs {
		names = append(names, n)
	}

	sort.Strings(names)

	out := []map[string]any{}
	seen := make(map[string]bool)

	for _, n := range names {
		if !strings.HasPrefix(n, prefix) || n <= marker {
			continue
		}

		if delim != "" {
			if i := strings.Index(n[len(prefix):], delim); i >= 0 {
				sub := n[:len(prefix)+i+1]
				if !seen[sub] {
					seen[sub] = true
					out = append(out, map[string]any{"subdir": sub})
				}

				continue
			}
		}

		o := objs[n]
		out = append(out, map[string]any{
			"name":          n,
			"bytes":         len(o.data),
			"hash":          etagOf(o.data),
			"content_type":  o.contentType,
			"last_modified": "2026-01-02T03:04:05.000000",
		})
	}

	return out
}

func (fs *fakeStore) serveObject(w http.ResponseWriter, r *http.Request, container, name string) {
	objs, exists := fs.containers[container]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	o, found := objs[name]

	switch r.Method {
	case http.MethodPut:
		fs.putObject(w, r, objs, name)
		return
	case "COPY":
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		dstContainer, dstName, _ := strings.Cut(strings.TrimPrefix(r.Header.Get("Destination"), "/"), "/")
		fs.containers[dstContainer][dstName] = &fakeObject{data: o.data, contentType: o.contentType, meta: o.meta}
		w.WriteHeader(http.StatusCreated)

		return
	}

	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodHead, http.MethodGet:
		w.Header().Set("Etag", etagOf(o.data))
		w.Header().Set("Content-Type", o.contentType)
		w.Header().Set("Last-Modified", "Fri, 02 Jan 2026 03:04:05 GMT")

		for k, v := range o.meta {
			w.Header().Set("X-Object-Meta-"+k, v)
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(o.data)))
			w.WriteHeader(http.StatusOK)

			return
		}

		http.ServeContent(w, r, name, time.Time{}, strings.NewReader(string(o.data)))
	case http.MethodPost:
		o.meta = metaFrom(r.Header, "X-Object-Meta-")
		w.WriteHeader(http.StatusAccepted)
	case http.MethodDelete:
		delete(objs, name)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (fs *fakeStore) putObject(w http.ResponseWriter, r *http.Request, objs map[string]*fakeObject, name string) {
	if src := r.Header.Get("X-Copy-From"); src != "" {
		srcPath, _ := url.PathUnescape(strings.TrimPrefix(src, "/"))
		srcContainer, srcName, _ := strings.Cut(srcPath, "/")

		from, ok := fs.containers[srcContainer][srcName]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		objs[name] = &fakeObject{data: from.data, contentType: from.contentType, meta: from.meta}
		w.WriteHeader(http.StatusCreated)

		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	objs[name] = &fakeObject{
		data:        body,
		contentType: r.Header.Get("Content-Type"),
		meta:        metaFrom(r.Header, "X-Object-Meta-"),
	}

	w.Header().Set("Etag", etagOf(body))
	w.WriteHeader(http.StatusCreated)
}
