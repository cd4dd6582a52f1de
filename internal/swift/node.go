package swift

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Node is the capability set shared by accounts, containers and objects.
type Node interface {
	// Path is the unencoded path below the storage URL ("" for the account).
	Path() string
	// URL is the absolute, encoded URL of the node.
	URL(ctx context.Context) (string, error)
	// IsDir reports whether the node can hold children.
	IsDir() bool
	// Load fetches the node's properties with a HEAD request.
	Load(ctx context.Context) error
}

var (
	_ Node = (*Account)(nil)
	_ Node = (*Container)(nil)
	_ Node = (*Object)(nil)
)

// ListOptions page and filter container and object listings.
type ListOptions struct {
	Prefix    string
	Delimiter string
	Marker    string
	Limit     int
}

func (o ListOptions) query() url.Values {
	q := url.Values{"format": []string{"json"}}

	if o.Prefix != "" {
		q.Set("prefix", o.Prefix)
	}

	if o.Delimiter != "" {
		q.Set("delimiter", o.Delimiter)
	}

	if o.Marker != "" {
		q.Set("marker", o.Marker)
	}

	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}

	return q
}

// listingTimeLayout is the format of last_modified in JSON listings.
const listingTimeLayout = "2006-01-02T15:04:05.999999"

type containerEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Bytes int64  `json:"bytes"`
}

type objectEntry struct {
	Name         string `json:"name"`
	Subdir       string `json:"subdir"`
	Hash         string `json:"hash"`
	Bytes        int64  `json:"bytes"`
	ContentType  string `json:"content_type"`
	LastModified string `json:"last_modified"`
}

// parseObjectListing decodes a container listing. subdir entries (from a
// delimiter query) become directory objects.
func parseObjectListing(container string, body []byte) ([]ObjectInfo, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var entries []objectEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("swift: decoding object listing: %w", err)
	}

	out := make([]ObjectInfo, 0, len(entries))

	for _, e := range entries {
		if e.Name == "" && e.Subdir != "" {
			out = append(out, ObjectInfo{
				Container:   container,
				Name:        strings.TrimRight(e.Subdir, "/"),
				ContentType: ContentTypeDirectory,
			})

			continue
		}

		info := ObjectInfo{
			Container:   container,
			Name:        e.Name,
			Size:        e.Bytes,
			ContentType: e.ContentType,
			ETag:        e.Hash,
		}

		if t, err := time.Parse(listingTimeLayout, e.LastModified); err == nil {
			info.LastModified = t
		}

		out = append(out, info)
	}

	return out, nil
}

func parseContainerListing(body []byte) ([]ContainerInfo, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var entries []containerEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("swift: decoding container listing: %w", err)
	}

	out := make([]ContainerInfo, len(entries))
	for i, e := range entries {
		out[i] = ContainerInfo{Name: e.Name, ObjectCount: e.Count, BytesUsed: e.Bytes}
	}

	return out, nil
}
