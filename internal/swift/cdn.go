package swift

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// DefaultCDNTTL is the edge cache lifetime EnableCDN uses when none is given.
const DefaultCDNTTL = 1440 * time.Second

// publicReadACL makes a container world-readable, which is what the CDN
// origin pulls through.
const publicReadACL = ".r:*"

// cdnHeader routes a request to the CDN management layer instead of storage.
func cdnHeader() http.Header {
	return http.Header{"X-Context": []string{"cdn"}}
}

// CDNURLs are the public addresses of a CDN-enabled container or object.
// Both are empty when CDN delivery is off.
type CDNURLs struct {
	URL    string `json:"url,omitempty"`
	SSLURL string `json:"ssl_url,omitempty"`
}

func parseCDNURLs(h http.Header) CDNURLs {
	return CDNURLs{URL: h.Get("X-Cdn-Url"), SSLURL: h.Get("X-Cdn-Ssl-Url")}
}

func cdnURLs(ctx context.Context, c *Client, path []string) (CDNURLs, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodHead, Path: path, Header: cdnHeader()})
	if err != nil {
		return CDNURLs{}, err
	}

	return parseCDNURLs(resp.Header), nil
}

// EnableCDN makes the container public and sets how long edges cache its
// objects. A ttl of zero or less means DefaultCDNTTL.
func (c *Container) EnableCDN(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCDNTTL
	}

	seconds := int64(ttl / time.Second)

	_, err := c.client.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   []string{c.name},
		Header: http.Header{
			"X-Container-Read": []string{publicReadACL},
			"X-Cdn-Ttl":        []string{strconv.FormatInt(seconds, 10)},
		},
	})
	if err != nil {
		return err
	}

	c.info.ReadACL = publicReadACL
	c.info.CDNTTL = seconds

	return nil
}

// DisableCDN clears the container's read ACL, which takes it off the CDN.
func (c *Container) DisableCDN(ctx context.Context) error {
	_, err := c.client.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   []string{c.name},
		Header: http.Header{"X-Container-Read": []string{""}},
	})
	if err != nil {
		return err
	}

	c.info.ReadACL = ""
	c.info.CDNTTL = 0

	return nil
}

// CDNURLs asks the CDN layer for the container's public URLs.
func (c *Container) CDNURLs(ctx context.Context) (CDNURLs, error) {
	return cdnURLs(ctx, c.client, []string{c.name})
}

// CDNURLs asks the CDN layer for the object's public URLs.
func (o *Object) CDNURLs(ctx context.Context) (CDNURLs, error) {
	return cdnURLs(ctx, o.client, o.segments())
}

// PrimeCDN asks the edges to fetch the object ahead of the first request.
func (o *Object) PrimeCDN(ctx context.Context) error {
	return o.cdnPost(ctx, "X-Cdn-Load")
}

// PurgeCDN evicts the object from the edge caches.
func (o *Object) PurgeCDN(ctx context.Context) error {
	return o.cdnPost(ctx, "X-Cdn-Purge")
}

func (o *Object) cdnPost(ctx context.Context, action string) error {
	h := cdnHeader()
	h.Set(action, "true")

	_, err := o.client.Do(ctx, &Request{Method: http.MethodPost, Path: o.segments(), Header: h})

	return err
}

// PublicContainers lists the containers that are CDN-enabled.
func (a *Account) PublicContainers(ctx context.Context, opts ListOptions) ([]*Container, error) {
	return a.listContainers(ctx, opts, cdnHeader())
}
