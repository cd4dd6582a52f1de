package swift

import (
	"context"
	"net/http"
)

// Account is the root of the resource tree.
type Account struct {
	client *Client
	info   AccountInfo
}

// NewAccount returns the account reachable through c.
func NewAccount(c *Client) *Account {
	return &Account{client: c}
}

// Path is empty: the account is the root.
func (a *Account) Path() string { return "" }

// URL returns the storage URL of the current session.
func (a *Account) URL(ctx context.Context) (string, error) {
	return a.client.StorageURL(ctx)
}

// IsDir is always true.
func (a *Account) IsDir() bool { return true }

// Info returns the properties from the last Load.
func (a *Account) Info() AccountInfo {
	return a.info
}

// Load fetches the account's properties with a HEAD.
func (a *Account) Load(ctx context.Context) error {
	resp, err := a.client.Do(ctx, &Request{Method: http.MethodHead})
	if err != nil {
		return err
	}

	a.info = parseAccountHeaders(resp.Header)

	return nil
}

// SetMetadata sets account metadata. Keys are sent as X-Account-Meta-<key>.
func (a *Account) SetMetadata(ctx context.Context, meta map[string]string) error {
	_, err := a.client.Do(ctx, &Request{
		Method: http.MethodPost,
		Header: metaHeaders(accountMetaPrefix, meta),
	})

	return err
}

// Containers lists containers. An empty account yields an empty slice.
func (a *Account) Containers(ctx context.Context, opts ListOptions) ([]*Container, error) {
	return a.listContainers(ctx, opts, nil)
}

func (a *Account) listContainers(ctx context.Context, opts ListOptions, h http.Header) ([]*Container, error) {
	resp, err := a.client.Do(ctx, &Request{Method: http.MethodGet, Query: opts.query(), Header: h})
	if err != nil {
		return nil, err
	}

	infos, err := parseContainerListing(resp.Body)
	if err != nil {
		return nil, err
	}

	out := make([]*Container, len(infos))
	for i, info := range infos {
		out[i] = &Container{client: a.client, name: info.Name, info: info}
	}

	return out, nil
}

// Container returns a handle for name. No request is made.
func (a *Account) Container(name string) *Container {
	return &Container{client: a.client, name: name}
}
