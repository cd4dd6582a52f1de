package swift

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Container is a named bucket of objects.
type Container struct {
	client *Client
	name   string
	info   ContainerInfo
}

// ContainerOptions are applied on Create.
type ContainerOptions struct {
	ReadACL  string
	WriteACL string
	Meta     map[string]string
}

// Name returns the container name.
func (c *Container) Name() string { return c.name }

// Path is the container name; containers sit directly below the account.
func (c *Container) Path() string { return c.name }

// URL returns the container's full URL under the current storage URL.
func (c *Container) URL(ctx context.Context) (string, error) {
	base, err := c.client.StorageURL(ctx)
	if err != nil {
		return "", err
	}

	return JoinURL(base, []string{c.name}, nil), nil
}

// IsDir is always true.
func (c *Container) IsDir() bool { return true }

// Info returns the properties from the last Load, or from the listing that
// produced c.
func (c *Container) Info() ContainerInfo {
	return c.info
}

// Load fetches the container's properties with a HEAD.
func (c *Container) Load(ctx context.Context) error {
	resp, err := c.client.Do(ctx, &Request{Method: http.MethodHead, Path: []string{c.name}})
	if err != nil {
		return err
	}

	c.info = parseContainerHeaders(c.name, resp.Header)

	return nil
}

// Create creates the container. Creating an existing container is not an
// error.
func (c *Container) Create(ctx context.Context, opts ContainerOptions) error {
	h := metaHeaders(containerMetaPrefix, opts.Meta)
	h.Set("Content-Length", "0")

	if opts.ReadACL != "" {
		h.Set("X-Container-Read", opts.ReadACL)
	}

	if opts.WriteACL != "" {
		h.Set("X-Container-Write", opts.WriteACL)
	}

	_, err := c.client.Do(ctx, &Request{Method: http.MethodPut, Path: []string{c.name}, Header: h})

	return err
}

// Delete removes the container. A container that still holds objects fails
// with ErrContainerNotEmpty.
func (c *Container) Delete(ctx context.Context) error {
	_, err := c.client.Do(ctx, &Request{Method: http.MethodDelete, Path: []string{c.name}})

	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %s: %w", ErrContainerNotEmpty, c.name, err)
	}

	return err
}

// SetMetadata sets container metadata. Keys are sent as
// X-Container-Meta-<key>.
func (c *Container) SetMetadata(ctx context.Context, meta map[string]string) error {
	_, err := c.client.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   []string{c.name},
		Header: metaHeaders(containerMetaPrefix, meta),
	})

	return err
}

// Objects lists objects. With a Delimiter, common prefixes come back as
// directory objects.
func (c *Container) Objects(ctx context.Context, opts ListOptions) ([]*Object, error) {
	resp, err := c.client.Do(ctx, &Request{Method: http.MethodGet, Path: []string{c.name}, Query: opts.query()})
	if err != nil {
		return nil, err
	}

	infos, err := parseObjectListing(c.name, resp.Body)
	if err != nil {
		return nil, err
	}

	out := make([]*Object, len(infos))
	for i, info := range infos {
		out[i] = &Object{client: c.client, container: c.name, name: info.Name, info: info}
	}

	return out, nil
}

// Object returns a handle for name. No request is made.
func (c *Container) Object(name string) *Object {
	return &Object{client: c.client, container: c.name, name: name}
}
