// Package webdav implements the verb-level client: one method per WebDAV
// verb, each translating a logical link to its transport url, injecting
// credentials looked up by the original link form and delegating to the
// retrying executor.
package webdav

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/xxxsen/davfile/auth"
	"github.com/xxxsen/davfile/davurl"
	"github.com/xxxsen/davfile/transport"
)

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>` +
	`<D:propfind xmlns:D="DAV:">` +
	`<D:prop>` +
	`<D:resourcetype/>` +
	`<D:getcontentlength/>` +
	`<D:getlastmodified/>` +
	`</D:prop>` +
	`</D:propfind>`

type config struct {
	exec *transport.Executor
	cred auth.CredentialQueryFunc
}

type Option func(*config)

func WithExecutor(e *transport.Executor) Option {
	return func(c *config) {
		c.exec = e
	}
}

func WithCredential(fn auth.CredentialQueryFunc) Option {
	return func(c *config) {
		c.cred = fn
	}
}

// Client issues single WebDAV requests. It holds no per-resource state, so
// one client may serve many handles on the same remote.
type Client struct {
	c *config
}

func New(opts ...Option) (*Client, error) {
	c := &config{
		cred: auth.NoCredential(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = transport.NewExecutor()
	}
	return &Client{c: c}, nil
}

// Close releases the underlying executor's transport reference.
func (c *Client) Close() error {
	return c.c.exec.Close()
}

func (c *Client) do(ctx context.Context, method string, link string, hdr http.Header, body *transport.UploadSource) (*transport.Response, error) {
	parsed, err := davurl.Parse(link)
	if err != nil {
		return nil, err
	}
	if hdr == nil {
		hdr = make(http.Header)
	}
	cred, ok, err := c.c.cred(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("lookup credential, link:%s, err:%w", link, err)
	}
	if ok {
		cred.Apply(hdr)
	}
	return c.c.exec.Execute(ctx, &transport.Request{
		Method: method,
		URL:    parsed.HTTPURL(),
		Header: hdr,
		Body:   body,
	})
}

// Get fetches the whole resource body.
func (c *Client) Get(ctx context.Context, link string) (*transport.Response, error) {
	return c.do(ctx, http.MethodGet, link, nil, nil)
}

// GetRange fetches length bytes starting at offset.
func (c *Client) GetRange(ctx context.Context, link string, offset int64, length int64) (*transport.Response, error) {
	hdr := make(http.Header)
	hdr.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	return c.do(ctx, http.MethodGet, link, hdr, nil)
}

// Head fetches metadata only.
func (c *Client) Head(ctx context.Context, link string) (*transport.Response, error) {
	return c.do(ctx, http.MethodHead, link, nil, nil)
}

// Put uploads an in-memory body.
func (c *Client) Put(ctx context.Context, link string, data []byte) (*transport.Response, error) {
	hdr := make(http.Header)
	hdr.Set("Content-Type", DetermineMimeType(link))
	return c.do(ctx, http.MethodPut, link, hdr, &transport.UploadSource{Data: data})
}

// PutFile streams an upload from a staged file with a declared length.
func (c *Client) PutFile(ctx context.Context, link string, f *os.File, size int64) (*transport.Response, error) {
	hdr := make(http.Header)
	hdr.Set("Content-Type", DetermineMimeType(link))
	return c.do(ctx, http.MethodPut, link, hdr, &transport.UploadSource{File: f, Size: size})
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, link string) (*transport.Response, error) {
	return c.do(ctx, http.MethodDelete, link, nil, nil)
}

// Propfind lists one level (depth 1) or the resource itself (depth 0).
func (c *Client) Propfind(ctx context.Context, link string, depth int) (*transport.Response, error) {
	hdr := make(http.Header)
	hdr.Set("Depth", strconv.Itoa(depth))
	hdr.Set("Content-Type", "application/xml; charset=utf-8")
	return c.do(ctx, "PROPFIND", link, hdr, &transport.UploadSource{Data: []byte(propfindBody)})
}

// Mkcol creates one collection. The url always carries a trailing slash.
func (c *Client) Mkcol(ctx context.Context, link string) (*transport.Response, error) {
	if !strings.HasSuffix(link, "/") {
		link += "/"
	}
	return c.do(ctx, "MKCOL", link, nil, nil)
}

// Move renames src to dst server-side, overwriting an existing destination.
func (c *Client) Move(ctx context.Context, src string, dst string) (*transport.Response, error) {
	dstParsed, err := davurl.Parse(dst)
	if err != nil {
		return nil, err
	}
	hdr := make(http.Header)
	hdr.Set("Destination", dstParsed.HTTPURL())
	hdr.Set("Overwrite", "T")
	return c.do(ctx, "MOVE", src, hdr, nil)
}

// DetermineMimeType picks a content type from the link's extension.
func DetermineMimeType(link string) string {
	mimeType := mime.TypeByExtension(path.Ext(link))
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
