// Package filemgr provides file-like access to WebDAV resources: buffered
// write handles that commit full content on sync/close, ranged read
// handles, directory operations and glob expansion.
package filemgr

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/davfile/auth"
	"github.com/xxxsen/davfile/davurl"
	"github.com/xxxsen/davfile/webdav"
)

// FileInfo describes one remote resource.
type FileInfo struct {
	Link    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

type config struct {
	cli       *webdav.Client
	cred      auth.CredentialQueryFunc
	threshold int64
	ownCli    bool
}

type Option func(*config)

// WithClient supplies a pre-built client; its lifetime stays with the
// caller.
func WithClient(cli *webdav.Client) Option {
	return func(c *config) {
		c.cli = cli
	}
}

// WithCredential configures credential lookup for the internally built
// client. Ignored when WithClient is used.
func WithCredential(fn auth.CredentialQueryFunc) Option {
	return func(c *config) {
		c.cred = fn
	}
}

// WithSpillThreshold overrides the buffered-write spill size.
func WithSpillThreshold(n int64) Option {
	return func(c *config) {
		c.threshold = n
	}
}

// FileManager is the entry point for callers: open, create, stat, remove,
// move, list and glob on a WebDAV remote.
type FileManager struct {
	c   *config
	eng *commitEngine
	res *resolver
}

func New(opts ...Option) (*FileManager, error) {
	c := &config{threshold: defaultSpillThreshold}
	for _, opt := range opts {
		opt(c)
	}
	if c.cli == nil {
		wopts := make([]webdav.Option, 0, 1)
		if c.cred != nil {
			wopts = append(wopts, webdav.WithCredential(c.cred))
		}
		cli, err := webdav.New(wopts...)
		if err != nil {
			return nil, err
		}
		c.cli = cli
		c.ownCli = true
	}
	return &FileManager{c: c, eng: newCommitEngine(c.cli), res: newResolver(c.cli)}, nil
}

func (m *FileManager) Close() error {
	if m.c.ownCli {
		return m.c.cli.Close()
	}
	return nil
}

// Create opens a resource for writing. Existing remote content is replaced
// on the first commit; nothing is sent until Sync or Close.
func (m *FileManager) Create(ctx context.Context, link string) (*WriteHandle, error) {
	if _, err := davurl.Parse(link); err != nil {
		return nil, err
	}
	return newWriteHandle(ctx, m.eng, link, m.c.threshold), nil
}

// Open opens a resource for ranged reading.
func (m *FileManager) Open(ctx context.Context, link string) (*ReadHandle, error) {
	info, err := m.Stat(ctx, link)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, fmt.Errorf("cannot open a collection for read, link:%s", link)
	}
	return &ReadHandle{ctx: ctx, cli: m.c.cli, link: link, size: info.Size}, nil
}

// Stat fetches resource metadata. When the server refuses HEAD, a depth-0
// listing probe decides whether the link names a collection.
func (m *FileManager) Stat(ctx context.Context, link string) (*FileInfo, error) {
	rsp, err := m.c.cli.Head(ctx, link)
	if err != nil {
		return nil, err
	}
	if rsp.TransportErr != "" {
		return nil, fmt.Errorf("stat transport failed, link:%s, err:%s", link, rsp.TransportErr)
	}
	if rsp.IsSuccess() {
		info := &FileInfo{Link: link, IsDir: strings.HasSuffix(link, "/")}
		if v := rsp.Header.Get("Content-Length"); len(v) > 0 {
			info.Size, _ = strconv.ParseInt(v, 10, 64)
		}
		if v := rsp.Header.Get("Last-Modified"); len(v) > 0 {
			if t, terr := http.ParseTime(v); terr == nil {
				info.ModTime = t
			}
		}
		return info, nil
	}
	if ok, derr := m.DirExists(ctx, link); derr == nil && ok {
		return &FileInfo{Link: link, IsDir: true}, nil
	}
	return nil, webdav.NewStatusError(link, rsp.StatusCode)
}

// Exists reports whether a file resource answers HEAD.
func (m *FileManager) Exists(ctx context.Context, link string) (bool, error) {
	rsp, err := m.c.cli.Head(ctx, link)
	if err != nil {
		return false, err
	}
	if rsp.TransportErr != "" {
		return false, fmt.Errorf("stat transport failed, link:%s, err:%s", link, rsp.TransportErr)
	}
	if rsp.IsSuccess() {
		return true, nil
	}
	// auth problems must surface instead of reading as absence
	if rsp.StatusCode == http.StatusUnauthorized || rsp.StatusCode == http.StatusForbidden {
		return false, webdav.NewStatusError(link, rsp.StatusCode)
	}
	return false, nil
}

// DirExists probes a collection with a depth-0 listing.
func (m *FileManager) DirExists(ctx context.Context, link string) (bool, error) {
	if !strings.HasSuffix(link, "/") {
		link += "/"
	}
	rsp, err := m.c.cli.Propfind(ctx, link, 0)
	if err != nil {
		return false, err
	}
	if rsp.TransportErr != "" {
		return false, fmt.Errorf("probe transport failed, link:%s, err:%s", link, rsp.TransportErr)
	}
	return rsp.StatusCode == http.StatusMultiStatus || rsp.IsSuccess(), nil
}

// Remove deletes a file resource.
func (m *FileManager) Remove(ctx context.Context, link string) error {
	return m.remove(ctx, link)
}

// RemoveDir deletes a collection and everything below it.
func (m *FileManager) RemoveDir(ctx context.Context, link string) error {
	if !strings.HasSuffix(link, "/") {
		link += "/"
	}
	return m.remove(ctx, link)
}

func (m *FileManager) remove(ctx context.Context, link string) error {
	rsp, err := m.c.cli.Delete(ctx, link)
	if err != nil {
		return err
	}
	if rsp.TransportErr != "" {
		return fmt.Errorf("delete transport failed, link:%s, err:%s", link, rsp.TransportErr)
	}
	switch rsp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	}
	return webdav.NewStatusError(link, rsp.StatusCode)
}

// Move renames src to dst server-side, replacing an existing destination.
func (m *FileManager) Move(ctx context.Context, src string, dst string) error {
	rsp, err := m.c.cli.Move(ctx, src, dst)
	if err != nil {
		return err
	}
	if rsp.TransportErr != "" {
		return fmt.Errorf("move transport failed, src:%s, dst:%s, err:%s", src, dst, rsp.TransportErr)
	}
	switch rsp.StatusCode {
	case http.StatusCreated, http.StatusNoContent:
		return nil
	}
	return webdav.NewStatusError(src, rsp.StatusCode)
}

// Mkdir creates one collection level.
func (m *FileManager) Mkdir(ctx context.Context, link string) error {
	return m.eng.dmgr.CreateDirectory(ctx, link)
}

// MkdirAll creates the whole ancestor chain.
func (m *FileManager) MkdirAll(ctx context.Context, link string) error {
	return m.eng.dmgr.CreateDirectoryRecursive(ctx, link)
}

// List returns the direct children of a collection.
func (m *FileManager) List(ctx context.Context, link string) ([]*DirectoryEntry, error) {
	return m.res.List(ctx, link)
}

// Glob expands a wildcard pattern to matching resource addresses.
func (m *FileManager) Glob(ctx context.Context, pattern string) ([]string, error) {
	return m.res.Glob(ctx, pattern)
}
