package filemgr

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davfile/davurl"
	"github.com/xxxsen/davfile/glob"
	"github.com/xxxsen/davfile/multistatus"
	"github.com/xxxsen/davfile/webdav"
	"go.uber.org/zap"
)

// DirectoryEntry is one resource found below a listed collection. Link
// keeps the scheme form of the address the caller used; Path is the decoded
// server path.
type DirectoryEntry struct {
	Link         string
	Path         string
	IsCollection bool
}

// resolver walks the remote hierarchy through depth-1 listings and resolves
// glob patterns against it.
type resolver struct {
	cli *webdav.Client
}

func newResolver(cli *webdav.Client) *resolver {
	return &resolver{cli: cli}
}

// Glob expands a wildcard pattern into matching resource addresses. A
// pattern without wildcards resolves to itself without touching the server.
func (r *resolver) Glob(ctx context.Context, pattern string) ([]string, error) {
	parsed, err := davurl.Parse(pattern)
	if err != nil {
		return nil, err
	}
	if !glob.HasWildcard(parsed.Path) {
		return []string{pattern}, nil
	}
	prefix := glob.LiteralPrefixDir(parsed.Path)
	var ents []DirectoryEntry
	visited := make(map[string]bool)
	r.walk(ctx, pattern, parsed.Host, prefix, visited, &ents)
	patSegs := glob.Split(parsed.Path)
	rs := make([]string, 0, len(ents))
	for _, ent := range ents {
		if glob.Match(glob.Split(ent.Path), patSegs) {
			rs = append(rs, ent.Link)
		}
	}
	return rs, nil
}

// List returns the direct children of one collection.
func (r *resolver) List(ctx context.Context, link string) ([]*DirectoryEntry, error) {
	parsed, err := davurl.Parse(link)
	if err != nil {
		return nil, err
	}
	dir := ensureTrailingSlash(parsed.Path)
	rsp, err := r.cli.Propfind(ctx, davurl.Rebuild(link, dir), 1)
	if err != nil {
		return nil, err
	}
	if rsp.TransportErr != "" {
		return nil, fmt.Errorf("list transport failed, link:%s, err:%s", link, rsp.TransportErr)
	}
	if rsp.StatusCode != http.StatusMultiStatus && rsp.StatusCode != http.StatusOK {
		return nil, webdav.NewStatusError(link, rsp.StatusCode)
	}
	rs := make([]*DirectoryEntry, 0, 8)
	for _, ent := range normalizeEntries(multistatus.Parse(rsp.Body), parsed.Host) {
		if isSelfReference(ent, dir) {
			continue
		}
		clean := strings.TrimSuffix(ent.Path, "/")
		rs = append(rs, &DirectoryEntry{
			Link:         davurl.Rebuild(link, clean),
			Path:         clean,
			IsCollection: ent.IsCollection,
		})
	}
	return rs, nil
}

// walk lists dir and recurses into each sub-collection depth first. An
// unlistable level degrades to an empty result so one bad directory never
// aborts the whole expansion. visited keeps self-referential listings from
// looping forever.
func (r *resolver) walk(ctx context.Context, original string, host string, dir string, visited map[string]bool, out *[]DirectoryEntry) {
	norm := ensureTrailingSlash(dir)
	if visited[norm] {
		return
	}
	visited[norm] = true
	for _, ent := range r.listLevel(ctx, davurl.Rebuild(original, norm), host) {
		if isSelfReference(ent, norm) {
			continue
		}
		clean := strings.TrimSuffix(ent.Path, "/")
		*out = append(*out, DirectoryEntry{
			Link:         davurl.Rebuild(original, clean),
			Path:         clean,
			IsCollection: ent.IsCollection,
		})
		if ent.IsCollection {
			r.walk(ctx, original, host, clean, visited, out)
		}
	}
}

func (r *resolver) listLevel(ctx context.Context, link string, host string) []multistatus.Entry {
	rsp, err := r.cli.Propfind(ctx, link, 1)
	if err != nil {
		logutil.GetLogger(ctx).Debug("list level failed", zap.String("link", link), zap.Error(err))
		return nil
	}
	if rsp.TransportErr != "" {
		logutil.GetLogger(ctx).Debug("list level transport failed",
			zap.String("link", link), zap.String("err", rsp.TransportErr))
		return nil
	}
	if rsp.StatusCode != http.StatusMultiStatus && rsp.StatusCode != http.StatusOK {
		logutil.GetLogger(ctx).Debug("list level rejected",
			zap.String("link", link), zap.Int("status", rsp.StatusCode))
		return nil
	}
	return normalizeEntries(multistatus.Parse(rsp.Body), host)
}

// normalizeEntries rewrites href paths to server-absolute form. Some
// servers answer with full urls, so anything through the host is cut.
func normalizeEntries(ents []multistatus.Entry, host string) []multistatus.Entry {
	for i := range ents {
		p := ents[i].Path
		if idx := strings.Index(p, host); idx >= 0 {
			p = p[idx+len(host):]
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		ents[i].Path = p
	}
	return ents
}

// isSelfReference reports whether an entry is the listing of dir itself,
// which depth-1 responses always include.
func isSelfReference(ent multistatus.Entry, dir string) bool {
	return strings.TrimSuffix(ent.Path, "/") == strings.TrimSuffix(dir, "/")
}

func ensureTrailingSlash(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}
