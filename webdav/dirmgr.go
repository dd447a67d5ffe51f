package webdav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davfile/davurl"
	"go.uber.org/zap"
)

// DirectoryManager creates remote collections, one level or a whole
// ancestor chain.
type DirectoryManager struct {
	cli *Client
}

func NewDirectoryManager(cli *Client) *DirectoryManager {
	return &DirectoryManager{cli: cli}
}

// CreateDirectory issues a single MKCOL. 405 means the collection already
// exists and counts as success; 507 surfaces as ErrQuotaExceeded since it
// signals quota exhaustion, not a transient state.
func (d *DirectoryManager) CreateDirectory(ctx context.Context, link string) error {
	rsp, err := d.cli.Mkcol(ctx, link)
	if err != nil {
		return err
	}
	if rsp.TransportErr != "" {
		return fmt.Errorf("mkcol transport failed, link:%s, err:%s", link, rsp.TransportErr)
	}
	switch rsp.StatusCode {
	case http.StatusCreated, http.StatusOK, http.StatusNoContent, http.StatusMethodNotAllowed:
		return nil
	}
	return NewStatusError(link, rsp.StatusCode)
}

// CreateDirectoryRecursive creates every ancestor of link from shortest to
// longest prefix. Pre-existing levels and other per-level failures are
// tolerated so partial prior state never aborts the chain; only quota
// exhaustion is raised immediately.
func (d *DirectoryManager) CreateDirectoryRecursive(ctx context.Context, link string) error {
	parsed, err := davurl.Parse(link)
	if err != nil {
		return err
	}
	segs := splitPath(parsed.Path)
	accumulated := ""
	for _, seg := range segs {
		accumulated += "/" + seg
		sub := davurl.Rebuild(link, accumulated)
		if err := d.CreateDirectory(ctx, sub); err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				return err
			}
			// level may already exist, let the final write surface a real problem
			logutil.GetLogger(ctx).Debug("create directory level skipped",
				zap.String("link", sub), zap.Error(err))
		}
	}
	return nil
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	rs := make([]string, 0, len(parts))
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		rs = append(rs, part)
	}
	return rs
}
