package filemgr

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davfile/davurl"
	"github.com/xxxsen/davfile/transport"
	"github.com/xxxsen/davfile/webdav"
	"go.uber.org/zap"
)

// commitEngine pushes buffered content to the server. A first PUT answered
// with 400/404/409 is read as a missing parent collection; the engine builds
// the ancestor chain and retries the upload exactly once.
type commitEngine struct {
	cli  *webdav.Client
	dmgr *webdav.DirectoryManager
}

func newCommitEngine(cli *webdav.Client) *commitEngine {
	return &commitEngine{cli: cli, dmgr: webdav.NewDirectoryManager(cli)}
}

func (c *commitEngine) upload(ctx context.Context, link string, src *transport.UploadSource) error {
	rsp, err := c.put(ctx, link, src)
	if err != nil {
		return err
	}
	if rsp.TransportErr == "" && missingParentStatus(rsp.StatusCode) {
		if perr := c.createParent(ctx, link); perr != nil {
			// the retried upload reports the real failure
			logutil.GetLogger(ctx).Debug("create parent before upload retry failed",
				zap.String("link", link), zap.Error(perr))
		}
		rsp, err = c.put(ctx, link, src)
		if err != nil {
			return err
		}
	}
	if rsp.TransportErr != "" {
		return fmt.Errorf("upload transport failed, link:%s, err:%s", link, rsp.TransportErr)
	}
	switch rsp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	}
	return webdav.NewStatusError(link, rsp.StatusCode)
}

func (c *commitEngine) put(ctx context.Context, link string, src *transport.UploadSource) (*transport.Response, error) {
	if src.File != nil {
		return c.cli.PutFile(ctx, link, src.File, src.Size)
	}
	return c.cli.Put(ctx, link, src.Data)
}

func (c *commitEngine) createParent(ctx context.Context, link string) error {
	parsed, err := davurl.Parse(link)
	if err != nil {
		return err
	}
	parent := path.Dir(parsed.Path)
	if parent == "/" || parent == "." {
		return nil
	}
	return c.dmgr.CreateDirectoryRecursive(ctx, davurl.Rebuild(link, parent))
}

func missingParentStatus(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict:
		return true
	}
	return false
}
