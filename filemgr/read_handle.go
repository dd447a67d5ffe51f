package filemgr

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/xxxsen/davfile/webdav"
)

// ReadHandle reads a remote resource through ranged requests. No local
// caching; every read fetches exactly the requested window.
type ReadHandle struct {
	ctx    context.Context
	cli    *webdav.Client
	link   string
	size   int64
	offset int64
}

func (h *ReadHandle) Size() int64 {
	return h.size
}

// ReadAt fills p from offset. Short reads at the end of the resource return
// io.EOF per the io.ReaderAt contract.
func (h *ReadHandle) ReadAt(p []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("negative read offset:%d, link:%s", offset, h.link)
	}
	if offset >= h.size {
		return 0, io.EOF
	}
	want := int64(len(p))
	if offset+want > h.size {
		want = h.size - offset
	}
	if want == 0 {
		return 0, nil
	}
	rsp, err := h.cli.GetRange(h.ctx, h.link, offset, want)
	if err != nil {
		return 0, err
	}
	if rsp.TransportErr != "" {
		return 0, fmt.Errorf("read transport failed, link:%s, err:%s", h.link, rsp.TransportErr)
	}
	var n int
	switch rsp.StatusCode {
	case http.StatusPartialContent:
		n = copy(p, rsp.Body)
	case http.StatusOK:
		// server ignored the range request and sent the whole body
		body := rsp.Body
		if int64(len(body)) > offset {
			body = body[offset:]
		} else {
			body = nil
		}
		n = copy(p, body)
	default:
		return 0, webdav.NewStatusError(h.link, rsp.StatusCode)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Read advances an internal cursor for sequential consumption.
func (h *ReadHandle) Read(p []byte) (int, error) {
	n, err := h.ReadAt(p, h.offset)
	h.offset += int64(n)
	if err == io.EOF && n > 0 {
		return n, nil
	}
	return n, err
}

func (h *ReadHandle) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = h.offset + offset
	case io.SeekEnd:
		next = h.size + offset
	default:
		return 0, fmt.Errorf("invalid seek whence:%d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek before start of file, link:%s", h.link)
	}
	h.offset = next
	return next, nil
}

func (h *ReadHandle) Close() error {
	return nil
}
