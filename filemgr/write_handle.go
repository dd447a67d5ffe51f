package filemgr

import (
	"context"
	"fmt"
)

// WriteHandle accumulates sequential writes locally and uploads the whole
// content on Sync and Close. The remote resource holds no partial state
// between commits; every commit rewrites it in full.
type WriteHandle struct {
	ctx    context.Context
	eng    *commitEngine
	link   string
	buf    *writeBuffer
	dirty  bool
	closed bool
}

func newWriteHandle(ctx context.Context, eng *commitEngine, link string, threshold int64) *WriteHandle {
	return &WriteHandle{
		ctx:  ctx,
		eng:  eng,
		link: link,
		buf:  newWriteBuffer(threshold),
		// a freshly created file materializes remotely even without writes
		dirty: true,
	}
}

// Write appends at the current end of the buffered content.
func (h *WriteHandle) Write(p []byte) (int, error) {
	return h.WriteAt(p, h.buf.len())
}

// WriteAt accepts only the offset continuing the previous write; anything
// else fails with ErrOutOfOrderWrite before any data moves.
func (h *WriteHandle) WriteAt(p []byte, offset int64) (int, error) {
	if h.closed {
		return 0, fmt.Errorf("write on closed handle, link:%s", h.link)
	}
	if err := h.buf.writeAt(p, offset); err != nil {
		return 0, err
	}
	if len(p) > 0 {
		h.dirty = true
	}
	return len(p), nil
}

// Size reports the bytes accumulated so far.
func (h *WriteHandle) Size() int64 {
	return h.buf.len()
}

// Sync uploads the full accumulated content if anything changed since the
// last commit. The buffer is kept, so later writes extend the same content
// and the next commit rewrites the resource in full.
func (h *WriteHandle) Sync() error {
	if h.closed {
		return fmt.Errorf("sync on closed handle, link:%s", h.link)
	}
	if !h.dirty {
		return nil
	}
	if err := h.eng.upload(h.ctx, h.link, h.buf.materialize()); err != nil {
		return err
	}
	h.dirty = false
	return nil
}

// Close commits pending content and releases local resources. The staging
// file is removed even when the final commit fails.
func (h *WriteHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	defer h.buf.discard()
	if !h.dirty {
		return nil
	}
	if err := h.eng.upload(h.ctx, h.link, h.buf.materialize()); err != nil {
		return err
	}
	h.dirty = false
	return nil
}
