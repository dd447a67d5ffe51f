package filemgr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xxxsen/davfile/transport"
)

// Spill threshold for buffered writes. Contents stay in memory until they
// would exceed this size, then move to a local staging file.
const defaultSpillThreshold = 50 * 1024 * 1024

// ErrOutOfOrderWrite rejects a write whose offset does not continue the
// sequence. Raised before any disk or network io.
var ErrOutOfOrderWrite = errors.New("non-sequential write not supported")

// writeBuffer owns the memory/staging-file duality for one open-for-write
// resource. The spill transition is one-way; once spilled, all bytes live
// in the staging file and appends go straight to disk.
type writeBuffer struct {
	threshold int64
	cursor    int64
	mem       []byte
	spilled   bool
	stagePath string
	stageFile *os.File
}

func newWriteBuffer(threshold int64) *writeBuffer {
	if threshold <= 0 {
		threshold = defaultSpillThreshold
	}
	return &writeBuffer{threshold: threshold}
}

// writeAt appends data at offset, which must equal the running cursor.
func (b *writeBuffer) writeAt(data []byte, offset int64) error {
	if offset != b.cursor {
		return fmt.Errorf("%w, expect offset:%d, got:%d", ErrOutOfOrderWrite, b.cursor, offset)
	}
	if !b.spilled && int64(len(b.mem))+int64(len(data)) > b.threshold {
		if err := b.spill(); err != nil {
			return err
		}
	}
	if b.spilled {
		if _, err := b.stageFile.WriteAt(data, b.cursor); err != nil {
			return fmt.Errorf("append staging file:%s, err:%w", b.stagePath, err)
		}
	} else {
		b.mem = append(b.mem, data...)
	}
	b.cursor += int64(len(data))
	return nil
}

// spill moves the in-memory buffer into a freshly created staging file and
// frees the memory copy.
func (b *writeBuffer) spill() error {
	name := filepath.Join(os.TempDir(), "davfile_upload_"+uuid.NewString())
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create staging file:%w", err)
	}
	if len(b.mem) > 0 {
		if _, err := f.WriteAt(b.mem, 0); err != nil {
			_ = f.Close()
			_ = os.Remove(name)
			return fmt.Errorf("flush buffer to staging file:%s, err:%w", name, err)
		}
	}
	b.stagePath = name
	b.stageFile = f
	b.spilled = true
	b.mem = nil
	return nil
}

func (b *writeBuffer) len() int64 {
	return b.cursor
}

// materialize exposes the accumulated content as an upload source. It may
// be called repeatedly; the buffer stays usable until discard.
func (b *writeBuffer) materialize() *transport.UploadSource {
	if b.spilled {
		return &transport.UploadSource{File: b.stageFile, Size: b.cursor}
	}
	return &transport.UploadSource{Data: b.mem}
}

// discard frees all local resources, including the staging file. Safe to
// call more than once.
func (b *writeBuffer) discard() {
	if b.stageFile != nil {
		_ = b.stageFile.Close()
		b.stageFile = nil
	}
	if len(b.stagePath) > 0 {
		_ = os.Remove(b.stagePath)
		b.stagePath = ""
	}
	b.mem = nil
}
