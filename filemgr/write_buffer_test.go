package filemgr

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteBufferSequentialOnly(t *testing.T) {
	buf := newWriteBuffer(1024)
	defer buf.discard()
	assert.NoError(t, buf.writeAt([]byte("abc"), 0))
	err := buf.writeAt([]byte("xyz"), 5)
	assert.ErrorIs(t, err, ErrOutOfOrderWrite)
	// the rejected write must not advance the cursor
	assert.Equal(t, int64(3), buf.len())
	assert.NoError(t, buf.writeAt([]byte("def"), 3))
	assert.Equal(t, []byte("abcdef"), buf.materialize().Data)
}

func TestWriteBufferSpill(t *testing.T) {
	buf := newWriteBuffer(8)
	assert.NoError(t, buf.writeAt([]byte("12345"), 0))
	assert.False(t, buf.spilled)

	// this write would push memory past the threshold
	assert.NoError(t, buf.writeAt([]byte("67890"), 5))
	assert.True(t, buf.spilled)
	assert.Nil(t, buf.mem)
	assert.NotEmpty(t, buf.stagePath)

	assert.NoError(t, buf.writeAt([]byte("abc"), 10))
	assert.Equal(t, int64(13), buf.len())

	src := buf.materialize()
	assert.NotNil(t, src.File)
	assert.Equal(t, int64(13), src.Size)
	onDisk, err := os.ReadFile(buf.stagePath)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("1234567890abc"), onDisk))

	stage := buf.stagePath
	buf.discard()
	_, err = os.Stat(stage)
	assert.True(t, os.IsNotExist(err))
	// repeated discard is harmless
	buf.discard()
}

func TestWriteBufferMemoryMaterialize(t *testing.T) {
	buf := newWriteBuffer(0)
	defer buf.discard()
	assert.NoError(t, buf.writeAt([]byte("hello"), 0))
	src := buf.materialize()
	assert.Nil(t, src.File)
	assert.Equal(t, []byte("hello"), src.Data)
	assert.Equal(t, int64(5), src.Len())
	// materialize twice, the buffer stays usable
	assert.NoError(t, buf.writeAt([]byte("!"), 5))
	assert.Equal(t, []byte("hello!"), buf.materialize().Data)
}
