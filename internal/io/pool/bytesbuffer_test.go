package pool

import (
	"bytes"
	"testing"

	"github.com/mimecast/linescan/internal/constants"
)

func TestLineBufferRecycleResets(t *testing.T) {
	b := LineBuffer.Get().(*bytes.Buffer)
	b.WriteString("some line content")
	RecycleLineBuffer(b)

	b2 := LineBuffer.Get().(*bytes.Buffer)
	defer RecycleLineBuffer(b2)
	if b2.Len() != 0 {
		t.Errorf("expected recycled buffer to be reset, got %d bytes", b2.Len())
	}
}

func TestChunkSize(t *testing.T) {
	c := GetChunk()
	defer RecycleChunk(c)
	if len(c) != constants.DecompressChunkSize {
		t.Errorf("expected chunk of %d bytes, got %d",
			constants.DecompressChunkSize, len(c))
	}
}

func TestRecycleChunkRejectsSmall(t *testing.T) {
	// Must not panic or poison the pool.
	RecycleChunk(make([]byte, 16))

	c := GetChunk()
	defer RecycleChunk(c)
	if len(c) != constants.DecompressChunkSize {
		t.Errorf("pool returned undersized chunk of %d bytes", len(c))
	}
}
