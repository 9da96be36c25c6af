// Package pool provides reusable byte buffers. Linescan otherwise allocates
// a lot of short-lived memory when callers copy line views out of the
// reader's internal buffer.
package pool

import (
	"bytes"
	"sync"

	"github.com/mimecast/linescan/internal/constants"
)

// LineBuffer pools bytes.Buffer instances used for persisted line copies.
var LineBuffer = sync.Pool{
	New: func() interface{} {
		b := bytes.Buffer{}
		b.Grow(constants.LineBufferInitialCapacity)
		return &b
	},
}

// RecycleLineBuffer resets and returns a buffer to the pool.
func RecycleLineBuffer(b *bytes.Buffer) {
	b.Reset()
	LineBuffer.Put(b)
}

// Chunk pools decompression-chunk-sized byte slices. Used for codec scratch
// space and for block staging in the command tools.
var Chunk = sync.Pool{
	New: func() interface{} {
		b := make([]byte, constants.DecompressChunkSize)
		return &b
	},
}

// GetChunk returns a chunk-sized byte slice from the pool.
func GetChunk() []byte {
	return *(Chunk.Get().(*[]byte))
}

// RecycleChunk returns a chunk to the pool. Slices not obtained from
// GetChunk are accepted as long as they are at least chunk-sized.
func RecycleChunk(b []byte) {
	if cap(b) < constants.DecompressChunkSize {
		return
	}
	b = b[:constants.DecompressChunkSize]
	Chunk.Put(&b)
}
