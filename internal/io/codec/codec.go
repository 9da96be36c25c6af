// Package codec is the sole boundary between linescan and the compression
// libraries. It classifies a file from its leading bytes and wraps the
// matching decoder behind one pull-oriented Decompressor interface. The
// rest of the code never touches a compression library directly.
package codec

import (
	"io"

	"github.com/mimecast/linescan/internal/errors"
)

// Type identifies the compression format of an input file.
type Type int

// Supported compression formats.
const (
	Plain Type = iota
	Gzip
	BGZF
	Zstd
)

// String returns the format name.
func (t Type) String() string {
	switch t {
	case Plain:
		return "plain"
	case Gzip:
		return "gzip"
	case BGZF:
		return "bgzf"
	case Zstd:
		return "zstd"
	}
	return "unknown"
}

const (
	gzipID1 = 0x1f
	gzipID2 = 0x8b
	gzipCM  = 0x08

	flagFExtra = 0x04
)

var zstdMagic = [4]byte{0x28, 0xb5, 0x2f, 0xfd}

// Detect classifies a file from its first bytes. head should hold up to
// constants.DetectHeaderLen bytes; shorter inputs are classified from what
// is there. BGZF is gzip with an FEXTRA "BC" subfield in the first member
// header, which the bgzip writer always places first, so a fixed-offset
// check suffices.
func Detect(head []byte) Type {
	if len(head) >= 4 &&
		head[0] == zstdMagic[0] && head[1] == zstdMagic[1] &&
		head[2] == zstdMagic[2] && head[3] == zstdMagic[3] {
		return Zstd
	}
	if len(head) >= 2 && head[0] == gzipID1 && head[1] == gzipID2 {
		if len(head) >= 14 && head[2] == gzipCM && head[3]&flagFExtra != 0 &&
			head[12] == 'B' && head[13] == 'C' {
			return BGZF
		}
		return Gzip
	}
	return Plain
}

// Decompressor pulls decoded bytes out of a compressed source. Read returns
// io.EOF at the end of the compressed stream and wraps malformed input in
// errors.ErrMalformedInput. Implementations are not safe for concurrent
// use; each reader or stream owns exactly one.
type Decompressor interface {
	io.Reader

	// Reset discards all decoder state and retargets the decompressor at a
	// new raw source positioned at the start of a stream of the same format.
	Reset(src io.Reader) error

	// Close releases decoder resources. The underlying source is not closed.
	Close() error
}

// NewDecompressor constructs the decoder matching t, reading compressed
// bytes from src. A recognized but corrupt header is reported as
// errors.ErrMalformedInput, never silently treated as uncompressed.
func NewDecompressor(t Type, src io.Reader) (Decompressor, error) {
	switch t {
	case Plain:
		return newPlainDecompressor(src), nil
	case Gzip:
		return newGzipDecompressor(src)
	case BGZF:
		return newBGZFDecompressor(src)
	case Zstd:
		return newZstdDecompressor(src), nil
	}
	return nil, errors.Wrapf(errors.ErrUnknownCodec, "codec type %d", t)
}
