package codec

import (
	"io"

	"github.com/DataDog/zstd"

	"github.com/mimecast/linescan/internal/errors"
)

// zstdDecompressor decodes Zstandard frames. The zstd streaming reader only
// reports corruption on the first Read, so construction never fails; a bad
// frame surfaces as malformed input on the first pull.
type zstdDecompressor struct {
	zr io.ReadCloser
}

func newZstdDecompressor(src io.Reader) *zstdDecompressor {
	return &zstdDecompressor{zr: zstd.NewReader(src)}
}

func (d *zstdDecompressor) Read(p []byte) (int, error) {
	n, err := d.zr.Read(p)
	if err != nil && err != io.EOF {
		err = errors.Wrap(errors.ErrMalformedInput, err.Error())
	}
	return n, err
}

func (d *zstdDecompressor) Reset(src io.Reader) error {
	if err := d.zr.Close(); err != nil {
		return errors.Wrap(errors.ErrCloseFailed, err.Error())
	}
	d.zr = zstd.NewReader(src)
	return nil
}

func (d *zstdDecompressor) Close() error {
	return d.zr.Close()
}
