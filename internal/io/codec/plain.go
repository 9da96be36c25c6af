package codec

import (
	"io"

	"github.com/mimecast/linescan/internal/errors"
)

// plainDecompressor passes uncompressed bytes through unchanged, retrying
// the source until something arrives. It exists so the reader can treat
// every input uniformly.
type plainDecompressor struct {
	src io.Reader
}

func newPlainDecompressor(src io.Reader) *plainDecompressor {
	return &plainDecompressor{src: src}
}

func (d *plainDecompressor) Read(p []byte) (int, error) {
	n, err := d.src.Read(p)
	if err != nil && err != io.EOF {
		return n, errors.Wrap(errors.ErrReadFailed, err.Error())
	}
	return n, err
}

func (d *plainDecompressor) Reset(src io.Reader) error {
	d.src = src
	return nil
}

func (d *plainDecompressor) Close() error {
	return nil
}
