package codec

import (
	stderrors "errors"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/mimecast/linescan/internal/errors"
)

// gzipDecompressor decodes generic (possibly multi-member) gzip streams.
type gzipDecompressor struct {
	gz *gzip.Reader
}

func newGzipDecompressor(src io.Reader) (*gzipDecompressor, error) {
	gz, err := gzip.NewReader(src)
	if err != nil {
		return nil, wrapGzipErr(err)
	}
	// Concatenated members decode as one logical stream.
	gz.Multistream(true)
	return &gzipDecompressor{gz: gz}, nil
}

func (d *gzipDecompressor) Read(p []byte) (int, error) {
	n, err := d.gz.Read(p)
	if err != nil && err != io.EOF {
		err = wrapGzipErr(err)
	}
	return n, err
}

func (d *gzipDecompressor) Reset(src io.Reader) error {
	if err := d.gz.Reset(src); err != nil {
		return wrapGzipErr(err)
	}
	d.gz.Multistream(true)
	return nil
}

func (d *gzipDecompressor) Close() error {
	return d.gz.Close()
}

// wrapGzipErr maps library errors onto the linescan taxonomy: corrupt
// compressed data is malformed input, everything else is a read failure.
func wrapGzipErr(err error) error {
	var corrupt flate.CorruptInputError
	switch {
	case stderrors.Is(err, gzip.ErrHeader),
		stderrors.Is(err, gzip.ErrChecksum),
		stderrors.Is(err, io.ErrUnexpectedEOF),
		stderrors.As(err, &corrupt):
		return errors.Wrap(errors.ErrMalformedInput, err.Error())
	}
	return errors.Wrap(errors.ErrReadFailed, err.Error())
}
