// Package text implements high-throughput line-oriented reading of large,
// possibly compressed files. Two consumer surfaces are provided: Reader
// decodes synchronously on the caller's goroutine, Stream moves the
// decompression onto a background goroutine that decodes ahead into a
// circular buffer while the caller consumes completed lines.
//
// Both hand out line views: byte slices aliasing an internal buffer, valid
// only until the next line-advancing call. Callers needing persistence must
// copy (internal/io/pool helps with that).
package text

import (
	"bytes"
	"io"
	"os"

	"github.com/mimecast/linescan/internal/constants"
	"github.com/mimecast/linescan/internal/dlog"
	"github.com/mimecast/linescan/internal/errors"
	"github.com/mimecast/linescan/internal/io/codec"
)

// Reader scans a possibly compressed file one line at a time through a
// reusable buffer. Not safe for concurrent use.
type Reader struct {
	// consumeIter..consumeStop delimit the unconsumed, newline-terminated
	// region of buf. consumeStop always sits just past the last complete
	// newline in the valid region, except transiently inside advance.
	consumeIter int
	consumeStop int

	buf    []byte
	bufLen int // valid decoded bytes in buf

	path        string
	file        *os.File
	dec         codec.Decompressor
	ctype       codec.Type
	chunkSize   int
	maxLineLen  int
	callerOwned bool
	decEOF      bool  // codec reported end of stream
	err         error // sticky terminal status: io.EOF or a failure
}

// Option configures Open and OpenStream.
type Option func(*options)

type options struct {
	maxLineLen int
	chunkSize  int
	buf        []byte
}

// WithMaxLineLen sets the ceiling for one decoded line's length. Lines
// longer than n fail with ErrLineTooLong instead of growing the buffer
// without bound. Must be at least one decompression chunk.
func WithMaxLineLen(n int) Option {
	return func(o *options) { o.maxLineLen = n }
}

// WithChunkSize overrides the decompression chunk size. Mainly a testing
// hook; the default is tuned for production use.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithBuffer supplies a caller-owned fixed-capacity buffer. The reader
// never grows or frees it; when a line no longer fits, ErrBufferFull is
// reported. Capacity must exceed the chunk size.
func WithBuffer(buf []byte) Option {
	return func(o *options) { o.buf = buf }
}

func buildOptions(opts []Option) (options, error) {
	o := options{
		maxLineLen: constants.DefaultMaxLineLen,
		chunkSize:  constants.DecompressChunkSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunkSize <= 0 {
		return o, errors.Wrap(errors.ErrInvalidArgument, "chunk size must be positive")
	}
	if o.maxLineLen < o.chunkSize {
		return o, errors.Wrapf(errors.ErrInvalidArgument,
			"max line length %d below chunk size %d", o.maxLineLen, o.chunkSize)
	}
	if o.buf != nil && cap(o.buf) <= o.chunkSize {
		return o, errors.Wrap(errors.ErrInvalidArgument,
			"caller-owned buffer not larger than one chunk")
	}
	return o, nil
}

// Open opens path for line-oriented reading, auto-detecting the compression
// format from the file's leading bytes.
func Open(path string, opts ...Option) (*Reader, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		path:        path,
		chunkSize:   o.chunkSize,
		maxLineLen:  o.maxLineLen,
		callerOwned: o.buf != nil,
	}
	if r.callerOwned {
		r.buf = o.buf[:cap(o.buf)]
	} else {
		r.buf = make([]byte, 2*o.chunkSize)
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// open resolves the codec and attaches the decompressor. Shared by Open and
// Rewind.
func (r *Reader) open() error {
	file, err := os.Open(r.path)
	if err != nil {
		return errors.Wrapf(errors.ErrOpenFailed, "%s: %v", r.path, err)
	}
	ctype, dec, err := openDecoder(file)
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.ctype = ctype
	r.dec = dec
	dlog.WithFields(dlog.Fields{"path": r.path, "codec": ctype.String()}).
		Debug("opened text file")
	return nil
}

// openDecoder sniffs the leading bytes of file and constructs the matching
// decompressor over a source that replays the sniffed bytes.
func openDecoder(file *os.File) (codec.Type, codec.Decompressor, error) {
	head := make([]byte, constants.DetectHeaderLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return codec.Plain, nil, errors.Wrapf(errors.ErrOpenFailed,
			"%s: %v", file.Name(), err)
	}
	ctype := codec.Detect(head[:n])
	src := io.MultiReader(bytes.NewReader(head[:n]), file)
	dec, err := codec.NewDecompressor(ctype, src)
	if err != nil {
		return ctype, nil, errors.Wrapf(err, "%s", file.Name())
	}
	return ctype, dec, nil
}

// Codec reports the detected compression format.
func (r *Reader) Codec() codec.Type {
	return r.ctype
}

// NextLine returns the next line without its terminator. The returned slice
// is a view into the reader's buffer and is invalidated by the next
// NextLine, Rewind or Close call. At end of input it returns io.EOF, and
// keeps returning io.EOF on subsequent calls.
func (r *Reader) NextLine() ([]byte, error) {
	if r.file == nil {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "read on closed reader")
	}
	if r.consumeIter == r.consumeStop {
		if err := r.advance(); err != nil {
			return nil, err
		}
	}
	line := r.buf[r.consumeIter:r.consumeStop]
	nl := bytes.IndexByte(line, '\n')
	// consumeStop invariant guarantees nl >= 0 here
	if nl > r.maxLineLen {
		r.err = errors.Wrapf(errors.ErrLineTooLong,
			"%s: line exceeds %d bytes", r.path, r.maxLineLen)
		return nil, r.err
	}
	line = line[:nl]
	r.consumeIter += nl + 1
	return line, nil
}

// advance refills the buffer: it compacts any unterminated partial line to
// the front, then appends decoded chunks until at least one newline is
// available, the stream ends, or the line ceiling is hit. On end-of-stream
// with unterminated trailing data a newline is synthesized so downstream
// scanning can always assume termination.
func (r *Reader) advance() error {
	if r.err != nil {
		return r.err
	}

	partial := r.bufLen - r.consumeStop
	copy(r.buf, r.buf[r.consumeStop:r.bufLen])
	r.bufLen = partial
	r.consumeIter = 0
	r.consumeStop = 0

	for {
		if r.decEOF {
			return r.finishEOF()
		}
		if len(r.buf)-r.bufLen < r.chunkSize {
			if err := r.makeRoom(); err != nil {
				r.err = err
				return err
			}
		}

		n, err := fillChunk(r.dec, r.buf[r.bufLen:r.bufLen+r.chunkSize])
		r.bufLen += n
		if err != nil && err != io.EOF {
			r.err = err
			return err
		}
		if err == io.EOF {
			r.decEOF = true
		}

		if n > 0 {
			if nl := bytes.LastIndexByte(r.buf[r.bufLen-n:r.bufLen], '\n'); nl >= 0 {
				r.consumeStop = r.bufLen - n + nl + 1
				return nil
			}
			if r.bufLen > r.maxLineLen {
				r.err = errors.Wrapf(errors.ErrLineTooLong,
					"%s: line exceeds %d bytes", r.path, r.maxLineLen)
				return r.err
			}
		}
	}
}

// finishEOF handles the final advance after the codec reported end of
// stream: terminate any trailing data, then report and latch io.EOF.
func (r *Reader) finishEOF() error {
	if r.bufLen > r.consumeStop {
		if r.bufLen == len(r.buf) {
			if err := r.makeRoom(); err != nil {
				r.err = err
				return err
			}
		}
		// Synthesize the terminator for the last line.
		r.buf[r.bufLen] = '\n'
		r.bufLen++
		r.consumeStop = r.bufLen
		return nil
	}
	r.err = io.EOF
	return io.EOF
}

// makeRoom guarantees one chunk of free space at the buffer tail, doubling
// chunk-aligned in self-managed mode. Once growth would serve only a line
// beyond the ceiling, ErrLineTooLong is reported; a caller-owned buffer
// that cannot grow at all reports ErrBufferFull.
func (r *Reader) makeRoom() error {
	if r.bufLen > r.maxLineLen {
		return errors.Wrapf(errors.ErrLineTooLong,
			"%s: line exceeds %d bytes", r.path, r.maxLineLen)
	}
	if r.callerOwned {
		return errors.Wrapf(errors.ErrBufferFull,
			"%s: line does not fit caller-owned buffer of %d bytes",
			r.path, len(r.buf))
	}
	capLimit := r.maxLineLen + 2*r.chunkSize
	newCap := 2 * len(r.buf)
	newCap -= newCap % r.chunkSize
	if newCap > capLimit {
		newCap = capLimit
	}
	if newCap <= len(r.buf) {
		return errors.Wrapf(errors.ErrLineTooLong,
			"%s: line exceeds %d bytes", r.path, r.maxLineLen)
	}
	grown := make([]byte, newCap)
	copy(grown, r.buf[:r.bufLen])
	r.buf = grown
	return nil
}

// fillChunk pulls decoded bytes until p is full, end of stream, or a hard
// error. Short reads from the codec are retried here so per-advance
// overhead stays amortized over full chunks.
func fillChunk(dec codec.Decompressor, p []byte) (int, error) {
	filled := 0
	for filled < len(p) {
		n, err := dec.Read(p[filled:])
		filled += n
		if err != nil {
			return filled, err
		}
	}
	return filled, nil
}

// Rewind re-opens the same source from the beginning for another pass,
// discarding all buffered state and any sticky end-of-stream status.
func (r *Reader) Rewind() error {
	if r.file == nil {
		return errors.Wrap(errors.ErrInvalidArgument, "rewind on closed reader")
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(errors.ErrReadFailed, "rewind %s: %v", r.path, err)
	}
	head := make([]byte, constants.DetectHeaderLen)
	n, err := io.ReadFull(r.file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errors.Wrapf(errors.ErrReadFailed, "rewind %s: %v", r.path, err)
	}
	src := io.MultiReader(bytes.NewReader(head[:n]), r.file)
	if err := r.dec.Reset(src); err != nil {
		return err
	}
	r.consumeIter = 0
	r.consumeStop = 0
	r.bufLen = 0
	r.decEOF = false
	r.err = nil
	return nil
}

// Close releases the codec and the underlying file. A pending failure (not
// plain end-of-stream) takes precedence; a close failure is attached
// without masking it.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	var pending error
	if r.err != nil && r.err != io.EOF {
		pending = r.err
	}
	var closeErr error
	if err := r.dec.Close(); err != nil {
		closeErr = errors.Wrapf(errors.ErrCloseFailed, "codec: %v", err)
	}
	if err := r.file.Close(); err != nil && closeErr == nil {
		closeErr = errors.Wrapf(errors.ErrCloseFailed, "%s: %v", r.path, err)
	}
	r.file = nil
	r.dec = nil
	return errors.WithSecondary(pending, closeErr)
}
