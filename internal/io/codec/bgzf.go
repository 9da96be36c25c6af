package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/mimecast/linescan/internal/errors"
)

// Block-gzip (BGZF) is a gzip-compatible format made of independently
// decompressible members of at most 64KB decoded size, each carrying its
// own compressed size in a "BC" FEXTRA subfield. Decoding block by block
// keeps per-block boundaries visible, which a later block-parallel or
// seeking reader can exploit.
const (
	bgzfMaxBlockSize = 0x10000

	// fixed part of a member header before the extra field
	bgzfFixedHeaderLen = 12
	// compressed-data footer: CRC32 + ISIZE
	bgzfFooterLen = 8
)

// bgzfDecompressor decodes one BGZF block at a time into an in-memory
// block buffer and serves Read calls from it.
type bgzfDecompressor struct {
	src io.Reader

	block    []byte // decoded bytes of the current block
	blockPos int    // read cursor into block

	cdata  []byte // staging for one block's compressed payload
	inf    io.ReadCloser
	eof    bool
	blocks int   // members decoded so far
	offset int64 // compressed offset of the start of the current block
	next   int64 // compressed offset of the next block
}

func newBGZFDecompressor(src io.Reader) (*bgzfDecompressor, error) {
	d := &bgzfDecompressor{
		src:   src,
		block: make([]byte, 0, bgzfMaxBlockSize),
		cdata: make([]byte, 0, bgzfMaxBlockSize),
		inf:   flate.NewReader(nil),
	}
	// Decode the first block eagerly so a corrupt file fails at open time.
	if err := d.nextBlock(); err != nil && err != io.EOF {
		return nil, err
	}
	return d, nil
}

func (d *bgzfDecompressor) Read(p []byte) (int, error) {
	for d.blockPos == len(d.block) {
		if d.eof {
			return 0, io.EOF
		}
		if err := d.nextBlock(); err != nil {
			if err == io.EOF {
				d.eof = true
				continue
			}
			return 0, err
		}
	}
	n := copy(p, d.block[d.blockPos:])
	d.blockPos += n
	return n, nil
}

// Blocks returns how many BGZF members have been decoded so far, including
// the trailing empty EOF marker member if it has been consumed.
func (d *bgzfDecompressor) Blocks() int {
	return d.blocks
}

// BlockOffset returns the compressed-stream offset of the most recently
// decoded block.
func (d *bgzfDecompressor) BlockOffset() int64 {
	return d.offset
}

// nextBlock reads and decodes one complete member. Returns io.EOF when the
// source is exhausted at a block boundary.
func (d *bgzfDecompressor) nextBlock() error {
	var fixed [bgzfFixedHeaderLen]byte
	if _, err := io.ReadFull(d.src, fixed[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errors.Wrap(errors.ErrMalformedInput, "truncated block header")
	}
	if fixed[0] != gzipID1 || fixed[1] != gzipID2 || fixed[2] != gzipCM ||
		fixed[3]&flagFExtra == 0 {
		return errors.Wrap(errors.ErrMalformedInput, "bad block magic")
	}
	xlen := int(binary.LittleEndian.Uint16(fixed[10:12]))
	extra := make([]byte, xlen)
	if _, err := io.ReadFull(d.src, extra); err != nil {
		return errors.Wrap(errors.ErrMalformedInput, "truncated extra field")
	}
	bsize, err := bcSubfield(extra)
	if err != nil {
		return err
	}

	cdataLen := bsize + 1 - bgzfFixedHeaderLen - xlen - bgzfFooterLen
	if cdataLen < 0 {
		return errors.Wrap(errors.ErrMalformedInput, "block size underflow")
	}
	if cap(d.cdata) < cdataLen {
		d.cdata = make([]byte, cdataLen)
	}
	d.cdata = d.cdata[:cdataLen]
	if _, err := io.ReadFull(d.src, d.cdata); err != nil {
		return errors.Wrap(errors.ErrMalformedInput, "truncated block data")
	}
	var footer [bgzfFooterLen]byte
	if _, err := io.ReadFull(d.src, footer[:]); err != nil {
		return errors.Wrap(errors.ErrMalformedInput, "truncated block footer")
	}
	isize := int(binary.LittleEndian.Uint32(footer[4:8]))
	if isize > bgzfMaxBlockSize {
		return errors.Wrap(errors.ErrMalformedInput, "block larger than 64KB")
	}

	if err := d.inf.(flate.Resetter).Reset(bytes.NewReader(d.cdata), nil); err != nil {
		return errors.Wrap(errors.ErrMalformedInput, err.Error())
	}
	d.block = d.block[:isize]
	d.blockPos = 0
	if _, err := io.ReadFull(d.inf, d.block); err != nil {
		return errors.Wrap(errors.ErrMalformedInput, err.Error())
	}
	if crc32.ChecksumIEEE(d.block) != binary.LittleEndian.Uint32(footer[0:4]) {
		return errors.Wrap(errors.ErrMalformedInput, "block checksum mismatch")
	}

	d.blocks++
	d.offset = d.next
	d.next += int64(bsize + 1)
	return nil
}

// bcSubfield extracts BSIZE (total block size minus one) from a member's
// FEXTRA payload.
func bcSubfield(extra []byte) (int, error) {
	for len(extra) >= 4 {
		slen := int(binary.LittleEndian.Uint16(extra[2:4]))
		if extra[0] == 'B' && extra[1] == 'C' {
			if slen != 2 || len(extra) < 6 {
				return 0, errors.Wrap(errors.ErrMalformedInput, "bad BC subfield")
			}
			return int(binary.LittleEndian.Uint16(extra[4:6])), nil
		}
		if len(extra) < 4+slen {
			break
		}
		extra = extra[4+slen:]
	}
	return 0, errors.Wrap(errors.ErrMalformedInput, "missing BC subfield")
}

func (d *bgzfDecompressor) Reset(src io.Reader) error {
	d.src = src
	d.block = d.block[:0]
	d.blockPos = 0
	d.eof = false
	d.blocks = 0
	d.offset = 0
	d.next = 0
	return nil
}

func (d *bgzfDecompressor) Close() error {
	return d.inf.Close()
}
