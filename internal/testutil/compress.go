package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	datadogzstd "github.com/DataDog/zstd"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// GzipBytes compresses content as a single-member gzip stream.
func GzipBytes(t *testing.T, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}
	return buf.Bytes()
}

// ZstdBytes compresses content as a single Zstandard frame.
func ZstdBytes(t *testing.T, content []byte) []byte {
	t.Helper()

	out, err := datadogzstd.Compress(nil, content)
	if err != nil {
		t.Fatalf("zstd compress failed: %v", err)
	}
	return out
}

// BGZFBytes compresses content as a BGZF stream: one member per blockSize
// decoded bytes, each with the BC extra subfield, terminated by the
// standard empty EOF member.
func BGZFBytes(t *testing.T, content []byte, blockSize int) []byte {
	t.Helper()

	if blockSize <= 0 || blockSize > 0x10000 {
		blockSize = 0x10000
	}
	var out bytes.Buffer
	for off := 0; off < len(content); off += blockSize {
		end := off + blockSize
		if end > len(content) {
			end = len(content)
		}
		writeBGZFBlock(t, &out, content[off:end])
	}
	writeBGZFBlock(t, &out, nil) // EOF marker member
	return out.Bytes()
}

func writeBGZFBlock(t *testing.T, out *bytes.Buffer, decoded []byte) {
	t.Helper()

	var cdata bytes.Buffer
	fw, err := flate.NewWriter(&cdata, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer failed: %v", err)
	}
	if _, err := fw.Write(decoded); err != nil {
		t.Fatalf("flate write failed: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("flate close failed: %v", err)
	}

	bsize := 12 + 6 + cdata.Len() + 8 - 1
	header := []byte{
		0x1f, 0x8b, 0x08, 0x04, // magic, deflate, FEXTRA
		0, 0, 0, 0, // mtime
		0, 0xff, // xfl, os
		6, 0, // xlen
		'B', 'C', 2, 0, // BC subfield
		byte(bsize), byte(bsize >> 8),
	}
	out.Write(header)
	out.Write(cdata.Bytes())

	var footer [8]byte
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(decoded))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(decoded)))
	out.Write(footer[:])
}
