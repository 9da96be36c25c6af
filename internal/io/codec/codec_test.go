package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/mimecast/linescan/internal/errors"
	"github.com/mimecast/linescan/internal/testutil"
)

func TestDetect(t *testing.T) {
	content := []byte("alpha\nbeta\ngamma\n")

	tests := []struct {
		name     string
		head     []byte
		expected Type
	}{
		{"plain text", content, Plain},
		{"empty", nil, Plain},
		{"gzip", testutil.GzipBytes(t, content), Gzip},
		{"bgzf", testutil.BGZFBytes(t, content, 0), BGZF},
		{"zstd", testutil.ZstdBytes(t, content), Zstd},
		{"gzip magic only", []byte{0x1f, 0x8b}, Gzip},
		{"zstd magic truncated", []byte{0x28, 0xb5, 0x2f}, Plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head := tt.head
			if len(head) > 18 {
				head = head[:18]
			}
			testutil.AssertEqual(t, tt.expected, Detect(head))
		})
	}
}

func TestDecompressorRoundtrip(t *testing.T) {
	content := testutil.GenerateLines(500, 60)

	tests := []struct {
		name  string
		ctype Type
		data  []byte
	}{
		{"plain", Plain, content},
		{"gzip", Gzip, testutil.GzipBytes(t, content)},
		{"bgzf", BGZF, testutil.BGZFBytes(t, content, 4096)},
		{"zstd", Zstd, testutil.ZstdBytes(t, content)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.ctype, Detect(tt.data[:min(len(tt.data), 18)]))

			dec, err := NewDecompressor(tt.ctype, bytes.NewReader(tt.data))
			testutil.AssertNoError(t, err)
			defer dec.Close()

			decoded, err := io.ReadAll(dec)
			testutil.AssertNoError(t, err)
			if !bytes.Equal(decoded, content) {
				t.Errorf("decoded %d bytes, expected %d, content differs",
					len(decoded), len(content))
			}
		})
	}
}

func TestDecompressorReset(t *testing.T) {
	first := []byte("first stream\n")
	second := []byte("second stream\n")

	tests := []struct {
		name  string
		ctype Type
		pack  func(content []byte) []byte
	}{
		{"plain", Plain, func(c []byte) []byte { return c }},
		{"gzip", Gzip, func(c []byte) []byte { return testutil.GzipBytes(t, c) }},
		{"bgzf", BGZF, func(c []byte) []byte { return testutil.BGZFBytes(t, c, 0) }},
		{"zstd", Zstd, func(c []byte) []byte { return testutil.ZstdBytes(t, c) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewDecompressor(tt.ctype, bytes.NewReader(tt.pack(first)))
			testutil.AssertNoError(t, err)
			defer dec.Close()

			got, err := io.ReadAll(dec)
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, string(first), string(got))

			testutil.AssertNoError(t, dec.Reset(bytes.NewReader(tt.pack(second))))
			got, err = io.ReadAll(dec)
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, string(second), string(got))
		})
	}
}

func TestGzipCorruptHeader(t *testing.T) {
	// Valid magic, garbage after: must be malformed input, not plain.
	data := []byte{0x1f, 0x8b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	testutil.AssertEqual(t, Gzip, Detect(data))

	_, err := NewDecompressor(Gzip, bytes.NewReader(data))
	if !errors.Is(err, errors.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestBGZFCorruptBlock(t *testing.T) {
	data := testutil.BGZFBytes(t, testutil.GenerateLines(100, 40), 1024)
	// Flip a byte inside the first block's compressed payload.
	data[30] ^= 0xff

	_, err := NewDecompressor(BGZF, bytes.NewReader(data))
	if !errors.Is(err, errors.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestBGZFBlockAccounting(t *testing.T) {
	content := testutil.GenerateLines(64, 30) // > 1KB of content
	data := testutil.BGZFBytes(t, content, 1024)

	dec, err := NewDecompressor(BGZF, bytes.NewReader(data))
	testutil.AssertNoError(t, err)
	defer dec.Close()

	bg := dec.(*bgzfDecompressor)
	decoded, err := io.ReadAll(dec)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(content), len(decoded))

	wantBlocks := (len(content)+1023)/1024 + 1 // data members + EOF marker
	testutil.AssertEqual(t, wantBlocks, bg.Blocks())
	if bg.BlockOffset() <= 0 {
		t.Errorf("expected nonzero final block offset, got %d", bg.BlockOffset())
	}
}
