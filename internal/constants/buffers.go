package constants

// Buffer size constants in bytes
const (
	// DecompressChunkSize is the unit in which decoded bytes are pulled from
	// a codec. Larger chunks amortize per-call overhead, smaller chunks keep
	// memory pressure bounded. 64KB works well on the systems we care about.
	DecompressChunkSize = 64 * 1024

	// DefaultMaxLineLen is the default ceiling for a single decoded line (16MB).
	// Lines longer than this are reported as errors instead of growing the
	// buffer without bound.
	DefaultMaxLineLen = 16 * 1024 * 1024

	// LineBufferInitialCapacity is the initial capacity for pooled line
	// buffers (4KB). Most log lines are between 100-500 bytes.
	LineBufferInitialCapacity = 4096

	// StreamBufferSlackChunks is how many extra decompression chunks the
	// decompress-ahead ring buffer holds beyond the enforced max line
	// length. Must be at least 2 so the producer always has a full chunk of
	// writable space while the consumer still holds an unterminated line.
	StreamBufferSlackChunks = 2

	// DetectHeaderLen is how many leading bytes of a file are inspected to
	// classify its compression format.
	DetectHeaderLen = 18
)
