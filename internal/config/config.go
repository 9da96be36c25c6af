// Package config provides configuration management for the linescan tools.
// Settings are resolved from defaults, then environment variables with the
// LINESCAN_ prefix, then command-line arguments, in increasing precedence.
package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/mimecast/linescan/internal/constants"
	"github.com/mimecast/linescan/internal/errors"
)

const (
	// DefaultLogLevel specifies the default log level (obviously)
	DefaultLogLevel string = "info"
)

// Args holds the command-line arguments shared by the linescan tools.
type Args struct {
	LogLevel   string
	Quiet      bool
	Plain      bool
	Serial     bool
	Concurrent bool
	MaxLineLen int
	ChunkSize  int
	Workers    int
}

// CommonConfig is the resolved configuration for the current process.
type CommonConfig struct {
	LogLevel   string
	Quiet      bool
	MaxLineLen int
	ChunkSize  int
	Workers    int
}

// Common holds the resolved configuration after Setup.
var Common *CommonConfig

func newDefaultCommonConfig() *CommonConfig {
	return &CommonConfig{
		LogLevel:   DefaultLogLevel,
		MaxLineLen: constants.DefaultMaxLineLen,
		ChunkSize:  constants.DecompressChunkSize,
		Workers:    runtime.NumCPU(),
	}
}

// Setup resolves the configuration from defaults, environment and args and
// makes it available via Common.
func Setup(args *Args) error {
	cfg := newDefaultCommonConfig()
	cfg.applyEnv()
	cfg.applyArgs(args)

	if err := cfg.validate(); err != nil {
		return err
	}
	Common = cfg
	return nil
}

func (c *CommonConfig) applyEnv() {
	if v := os.Getenv("LINESCAN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if Env("LINESCAN_QUIET") {
		c.Quiet = true
	}
	if n, ok := envInt("LINESCAN_MAX_LINE_LENGTH"); ok {
		c.MaxLineLen = n
	}
	if n, ok := envInt("LINESCAN_CHUNK_SIZE"); ok {
		c.ChunkSize = n
	}
	if n, ok := envInt("LINESCAN_WORKERS"); ok {
		c.Workers = n
	}
}

func (c *CommonConfig) applyArgs(args *Args) {
	if args == nil {
		return
	}
	if args.LogLevel != "" {
		c.LogLevel = args.LogLevel
	}
	if args.Quiet {
		c.Quiet = true
	}
	if args.MaxLineLen > 0 {
		c.MaxLineLen = args.MaxLineLen
	}
	if args.ChunkSize > 0 {
		c.ChunkSize = args.ChunkSize
	}
	if args.Workers > 0 {
		c.Workers = args.Workers
	}
}

func (c *CommonConfig) validate() error {
	if c.MaxLineLen < c.ChunkSize {
		return errors.Wrapf(errors.ErrInvalidArgument,
			"max line length %d below decompression chunk size %d",
			c.MaxLineLen, c.ChunkSize)
	}
	// Worker counts are clamped, not rejected.
	if c.Workers < constants.MinWorkers {
		c.Workers = constants.MinWorkers
	}
	if c.Workers > constants.MaxWorkers {
		c.Workers = constants.MaxWorkers
	}
	return nil
}

// Env returns true when a given environment variable is set to "yes".
func Env(env string) bool {
	return os.Getenv(env) == "yes"
}

func envInt(env string) (int, bool) {
	v := os.Getenv(env)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
