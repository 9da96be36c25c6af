// Package main provides the LCat command-line tool.
// LCat is a cat-like reader for line-oriented text files that transparently
// decompresses gzip, BGZF and zstd input and always decompresses ahead of
// the consumer on a background goroutine.
//
// Key features:
// - Transparent codec detection from file contents, not file names
// - Decompress-ahead streaming with bounded memory
// - Serial, streamed and concurrent reading modes
// - Line filtering with a fast path for literal patterns
// - Quiet and plain output modes
// - CPU and memory profiling support
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mimecast/linescan/internal/config"
	"github.com/mimecast/linescan/internal/dlog"
	"github.com/mimecast/linescan/internal/io/pool"
	"github.com/mimecast/linescan/internal/io/signal"
	"github.com/mimecast/linescan/internal/io/text"
	"github.com/mimecast/linescan/internal/profiling"
	"github.com/mimecast/linescan/internal/regex"
	"github.com/mimecast/linescan/internal/version"
)

// main parses command-line arguments, initializes the configuration and
// logging, and dispatches to one of the reading modes. Default mode runs a
// single decompress-ahead stream retargeted across all input files.
func main() {
	var args config.Args
	var displayVersion bool
	var grep string
	var invert bool
	var profFlags profiling.Flags

	flag.BoolVar(&args.Quiet, "quiet", false, "Quiet output mode")
	flag.BoolVar(&args.Plain, "plain", false, "Plain output mode, no file prefixes")
	flag.BoolVar(&args.Serial, "serial", false, "Read files one by one without readahead")
	flag.BoolVar(&args.Concurrent, "concurrent", false, "Read all files concurrently")
	flag.BoolVar(&displayVersion, "version", false, "Display version")
	flag.BoolVar(&invert, "invert", false, "Invert the -grep filter")
	flag.IntVar(&args.MaxLineLen, "maxLineLength", 0, "Max line length in bytes")
	flag.IntVar(&args.ChunkSize, "chunkSize", 0, "Decompression chunk size in bytes")
	flag.StringVar(&args.LogLevel, "logLevel", "", "Log level")
	flag.StringVar(&grep, "grep", "", "Only print lines matching this pattern")
	profiling.AddFlags(&profFlags)

	flag.Parse()

	if displayVersion {
		version.PrintAndExit()
	}
	if err := config.Setup(&args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", version.Name, err)
		os.Exit(2)
	}
	dlog.Setup(config.Common.LogLevel, config.Common.Quiet)

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "usage: lcat [options] file ...\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	filterFlag := regex.Default
	if invert {
		filterFlag = regex.Invert
	}
	filter, err := regex.New(grep, filterFlag)
	if err != nil {
		dlog.Errorf("%v", err)
		os.Exit(2)
	}

	profiler := profiling.NewProfiler(profFlags.ToConfig("lcat"))
	defer profiler.Stop()

	ctx, cancel := signal.ShutdownContext(context.Background())
	defer cancel()

	out := bufio.NewWriterSize(os.Stdout, 1<<16)
	defer out.Flush()

	cat := catter{
		filter: filter,
		prefix: !args.Plain && len(paths) > 1,
	}
	switch {
	case args.Serial:
		err = cat.serial(ctx, out, paths)
	case args.Concurrent:
		err = cat.concurrent(ctx, out, paths)
	default:
		err = cat.streamed(ctx, out, paths)
	}
	if err != nil {
		out.Flush()
		dlog.Errorf("%v", err)
		profiler.Stop()
		os.Exit(1)
	}
}

type catter struct {
	filter regex.Regex
	prefix bool
}

func textOptions() []text.Option {
	return []text.Option{
		text.WithMaxLineLen(config.Common.MaxLineLen),
		text.WithChunkSize(config.Common.ChunkSize),
	}
}

// streamed runs one decompress-ahead stream, retargeted from file to file,
// so decompression of each file overlaps with printing.
func (c catter) streamed(ctx context.Context, out *bufio.Writer, paths []string) error {
	stream, err := text.OpenStream(paths[0], textOptions()...)
	if err != nil {
		return err
	}
	defer stream.Close()

	for i, path := range paths {
		if ctx.Err() != nil {
			return nil
		}
		if i > 0 {
			if err := stream.Retarget(path); err != nil {
				return err
			}
		}
		dlog.WithFields(dlog.Fields{"path": path, "codec": stream.Codec().String()}).
			Debug("catting file")
		if err := c.copyLines(ctx, out, stream, path); err != nil {
			return err
		}
	}
	return stream.Close()
}

// serial reads each file with a plain single-goroutine reader.
func (c catter) serial(ctx context.Context, out *bufio.Writer, paths []string) error {
	for _, path := range paths {
		if ctx.Err() != nil {
			return nil
		}
		reader, err := text.Open(path, textOptions()...)
		if err != nil {
			return err
		}
		if err := c.copyLines(ctx, out, reader, path); err != nil {
			reader.Close()
			return err
		}
		if err := reader.Close(); err != nil {
			return err
		}
	}
	return nil
}

// concurrent decompresses all files at once, buffering each file's output
// in memory so files still print in argument order.
func (c catter) concurrent(ctx context.Context, out *bufio.Writer, paths []string) error {
	buffers := make([]*bytes.Buffer, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Common.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			buf := pool.LineBuffer.Get().(*bytes.Buffer)
			reader, err := text.Open(path, textOptions()...)
			if err != nil {
				pool.RecycleLineBuffer(buf)
				return err
			}
			defer reader.Close()
			for ctx.Err() == nil {
				line, err := reader.NextLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					pool.RecycleLineBuffer(buf)
					return err
				}
				if !c.filter.Match(line) {
					continue
				}
				buf.Write(line)
				buf.WriteByte('\n')
			}
			buffers[i] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, buf := range buffers {
		if _, err := out.Write(buf.Bytes()); err != nil {
			return err
		}
		pool.RecycleLineBuffer(buf)
	}
	return nil
}

// lineSource is the common surface of text.Reader and text.Stream.
type lineSource interface {
	NextLine() ([]byte, error)
}

func (c catter) copyLines(ctx context.Context, out *bufio.Writer, src lineSource, path string) error {
	for ctx.Err() == nil {
		line, err := src.NextLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !c.filter.Match(line) {
			continue
		}
		if c.prefix {
			out.WriteString(path)
			out.WriteByte(':')
		}
		out.Write(line)
		if err := out.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}
