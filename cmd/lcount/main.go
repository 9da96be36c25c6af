// Package main provides the LCount command-line tool.
// LCount is a wc-like counter for line-oriented text files that
// transparently decompresses gzip, BGZF and zstd input. Lines are pulled
// from a decompress-ahead stream into blocks; a barrier-synchronized worker
// group counts one block while the controller fills the next, so I/O,
// decompression and counting all overlap.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mimecast/linescan/internal/config"
	"github.com/mimecast/linescan/internal/dlog"
	"github.com/mimecast/linescan/internal/io/text"
	"github.com/mimecast/linescan/internal/profiling"
	"github.com/mimecast/linescan/internal/version"
	"github.com/mimecast/linescan/internal/workers"
)

// blockLines is how many lines a counting block holds at most. Two blocks
// are in flight: one being counted, one being filled.
const blockLines = 4096

// stats accumulates the counts for one worker, one file, or the total.
type stats struct {
	lines   int64
	words   int64
	bytes   int64
	longest int
}

func (s *stats) add(o stats) {
	s.lines += o.lines
	s.words += o.words
	s.bytes += o.bytes
	if o.longest > s.longest {
		s.longest = o.longest
	}
}

// block is one batch of lines handed to the worker group. The arena backs
// the line views so a block reuses one allocation across refills.
type block struct {
	arena []byte
	lines [][]byte
}

func (b *block) reset() {
	b.arena = b.arena[:0]
	b.lines = b.lines[:0]
}

// fill copies up to blockLines lines from the stream. Returns io.EOF once
// the source is exhausted; the block may still hold lines in that case.
func (b *block) fill(stream *text.Stream) error {
	b.reset()
	marks := make([]int, 0, blockLines+1)
	marks = append(marks, 0)
	for len(marks) <= blockLines {
		line, err := stream.NextLine()
		if err != nil {
			b.slice(marks)
			return err
		}
		b.arena = append(b.arena, line...)
		marks = append(marks, len(b.arena))
	}
	b.slice(marks)
	return nil
}

// slice materializes the line views after the arena has stopped growing,
// since appends may have moved it.
func (b *block) slice(marks []int) {
	for i := 1; i < len(marks); i++ {
		b.lines = append(b.lines, b.arena[marks[i-1]:marks[i]])
	}
}

// counterState is the shared context for the worker group. The controller
// swaps cur between barrier releases; workers only read it.
type counterState struct {
	cur     *block
	threads int
	perWork []stats
}

// countEntry is the worker function: each worker takes every threads-th
// line of the current block and accumulates into its own stats slot.
func countEntry(arg *workers.Arg) {
	st := arg.Context.(*counterState)
	for {
		s := &st.perWork[arg.Index]
		for i := arg.Index; i < len(st.cur.lines); i += st.threads {
			line := st.cur.lines[i]
			s.lines++
			s.bytes += int64(len(line)) + 1
			s.words += countWords(line)
			if len(line) > s.longest {
				s.longest = len(line)
			}
		}
		if arg.LastBlock() {
			return
		}
		if arg.BlockFinish() {
			return
		}
	}
}

func countWords(line []byte) int64 {
	var words int64
	inWord := false
	for _, c := range line {
		space := c == ' ' || c == '\t'
		if !space && !inWord {
			words++
		}
		inWord = !space
	}
	return words
}

// countFile pulls the file through the stream block by block. The group is
// respawned per file; filling the next block overlaps with counting the
// current one.
func countFile(stream *text.Stream, group *workers.Group) (stats, error) {
	st := &counterState{
		threads: group.ThreadCount(),
		perWork: make([]stats, group.ThreadCount()),
	}
	if err := group.SetEntry(countEntry, st); err != nil {
		return stats{}, err
	}

	blocks := [2]*block{{}, {}}
	cur := 0
	fillErr := blocks[cur].fill(stream)
	st.cur = blocks[cur]
	if fillErr != nil {
		group.DeclareLastBlock()
	}
	if err := group.Spawn(); err != nil {
		return stats{}, err
	}

	for fillErr == nil {
		next := 1 - cur
		fillErr = blocks[next].fill(stream)
		group.WaitForBlock()
		cur = next
		st.cur = blocks[cur]
		if fillErr != nil {
			group.DeclareLastBlock()
		}
		if err := group.NextBlock(); err != nil {
			return stats{}, err
		}
	}
	group.Join()

	if fillErr != io.EOF {
		return stats{}, fillErr
	}
	var total stats
	for _, s := range st.perWork {
		total.add(s)
	}
	return total, nil
}

func report(out io.Writer, s stats, label string) {
	fmt.Fprintf(out, "%10d %10d %12d %8d %s\n",
		s.lines, s.words, s.bytes, s.longest, label)
}

func main() {
	var args config.Args
	var displayVersion bool
	var profFlags profiling.Flags

	flag.BoolVar(&args.Quiet, "quiet", false, "Quiet output mode")
	flag.BoolVar(&displayVersion, "version", false, "Display version")
	flag.IntVar(&args.Workers, "workers", 0, "Counting worker threads")
	flag.IntVar(&args.MaxLineLen, "maxLineLength", 0, "Max line length in bytes")
	flag.IntVar(&args.ChunkSize, "chunkSize", 0, "Decompression chunk size in bytes")
	flag.StringVar(&args.LogLevel, "logLevel", "", "Log level")
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
		fmt.Fprintf(os.Stderr, "usage: lcount [options] file ...\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	profiler := profiling.NewProfiler(profFlags.ToConfig("lcount"))
	defer profiler.Stop()

	group := workers.New()
	if err := group.SetThreadCount(config.Common.Workers); err != nil {
		dlog.Errorf("%v", err)
		os.Exit(1)
	}
	defer group.Cleanup()

	var stream *text.Stream
	var total stats
	for i, path := range paths {
		var err error
		if i == 0 {
			stream, err = text.OpenStream(path,
				text.WithMaxLineLen(config.Common.MaxLineLen),
				text.WithChunkSize(config.Common.ChunkSize))
			if err == nil {
				defer stream.Close()
			}
		} else {
			err = stream.Retarget(path)
		}
		if err != nil {
			dlog.Errorf("%v", err)
			os.Exit(1)
		}
		dlog.WithFields(dlog.Fields{"path": path, "codec": stream.Codec().String(),
			"workers": group.ThreadCount()}).Debug("counting file")

		s, err := countFile(stream, group)
		if err != nil {
			dlog.Errorf("%s: %v", path, err)
			os.Exit(1)
		}
		report(os.Stdout, s, path)
		total.add(s)
	}
	if len(paths) > 1 {
		report(os.Stdout, total, "total")
	}
}
