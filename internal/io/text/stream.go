package text

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/mimecast/linescan/internal/constants"
	"github.com/mimecast/linescan/internal/dlog"
	"github.com/mimecast/linescan/internal/errors"
	"github.com/mimecast/linescan/internal/io/codec"
)

// interrupt is the consumer -> producer message kind.
type interrupt int

const (
	interruptNone interrupt = iota
	interruptRetarget
	interruptShutdown
)

// Stream is the decompress-ahead variant of Reader: a background goroutine
// decodes into a shared circular buffer while the caller consumes completed
// lines, so decode latency hides behind consumption time. The consumer
// surface matches Reader. Not safe for concurrent consumers.
type Stream struct {
	// Consumer-owned cursor state, untouched by the producer.
	consumeIter int
	consumeStop int
	carry       []byte // relocated line run (lap jump or final line), <= 1 line
	pendingEOF  bool   // latch io.EOF after the carried final line is served
	consumerErr error  // sticky terminal status on the consumer side

	path       string
	chunkSize  int
	maxLineLen int

	// Producer-owned, accessed only from the producer goroutine.
	file  *os.File
	dec   codec.Decompressor
	ctype codec.Type

	// Shared ring state. Everything below mu is guarded by it; the ring's
	// bulk bytes are not: single-producer/single-consumer discipline makes
	// unsynchronized copies safe once boundaries are agreed under mu.
	mu               sync.Mutex
	readerProgress   sync.Cond // producer -> consumer: bytes/status/ack
	consumerProgress sync.Cond // consumer -> producer: space freed/interrupt
	// Guards against a lost wakeup when the consumer's signal lands before
	// the producer starts waiting.
	consumerProgressState bool

	ring           []byte
	consumeTail    int // oldest unconsumed byte, mutated by the consumer
	curCircularEnd int // wrap point of the current lap, producer-mutated
	availableEnd   int // committed readable high-water, producer-mutated
	wrapped        bool
	status         error // io.EOF at end of stream, or a decode failure

	intr         interrupt
	retargetPath string
	retargetSeq  uint64
	retargetAck  uint64

	closed       bool
	producerDone chan struct{}
}

// OpenStream opens path like Open but with decompression running ahead on a
// background goroutine.
func OpenStream(path string, opts ...Option) (*Stream, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.buf != nil {
		return nil, errors.Wrap(errors.ErrInvalidArgument,
			"caller-owned buffers are not supported by streams")
	}

	s := &Stream{
		path:         path,
		chunkSize:    o.chunkSize,
		maxLineLen:   o.maxLineLen,
		ring:         make([]byte, o.maxLineLen+constants.StreamBufferSlackChunks*o.chunkSize),
		carry:        make([]byte, 0, o.chunkSize),
		producerDone: make(chan struct{}),
	}
	s.readerProgress.L = &s.mu
	s.consumerProgress.L = &s.mu

	// Open eagerly on the caller so open/format failures are synchronous.
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrOpenFailed, "%s: %v", path, err)
	}
	ctype, dec, err := openDecoder(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	s.file = file
	s.dec = dec
	s.ctype = ctype
	dlog.WithFields(dlog.Fields{"path": path, "codec": ctype.String()}).
		Debug("opened text stream")

	go s.produce()
	return s, nil
}

// Codec reports the compression format of the current source.
func (s *Stream) Codec() codec.Type {
	return s.ctype
}

// NextLine returns the next line without its terminator. The returned slice
// aliases internal stream storage and is invalidated by the next NextLine,
// Retarget, Rewind or Close call. Returns io.EOF (sticky) at end of input.
func (s *Stream) NextLine() ([]byte, error) {
	if len(s.carry) > 0 {
		return s.serveCarry()
	}
	if s.consumerErr != nil {
		return nil, s.consumerErr
	}
	if s.consumeIter == s.consumeStop {
		if err := s.advance(); err != nil {
			return nil, err
		}
		if len(s.carry) > 0 {
			return s.serveCarry()
		}
	}
	line := s.ring[s.consumeIter:s.consumeStop]
	nl := bytes.IndexByte(line, '\n')
	// consumeStop invariant guarantees nl >= 0 here
	if nl > s.maxLineLen {
		s.consumerErr = errors.Wrapf(errors.ErrLineTooLong,
			"%s: line exceeds %d bytes", s.path, s.maxLineLen)
		return nil, s.consumerErr
	}
	line = line[:nl]
	s.consumeIter += nl + 1
	return line, nil
}

// serveCarry hands out the single terminated line held in the carry buffer.
func (s *Stream) serveCarry() ([]byte, error) {
	nl := bytes.IndexByte(s.carry, '\n')
	line := s.carry[:nl]
	s.carry = s.carry[:0]
	if s.pendingEOF {
		s.pendingEOF = false
		s.consumerErr = io.EOF
	}
	if nl > s.maxLineLen {
		s.consumerErr = errors.Wrapf(errors.ErrLineTooLong,
			"%s: line exceeds %d bytes", s.path, s.maxLineLen)
		return nil, s.consumerErr
	}
	return line, nil
}

// advance waits until the producer has committed at least one complete line
// (or end of stream), updating the consumer cursors. Partial lines that
// abut the lap wrap point, or that end the stream, are relocated into the
// carry buffer so every returned view stays contiguous.
func (s *Stream) advance() error {
	if s.consumerErr != nil {
		return s.consumerErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		// Free everything up to the current line start and wake a producer
		// possibly blocked on buffer space.
		s.consumeTail = s.consumeIter
		s.consumerProgressState = true
		s.consumerProgress.Signal()

		// Reached the wrap point of the previous lap: jump to the front.
		if s.wrapped && s.consumeTail == s.curCircularEnd {
			s.consumeTail = 0
			s.consumeIter = 0
			s.consumeStop = 0
			s.curCircularEnd = 0
			s.wrapped = false
			continue
		}

		end := s.availableEnd
		if s.wrapped {
			end = s.curCircularEnd
		}
		avail := s.ring[s.consumeTail:end]

		if len(avail) > 0 {
			if len(s.carry) > 0 {
				// A partial line was relocated earlier; complete it first.
				if nl := bytes.IndexByte(avail, '\n'); nl >= 0 {
					s.carry = append(s.carry, avail[:nl+1]...)
					s.consumeIter = s.consumeTail + nl + 1
					s.consumeStop = s.consumeIter
					rest := s.ring[s.consumeIter:end]
					if last := bytes.LastIndexByte(rest, '\n'); last >= 0 {
						s.consumeStop = s.consumeIter + last + 1
					}
					return nil
				}
				s.carry = append(s.carry, avail...)
				s.consumeIter = end
				s.consumeTail = end
			} else {
				if last := bytes.LastIndexByte(avail, '\n'); last >= 0 {
					s.consumeIter = s.consumeTail
					s.consumeStop = s.consumeTail + last + 1
					return nil
				}
			}
			if s.partialLen(end) > s.maxLineLen {
				s.consumerErr = errors.Wrapf(errors.ErrLineTooLong,
					"%s: line exceeds %d bytes", s.path, s.maxLineLen)
				return s.consumerErr
			}
		}

		// No complete line in the committed region.
		if s.wrapped && end == s.curCircularEnd {
			// The unterminated tail of this lap moves to the carry buffer
			// so the line stays contiguous across the lap jump.
			if remaining := s.ring[s.consumeIter:end]; len(remaining) > 0 {
				s.carry = append(s.carry, remaining...)
				s.consumeIter = end
			}
			continue
		}
		if s.status != nil {
			return s.finishStatusLocked(end)
		}
		s.readerProgress.Wait()
	}
}

// partialLen is the length of the unterminated line under assembly: carried
// bytes plus the unconsumed ring tail.
func (s *Stream) partialLen(end int) int {
	return len(s.carry) + (end - s.consumeIter)
}

// finishStatusLocked resolves a terminal producer status once all committed
// complete lines are consumed: synthesize a terminator for trailing data on
// end-of-stream, then latch the status on the consumer side.
func (s *Stream) finishStatusLocked(end int) error {
	if s.status == io.EOF {
		trailing := s.ring[s.consumeIter:end]
		if len(s.carry) > 0 || len(trailing) > 0 {
			s.carry = append(s.carry, trailing...)
			s.consumeIter = end
			s.consumeStop = end
			s.carry = append(s.carry, '\n')
			s.pendingEOF = true
			return nil
		}
		s.consumerErr = io.EOF
		return io.EOF
	}
	s.consumerErr = s.status
	return s.consumerErr
}

// produce is the background decode loop. It reserves chunk-sized regions of
// the ring under the mutex, decodes into them with the mutex released, then
// commits the new high-water mark and signals the consumer.
func (s *Stream) produce() {
	defer close(s.producerDone)
	for {
		s.mu.Lock()
		switch s.intr {
		case interruptShutdown:
			s.mu.Unlock()
			return
		case interruptRetarget:
			s.retargetLocked()
			continue
		}
		if s.status != nil {
			// Drained or failed: park until the consumer posts an interrupt.
			s.waitForInterruptLocked()
			s.mu.Unlock()
			continue
		}
		writePos, ok := s.reserveLocked()
		if !ok {
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		n, err := s.dec.Read(s.ring[writePos : writePos+s.chunkSize])

		s.mu.Lock()
		if n > 0 {
			s.availableEnd = writePos + n
		}
		if err != nil {
			if err == io.EOF {
				s.status = io.EOF
			} else {
				s.status = err
			}
		}
		s.readerProgress.Broadcast()
		s.mu.Unlock()
	}
}

// reserveLocked finds a chunk-sized writable region, wrapping to the front
// lap when the tail runs out, or waits for the consumer to free space. The
// progress flag is checked before waiting so a consumer signal sent before
// the wait started is never lost. Returns false when an interrupt arrived.
func (s *Stream) reserveLocked() (int, bool) {
	for {
		if s.intr != interruptNone {
			return 0, false
		}
		if !s.wrapped {
			if len(s.ring)-s.availableEnd >= s.chunkSize {
				return s.availableEnd, true
			}
			// Tail exhausted; start a new lap at the front if the consumer
			// has freed more than a chunk there. The strict inequality
			// keeps the front lap from ever touching consumeTail.
			if s.consumeTail > s.chunkSize {
				s.curCircularEnd = s.availableEnd
				s.availableEnd = 0
				s.wrapped = true
				return 0, true
			}
		} else if s.consumeTail-s.availableEnd > s.chunkSize {
			return s.availableEnd, true
		}
		if !s.consumerProgressState {
			s.consumerProgress.Wait()
		}
		s.consumerProgressState = false
	}
}

func (s *Stream) waitForInterruptLocked() {
	for s.intr == interruptNone {
		s.consumerProgress.Wait()
	}
}

// retargetLocked switches the producer to the pending new source. Called
// with the mutex held; returns with it held released/reacquired around the
// file operations.
func (s *Stream) retargetLocked() {
	path := s.retargetPath
	s.intr = interruptNone
	s.consumeTail = 0
	s.curCircularEnd = 0
	s.availableEnd = 0
	s.wrapped = false
	s.status = nil
	s.mu.Unlock()

	err := s.reopen(path)

	s.mu.Lock()
	if err != nil {
		s.status = err
	}
	s.retargetAck = s.retargetSeq
	s.readerProgress.Broadcast()
	s.mu.Unlock()
}

// reopen closes the current source and attaches the new one. Producer
// goroutine only.
func (s *Stream) reopen(path string) error {
	s.dec.Close()
	s.file.Close()
	s.file = nil
	s.dec = nil

	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(errors.ErrOpenFailed, "%s: %v", path, err)
	}
	ctype, dec, err := openDecoder(file)
	if err != nil {
		file.Close()
		return err
	}
	s.file = file
	s.dec = dec
	s.ctype = ctype
	s.path = path
	dlog.WithFields(dlog.Fields{"path": path, "codec": ctype.String()}).
		Debug("retargeted text stream")
	return nil
}

// Retarget switches the stream to a new source without tearing down the
// producer goroutine. All unread data from the old source is discarded; no
// returned line ever spans both sources. Blocks until the producer has
// reopened; an open failure on the new source is returned here.
func (s *Stream) Retarget(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.Wrap(errors.ErrInvalidArgument, "retarget on closed stream")
	}

	s.retargetPath = path
	s.retargetSeq++
	seq := s.retargetSeq
	s.intr = interruptRetarget
	s.consumerProgressState = true
	s.consumerProgress.Broadcast()

	for s.retargetAck < seq {
		s.readerProgress.Wait()
	}

	s.consumeIter = 0
	s.consumeStop = 0
	s.carry = s.carry[:0]
	s.pendingEOF = false
	s.consumerErr = nil
	if s.status != nil && s.status != io.EOF {
		err := s.status
		s.consumerErr = err
		return err
	}
	return nil
}

// Rewind restarts the current source from the beginning.
func (s *Stream) Rewind() error {
	return s.Retarget(s.path)
}

// Close posts the shutdown interrupt, waits for the producer to exit, then
// releases the source. The producer observes the interrupt within one
// wakeup cycle; a pending consumer failure is reported without being masked
// by a close failure.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.intr = interruptShutdown
	s.consumerProgressState = true
	s.consumerProgress.Broadcast()
	s.mu.Unlock()

	<-s.producerDone

	var pending error
	if s.consumerErr != nil && s.consumerErr != io.EOF {
		pending = s.consumerErr
	}
	var closeErr error
	if s.dec != nil {
		if err := s.dec.Close(); err != nil {
			closeErr = errors.Wrapf(errors.ErrCloseFailed, "codec: %v", err)
		}
		s.dec = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && closeErr == nil {
			closeErr = errors.Wrapf(errors.ErrCloseFailed, "%s: %v", s.path, err)
		}
		s.file = nil
	}
	return errors.WithSecondary(pending, closeErr)
}
