// Package streaming provides the producer/consumer stream used for
// incremental responses. The consumer pulls at its own pace (the
// bounded buffer applies backpressure to the producer) and may cancel
// mid-stream; a clean cancellation is not a failure.
package streaming

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrStreamClosed is returned when writing to a finished stream.
	ErrStreamClosed = errors.New("stream closed")
	// ErrCancelled is returned to the producer once the consumer has
	// cancelled the stream.
	ErrCancelled = errors.New("stream cancelled by consumer")
)

// Chunk is one increment of streamed content.
type Chunk struct {
	Content string `json:"content"`
	Index   int    `json:"index"`
	Final   bool   `json:"final,omitempty"`
}

// Stream is a single-producer, single-consumer content stream. It is
// finite and not restartable; retrying requires a new stream.
type Stream struct {
	buffer    chan Chunk
	cancelled chan struct{}

	closeOnce  sync.Once
	cancelOnce sync.Once
	closed     atomic.Bool

	errMu sync.Mutex
	err   error

	produced atomic.Int64
	consumed atomic.Int64
}

// New creates a stream with the given buffer size (minimum 1).
func New(bufferSize int) *Stream {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Stream{
		buffer:    make(chan Chunk, bufferSize),
		cancelled: make(chan struct{}),
	}
}

// Write sends a chunk to the consumer, blocking while the buffer is
// full. It returns ErrCancelled once the consumer has cancelled and
// ErrStreamClosed after Close.
func (s *Stream) Write(ctx context.Context, chunk Chunk) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	select {
	case <-s.cancelled:
		return ErrCancelled
	default:
	}

	select {
	case s.buffer <- chunk:
		s.produced.Add(1)
		return nil
	case <-s.cancelled:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close finishes the stream from the producer side. A non-nil err is
// surfaced to the consumer after the buffered chunks drain. Close is
// idempotent; only the producer may call it.
func (s *Stream) Close(err error) {
	s.closeOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		s.closed.Store(true)
		close(s.buffer)
	})
}

// Recv pulls the next chunk. ok is false once the stream has ended, in
// which case err carries the producer's terminal error, if any.
func (s *Stream) Recv(ctx context.Context) (chunk Chunk, ok bool, err error) {
	select {
	case c, open := <-s.buffer:
		if !open {
			return Chunk{}, false, s.terminalErr()
		}
		s.consumed.Add(1)
		return c, true, nil
	case <-ctx.Done():
		return Chunk{}, false, ctx.Err()
	}
}

// Cancel signals the producer to stop. It is safe to call at any time
// and more than once. After Cancel, the producer's next Write fails
// with ErrCancelled and must stop promptly.
func (s *Stream) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelled) })
}

// Cancelled reports whether the consumer cancelled the stream.
func (s *Stream) Cancelled() bool {
	select {
	case <-s.cancelled:
		return true
	default:
		return false
	}
}

// Done exposes the cancellation signal for producer select loops.
func (s *Stream) Done() <-chan struct{} { return s.cancelled }

// Produced returns the number of chunks written so far.
func (s *Stream) Produced() int64 { return s.produced.Load() }

// Consumed returns the number of chunks received so far.
func (s *Stream) Consumed() int64 { return s.consumed.Load() }

func (s *Stream) terminalErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
