package generate

import (
	"sync"
	"sync/atomic"
)

// Sink receives each de-duplicated remainder as it is appended. Chunk is
// called synchronously from the generation loop and must not block for long.
type Sink interface {
	Chunk(text string)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(text string)

func (f SinkFunc) Chunk(text string) { f(text) }

// MultiSink fans each chunk out to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) Chunk(text string) {
	for _, s := range m {
		if s != nil {
			s.Chunk(text)
		}
	}
}

// ChanSink forwards chunks to a buffered channel for consumers on another
// goroutine (network streams). Sends never block: when the buffer is full
// the chunk is dropped and counted.
type ChanSink struct {
	ch      chan string
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewChanSink(buffer int) *ChanSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChanSink{ch: make(chan string, buffer)}
}

// C returns the receive side. It is closed by Close.
func (s *ChanSink) C() <-chan string { return s.ch }

func (s *ChanSink) Chunk(text string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.ch <- text:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many chunks were discarded.
func (s *ChanSink) Dropped() int64 { return s.dropped.Load() }

// Close closes the channel. Later chunks are dropped. Safe to call twice.
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
