package team

import "sync"

// Stream represents a streaming response.
type Stream struct {
	chunks     chan string
	response   string
	err        error
	done       chan struct{}
	cancelled  chan struct{}
	cancelOnce sync.Once
	mu         sync.RWMutex
}

func newStream() *Stream {
	return &Stream{
		chunks:    make(chan string, 100),
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

// Chunks returns the channel of response chunks.
func (s *Stream) Chunks() <-chan string {
	return s.chunks
}

// Cancel tells the producer this consumer has stopped reading. Further
// chunks are dropped instead of blocking the producer; the stream still
// runs to completion, and Response returns the accumulated text.
func (s *Stream) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelled) })
}

// Response returns the complete response after streaming is done.
func (s *Stream) Response() string {
	<-s.done
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.response
}

// Err returns any error that occurred during streaming.
func (s *Stream) Err() error {
	<-s.done
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// push sends a chunk to consumers and accumulates the full response.
func (s *Stream) push(chunk string) {
	s.mu.Lock()
	s.response += chunk
	s.mu.Unlock()
	select {
	case s.chunks <- chunk:
	case <-s.cancelled:
	}
}

// finish closes the stream, recording the terminal error if any.
func (s *Stream) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.chunks)
	close(s.done)
}
