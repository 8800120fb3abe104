package session

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrStreamClosed is returned when writing to an ended stream.
var ErrStreamClosed = errors.New("stream closed")

// Update is one partial connection status written to a stream.
type Update struct {
	Connection     string          `json:"connection,omitempty"`
	LastDisconnect *DisconnectInfo `json:"lastDisconnect,omitempty"`
	QR             string          `json:"qr,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// DisconnectInfo describes the last close of a connection.
type DisconnectInfo struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error,omitempty"`
}

// Stream is a persistent sink of connection updates. The caller may close
// it at any time; writes after that fail.
type Stream interface {
	Write(u Update) error
	Closed() bool
	// End finishes the stream from the producer side.
	End()
}

// ChanStream is a Stream backed by a buffered channel.
type ChanStream struct {
	mu      sync.Mutex
	closed  bool
	updates chan Update
	done    chan struct{}
}

// NewStream creates a ChanStream buffering up to size updates.
func NewStream(size int) *ChanStream {
	return &ChanStream{
		updates: make(chan Update, size),
		done:    make(chan struct{}),
	}
}

// Write queues u. A full buffer drops the update.
func (s *ChanStream) Write(u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	select {
	case s.updates <- u:
	default:
	}
	return nil
}

// Closed reports whether the stream ended.
func (s *ChanStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// End closes the stream. Pending updates stay readable.
func (s *ChanStream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
	close(s.done)
}

// Close is End for the consumer side.
func (s *ChanStream) Close() { s.End() }

// Updates returns the update channel, closed once the stream ended.
func (s *ChanStream) Updates() <-chan Update { return s.updates }

// Done is closed once the stream ended.
func (s *ChanStream) Done() <-chan struct{} { return s.done }
