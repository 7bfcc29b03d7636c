package pty

import "sync"

// DefaultScrollbackCap is the per-session scrollback cap in bytes.
const DefaultScrollbackCap = 256 * 1024

// Scrollback is a thread-safe append-only text buffer with a byte-length
// cap. When the cap is exceeded the oldest bytes are evicted so the buffer
// always holds exactly the most recent suffix of the output.
type Scrollback struct {
	mu  sync.Mutex
	cap int
	buf []byte
}

// NewScrollback creates a buffer with the given byte cap.
func NewScrollback(capBytes int) *Scrollback {
	if capBytes <= 0 {
		capBytes = DefaultScrollbackCap
	}
	return &Scrollback{cap: capBytes}
}

// Write appends data, evicting from the front past the cap.
func (s *Scrollback) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(p) >= s.cap {
		s.buf = append(s.buf[:0], p[len(p)-s.cap:]...)
		return len(p), nil
	}
	s.buf = append(s.buf, p...)
	if over := len(s.buf) - s.cap; over > 0 {
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}
	return len(p), nil
}

// String returns the buffered output.
func (s *Scrollback) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// Len returns the number of buffered bytes.
func (s *Scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}
