package client

import "sync"

// DefaultBacklogSize is the output a hidden tab keeps for repainting.
const DefaultBacklogSize = 256 * 1024

// Backlog is a thread-safe circular buffer holding the most recent output of
// a tab. Older bytes are overwritten once it is full.
type Backlog struct {
	data []byte
	size int
	head int
	full bool
	mu   sync.RWMutex
}

// NewBacklog creates a backlog holding at most size bytes.
func NewBacklog(size int) *Backlog {
	if size <= 0 {
		size = DefaultBacklogSize
	}
	return &Backlog{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p, discarding the oldest bytes if needed. It never fails.
func (b *Backlog) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n >= b.size {
		copy(b.data, p[n-b.size:])
		b.head = 0
		b.full = true
		return n, nil
	}

	written := copy(b.data[b.head:], p)
	if written < n {
		copy(b.data, p[written:])
	}
	if b.head+n >= b.size {
		b.full = true
	}
	b.head = (b.head + n) % b.size
	return n, nil
}

// Bytes returns a copy of the buffered output, oldest first.
func (b *Backlog) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		return append([]byte(nil), b.data[:b.head]...)
	}
	// Buffer wrapped around
	result := make([]byte, 0, b.size)
	result = append(result, b.data[b.head:]...)
	return append(result, b.data[:b.head]...)
}

// Len returns the number of buffered bytes.
func (b *Backlog) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return b.size
	}
	return b.head
}

// Reset discards all buffered output.
func (b *Backlog) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.full = false
}
