// Package ring provides a fixed-capacity byte FIFO.
//
// Head and tail are monotonic logical positions; only their difference is
// bounded by the capacity. Storage is addressed modulo the capacity so the
// buffer keeps working across long runs, but Flush still resets both cursors
// to zero and is the cheap way to empty it.
//
// A Buffer does no locking. Whoever constructs it owns it; sharing with an
// interrupt handler needs an external hand-off protocol.
package ring

import "rangefinder-go/errcode"

type Buffer struct {
	buf  []byte
	head uint // consumer position (monotonic)
	tail uint // producer position (monotonic)
}

// New allocates a buffer holding up to capacity bytes.
func New(capacity int) *Buffer {
	if capacity < 1 {
		panic("ring: capacity must be >= 1")
	}
	return &Buffer{buf: make([]byte, capacity)}
}

func (r *Buffer) Cap() int { return len(r.buf) }
func (r *Buffer) Len() int { return int(r.tail - r.head) }

func (r *Buffer) slot(pos uint) *byte { return &r.buf[pos%uint(len(r.buf))] }

// Push appends b, or returns BufferFull.
func (r *Buffer) Push(b byte) error {
	if r.Len() >= len(r.buf) {
		return errcode.BufferFull
	}
	*r.slot(r.tail) = b
	r.tail++
	return nil
}

// Write pushes every byte of p or none of them.
func (r *Buffer) Write(p []byte) (int, error) {
	if len(p) > len(r.buf)-r.Len() {
		return 0, errcode.BufferFull
	}
	for _, b := range p {
		*r.slot(r.tail) = b
		r.tail++
	}
	return len(p), nil
}

// Take removes and returns the oldest byte, or returns BufferEmpty.
func (r *Buffer) Take() (byte, error) {
	if r.tail == r.head {
		return 0, errcode.BufferEmpty
	}
	b := *r.slot(r.head)
	r.head++
	return b, nil
}

// PeekAt returns the i-th byte counted from the head without removing it.
func (r *Buffer) PeekAt(i int) (byte, error) {
	if i < 0 || i >= r.Len() {
		return 0, errcode.IndexOutOfRange
	}
	return *r.slot(r.head + uint(i)), nil
}

// Flush empties the buffer.
func (r *Buffer) Flush() {
	r.head = 0
	r.tail = 0
}

// EndsWith reports whether the newest len(pattern) bytes equal pattern.
func (r *Buffer) EndsWith(pattern []byte) bool {
	n := len(pattern)
	if r.Len() < n {
		return false
	}
	start := r.tail - uint(n)
	for i := 0; i < n; i++ {
		if *r.slot(start+uint(i)) != pattern[i] {
			return false
		}
	}
	return true
}

// Bytes copies the buffered bytes, oldest first, into dst and returns the
// filled prefix. It does not consume anything.
func (r *Buffer) Bytes(dst []byte) []byte {
	n := r.Len()
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = *r.slot(r.head + uint(i))
	}
	return dst[:n]
}
