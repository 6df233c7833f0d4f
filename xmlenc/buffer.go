package xmlenc

// Buffer is a growable byte accumulator used as the unit of data passed
// between transforms in a chain. An empty Buffer carries no end-of-stream
// meaning of its own: the execute state machine (see transform.go) learns
// that a stream has ended from its last flag.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty Buffer ready to accept writes.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFromBytes returns a Buffer initialized with a copy of b.
func NewBufferFromBytes(b []byte) *Buffer {
	buf := &Buffer{data: make([]byte, len(b))}
	copy(buf.data, b)
	return buf
}

// Len reports the number of bytes currently held.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer's internal storage and must not be retained across a RemoveHead
// or Append call.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Append grows the buffer by appending p.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// RemoveHead discards the first n bytes, shifting the remainder down.
// Used once a transform has consumed bytes out of its input buffer.
func (b *Buffer) RemoveHead(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	b.data = append(b.data[:0], b.data[n:]...)
}

// Empty reports whether the buffer holds zero bytes.
func (b *Buffer) Empty() bool { return b.Len() == 0 }

// Reset discards all data without releasing the underlying array.
func (b *Buffer) Reset() { b.data = b.data[:0] }
