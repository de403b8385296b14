package iec60870

import "fmt"

// Buffer is a pre-allocated byte buffer with a cursor. It is the
// primitive used by both the CS101 FT1.2 encoder and the CS104 APCI
// encoder; its space-left check is the single point that enforces the
// APCI/LPCI size limits described in spec section 4.6.
type Buffer struct {
	buf    []byte
	cursor int
}

// NewFrame allocates a Buffer backed by storage of the given capacity.
func NewFrame(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, capacity)}
}

// NewFrameFromBuffer wraps caller-provided storage instead of allocating,
// the "borrowed" allocation mode of design note 1 in spec.md section 9.
func NewFrameFromBuffer(buf []byte) *Buffer {
	return &Buffer{buf: buf}
}

// resetFrame rewinds the cursor to the start without releasing the buffer.
func (f *Buffer) resetFrame() {
	f.cursor = 0
}

// setNextByte writes one byte at the cursor and advances it.
func (f *Buffer) setNextByte(b byte) error {
	if f.cursor >= len(f.buf) {
		return newCodecError(ErrOverflow, "frame is full")
	}
	f.buf[f.cursor] = b
	f.cursor++
	return nil
}

// appendBytes writes a slice at the cursor and advances it.
func (f *Buffer) appendBytes(bs ...byte) error {
	if f.getSpaceLeft() < len(bs) {
		return newCodecError(ErrOverflow, fmt.Sprintf("need %d bytes, have %d", len(bs), f.getSpaceLeft()))
	}
	f.cursor += copy(f.buf[f.cursor:], bs)
	return nil
}

// getMsgSize returns the number of bytes written so far.
func (f *Buffer) getMsgSize() int {
	return f.cursor
}

// getBuffer returns the written prefix of the underlying buffer.
func (f *Buffer) getBuffer() []byte {
	return f.buf[:f.cursor]
}

// getSpaceLeft returns the number of bytes still writable.
func (f *Buffer) getSpaceLeft() int {
	return len(f.buf) - f.cursor
}
