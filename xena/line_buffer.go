package xena

import (
	"bytes"
	"fmt"
)

// MaxLineLength bounds the bytes buffered without seeing a line terminator.
const MaxLineLength = 64 * 1024

// LineBuffer reassembles "\n" terminated lines from arbitrary read chunks.
//
// Bytes are appended with Write and complete lines are taken with Next. A trailing fragment
// without "\n" stays buffered until later writes complete it. The zero value is ready to use.
// LineBuffer is not goroutine-safe.
type LineBuffer struct {
	data  []byte
	start int
}

// Write appends p to the buffer.
//
// It returns an ErrProtocolParse error and drops the buffered bytes if more than
// MaxLineLength bytes are pending without any line terminator.
func (b *LineBuffer) Write(p []byte) error {
	b.compact()
	b.data = append(b.data, p...)

	pending := b.data[b.start:]
	if len(pending) > MaxLineLength && bytes.IndexByte(pending, '\n') < 0 {
		b.Reset()
		return fmt.Errorf("%w: line exceeds %d bytes", ErrProtocolParse, MaxLineLength)
	}

	return nil
}

// Next returns the next complete line without its terminator.
// It returns false when no complete line is buffered.
func (b *LineBuffer) Next() (string, bool) {
	pending := b.data[b.start:]
	idx := bytes.IndexByte(pending, '\n')
	if idx < 0 {
		return "", false
	}

	line := string(pending[:idx])
	b.start += idx + 1

	if b.start == len(b.data) {
		b.data = b.data[:0]
		b.start = 0
	}

	return line, true
}

// Len returns the number of buffered bytes not yet returned by Next.
func (b *LineBuffer) Len() int {
	return len(b.data) - b.start
}

// Reset drops all buffered bytes.
func (b *LineBuffer) Reset() {
	b.data = b.data[:0]
	b.start = 0
}

// compact moves the unread tail to the front once more than half of the buffer is consumed.
func (b *LineBuffer) compact() {
	if b.start == 0 || b.start < len(b.data)/2 {
		return
	}
	n := copy(b.data, b.data[b.start:])
	b.data = b.data[:n]
	b.start = 0
}
