package xena

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const readChunkSize = 4096

// DeadlineReader is the read side of a socket.
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// DeadlineWriter is the write side of a socket.
type DeadlineWriter interface {
	io.Writer
	SetWriteDeadline(t time.Time) error
}

// LineReader reads complete lines from a socket through a persistent LineBuffer.
//
// Every ReadLine call that has to touch the socket arms a fresh read deadline, so a silent
// peer surfaces as ErrTimeout instead of blocking forever. Bytes received after the returned
// line stay buffered for the next call.
//
// LineReader is NOT goroutine-safe; it belongs to the single goroutine owning the socket.
type LineReader struct {
	conn    DeadlineReader
	timeout time.Duration
	buf     LineBuffer
	chunk   []byte
}

// NewLineReader creates a LineReader. A zero timeout disables read deadlines.
func NewLineReader(conn DeadlineReader, timeout time.Duration) *LineReader {
	return &LineReader{
		conn:    conn,
		timeout: timeout,
		chunk:   make([]byte, readChunkSize),
	}
}

// Buffered returns the number of bytes received but not yet returned as lines.
func (r *LineReader) Buffered() int {
	return r.buf.Len()
}

// ReadLine returns the next complete line without its "\n" terminator.
func (r *LineReader) ReadLine() (string, error) {
	if line, ok := r.buf.Next(); ok {
		return line, nil
	}

	var deadline time.Time
	if r.timeout > 0 {
		deadline = time.Now().Add(r.timeout)
	}
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return "", IOError("set read deadline", err)
	}

	for {
		n, err := r.conn.Read(r.chunk)
		if n > 0 {
			if werr := r.buf.Write(r.chunk[:n]); werr != nil {
				return "", werr
			}
			if line, ok := r.buf.Next(); ok {
				return line, nil
			}
		}

		if err != nil {
			return "", IOError("read", err)
		}
	}
}

// WriteCommand writes payload completely within timeout. A zero timeout disables the deadline.
func WriteCommand(conn DeadlineWriter, payload []byte, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return IOError("set write deadline", err)
	}

	for len(payload) > 0 {
		n, err := conn.Write(payload)
		if err != nil {
			return IOError("write", err)
		}
		payload = payload[n:]
	}

	return nil
}

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// IOError classifies a socket error raised by op as ErrTimeout or ErrIO.
func IOError(op string, err error) error {
	switch {
	case IsTimeout(err):
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %s: connection closed by peer", ErrIO, op)
	default:
		return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
	}
}
