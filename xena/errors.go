package xena

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressParse indicates that a chassis address is not a literal "ip:port" socket address.
	ErrAddressParse = errors.New("xena: invalid chassis address")

	// ErrIO indicates a socket connect, read or write failure.
	ErrIO = errors.New("xena: socket i/o failure")

	// ErrTimeout indicates that a blocking socket step did not complete in time.
	// It wraps ErrIO, so errors.Is(err, ErrIO) also holds for timeouts.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrIO)

	// ErrAuthentication indicates that the logon or the ownership claim was rejected.
	ErrAuthentication = errors.New("xena: authentication rejected")

	// ErrProtocolParse indicates a malformed response line, an unknown state token or
	// a non-numeric module/port id.
	ErrProtocolParse = errors.New("xena: malformed response")

	// ErrNotAcknowledged indicates that the reply to a reservation command was not "<OK>".
	ErrNotAcknowledged = errors.New("xena: command not acknowledged")

	// ErrInternalConsistency indicates that a call was made on a released handle or
	// after the connection actor already terminated.
	ErrInternalConsistency = errors.New("xena: connection actor is gone")

	// ErrInvalidLock indicates a Lock value outside Released, ReservedByYou and ReservedByOther.
	ErrInvalidLock = errors.New("xena: invalid lock value")
)

// ParseError describes a response line that does not follow the reservation grammar.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %q", ErrProtocolParse.Error(), e.Reason, e.Line)
}

// Unwrap returns ErrProtocolParse.
func (e *ParseError) Unwrap() error { return ErrProtocolParse }

func parseErr(line string, format string, args ...any) error {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// ReplyError describes an unexpected single-line reply to a command.
// Kind is ErrAuthentication or ErrNotAcknowledged.
type ReplyError struct {
	Kind    error
	Command string
	Reply   string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: %s answered %q", e.Kind.Error(), e.Command, e.Reply)
}

// Unwrap returns the error kind.
func (e *ReplyError) Unwrap() error { return e.Kind }
