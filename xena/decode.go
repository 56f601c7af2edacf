package xena

import (
	"strconv"
	"strings"
)

// Reservation is one decoded "M/P ... STATE" line.
type Reservation struct {
	Module uint8
	Port   uint8
	Lock   Lock
}

// IsOK reports whether a complete reply line is exactly the acknowledgement literal.
func IsOK(line string) bool {
	return line == ReplyOK
}

// ParseReservationLine parses a reservation query response line of the form
// "<module>/<port>[ tokens...] <STATE>". The module and port are the two '/' separated fields
// of the first whitespace-delimited token; the state is the last token.
func ParseReservationLine(line string) (Reservation, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Reservation{}, parseErr(line, "expected \"<module>/<port> ... <state>\"")
	}

	moduleStr, portStr, ok := strings.Cut(fields[0], "/")
	if !ok {
		return Reservation{}, parseErr(line, "missing '/' in %q", fields[0])
	}

	module, err := strconv.ParseUint(moduleStr, 10, 8)
	if err != nil {
		return Reservation{}, parseErr(line, "module %q is not a number in [0, 255]", moduleStr)
	}

	port, err := strconv.ParseUint(portStr, 10, 8)
	if err != nil {
		return Reservation{}, parseErr(line, "port %q is not a number in [0, 255]", portStr)
	}

	token := fields[len(fields)-1]
	lock, err := ParseLock(token)
	if err != nil {
		return Reservation{}, parseErr(line, "unknown state token %q", token)
	}

	return Reservation{Module: uint8(module), Port: uint8(port), Lock: lock}, nil
}

// QueryDecoder accumulates the lines of one reservation query response.
//
// Lines are fed one at a time until Feed reports the sync marker. The first malformed line
// discards everything accumulated so far; the decoder keeps consuming lines up to the marker
// so that the stream stays aligned, and Result returns the parse error.
type QueryDecoder struct {
	dir  Interfaces
	err  error
	done bool
}

// NewQueryDecoder creates a decoder for a single query response.
func NewQueryDecoder() *QueryDecoder {
	return &QueryDecoder{dir: Interfaces{Modules: make(map[uint8]map[uint8]State)}}
}

// Feed consumes one complete line (without its "\n") and returns true once the sync marker
// was seen. Empty lines are ignored.
func (d *QueryDecoder) Feed(line string) bool {
	if d.done {
		return true
	}

	if line == "" {
		return false
	}

	if line == SyncMarker {
		d.done = true
		return true
	}

	if d.err != nil {
		return false
	}

	r, err := ParseReservationLine(line)
	if err != nil {
		d.err = err
		d.dir = Interfaces{}

		return false
	}

	d.dir.set(r.Module, r.Port, State{Lock: r.Lock})

	return false
}

// Done reports whether the sync marker was consumed.
func (d *QueryDecoder) Done() bool { return d.done }

// Err returns the first parse error, if any.
func (d *QueryDecoder) Err() error { return d.err }

// Result returns the decoded directory, or the first parse error.
func (d *QueryDecoder) Result() (Interfaces, error) {
	if d.err != nil {
		return Interfaces{}, d.err
	}

	if !d.done {
		return Interfaces{}, parseErr("", "response ended before %s", SyncMarker)
	}

	return d.dir, nil
}

// DecodeQuery decodes a complete query response delivered as one or more raw chunks,
// exactly as they came off the socket. Chunks may split lines at any byte.
func DecodeQuery(chunks ...[]byte) (Interfaces, error) {
	var buf LineBuffer
	dec := NewQueryDecoder()

	for _, chunk := range chunks {
		if err := buf.Write(chunk); err != nil {
			return Interfaces{}, err
		}

		for {
			line, ok := buf.Next()
			if !ok {
				break
			}
			if dec.Feed(line) {
				return dec.Result()
			}
		}
	}

	return dec.Result()
}
