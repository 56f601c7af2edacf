package xena

import "fmt"

// Lock is the reservation state of a port.
type Lock uint8

const (
	// Released means nobody holds the port.
	Released Lock = iota
	// ReservedByYou means the port is held by this session's owner.
	ReservedByYou
	// ReservedByOther means the port is held by another owner.
	ReservedByOther
)

// Wire tokens of the lock states.
const (
	TokenReleased        = "RELEASED"
	TokenReservedByYou   = "RESERVED_BY_YOU"
	TokenReservedByOther = "RESERVED_BY_OTHER"
)

var lockTokens = [...]string{
	Released:        TokenReleased,
	ReservedByYou:   TokenReservedByYou,
	ReservedByOther: TokenReservedByOther,
}

// ParseLock maps a wire state token to a Lock.
func ParseLock(token string) (Lock, error) {
	for lock, tok := range lockTokens {
		if tok == token {
			return Lock(lock), nil //nolint:gosec
		}
	}

	return Released, fmt.Errorf("%w: unknown state token %q", ErrProtocolParse, token)
}

// IsValid reports whether l is one of the three defined states.
func (l Lock) IsValid() bool { return int(l) < len(lockTokens) }

// Token returns the wire token of l, or an empty string for an invalid value.
func (l Lock) Token() string {
	if !l.IsValid() {
		return ""
	}

	return lockTokens[l]
}

// String returns a human readable name.
func (l Lock) String() string {
	switch l {
	case Released:
		return "Released"
	case ReservedByYou:
		return "ReservedByYou"
	case ReservedByOther:
		return "ReservedByOther"
	default:
		return fmt.Sprintf("Lock(%d)", uint8(l))
	}
}

// Action returns the verb that toggles a port currently in state l:
// Released is reserved, ReservedByYou is released and ReservedByOther is relinquished.
func (l Lock) Action() (Verb, error) {
	switch l {
	case Released:
		return VerbReserve, nil
	case ReservedByYou:
		return VerbRelease, nil
	case ReservedByOther:
		return VerbRelinquish, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidLock, uint8(l))
	}
}

// Verb is a reservation mutation sent to the chassis.
type Verb uint8

const (
	VerbReserve Verb = iota
	VerbRelease
	VerbRelinquish
)

// String returns the wire token of the verb.
func (v Verb) String() string {
	switch v {
	case VerbReserve:
		return "RESERVE"
	case VerbRelease:
		return "RELEASE"
	case VerbRelinquish:
		return "RELINQUISH"
	default:
		return fmt.Sprintf("Verb(%d)", uint8(v))
	}
}

// Label returns the capitalized action label shown by front-ends.
func (v Verb) Label() string {
	switch v {
	case VerbReserve:
		return "Reserve"
	case VerbRelease:
		return "Release"
	case VerbRelinquish:
		return "Relinquish"
	default:
		return v.String()
	}
}
