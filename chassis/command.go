package chassis

import (
	"github.com/arloliu/go-overseer/xena"
)

// commandKind is the closed set of requests a handle can send to the actor.
type commandKind uint8

const (
	listInterfaces commandKind = iota
	lockInterface
	unlockInterface
	relinquishInterface
)

func (k commandKind) String() string {
	switch k {
	case listInterfaces:
		return "ListInterfaces"
	case lockInterface:
		return "LockInterface"
	case unlockInterface:
		return "UnlockInterface"
	case relinquishInterface:
		return "RelinquishInterface"
	default:
		return "Unknown"
	}
}

// verb returns the reservation verb sent for a mutation command.
func (k commandKind) verb() xena.Verb {
	switch k {
	case lockInterface:
		return xena.VerbReserve
	case unlockInterface:
		return xena.VerbRelease
	default:
		return xena.VerbRelinquish
	}
}

// mutationFor selects the mutation command for the caller's last known lock.
func mutationFor(current xena.Lock) (commandKind, error) {
	verb, err := current.Action()
	if err != nil {
		return 0, err
	}

	switch verb {
	case xena.VerbReserve:
		return lockInterface, nil
	case xena.VerbRelease:
		return unlockInterface, nil
	default:
		return relinquishInterface, nil
	}
}

// result is the outcome of one command. dir is only set for listInterfaces.
type result struct {
	dir xena.Interfaces
	err error
}

// command is one queued request. The reply channel has capacity 1 and receives exactly one result.
type command struct {
	id     uint64
	kind   commandKind
	module uint8
	port   uint8
	reply  chan result
}

func newCommand(id uint64, kind commandKind, module, port uint8) *command {
	return &command{
		id:     id,
		kind:   kind,
		module: module,
		port:   port,
		reply:  make(chan result, 1),
	}
}

func (c *command) respond(res result) {
	c.reply <- res
}
