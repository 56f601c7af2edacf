package chassis

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-overseer/logger"
)

// ConnState represents the stages of a chassis connection.
type ConnState uint32

// Connection states. The only legal path is
// Disconnected → Connecting → Authenticating → Ready → Closing → Closed,
// where Connecting and Authenticating may also fail straight to Closed.
const (
	// DisconnectedState is the state before Connect started.
	DisconnectedState ConnState = iota
	// ConnectingState indicates that the address is parsed and the socket is being opened.
	ConnectingState
	// AuthenticatingState indicates that the logon/owner handshake is in progress.
	AuthenticatingState
	// ReadyState indicates that the actor is accepting commands.
	ReadyState
	// ClosingState indicates that the actor stopped accepting work and is logging off.
	ClosingState
	// ClosedState indicates that the socket is closed. It is terminal.
	ClosedState
)

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case AuthenticatingState:
		return "authenticating"
	case ReadyState:
		return "ready"
	case ClosingState:
		return "closing"
	case ClosedState:
		return "closed"
	default:
		return "unknown"
	}
}

// IsReady returns if the connection accepts commands.
func (cs ConnState) IsReady() bool { return cs == ReadyState }

// IsClosed returns if the connection reached its terminal state.
func (cs ConnState) IsClosed() bool { return cs == ClosedState }

// ConnStateChangeHandler is invoked when the state of a connection changes.
//
// Note: the handler is invoked in a blocking mode on the goroutine performing the transition,
// which may be the connection actor. Take care with long-running implementations.
type ConnStateChangeHandler func(address string, prevState ConnState, newState ConnState)

var allowedTransitions = map[ConnState][]ConnState{
	DisconnectedState:   {ConnectingState},
	ConnectingState:     {AuthenticatingState, ClosedState},
	AuthenticatingState: {ReadyState, ClosedState},
	ReadyState:          {ClosingState},
	ClosingState:        {ClosedState},
}

// connStateMgr manages the state of one connection and notifies handlers of changes.
type connStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	address  string
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

func newConnStateMgr(address string, l logger.Logger, handlers ...ConnStateChangeHandler) *connStateMgr {
	cs := &connStateMgr{
		address:  address,
		logger:   l,
		handlers: handlers,
	}
	cs.state.Store(uint32(DisconnectedState))
	cs.cond = sync.NewCond(&cs.mu)

	return cs
}

// State returns the current connection state.
func (cs *connStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// to transitions the state to newState and invokes the handlers.
//
// Returns ErrInvalidTransition if newState is not reachable from the current state.
func (cs *connStateMgr) to(newState ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()
	if !canTransition(curState, newState) {
		cs.logger.Debug("rejected connection state transition", "cur_state", curState, "desired_state", newState)
		return ErrInvalidTransition
	}

	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()

	cs.logger.Debug("connection state changed", "prev_state", curState, "new_state", newState)
	for _, handler := range cs.handlers {
		if handler != nil {
			handler(cs.address, curState, newState)
		}
	}

	return nil
}

// waitState waits until the state reaches state or ctx is done.
func (cs *connStateMgr) waitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.cond.Broadcast()
	})
	defer stop()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

func canTransition(from ConnState, to ConnState) bool {
	return slices.Contains(allowedTransitions[from], to)
}
