package chassis

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/arloliu/go-overseer/internal/pool"
	"github.com/arloliu/go-overseer/internal/task"
	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

// Connection is a handle to the actor of one logged-in chassis connection.
//
// A handle never touches the socket: every call enqueues a command and blocks until the actor
// replies. Handles are safe for concurrent use. Clone returns another handle to the same actor;
// the connection logs off and closes once every handle was closed.
type Connection struct {
	core     *connCore
	released atomic.Bool
}

// connCore is the state shared by every handle of a connection.
type connCore struct {
	address   string
	sessionID uuid.UUID
	cfg       *ConnectionConfig
	logger    logger.Logger

	cmds     chan *command
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	refs     atomic.Int32
	nextID   atomic.Uint64

	stateMgr *connStateMgr
	taskMgr  *task.Manager
	metrics  ConnectionMetrics
}

// Connect opens a connection to the chassis at address, a literal "ip:port", and logs in.
//
// The actor is started only after the chassis accepted both the logon and the ownership claim;
// on any failure the socket is closed and no actor exists. ctx bounds the dial and the handshake only.
//
// Errors: xena.ErrAddressParse, xena.ErrIO (or xena.ErrTimeout), xena.ErrAuthentication,
// or an option validation error.
func Connect(ctx context.Context, address string, opts ...ConnOption) (*Connection, error) {
	cfg, err := NewConnectionConfig(opts...)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	l := cfg.logger.With("address", address, "session", sessionID.String())
	stateMgr := newConnStateMgr(address, l, cfg.stateHandlers...)
	_ = stateMgr.to(ConnectingState)

	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		_ = stateMgr.to(ClosedState)
		return nil, fmt.Errorf("%w: %q: %w", xena.ErrAddressParse, address, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
	conn, err := cfg.dial(dialCtx, "tcp", addrPort.String())
	cancel()
	if err != nil {
		_ = stateMgr.to(ClosedState)
		l.Warn("failed to connect chassis", "method", "Connect", "error", err)

		return nil, xena.IOError("dial", err)
	}

	_ = stateMgr.to(AuthenticatingState)

	core := &connCore{
		address:   address,
		sessionID: sessionID,
		cfg:       cfg,
		logger:    l,
		cmds:      make(chan *command, cfg.queueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		stateMgr:  stateMgr,
		taskMgr:   task.NewManager(context.Background(), l),
	}
	sess := newSession(conn, cfg, l, &core.metrics)

	// a cancelled ctx closes the socket, which unblocks any pending handshake read
	stopWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
	err = sess.login()
	if !stopWatch() {
		err = fmt.Errorf("%w: handshake interrupted: %w", xena.ErrIO, ctx.Err())
	}
	if err != nil {
		_ = sess.close()
		_ = stateMgr.to(ClosedState)
		l.Warn("chassis handshake failed", "method", "Connect", "error", err)

		return nil, err
	}

	core.refs.Store(1)
	_ = stateMgr.to(ReadyState)

	a := &actor{
		sess:     sess,
		cmds:     core.cmds,
		quit:     core.quit,
		done:     core.done,
		stateMgr: stateMgr,
		metrics:  &core.metrics,
		logger:   l,
	}
	if err := core.taskMgr.Start("commandLoop", a.run); err != nil {
		_ = sess.close()
		_ = stateMgr.to(ClosingState)
		_ = stateMgr.to(ClosedState)

		return nil, err
	}

	l.Info("chassis connected", "method", "Connect")

	return &Connection{core: core}, nil
}

// Address returns the address the connection was opened with.
func (c *Connection) Address() string { return c.core.address }

// SessionID returns the id carried by every log line of the connection.
func (c *Connection) SessionID() uuid.UUID { return c.core.sessionID }

// State returns the current connection state.
func (c *Connection) State() ConnState { return c.core.stateMgr.State() }

// WaitState waits until the connection reaches state or ctx is done.
func (c *Connection) WaitState(ctx context.Context, state ConnState) error {
	return c.core.stateMgr.waitState(ctx, state)
}

// Metrics returns the metrics of the connection, shared by every handle.
func (c *Connection) Metrics() *ConnectionMetrics { return &c.core.metrics }

// Done returns a channel closed when the actor has exited.
func (c *Connection) Done() <-chan struct{} { return c.core.done }

// Clone returns a new handle to the same connection.
//
// Cloning a closed handle returns a closed handle.
func (c *Connection) Clone() *Connection {
	clone := &Connection{core: c.core}
	if c.released.Load() {
		clone.released.Store(true)
		return clone
	}

	c.core.refs.Add(1)

	return clone
}

// Close releases the handle. It is idempotent.
//
// Closing the last handle lets the actor finish the commands already queued, log off and close
// the socket; Close then waits up to the close timeout for the actor to exit.
func (c *Connection) Close() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}

	if c.core.refs.Add(-1) > 0 {
		return nil
	}

	core := c.core
	core.quitOnce.Do(func() { close(core.quit) })

	timer := pool.GetTimer(core.cfg.closeTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-core.done:
		core.taskMgr.Stop()
		return nil

	case <-timer.C:
		core.logger.Error("close timeout", "method", "Close", "timeout", core.cfg.closeTimeout)
		core.taskMgr.Stop()

		return ErrCloseTimeout
	}
}

// ListInterfaces queries the chassis and returns a freshly built directory of every port.
func (c *Connection) ListInterfaces(ctx context.Context) (xena.Interfaces, error) {
	res := c.call(ctx, listInterfaces, 0, 0)

	return res.dir, res.err
}

// LockActionOn sends the reservation command selected by current, the caller's last known lock of
// module/port: Released reserves, ReservedByYou releases and ReservedByOther relinquishes.
//
// Nothing is cached; list again to observe the resulting state.
func (c *Connection) LockActionOn(ctx context.Context, current xena.Lock, module, port uint8) error {
	kind, err := mutationFor(current)
	if err != nil {
		return err
	}

	return c.call(ctx, kind, module, port).err
}

// Reserve reserves module/port for this connection's owner.
func (c *Connection) Reserve(ctx context.Context, module, port uint8) error {
	return c.call(ctx, lockInterface, module, port).err
}

// Release releases a reservation held by this connection's owner.
func (c *Connection) Release(ctx context.Context, module, port uint8) error {
	return c.call(ctx, unlockInterface, module, port).err
}

// Relinquish forcibly removes a reservation held by another owner.
func (c *Connection) Relinquish(ctx context.Context, module, port uint8) error {
	return c.call(ctx, relinquishInterface, module, port).err
}

// call enqueues a command and waits for its result.
//
// ctx bounds only the caller's wait: a command already queued is still executed by the actor.
func (c *Connection) call(ctx context.Context, kind commandKind, module, port uint8) result {
	if c.released.Load() {
		return result{err: fmt.Errorf("%w: %s on closed handle", xena.ErrInternalConsistency, kind)}
	}

	core := c.core
	select {
	case <-core.done:
		return result{err: fmt.Errorf("%w: %s after actor exit", xena.ErrInternalConsistency, kind)}
	default:
	}

	cmd := newCommand(core.nextID.Add(1), kind, module, port)

	if err := c.enqueue(ctx, cmd); err != nil {
		return result{err: err}
	}

	select {
	case res := <-cmd.reply:
		return res

	case <-core.done:
		select {
		case res := <-cmd.reply:
			return res
		default:
			return result{err: fmt.Errorf("%w: actor exited before replying to %s", xena.ErrInternalConsistency, kind)}
		}

	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
}

func (c *Connection) enqueue(ctx context.Context, cmd *command) error {
	core := c.core

	// count before the send so the actor never observes a negative depth
	core.metrics.incQueueDepth()

	select {
	case core.cmds <- cmd:
		return nil
	default:
	}

	timer := pool.GetTimer(core.cfg.enqueueTimeout)
	defer pool.PutTimer(timer)

	select {
	case core.cmds <- cmd:
		return nil

	case <-core.done:
		core.metrics.decQueueDepth()
		return fmt.Errorf("%w: %s after actor exit", xena.ErrInternalConsistency, cmd.kind)

	case <-ctx.Done():
		core.metrics.decQueueDepth()
		return ctx.Err()

	case <-timer.C:
		core.metrics.decQueueDepth()
		core.logger.Warn("command queue full", "method", "enqueue", "command", cmd.kind,
			"timeout", core.cfg.enqueueTimeout)

		return fmt.Errorf("%w: %s", ErrQueueFull, cmd.kind)
	}
}
