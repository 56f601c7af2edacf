package chassis

import (
	"context"
	"errors"

	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

// actor is the single goroutine that owns a logged-in session.
//
// It executes commands one at a time in queue order and replies on each command's own channel.
// A socket-level error is terminal: every command still queued receives the same error without
// touching the socket, then the actor tears down.
type actor struct {
	sess     *session
	cmds     <-chan *command
	quit     <-chan struct{}
	done     chan<- struct{}
	stateMgr *connStateMgr
	metrics  *ConnectionMetrics
	logger   logger.Logger

	fatal error
}

// run is the command loop. It returns after logoff and socket close.
func (a *actor) run(ctx context.Context) {
	defer close(a.done)
	defer a.teardown()

	for {
		select {
		case cmd := <-a.cmds:
			a.process(cmd)
			if a.fatal != nil {
				a.failQueued()
				return
			}

		case <-a.quit:
			a.drainQueued()
			return

		case <-ctx.Done():
			a.logger.Debug("actor context done", "method", "run", "error", ctx.Err())
			a.fatal = xena.ErrInternalConsistency
			a.failQueued()

			return
		}
	}
}

// process executes cmd, or fails it with the terminal error if one was already seen.
func (a *actor) process(cmd *command) {
	a.metrics.decQueueDepth()

	if a.fatal != nil {
		cmd.respond(result{err: a.fatal})
		return
	}

	res := a.execute(cmd)
	a.metrics.incCommandCount()

	if res.err != nil {
		a.metrics.incCommandErrCount()
		if isTerminal(res.err) {
			a.fatal = res.err
			a.logger.Error("command failed, connection unusable",
				"method", "process", "id", cmd.id, "command", cmd.kind, "error", res.err)
		} else {
			a.logger.Warn("command failed",
				"method", "process", "id", cmd.id, "command", cmd.kind, "error", res.err)
		}
	}

	cmd.respond(res)
}

func (a *actor) execute(cmd *command) result {
	if a.logger.Level() == logger.DebugLevel {
		a.logger.Debug("execute command", "method", "execute", "id", cmd.id, "command", cmd.kind,
			"module", cmd.module, "port", cmd.port)
	}

	switch cmd.kind {
	case listInterfaces:
		dir, err := a.sess.listInterfaces()
		return result{dir: dir, err: err}

	case lockInterface, unlockInterface, relinquishInterface:
		return result{err: a.sess.reserve(cmd.kind.verb(), cmd.module, cmd.port)}

	default:
		return result{err: errors.New("unknown command")}
	}
}

// drainQueued executes every command already queued, as after the last handle closed.
func (a *actor) drainQueued() {
	for {
		select {
		case cmd := <-a.cmds:
			a.process(cmd)
		default:
			return
		}
	}
}

// failQueued replies the terminal error to every command already queued.
func (a *actor) failQueued() {
	for {
		select {
		case cmd := <-a.cmds:
			a.metrics.decQueueDepth()
			cmd.respond(result{err: a.fatal})
		default:
			return
		}
	}
}

// teardown sends a best-effort logoff and closes the socket.
func (a *actor) teardown() {
	_ = a.stateMgr.to(ClosingState)

	a.sess.logoff()
	if err := a.sess.close(); err != nil {
		a.logger.Debug("close socket failed", "method", "teardown", "error", err)
	}

	_ = a.stateMgr.to(ClosedState)
	a.logger.Info("connection closed", "method", "teardown")
}

// isTerminal reports whether err leaves the socket unusable: any I/O failure or timeout.
func isTerminal(err error) bool {
	return errors.Is(err, xena.ErrIO)
}
