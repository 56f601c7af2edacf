package chassis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

// DialFunc opens the socket to a chassis. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network string, address string) (net.Conn, error)

// ConnectionConfig represents the configuration parameters of a chassis connection.
type ConnectionConfig struct {
	// dialTimeout bounds opening the TCP socket. It should be between 10 milliseconds and 60 seconds.
	// Defaults to 3 seconds.
	dialTimeout time.Duration

	// replyTimeout bounds every read step: a handshake reply, a mutation ack and each line of a
	// query response. It should be between 10 milliseconds and 120 seconds.
	// Defaults to 10 seconds.
	replyTimeout time.Duration

	// writeTimeout bounds writing one command. It should be between 10 milliseconds and 60 seconds.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// closeTimeout bounds how long the last Close waits for the actor to log off and exit.
	// It should be between 10 milliseconds and 30 seconds.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// enqueueTimeout bounds how long a call waits for room in a full command queue.
	// It should be between 10 milliseconds and 5 minutes.
	// Defaults to 30 seconds.
	enqueueTimeout time.Duration

	// queueSize defines how many commands may wait for the actor.
	// Defaults to 16.
	queueSize int

	// password is sent with C_LOGON. Defaults to "xena".
	password string

	// owner is sent with C_OWNER. Defaults to "overseer".
	owner string

	// dial opens the socket. Defaults to net.Dialer.DialContext.
	dial DialFunc

	// stateHandlers are invoked on every connection state transition.
	stateHandlers []ConnStateChangeHandler

	// logger is the parent of the per-connection logger.
	logger logger.Logger
}

// NewConnectionConfig creates a connection configuration with default values and applies opts to it.
//
// Returns the configuration and the first option error, if any.
func NewConnectionConfig(opts ...ConnOption) (*ConnectionConfig, error) {
	dialer := &net.Dialer{}
	cfg := &ConnectionConfig{
		dialTimeout:    3 * time.Second,
		replyTimeout:   10 * time.Second,
		writeTimeout:   5 * time.Second,
		closeTimeout:   3 * time.Second,
		enqueueTimeout: 30 * time.Second,
		queueSize:      16,
		password:       xena.DefaultPassword,
		owner:          xena.DefaultOwner,
		dial:           dialer.DialContext,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// ReplyTimeout returns the per read step timeout.
func (cfg *ConnectionConfig) ReplyTimeout() time.Duration { return cfg.replyTimeout }

// WriteTimeout returns the per command write timeout.
func (cfg *ConnectionConfig) WriteTimeout() time.Duration { return cfg.writeTimeout }

// QueueSize returns the capacity of the command queue.
func (cfg *ConnectionConfig) QueueSize() int { return cfg.queueSize }

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// WithDialTimeout sets the timeout for opening the socket.
// An error is returned if the timeout is outside the valid range (10ms-60s).
//
// The default value is 3 seconds.
func WithDialTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithDialTimeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 60*time.Second {
			return errors.New("dial timeout out of range [0.01, 60]")
		}
		cfg.dialTimeout = val

		return nil
	})
}

// WithReplyTimeout sets the timeout of every read step.
// An error is returned if the timeout is outside the valid range (10ms-120s).
//
// The default value is 10 seconds.
func WithReplyTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithReplyTimeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 120*time.Second {
			return errors.New("reply timeout out of range [0.01, 120]")
		}
		cfg.replyTimeout = val

		return nil
	})
}

// WithWriteTimeout sets the timeout for writing one command.
// An error is returned if the timeout is outside the valid range (10ms-60s).
//
// The default value is 5 seconds.
func WithWriteTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 60*time.Second {
			return errors.New("write timeout out of range [0.01, 60]")
		}
		cfg.writeTimeout = val

		return nil
	})
}

// WithCloseTimeout sets how long the last Close waits for the actor to exit.
// An error is returned if the timeout is outside the valid range (10ms-30s).
//
// The default value is 3 seconds.
func WithCloseTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithCloseTimeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 30*time.Second {
			return errors.New("close timeout out of range [0.01, 30]")
		}
		cfg.closeTimeout = val

		return nil
	})
}

// WithEnqueueTimeout sets how long a call waits for room in a full command queue.
// An error is returned if the timeout is outside the valid range (10ms-300s).
//
// The default value is 30 seconds.
func WithEnqueueTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithEnqueueTimeout", func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 300*time.Second {
			return errors.New("enqueue timeout out of range [0.01, 300]")
		}
		cfg.enqueueTimeout = val

		return nil
	})
}

// WithQueueSize sets the capacity of the command queue.
//
// A larger queue absorbs bursts from many callers; once full, calls wait up to the enqueue timeout.
// An error is returned if the size is outside the valid range (1-1000).
//
// The default value is 16.
func WithQueueSize(size int) ConnOption {
	return newConnOptFunc("WithQueueSize", func(cfg *ConnectionConfig) error {
		if size < 1 || size > 1000 {
			return errors.New("queue size out of range [1, 1000]")
		}
		cfg.queueSize = size

		return nil
	})
}

// WithPassword sets the logon password.
// An error is returned if the password is empty or contains a double quote or a line break.
//
// The default value is "xena".
func WithPassword(password string) ConnOption {
	return newConnOptFunc("WithPassword", func(cfg *ConnectionConfig) error {
		if !xena.ValidCredential(password) {
			return errors.New("password must be non-empty without quotes or line breaks")
		}
		cfg.password = password

		return nil
	})
}

// WithOwner sets the owner name claimed after logon.
// An error is returned if the name is empty or contains a double quote or a line break.
//
// The default value is "overseer".
func WithOwner(owner string) ConnOption {
	return newConnOptFunc("WithOwner", func(cfg *ConnectionConfig) error {
		if !xena.ValidCredential(owner) {
			return errors.New("owner must be non-empty without quotes or line breaks")
		}
		cfg.owner = owner

		return nil
	})
}

// WithDialer replaces the function used to open the socket.
func WithDialer(dial DialFunc) ConnOption {
	return newConnOptFunc("WithDialer", func(cfg *ConnectionConfig) error {
		if dial == nil {
			return errors.New("dialer must not be nil")
		}
		cfg.dial = dial

		return nil
	})
}

// WithStateChangeHandler adds handlers invoked on every connection state transition,
// including the transitions of a failed Connect.
func WithStateChangeHandler(handlers ...ConnStateChangeHandler) ConnOption {
	return newConnOptFunc("WithStateChangeHandler", func(cfg *ConnectionConfig) error {
		cfg.stateHandlers = append(cfg.stateHandlers, handlers...)
		return nil
	})
}

// WithLogger sets the logger. Each connection derives a child logger carrying its
// address and session id.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
