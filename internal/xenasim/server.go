// Package xenasim is an in-process Xena chassis speaking the reservation subset of the
// text protocol. It backs tests and the simulator example.
package xenasim

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-overseer/internal/task"
	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

// Server is a simulated chassis. All clients share one reservation table.
type Server struct {
	cfg      *config
	listener net.Listener
	table    *reservationTable
	logger   logger.Logger
	taskMgr  *task.Manager

	clients   *xsync.MapOf[uint64, net.Conn]
	clientID  atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	mu       sync.Mutex
	received []string
}

// NewServer listens on address, e.g. "127.0.0.1:0", and starts accepting clients.
func NewServer(ctx context.Context, address string, opts ...Option) (*Server, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		listener: listener,
		table:    newReservationTable(cfg),
		logger:   cfg.logger.With("component", "xenasim", "listen", listener.Addr().String()),
		clients:  xsync.NewMapOf[uint64, net.Conn](),
	}
	s.taskMgr = task.NewManager(ctx, s.logger)

	if err := s.taskMgr.Start("acceptLoop", s.acceptLoop); err != nil {
		_ = listener.Close()
		return nil, err
	}
	s.logger.Info("simulator listening")

	return s, nil
}

// Addr returns the listening address as "ip:port".
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Received returns every command line received from any client, in arrival order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.received)
}

// Count returns how many times line was received.
func (s *Server) Count(line string) int {
	n := 0
	for _, l := range s.Received() {
		if l == line {
			n++
		}
	}

	return n
}

// Owner returns the owner holding module/port, empty when released.
// ok is false for a port outside the layout.
func (s *Server) Owner(module, port uint8) (owner string, ok bool) {
	return s.table.owner(portKey{module: module, port: port})
}

// Lock returns the state of module/port as seen by owner.
func (s *Server) Lock(module, port uint8, owner string) (xena.Lock, bool) {
	return s.table.lock(portKey{module: module, port: port}, owner)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	return s.clients.Size()
}

// Close stops accepting, disconnects every client and waits for their goroutines.
func (s *Server) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
		s.clients.Range(func(_ uint64, conn net.Conn) bool {
			_ = conn.Close()
			return true
		})
		s.taskMgr.Stop()

		err = errors.Join(err, s.taskMgr.Wait(ctx))
	})

	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		s.closed.Store(true)
		_ = s.listener.Close()
	})
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Error("failed to accept connection", "method", "acceptLoop", "error", err)
			}

			return
		}

		id := s.clientID.Add(1)
		s.clients.Store(id, conn)
		if s.closed.Load() {
			s.clients.Delete(id)
			_ = conn.Close()

			return
		}
		c := newClient(id, conn, s)

		if err := s.taskMgr.Start("client", func(context.Context) { c.serve() }); err != nil {
			s.clients.Delete(id)
			_ = conn.Close()

			return
		}
	}
}

func (s *Server) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, line)
}

func (s *Server) removeClient(id uint64) {
	s.clients.Delete(id)
}
