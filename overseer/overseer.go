// Package overseer keeps logged-in connections to many chassis, keyed by address, together with
// the last directory each one reported and the last failure of every address.
package overseer

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-overseer/chassis"
	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

// Option configures an Overseer.
type Option func(*Overseer)

// WithConnOptions sets the options passed to every chassis.Connect.
func WithConnOptions(opts ...chassis.ConnOption) Option {
	return func(o *Overseer) { o.connOpts = append(o.connOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Overseer) { o.logger = l }
}

// Overseer is a registry of chassis connections. It is safe for concurrent use.
type Overseer struct {
	connOpts []chassis.ConnOption
	logger   logger.Logger

	mu       sync.Mutex // serializes Add and Remove of the same address
	conns    *xsync.MapOf[string, *chassis.Connection]
	dirs     *xsync.MapOf[string, xena.Interfaces]
	failures *xsync.MapOf[string, error]
}

// New creates an empty Overseer.
func New(opts ...Option) *Overseer {
	o := &Overseer{
		logger:   logger.GetLogger(),
		conns:    xsync.NewMapOf[string, *chassis.Connection](),
		dirs:     xsync.NewMapOf[string, xena.Interfaces](),
		failures: xsync.NewMapOf[string, error](),
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Add connects to address and keeps the connection. A new attempt clears an earlier failure;
// a failed attempt is recorded and returned. Adding a connected address is a no-op.
func (o *Overseer) Add(ctx context.Context, address string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.conns.Load(address); ok {
		return nil
	}
	o.failures.Delete(address)

	opts := append(slices.Clone(o.connOpts), chassis.WithLogger(o.logger))
	conn, err := chassis.Connect(ctx, address, opts...)
	if err != nil {
		o.failures.Store(address, err)
		o.logger.Warn("failed to add chassis", "address", address, "error", err)

		return err
	}
	o.conns.Store(address, conn)

	return nil
}

// Remove closes and forgets the connection to address, its directory and its failure.
func (o *Overseer) Remove(address string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.failures.Delete(address)
	o.dirs.Delete(address)

	conn, ok := o.conns.LoadAndDelete(address)
	if !ok {
		return nil
	}

	return conn.Close()
}

// Refresh lists the interfaces of address and keeps the result as its latest directory.
//
// A failure is recorded. When the failure left the connection unusable the connection is dropped,
// so a later Add reconnects.
func (o *Overseer) Refresh(ctx context.Context, address string) (xena.Interfaces, error) {
	conn, ok := o.conns.Load(address)
	if !ok {
		return xena.Interfaces{}, errNotConnected(address)
	}

	dir, err := conn.ListInterfaces(ctx)
	if err != nil {
		o.fail(address, conn, err)
		return xena.Interfaces{}, err
	}

	o.dirs.Store(address, dir)
	o.failures.Delete(address)

	return dir, nil
}

// Toggle performs the lock action selected by current on module/port of address, then lists the
// interfaces again so the caller sees the authoritative result.
func (o *Overseer) Toggle(ctx context.Context, address string, current xena.Lock, module, port uint8) (xena.Interfaces, error) {
	conn, ok := o.conns.Load(address)
	if !ok {
		return xena.Interfaces{}, errNotConnected(address)
	}

	if err := conn.LockActionOn(ctx, current, module, port); err != nil {
		o.fail(address, conn, err)
		return xena.Interfaces{}, err
	}

	return o.Refresh(ctx, address)
}

// RefreshAll lists every connection concurrently. It returns the joined failures.
func (o *Overseer) RefreshAll(ctx context.Context) error {
	addrs := o.Addresses()
	errs := make([]error, len(addrs))

	var wg sync.WaitGroup
	for i, addr := range addrs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = o.Refresh(ctx, addr)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Addresses returns the connected addresses, sorted.
func (o *Overseer) Addresses() []string {
	addrs := make([]string, 0, o.conns.Size())
	o.conns.Range(func(addr string, _ *chassis.Connection) bool {
		addrs = append(addrs, addr)
		return true
	})
	slices.Sort(addrs)

	return addrs
}

// Directory returns the latest directory listed for address.
func (o *Overseer) Directory(address string) (xena.Interfaces, bool) {
	return o.dirs.Load(address)
}

// Failures returns a snapshot of the last failure of every failed address.
func (o *Overseer) Failures() map[string]error {
	out := make(map[string]error, o.failures.Size())
	o.failures.Range(func(addr string, err error) bool {
		out[addr] = err
		return true
	})

	return out
}

// Connection returns a new handle to the connection of address. The caller must close it.
func (o *Overseer) Connection(address string) (*chassis.Connection, bool) {
	conn, ok := o.conns.Load(address)
	if !ok {
		return nil, false
	}

	return conn.Clone(), true
}

// Close closes every connection.
func (o *Overseer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	o.conns.Range(func(addr string, conn *chassis.Connection) bool {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		o.conns.Delete(addr)

		return true
	})
	o.dirs.Clear()

	return errors.Join(errs...)
}

func (o *Overseer) fail(address string, conn *chassis.Connection, err error) {
	o.failures.Store(address, err)
	o.logger.Warn("chassis command failed", "address", address, "error", err)

	if !errors.Is(err, xena.ErrIO) && !errors.Is(err, xena.ErrInternalConsistency) {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// drop only the connection that failed, a concurrent Add may have replaced it
	dropped := false
	o.conns.Compute(address, func(cur *chassis.Connection, loaded bool) (*chassis.Connection, bool) {
		if loaded && cur == conn {
			dropped = true
			return nil, true
		}

		return cur, !loaded
	})

	if dropped {
		o.dirs.Delete(address)
		_ = conn.Close()
	}
}
