// Package chassis manages logged-in connections to Xena chassis.
//
// Each connection is served by one actor goroutine that exclusively owns the socket. Callers
// hold Connection handles, which only enqueue commands and wait for the actor's reply, so any
// number of goroutines can share a connection while the wire operations stay strictly serialized
// in enqueue order.
//
// Key Features:
//   - Connection Establishment: Connect parses a literal "ip:port" address, dials, performs the
//     C_LOGON/C_OWNER handshake and only then starts the actor.
//   - Commands: ListInterfaces, LockActionOn, Reserve, Release and Relinquish block until the
//     actor delivers the result of that very command.
//   - Timeouts: every socket read and write is bounded; a timeout or I/O failure is terminal and is
//     delivered to the failing command and to every command still queued.
//   - State Management: ConnState transitions are reported to handlers registered with
//     WithStateChangeHandler.
//   - Shutdown: Clone shares a connection; when the last handle is closed the actor finishes the
//     queued commands, sends C_LOGOFF and closes the socket.
//
// Usage Example:
//
//	conn, err := chassis.Connect(ctx, "10.0.0.5:22611",
//	    chassis.WithReplyTimeout(5*time.Second),
//	    chassis.WithOwner("lab-bot"),
//	)
//	// ... handle error ...
//	defer conn.Close()
//
//	dir, err := conn.ListInterfaces(ctx)
//	// ... handle error ...
//	for _, p := range dir.Entries() {
//	    if p.State.Lock == xena.Released {
//	        err = conn.LockActionOn(ctx, p.State.Lock, p.Module, p.Port)
//	        // ... handle error ...
//	    }
//	}
package chassis
