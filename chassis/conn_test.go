package chassis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []ConnState
}

func (r *stateRecorder) handler(_ string, _ ConnState, newState ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, newState)
}

func (r *stateRecorder) seen() []ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]ConnState(nil), r.states...)
}

func TestConnect_Handshake(t *testing.T) {
	require := require.New(t)

	t.Run("Default Credentials", func(t *testing.T) {
		peer := newPipePeer(t, chassisReplies())
		rec := &stateRecorder{}

		conn := connectPeer(t, peer, WithStateChangeHandler(rec.handler))
		require.Equal(ReadyState, conn.State())
		require.Equal(testAddress, conn.Address())
		require.Equal([]string{`C_LOGON "xena"`, `C_OWNER "overseer"`}, peer.received())

		require.NoError(conn.Close())
		peer.waitClosed(t)

		require.Equal(ClosedState, conn.State())
		require.Equal([]ConnState{ConnectingState, AuthenticatingState, ReadyState, ClosingState, ClosedState}, rec.seen())
	})

	t.Run("Custom Credentials", func(t *testing.T) {
		peer := newPipePeer(t, chassisReplies())

		conn := connectPeer(t, peer, WithPassword("s3cret"), WithOwner("lab-bot"))
		require.NoError(conn.Close())
		peer.waitClosed(t)

		require.Equal([]string{`C_LOGON "s3cret"`, `C_OWNER "lab-bot"`, "C_LOGOFF"}, peer.received())
	})
}

func TestConnect_AuthenticationRejected(t *testing.T) {
	tests := []struct {
		name     string
		rejected string
		reply    string
		expected []string
	}{
		{name: "logon", rejected: "C_LOGON", reply: "<ERR>\n", expected: []string{`C_LOGON "xena"`}},
		{name: "owner", rejected: "C_OWNER", reply: "<NOTLOGGEDON>\n", expected: []string{`C_LOGON "xena"`, `C_OWNER "overseer"`}},
		{name: "ok with trailing text", rejected: "C_LOGON", reply: "<OK> \n", expected: []string{`C_LOGON "xena"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			ok := chassisReplies()
			peer := newPipePeer(t, func(line string) []string {
				if strings.HasPrefix(line, tt.rejected) {
					return []string{tt.reply}
				}
				return ok(line)
			})
			rec := &stateRecorder{}

			conn, err := Connect(context.Background(), testAddress,
				WithDialer(peer.dialer()),
				WithStateChangeHandler(rec.handler),
			)
			require.Nil(conn)
			require.ErrorIs(err, xena.ErrAuthentication)

			var replyErr *xena.ReplyError
			require.ErrorAs(err, &replyErr)
			require.Equal(tt.rejected, replyErr.Command)

			// the socket is closed without logoff and no actor exists
			peer.waitClosed(t)
			require.Equal(tt.expected, peer.received())
			require.Equal([]ConnState{ConnectingState, AuthenticatingState, ClosedState}, rec.seen())
		})
	}
}

func TestConnect_AddressParse(t *testing.T) {
	for _, addr := range []string{"", "not-an-address", "localhost:22611", "10.0.0.1", "10.0.0.1:99999", "[::1]"} {
		t.Run(addr, func(t *testing.T) {
			require := require.New(t)

			dialed := false
			rec := &stateRecorder{}
			conn, err := Connect(context.Background(), addr,
				WithDialer(func(context.Context, string, string) (net.Conn, error) {
					dialed = true
					return nil, errors.New("unexpected dial")
				}),
				WithStateChangeHandler(rec.handler),
			)
			require.Nil(conn)
			require.ErrorIs(err, xena.ErrAddressParse)
			require.False(dialed)
			require.Equal([]ConnState{ConnectingState, ClosedState}, rec.seen())
		})
	}

	t.Run("IPv6", func(t *testing.T) {
		var dialedAddr string
		_, err := Connect(context.Background(), "[::1]:22611",
			WithDialer(func(_ context.Context, _ string, address string) (net.Conn, error) {
				dialedAddr = address
				return nil, errors.New("refused")
			}),
		)
		require.ErrorIs(t, err, xena.ErrIO)
		require.Equal(t, "[::1]:22611", dialedAddr)
	})
}

func TestConnect_DialFailure(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	addr := ln.Addr().String()
	require.NoError(ln.Close())

	conn, err := Connect(context.Background(), addr, WithDialTimeout(500*time.Millisecond))
	require.Nil(conn)
	require.ErrorIs(err, xena.ErrIO)
	require.NotErrorIs(err, xena.ErrAddressParse)
}

func TestConnect_HandshakeTimeout(t *testing.T) {
	require := require.New(t)

	peer := newPipePeer(t, func(string) []string { return nil })

	start := time.Now()
	conn, err := Connect(context.Background(), testAddress,
		WithDialer(peer.dialer()),
		WithReplyTimeout(50*time.Millisecond),
	)
	require.Nil(conn)
	require.ErrorIs(err, xena.ErrTimeout)
	require.ErrorIs(err, xena.ErrIO)
	require.Less(time.Since(start), time.Second)
}

func TestConnect_ContextCancelledDuringHandshake(t *testing.T) {
	require := require.New(t)

	peer := newPipePeer(t, func(string) []string { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	conn, err := Connect(ctx, testAddress, WithDialer(peer.dialer()), WithReplyTimeout(5*time.Second))
	require.Nil(conn)
	require.ErrorIs(err, xena.ErrIO)
	require.ErrorIs(err, context.Canceled)
}

func TestConnection_ListInterfaces(t *testing.T) {
	require := require.New(t)

	peer := newPipePeer(t, chassisReplies(
		"0/0 P_RESERVATION RELEASED",
		"0/1 P_RESERVATION RESERVED_BY_YOU",
		"1/0 P_RESERVATION RESERVED_BY_OTHER",
	))
	conn := connectPeer(t, peer)
	defer conn.Close()

	dir, err := conn.ListInterfaces(context.Background())
	require.NoError(err)
	require.Equal(3, dir.Len())

	st, ok := dir.Get(0, 1)
	require.True(ok)
	require.Equal(xena.ReservedByYou, st.Lock)
	st, ok = dir.Get(1, 0)
	require.True(ok)
	require.Equal(xena.ReservedByOther, st.Lock)

	require.Equal([]string{"*/* P_RESERVATION ?", "SYNC"}, peer.received()[2:])

	// a second query builds an independent directory
	dir2, err := conn.ListInterfaces(context.Background())
	require.NoError(err)
	require.Equal(dir, dir2)
	dir2.Modules[0][0] = xena.State{Lock: xena.ReservedByOther}
	st, _ = dir.Get(0, 0)
	require.Equal(xena.Released, st.Lock)
}

func TestConnection_ListInterfaces_SplitResponse(t *testing.T) {
	require := require.New(t)

	ok := chassisReplies()
	peer := newPipePeer(t, func(line string) []string {
		if line == "SYNC" {
			return []string{"0/0 P_RESERV", "ATION RELEASED\n1/", "3 P_RESERVATION RESERVED_BY_OTHER\n<SY", "NC>\n"}
		}
		return ok(line)
	})
	conn := connectPeer(t, peer)
	defer conn.Close()

	dir, err := conn.ListInterfaces(context.Background())
	require.NoError(err)
	require.Equal(2, dir.Len())
	st, found := dir.Get(1, 3)
	require.True(found)
	require.Equal(xena.ReservedByOther, st.Lock)
}

func TestConnection_ListInterfaces_ParseError(t *testing.T) {
	require := require.New(t)

	var queries atomic.Int32
	ok := chassisReplies()
	peer := newPipePeer(t, func(line string) []string {
		if line != "SYNC" {
			return ok(line)
		}
		if queries.Add(1) == 1 {
			return []string{
				"0/0 P_RESERVATION RELEASED\n",
				"0/1 P_RESERVATION LOCKED_BY_ALIENS\n",
				"0/2 P_RESERVATION RELEASED\n",
				"<SYNC>\n",
			}
		}
		return []string{"0/0 P_RESERVATION RESERVED_BY_YOU\n", "<SYNC>\n"}
	})
	conn := connectPeer(t, peer)
	defer conn.Close()

	dir, err := conn.ListInterfaces(context.Background())
	require.ErrorIs(err, xena.ErrProtocolParse)
	require.Zero(dir.Len())

	var parseErr *xena.ParseError
	require.ErrorAs(err, &parseErr)
	require.Equal("0/1 P_RESERVATION LOCKED_BY_ALIENS", parseErr.Line)

	// a parse error is not terminal and the stream stays aligned
	require.Equal(ReadyState, conn.State())
	dir, err = conn.ListInterfaces(context.Background())
	require.NoError(err)
	require.Equal(1, dir.Len())
	st, _ := dir.Get(0, 0)
	require.Equal(xena.ReservedByYou, st.Lock)
}

func TestConnection_LockActionOn(t *testing.T) {
	require := require.New(t)

	peer := newPipePeer(t, chassisReplies())
	conn := connectPeer(t, peer)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(conn.LockActionOn(ctx, xena.Released, 3, 7))
	require.NoError(conn.LockActionOn(ctx, xena.ReservedByYou, 3, 7))
	require.NoError(conn.LockActionOn(ctx, xena.ReservedByOther, 3, 7))
	require.NoError(conn.Reserve(ctx, 0, 255))
	require.NoError(conn.Release(ctx, 255, 0))
	require.NoError(conn.Relinquish(ctx, 1, 1))

	require.ErrorIs(conn.LockActionOn(ctx, xena.Lock(42), 3, 7), xena.ErrInvalidLock)

	require.Equal([]string{
		"3/7 P_RESERVATION RESERVE",
		"3/7 P_RESERVATION RELEASE",
		"3/7 P_RESERVATION RELINQUISH",
		"0/255 P_RESERVATION RESERVE",
		"255/0 P_RESERVATION RELEASE",
		"1/1 P_RESERVATION RELINQUISH",
	}, peer.received()[2:])
}

func TestConnection_NotAcknowledged(t *testing.T) {
	require := require.New(t)

	ok := chassisReplies("0/0 P_RESERVATION RESERVED_BY_OTHER")
	peer := newPipePeer(t, func(line string) []string {
		if line == "0/0 P_RESERVATION RESERVE" {
			return []string{"<NOTVALID>\n"}
		}
		return ok(line)
	})
	conn := connectPeer(t, peer)

	ctx := context.Background()
	err := conn.LockActionOn(ctx, xena.Released, 0, 0)
	require.ErrorIs(err, xena.ErrNotAcknowledged)

	var replyErr *xena.ReplyError
	require.ErrorAs(err, &replyErr)
	require.Equal("<NOTVALID>", replyErr.Reply)

	// the actor keeps serving
	require.NoError(conn.Relinquish(ctx, 0, 0))
	_, err = conn.ListInterfaces(ctx)
	require.NoError(err)

	require.NoError(conn.Close())
	peer.waitClosed(t)
	require.Equal(1, peer.count("C_LOGOFF"))
	require.Equal(uint64(3), conn.Metrics().CommandCount.Load())
	require.Equal(uint64(1), conn.Metrics().CommandErrCount.Load())
}

func TestConnection_FIFOAcrossHandles(t *testing.T) {
	require := require.New(t)

	const numCmds = 24
	const numHandles = 4

	release := make(chan struct{})
	var held atomic.Bool
	ok := chassisReplies()
	peer := newPipePeer(t, func(line string) []string {
		if strings.HasSuffix(line, "RESERVE") && held.CompareAndSwap(false, true) {
			<-release
		}
		return ok(line)
	})
	conn := connectPeer(t, peer, WithQueueSize(numCmds))

	handles := make([]*Connection, numHandles)
	handles[0] = conn
	for i := 1; i < numHandles; i++ {
		handles[i] = conn.Clone()
	}

	ctx := context.Background()
	errs := make(chan error, numCmds+1)

	// the first command occupies the actor until release is closed
	go func() { errs <- conn.Reserve(ctx, 0, 0) }()
	require.Eventually(held.Load, time.Second, time.Millisecond)

	for i := 1; i <= numCmds; i++ {
		h := handles[i%numHandles]
		go func() { errs <- h.Reserve(ctx, uint8(i), uint8(i)) }()
		require.Eventually(func() bool { return len(conn.core.cmds) == i }, time.Second, time.Millisecond)
	}
	require.Equal(int64(numCmds), conn.Metrics().QueueDepth.Load())

	close(release)
	for i := 0; i <= numCmds; i++ {
		require.NoError(<-errs)
	}

	expected := make([]string, 0, numCmds+1)
	for i := 0; i <= numCmds; i++ {
		expected = append(expected, fmt.Sprintf("%d/%d P_RESERVATION RESERVE", i, i))
	}
	require.Equal(expected, peer.received()[2:])
	require.Zero(conn.Metrics().QueueDepth.Load())

	for _, h := range handles {
		require.NoError(h.Close())
	}
	peer.waitClosed(t)
	require.Equal(1, peer.count("C_LOGOFF"))
}

func TestConnection_CloneAndClose(t *testing.T) {
	require := require.New(t)

	peer := newPipePeer(t, chassisReplies())
	conn := connectPeer(t, peer)
	clone := conn.Clone()
	ctx := context.Background()

	require.NoError(conn.Close())
	require.NoError(conn.Close(), "close is idempotent per handle")

	// the clone keeps the connection alive
	require.Equal(ReadyState, clone.State())
	require.NoError(clone.Reserve(ctx, 1, 2))
	require.Zero(peer.count("C_LOGOFF"))

	err := conn.Reserve(ctx, 1, 2)
	require.ErrorIs(err, xena.ErrInternalConsistency)
	require.ErrorIs(conn.Clone().Reserve(ctx, 1, 2), xena.ErrInternalConsistency)

	require.NoError(clone.Close())
	peer.waitClosed(t)
	require.Equal(ClosedState, clone.State())
	require.Equal(1, peer.count("C_LOGOFF"))
	require.Equal("C_LOGOFF", peer.received()[len(peer.received())-1])

	_, err = clone.ListInterfaces(ctx)
	require.ErrorIs(err, xena.ErrInternalConsistency)
}

func TestConnection_QueuedCommandsRunAfterLastClose(t *testing.T) {
	require := require.New(t)

	release := make(chan struct{})
	var held atomic.Bool
	ok := chassisReplies()
	peer := newPipePeer(t, func(line string) []string {
		if strings.HasSuffix(line, "RESERVE") && held.CompareAndSwap(false, true) {
			<-release
		}
		return ok(line)
	})
	conn := connectPeer(t, peer)
	ctx := context.Background()

	errs := make(chan error, 4)
	go func() { errs <- conn.Reserve(ctx, 0, 0) }()
	require.Eventually(held.Load, time.Second, time.Millisecond)
	for i := 1; i <= 3; i++ {
		go func() { errs <- conn.Release(ctx, uint8(i), 0) }()
		require.Eventually(func() bool { return len(conn.core.cmds) == i }, time.Second, time.Millisecond)
	}

	closed := make(chan error, 1)
	go func() { closed <- conn.Close() }()

	close(release)
	for range 4 {
		require.NoError(<-errs)
	}
	require.NoError(<-closed)

	peer.waitClosed(t)
	lines := peer.received()
	require.Len(lines, 2+4+1)
	require.Equal("C_LOGOFF", lines[len(lines)-1])
}

func TestConnection_TerminalIOError(t *testing.T) {
	require := require.New(t)

	var peer *pipePeer
	var held atomic.Bool
	proceed := make(chan struct{})
	ok := chassisReplies()
	peer = newPipePeer(t, func(line string) []string {
		if line == "9/9 P_RESERVATION RESERVE" && held.CompareAndSwap(false, true) {
			<-proceed
			_ = peer.conn.Close()
			return nil
		}
		return ok(line)
	})
	rec := &stateRecorder{}
	conn := connectPeer(t, peer, WithStateChangeHandler(rec.handler))
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- conn.Reserve(ctx, 9, 9) }()
	require.Eventually(held.Load, time.Second, time.Millisecond)

	queued := make(chan error, 3)
	for i := 1; i <= 3; i++ {
		go func() { queued <- conn.Release(ctx, uint8(i), uint8(i)) }()
		require.Eventually(func() bool { return len(conn.core.cmds) == i }, time.Second, time.Millisecond)
	}
	close(proceed)

	err := <-first
	require.ErrorIs(err, xena.ErrIO)
	for range 3 {
		qerr := <-queued
		require.ErrorIs(qerr, xena.ErrIO)
		require.Equal(err.Error(), qerr.Error())
	}

	require.NoError(conn.WaitState(ctx, ClosedState))
	require.Equal([]ConnState{ConnectingState, AuthenticatingState, ReadyState, ClosingState, ClosedState}, rec.seen())

	// the queued commands never reached the socket
	require.Equal([]string{`C_LOGON "xena"`, `C_OWNER "overseer"`, "9/9 P_RESERVATION RESERVE"}, peer.received())

	_, err = conn.ListInterfaces(ctx)
	require.ErrorIs(err, xena.ErrInternalConsistency)
	require.NoError(conn.Close())
}

func TestConnection_ReplyTimeoutIsTerminal(t *testing.T) {
	require := require.New(t)

	ok := chassisReplies()
	peer := newPipePeer(t, func(line string) []string {
		if line == "SYNC" {
			return []string{"0/0 P_RESERVATION RELEASED\n"} // no <SYNC>
		}
		return ok(line)
	})
	conn := connectPeer(t, peer, WithReplyTimeout(50*time.Millisecond))

	_, err := conn.ListInterfaces(context.Background())
	require.ErrorIs(err, xena.ErrTimeout)

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("actor did not exit after timeout")
	}
	require.Equal(ClosedState, conn.State())
	peer.waitClosed(t)
	require.Equal(1, peer.count("C_LOGOFF"))
	require.NoError(conn.Close())
}

func TestConnection_CallerContext(t *testing.T) {
	require := require.New(t)

	release := make(chan struct{})
	ok := chassisReplies()
	peer := newPipePeer(t, func(line string) []string {
		if line == "5/5 P_RESERVATION RESERVE" {
			<-release
		}
		return ok(line)
	})
	conn := connectPeer(t, peer)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(conn.Reserve(ctx, 5, 5), context.DeadlineExceeded)

	// the abandoned command still completes on the wire and the connection stays usable
	close(release)
	require.NoError(conn.Release(context.Background(), 5, 5))
	require.NoError(conn.Close())
}

func TestConnection_QueueFull(t *testing.T) {
	require := require.New(t)

	release := make(chan struct{})
	var held atomic.Bool
	ok := chassisReplies()
	peer := newPipePeer(t, func(line string) []string {
		if strings.HasSuffix(line, "RESERVE") && held.CompareAndSwap(false, true) {
			<-release
		}
		return ok(line)
	})
	conn := connectPeer(t, peer, WithQueueSize(1), WithEnqueueTimeout(50*time.Millisecond))
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- conn.Reserve(ctx, 0, 0) }()
	require.Eventually(held.Load, time.Second, time.Millisecond)
	go func() { errs <- conn.Reserve(ctx, 0, 1) }()
	require.Eventually(func() bool { return len(conn.core.cmds) == 1 }, time.Second, time.Millisecond)

	require.ErrorIs(conn.Reserve(ctx, 0, 2), ErrQueueFull)

	close(release)
	require.NoError(<-errs)
	require.NoError(<-errs)
	require.NoError(conn.Close())
}

func TestConnection_Metrics(t *testing.T) {
	require := require.New(t)

	peer := newPipePeer(t, chassisReplies("0/0 P_RESERVATION RELEASED", "0/1 P_RESERVATION RELEASED"))
	conn := connectPeer(t, peer)
	ctx := context.Background()

	_, err := conn.ListInterfaces(ctx)
	require.NoError(err)
	require.NoError(conn.Reserve(ctx, 0, 1))

	m := conn.Metrics()
	assert.Equal(t, uint64(2), m.CommandCount.Load())
	assert.Zero(t, m.CommandErrCount.Load())
	// two handshake replies, two entries, sync marker, one ack
	assert.Equal(t, uint64(6), m.LinesRecvCount.Load())

	sent := len(xena.EncodeLogon("xena")) + len(xena.EncodeOwner("overseer")) +
		len(xena.EncodeQuery()) + len(xena.EncodeReservation(xena.VerbReserve, 0, 1))
	assert.Equal(t, uint64(sent), m.BytesSentCount.Load()) //nolint:gosec
	require.NoError(conn.Close())
}

func TestConnection_LoggerCarriesSession(t *testing.T) {
	require := require.New(t)

	var mu sync.Mutex
	var withArgs []any

	mockLogger := logger.NewMockLogger()
	mockLogger.On("With", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		withArgs, _ = args.Get(0).([]any)
	}).Return(mockLogger)
	mockLogger.AllowAll()

	peer := newPipePeer(t, chassisReplies())
	conn := connectPeer(t, peer, WithLogger(mockLogger))
	require.NoError(conn.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Equal([]any{"address", testAddress, "session", conn.SessionID().String()}, withArgs)
	mockLogger.AssertCalled(t, "Info", "chassis connected", []any{"method", "Connect"})
}
