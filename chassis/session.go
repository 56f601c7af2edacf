package chassis

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

// session owns the socket of one logged-in chassis connection.
//
// session is NOT goroutine-safe. During Connect it belongs to the connecting goroutine;
// afterwards it belongs to the actor, which is the only code performing socket I/O.
type session struct {
	conn    net.Conn
	reader  *xena.LineReader
	cfg     *ConnectionConfig
	logger  logger.Logger
	metrics *ConnectionMetrics
}

func newSession(conn net.Conn, cfg *ConnectionConfig, l logger.Logger, metrics *ConnectionMetrics) *session {
	return &session{
		conn:    conn,
		reader:  xena.NewLineReader(conn, cfg.replyTimeout),
		cfg:     cfg,
		logger:  l,
		metrics: metrics,
	}
}

// login performs the logon and ownership handshake. Each step must be answered with exactly "<OK>".
func (s *session) login() error {
	if err := s.expectOK(xena.CmdLogon, xena.EncodeLogon(s.cfg.password), xena.ErrAuthentication); err != nil {
		return err
	}

	return s.expectOK(xena.CmdOwner, xena.EncodeOwner(s.cfg.owner), xena.ErrAuthentication)
}

// listInterfaces queries the reservation state of every port and reads the response up to <SYNC>.
//
// A malformed line does not stop the read: the response is drained to <SYNC> so the next command
// starts on a clean stream, then the partial directory is discarded.
func (s *session) listInterfaces() (xena.Interfaces, error) {
	if err := s.write(xena.EncodeQuery()); err != nil {
		return xena.Interfaces{}, err
	}

	dec := xena.NewQueryDecoder()
	for !dec.Done() {
		line, err := s.readLine()
		if err != nil {
			if dec.Err() != nil {
				return xena.Interfaces{}, errors.Join(dec.Err(), err)
			}

			return xena.Interfaces{}, err
		}
		dec.Feed(line)
	}

	return dec.Result()
}

// reserve sends one reservation verb for module/port and expects "<OK>".
func (s *session) reserve(verb xena.Verb, module, port uint8) error {
	name := xena.ParamReservation + " " + verb.String()

	return s.expectOK(name, xena.EncodeReservation(verb, module, port), xena.ErrNotAcknowledged)
}

// logoff writes C_LOGOFF. Failures are logged and ignored.
func (s *session) logoff() {
	if err := s.write(xena.EncodeLogoff()); err != nil {
		s.logger.Debug("logoff failed", "method", "logoff", "error", err)
	}
}

func (s *session) close() error {
	return s.conn.Close()
}

// expectOK writes payload and reads one reply line. Any reply other than "<OK>" is a ReplyError of kind.
func (s *session) expectOK(name string, payload []byte, kind error) error {
	if err := s.write(payload); err != nil {
		return err
	}

	line, err := s.readLine()
	if err != nil {
		return err
	}

	if !xena.IsOK(line) {
		return &xena.ReplyError{Kind: kind, Command: name, Reply: line}
	}

	return nil
}

func (s *session) write(payload []byte) error {
	if s.logger.Level() == logger.DebugLevel {
		s.logger.Debug("send command", "method", "write", "command", strings.TrimRight(string(payload), "\n"))
	}

	if err := xena.WriteCommand(s.conn, payload, s.cfg.writeTimeout); err != nil {
		return err
	}
	s.metrics.addBytesSentCount(len(payload))

	return nil
}

func (s *session) readLine() (string, error) {
	line, err := s.reader.ReadLine()
	if err != nil {
		if !errors.Is(err, xena.ErrIO) {
			// an oversized line leaves the stream mid-line, no later reply can be trusted
			return "", fmt.Errorf("%w: response stream desynchronized: %w", xena.ErrIO, err)
		}

		return "", err
	}
	s.metrics.incLinesRecvCount()

	if s.logger.Level() == logger.DebugLevel {
		s.logger.Debug("line received", "method", "readLine", "line", line)
	}

	return line, nil
}
