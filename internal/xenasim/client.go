package xenasim

import (
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

const (
	replyNotValid    = "<NOTVALID>"
	replyNotLoggedOn = "<NOTLOGGEDON>"
	replyBadCommand  = "<BADCOMMAND>"

	writeTimeout = 5 * time.Second
)

type clientConn interface {
	xena.DeadlineReader
	xena.DeadlineWriter
	Close() error
}

// client serves one connected chassis client.
type client struct {
	id       uint64
	conn     clientConn
	reader   *xena.LineReader
	server   *Server
	logger   logger.Logger
	loggedOn bool
	owner    string
}

func newClient(id uint64, conn clientConn, s *Server) *client {
	return &client{
		id:     id,
		conn:   conn,
		reader: xena.NewLineReader(conn, 0),
		server: s,
		logger: s.logger.With("client", id),
	}
}

func (c *client) serve() {
	defer func() {
		_ = c.conn.Close()
		c.server.removeClient(c.id)
		c.logger.Debug("client disconnected")
	}()

	c.logger.Debug("client connected")
	for {
		line, err := c.reader.ReadLine()
		if err != nil {
			c.logger.Debug("read failed", "method", "serve", "error", err)
			return
		}
		c.server.record(line)

		replies, quit := c.handle(line)
		if len(replies) > 0 {
			if err := c.write(replies); err != nil {
				c.logger.Debug("write failed", "method", "serve", "error", err)
				return
			}
		}

		if quit {
			return
		}
	}
}

// handle returns the reply lines for one command line, and whether the client logged off.
func (c *client) handle(line string) ([]string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}

	switch fields[0] {
	case xena.CmdLogon:
		if quotedArg(line) != c.server.cfg.password {
			return []string{replyNotValid}, false
		}
		c.loggedOn = true

		return []string{xena.ReplyOK}, false

	case xena.CmdOwner:
		if !c.loggedOn {
			return []string{replyNotLoggedOn}, false
		}
		owner := quotedArg(line)
		if owner == "" {
			return []string{replyNotValid}, false
		}
		c.owner = owner

		return []string{xena.ReplyOK}, false

	case xena.CmdLogoff:
		return nil, true

	case xena.CmdSync:
		return []string{xena.SyncMarker}, false
	}

	if len(fields) != 3 || fields[1] != xena.ParamReservation {
		return []string{replyBadCommand}, false
	}
	if !c.loggedOn {
		return []string{replyNotLoggedOn}, false
	}

	return c.reservation(fields[0], fields[2]), false
}

func (c *client) reservation(target string, arg string) []string {
	table := c.server.table

	if target == "*/*" && arg == "?" {
		lines := make([]string, 0, len(table.keys))
		for _, key := range table.keys {
			lock, _ := table.lock(key, c.owner)
			lines = append(lines, reservationLine(key, lock))
		}

		return lines
	}

	key, ok := parsePortKey(target)
	if !ok {
		return []string{replyNotValid}
	}

	if arg == "?" {
		lock, ok := table.lock(key, c.owner)
		if !ok {
			return []string{replyNotValid}
		}

		return []string{reservationLine(key, lock)}
	}

	verb, ok := parseVerb(arg)
	if !ok || c.owner == "" || !table.apply(verb, key, c.owner) {
		return []string{replyNotValid}
	}
	c.logger.Debug("reservation changed", "module", key.module, "port", key.port, "verb", verb)

	return []string{xena.ReplyOK}
}

func (c *client) write(replies []string) error {
	payload := []byte(strings.Join(replies, "\n") + "\n")

	size := c.server.cfg.chunkSize
	if size <= 0 {
		return xena.WriteCommand(c.conn, payload, writeTimeout)
	}

	for len(payload) > 0 {
		n := min(size, len(payload))
		if err := xena.WriteCommand(c.conn, payload[:n], writeTimeout); err != nil {
			return err
		}
		payload = payload[n:]
		if len(payload) > 0 {
			time.Sleep(c.server.cfg.chunkDelay)
		}
	}

	return nil
}

func reservationLine(key portKey, lock xena.Lock) string {
	return strconv.Itoa(int(key.module)) + "/" + strconv.Itoa(int(key.port)) + " " +
		xena.ParamReservation + " " + lock.Token()
}

func parsePortKey(target string) (portKey, bool) {
	m, p, ok := strings.Cut(target, "/")
	if !ok {
		return portKey{}, false
	}

	module, err := strconv.ParseUint(m, 10, 8)
	if err != nil {
		return portKey{}, false
	}
	port, err := strconv.ParseUint(p, 10, 8)
	if err != nil {
		return portKey{}, false
	}

	return portKey{module: uint8(module), port: uint8(port)}, true
}

func parseVerb(arg string) (xena.Verb, bool) {
	for _, v := range []xena.Verb{xena.VerbReserve, xena.VerbRelease, xena.VerbRelinquish} {
		if arg == v.String() {
			return v, true
		}
	}

	return 0, false
}

// quotedArg returns the argument of `CMD "arg"` without its quotes.
func quotedArg(line string) string {
	_, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		return arg[1 : len(arg)-1]
	}

	return arg
}
