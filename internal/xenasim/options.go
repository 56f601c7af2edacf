package xenasim

import (
	"time"

	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

type config struct {
	password   string
	modules    int
	ports      int
	reserved   map[portKey]string
	chunkSize  int
	chunkDelay time.Duration
	logger     logger.Logger
}

func defaultConfig() *config {
	return &config{
		password:   xena.DefaultPassword,
		modules:    2,
		ports:      4,
		reserved:   make(map[portKey]string),
		chunkDelay: time.Millisecond,
		logger:     logger.GetLogger(),
	}
}

// Option configures a Server.
type Option func(*config)

// WithPassword sets the password accepted by C_LOGON. Defaults to "xena".
func WithPassword(password string) Option {
	return func(c *config) { c.password = password }
}

// WithLayout sets the number of modules and ports per module. Defaults to 2 modules of 4 ports.
func WithLayout(modules, ports int) Option {
	return func(c *config) {
		c.modules = min(max(modules, 0), 256)
		c.ports = min(max(ports, 0), 256)
	}
}

// WithReservation pre-reserves module/port for owner.
func WithReservation(module, port uint8, owner string) Option {
	return func(c *config) { c.reserved[portKey{module: module, port: port}] = owner }
}

// WithChunkedWrites splits every reply into writes of at most size bytes, pausing
// between them, so clients receive lines split across reads.
func WithChunkedWrites(size int, delay time.Duration) Option {
	return func(c *config) {
		c.chunkSize = size
		c.chunkDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}
