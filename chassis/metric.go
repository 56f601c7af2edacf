package chassis

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// CommandCount indicates the number of commands processed by the actor.
	CommandCount atomic.Uint64
	// CommandErrCount indicates the number of commands that completed with an error.
	CommandErrCount atomic.Uint64

	// LinesRecvCount indicates the number of response lines received.
	LinesRecvCount atomic.Uint64
	// BytesSentCount indicates the number of command bytes written to the socket.
	BytesSentCount atomic.Uint64

	// QueueDepth indicates the number of commands waiting for the actor.
	QueueDepth atomic.Int64
}

func (m *ConnectionMetrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *ConnectionMetrics) incCommandErrCount() {
	m.CommandErrCount.Add(1)
}

func (m *ConnectionMetrics) incLinesRecvCount() {
	m.LinesRecvCount.Add(1)
}

func (m *ConnectionMetrics) addBytesSentCount(n int) {
	m.BytesSentCount.Add(uint64(n)) //nolint:gosec // n is a payload length
}

func (m *ConnectionMetrics) incQueueDepth() {
	m.QueueDepth.Add(1)
}

func (m *ConnectionMetrics) decQueueDepth() {
	m.QueueDepth.Add(-1)
}
