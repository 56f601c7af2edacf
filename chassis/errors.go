package chassis

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrInvalidTransition indicates an invalid connection state transition.
	ErrInvalidTransition = errors.New("invalid connection state transition")

	// ErrQueueFull indicates that the command queue stayed full for the whole enqueue timeout.
	ErrQueueFull = errors.New("command queue full")

	// ErrCloseTimeout indicates that the actor did not exit within the close timeout.
	ErrCloseTimeout = errors.New("timeout waiting for connection actor to exit")
)
