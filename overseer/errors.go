package overseer

import (
	"errors"
	"fmt"
)

// ErrNotConnected indicates that no connection to the address is kept.
var ErrNotConnected = errors.New("chassis not connected")

func errNotConnected(address string) error {
	return fmt.Errorf("%w: %s", ErrNotConnected, address)
}
