package comms

import (
	"errors"
	"time"
)

// DefaultMessageDelay is the shortest gap between two frames the base
// station radio can keep up with.
const DefaultMessageDelay = 15 * time.Millisecond

// ErrRadioClosed is returned by Send and Read once the radio is closed.
var ErrRadioClosed = errors.New("comms: radio closed")

// Radio moves whole frames to and from the robots. Send and Read may be
// called from different goroutines; Close unblocks a pending Read.
type Radio interface {
	Send(frame []byte) error
	Read() ([]byte, error)
	// MessageDelay is the minimum time between two sends.
	MessageDelay() time.Duration
	Close() error
}
