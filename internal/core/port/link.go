package port

import (
	"io"

	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"
)

// LinkTransport is a driver transport the inverter actor can release on stop.
type LinkTransport interface {
	growatt_rs232.Transport
	io.Closer
}

// LinkHealth is implemented by transports whose underlying connection can fail for good
// (serial device unplugged, TCP peer gone).
type LinkHealth interface {
	Err() error
}

type TransportProvider func() (LinkTransport, error)
