package growatt_rs232

import (
	"fmt"
	"net"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	DefaultBaudRate = 9600

	// bounds how long the pump stays blocked in Read after Close
	serialReadTimeout = 100 * time.Millisecond
)

// OpenSerialTransport opens the inverter RS232 port (8N1).
func OpenSerialTransport(device string, baudRate int, logger *zap.Logger) (*StreamTransport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}
	// drop whatever the inverter sent before we were listening
	if err := port.ResetInputBuffer(); err != nil {
		logger.Warn("could not reset serial input buffer", zap.Error(err))
	}
	return NewStreamTransport(port, logger.With(zap.String("device", device))), nil
}

// OpenTCPTransport connects to a serial-to-TCP adapter (ser2net and similar) wired to
// the inverter RS232 port.
func OpenTCPTransport(address string, timeout time.Duration, logger *zap.Logger) (*StreamTransport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewStreamTransport(conn, logger.With(zap.String("address", address))), nil
}
