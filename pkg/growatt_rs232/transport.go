package growatt_rs232

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNoData          = errors.New("growatt_rs232: no data available")
	ErrTransportClosed = errors.New("growatt_rs232: transport closed")
)

// Transport is the byte link to the inverter. None of the methods may block on the line.
type Transport interface {
	Available() int
	ReadByte() (byte, error)
	Write(p []byte) error
}

const (
	defaultInboundLimit = 4096
	pumpReadSize        = 256
	closeWait           = 2 * time.Second
)

// StreamTransport adapts a blocking io.ReadWriteCloser (serial port, TCP socket) to
// Transport. A pump goroutine buffers inbound bytes so Available is an immediate count.
type StreamTransport struct {
	conn   io.ReadWriteCloser
	logger *zap.Logger

	mu      sync.Mutex
	inbound []byte
	limit   int
	dropped uint64
	err     error

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func NewStreamTransport(conn io.ReadWriteCloser, logger *zap.Logger) *StreamTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &StreamTransport{
		conn:    conn,
		logger:  logger,
		inbound: make([]byte, 0, pumpReadSize),
		limit:   defaultInboundLimit,
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.pump()
	return t
}

func (t *StreamTransport) pump() {
	defer close(t.done)
	buf := make([]byte, pumpReadSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.mu.Lock()
			t.inbound = append(t.inbound, buf[:n]...)
			if over := len(t.inbound) - t.limit; over > 0 {
				t.inbound = t.inbound[over:]
				t.dropped += uint64(over)
			}
			t.mu.Unlock()
		}
		select {
		case <-t.closed:
			return
		default:
		}
		if err != nil {
			t.logger.Error("transport read loop stopped", zap.Error(err))
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			return
		}
	}
}

func (t *StreamTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inbound)
}

func (t *StreamTransport) ReadByte() (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbound) == 0 {
		if t.err != nil {
			return 0, t.err
		}
		return 0, ErrNoData
	}
	b := t.inbound[0]
	t.inbound = t.inbound[1:]
	return b, nil
}

func (t *StreamTransport) Write(p []byte) error {
	select {
	case <-t.closed:
		return ErrTransportClosed
	default:
	}
	if _, err := t.conn.Write(p); err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	return nil
}

// Err returns the error that stopped the read pump, if any.
func (t *StreamTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Dropped is the number of inbound bytes discarded because nobody drained them in time.
func (t *StreamTransport) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *StreamTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
		select {
		case <-t.done:
		case <-time.After(closeWait):
			t.logger.Warn("transport read loop did not stop in time")
		}
	})
	return err
}
