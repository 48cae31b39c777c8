package growatt_rs232

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrInvalidConfig = errors.New("growatt_rs232: invalid driver config")

// Consecutive read failures tolerated inside one drain before giving up until the next tick.
const maxConsecutiveReadFailures = 64

type DriverConfig struct {
	// Minimum time between two published data-frames.
	RequestInterval time.Duration
	// Silence on the line for longer than this restarts the init sequence.
	ReceiveTimeout time.Duration
	// Time given to the inverter to answer InitCommand before counting reply bytes.
	ReplyWait time.Duration
}

func (c DriverConfig) Validate() error {
	if c.RequestInterval <= 0 {
		return fmt.Errorf("%w: request interval must be > 0", ErrInvalidConfig)
	}
	if c.ReceiveTimeout <= 0 {
		return fmt.Errorf("%w: receive timeout must be > 0", ErrInvalidConfig)
	}
	if c.ReplyWait < 0 {
		return fmt.Errorf("%w: reply wait must be >= 0", ErrInvalidConfig)
	}
	return nil
}

type DriverOption func(*Driver)

func WithClock(clock Clock) DriverOption {
	return func(d *Driver) {
		d.clock = clock
	}
}

func WithInstrument(instrument Instrument) DriverOption {
	return func(d *Driver) {
		d.instrument = instrument
	}
}

// Driver polls a Growatt inverter over its RS232 port. It is not safe for concurrent use;
// every method is expected to run on the same goroutine (the scheduler tick).
type Driver struct {
	transport  Transport
	config     DriverConfig
	assembler  FrameAssembler
	decoder    *FrameDecoder
	clock      Clock
	instrument Instrument
	logger     *zap.Logger
	readErrLog rate.Sometimes

	lastRead time.Time
	present  bool
	counters Counters
}

type Counters struct {
	BytesReceived    uint64 `json:"bytes_received"`
	BytesDiscarded   uint64 `json:"bytes_discarded"`
	ReadErrors       uint64 `json:"read_errors"`
	FramesCompleted  uint64 `json:"frames_completed"`
	FramesPublished  uint64 `json:"frames_published"`
	FramesThrottled  uint64 `json:"frames_throttled"`
	LinkInitiations  uint64 `json:"link_initiations"`
	ReceiveTimeouts  uint64 `json:"receive_timeouts"`
	LinkAbsentProbes uint64 `json:"link_absent_probes"`
}

type Status struct {
	Present       bool      `json:"present"`
	Receiving     bool      `json:"receiving"`
	LastByteAt    time.Time `json:"last_byte_at"`
	LastPublishAt time.Time `json:"last_publish_at"`
	PendingBytes  int       `json:"pending_bytes"`
	Counters      Counters  `json:"counters"`
}

func NewDriver(transport Transport, config DriverConfig, sensors SensorMap, logger *zap.Logger, opts ...DriverOption) (*Driver, error) {
	if transport == nil {
		return nil, errors.New("growatt_rs232: nil transport")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		transport:  transport,
		config:     config,
		clock:      SystemClock(),
		instrument: noopInstrument{},
		logger:     logger,
		readErrLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.decoder = NewFrameDecoder(sensors, config.RequestInterval, d.clock, logger)
	d.lastRead = d.clock.Now()
	return d, nil
}

// Initiate wakes the inverter and requests the data-frame stream. It returns false when
// the inverter did not answer the init command (serial side unpowered) or the stream
// request could not be written.
func (d *Driver) Initiate() bool {
	d.logger.Debug("request to init controller")
	if err := d.transport.Write(InitCommand()); err != nil {
		d.logger.Error("unable to write init command", zap.Error(err))
		d.linkInitiated(false)
		return false
	}
	if d.config.ReplyWait > 0 {
		d.clock.Sleep(d.config.ReplyWait)
	}

	available := d.transport.Available()
	d.logger.Debug("init command returned bytes", zap.Int("available", available))
	if available < MinInitReplyBytes {
		d.linkInitiated(false)
		return false
	}

	if err := d.transport.Write(StartCommand()); err != nil {
		// the inverter answered but no stream was requested, retried on the next timeout
		d.logger.Error("unable to write start command", zap.Error(err))
		d.linkInitiated(false)
		return false
	}

	d.lastRead = d.clock.Now()
	d.assembler.Reset()
	d.linkInitiated(true)
	return true
}

func (d *Driver) linkInitiated(present bool) {
	d.present = present
	if present {
		d.counters.LinkInitiations++
	} else {
		d.counters.LinkAbsentProbes++
	}
	d.instrument.LinkInitiated(present)
}

// DrainAvailableBytes consumes every byte the transport has buffered, including bytes
// that arrive while draining.
func (d *Driver) DrainAvailableBytes() {
	failures := 0
	for d.transport.Available() > 0 {
		b, err := d.transport.ReadByte()
		if err != nil {
			d.counters.ReadErrors++
			d.instrument.ReadFailed()
			d.readErrLog.Do(func() {
				d.logger.Error("unable to read available serial bytes from bus", zap.Error(err))
			})
			failures++
			if failures >= maxConsecutiveReadFailures {
				d.logger.Warn("giving up drain after consecutive read failures", zap.Int("failures", failures))
				return
			}
			continue
		}
		failures = 0

		// any byte refreshes the keep-alive timer, not only frame-aligned ones
		d.lastRead = d.clock.Now()
		d.present = true
		d.counters.BytesReceived++
		d.instrument.ByteReceived()

		if !d.assembler.Accepts(b) {
			d.counters.BytesDiscarded++
			d.instrument.ByteDiscarded()
		}
		frame, complete := d.assembler.Push(b)
		if !complete {
			continue
		}
		d.counters.FramesCompleted++
		d.instrument.FrameCompleted()
		if d.decoder.DecodeAndPublish(frame) {
			d.counters.FramesPublished++
			d.instrument.FramePublished()
		} else {
			d.counters.FramesThrottled++
			d.instrument.FrameThrottled()
		}
	}
}

func (d *Driver) receiveTimeoutReached() bool {
	return d.clock.Now().Sub(d.lastRead) > d.config.ReceiveTimeout
}

// Tick is the periodic entry point: drain the line, then restart the link when the
// inverter has been silent for longer than the receive timeout.
func (d *Driver) Tick() {
	d.DrainAvailableBytes()

	if d.receiveTimeoutReached() {
		d.counters.ReceiveTimeouts++
		d.logger.Warn("timeout: growatt not responding (powered down after sunset perhaps?)",
			zap.Duration("silence", d.clock.Now().Sub(d.lastRead)))
		d.Initiate()
	}
}

// Receiving reports whether a byte was seen within the receive timeout.
func (d *Driver) Receiving() bool {
	return d.present && !d.receiveTimeoutReached()
}

func (d *Driver) Status() Status {
	return Status{
		Present:       d.present,
		Receiving:     d.Receiving(),
		LastByteAt:    d.lastRead,
		LastPublishAt: d.decoder.LastPublish(),
		PendingBytes:  d.assembler.Len(),
		Counters:      d.counters,
	}
}

func (d *Driver) Config() DriverConfig {
	return d.config
}
