package growatt_rs232

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var testDriverConfig = DriverConfig{
	RequestInterval: 10 * time.Second,
	ReceiveTimeout:  50 * time.Second,
}

func newTestDriver(t *testing.T, transport Transport) (*Driver, *fakeClock, map[ChannelId]*recordingSensor) {
	clock := newFakeClock()
	sensors, recorders := recordingSensors()
	d, err := NewDriver(transport, testDriverConfig, sensors, zap.NewNop(), WithClock(clock))
	assert.NoError(t, err)
	return d, clock, recorders
}

func TestNewDriverValidation(t *testing.T) {

	assert := assert.New(t)

	_, err := NewDriver(nil, testDriverConfig, nil, nil)
	assert.Error(err)

	_, err = NewDriver(NewTestTransport(), DriverConfig{ReceiveTimeout: time.Second}, nil, nil)
	assert.ErrorIs(err, ErrInvalidConfig)

	_, err = NewDriver(NewTestTransport(), DriverConfig{RequestInterval: time.Second, ReceiveTimeout: time.Second, ReplyWait: -1}, nil, nil)
	assert.ErrorIs(err, ErrInvalidConfig)
}

func TestInitiatePresent(t *testing.T) {

	assert := assert.New(t)

	transport := NewPresentTestTransport()
	instrument := newCountingInstrument()
	clock := newFakeClock()
	d, err := NewDriver(transport, DriverConfig{
		RequestInterval: 10 * time.Second,
		ReceiveTimeout:  50 * time.Second,
		ReplyWait:       200 * time.Millisecond,
	}, nil, zap.NewNop(), WithClock(clock), WithInstrument(instrument))
	assert.NoError(err)

	start := clock.Now()
	d.assembler.Push(StartMarker)
	d.assembler.Push(0x01)

	assert.True(d.Initiate())
	assert.Equal([][]byte{InitCommand(), StartCommand()}, transport.Writes())
	assert.Equal(0, d.assembler.Len(), "initiate resets partial frames")
	assert.Equal(start.Add(200*time.Millisecond), d.lastRead, "reply wait elapses before the stamp")
	assert.True(d.Status().Present)
	assert.Equal(1, instrument.counts["present"])
	assert.Equal(uint64(1), d.Status().Counters.LinkInitiations)
}

func TestInitiateAbsentLeavesStateUntouched(t *testing.T) {

	assert := assert.New(t)

	transport := NewTestTransport()
	transport.ReplyTo(InitCommand(), []byte{0x01, 0x02, 0x03, 0x04, 0x05})
	d, clock, _ := newTestDriver(t, transport)

	d.assembler.Push(StartMarker)
	d.assembler.Push(0x42)
	lastRead := d.lastRead
	clock.Advance(time.Second)

	assert.False(d.Initiate())
	assert.Equal([][]byte{InitCommand()}, transport.Writes(), "no start command when absent")
	assert.Equal([]byte{StartMarker, 0x42}, d.assembler.Pending())
	assert.Equal(lastRead, d.lastRead)
	assert.False(d.Status().Present)
	assert.Equal(uint64(1), d.Status().Counters.LinkAbsentProbes)
}

func TestInitiateWriteFailure(t *testing.T) {

	assert := assert.New(t)

	transport := NewPresentTestTransport()
	transport.FailWrites(errors.New("port gone"))
	d, _, _ := newTestDriver(t, transport)

	assert.False(d.Initiate())
	assert.Empty(transport.Writes())
}

func TestInitiateStartCommandFailure(t *testing.T) {

	assert := assert.New(t)

	transport := NewPresentTestTransport()
	transport.FailCommand(StartCommand(), errors.New("port gone"))
	d, clock, _ := newTestDriver(t, transport)

	d.assembler.Push(StartMarker)
	d.assembler.Push(0x42)
	lastRead := d.lastRead
	clock.Advance(time.Second)

	assert.False(d.Initiate())
	assert.Equal([][]byte{InitCommand()}, transport.Writes())
	assert.Equal([]byte{StartMarker, 0x42}, d.assembler.Pending())
	assert.Equal(lastRead, d.lastRead)
	assert.False(d.Status().Present)
	assert.Equal(uint64(0), d.Status().Counters.LinkInitiations)
	assert.Equal(uint64(1), d.Status().Counters.LinkAbsentProbes)
}

func TestTickPublishesFrameAndThrottles(t *testing.T) {

	assert := assert.New(t)

	transport := NewTestTransport()
	d, clock, recorders := newTestDriver(t, transport)

	frame := EncodeFrame(
		Reading{Channel: CHANNEL_GRID_VOLTAGE, Value: 230.5},
		Reading{Channel: CHANNEL_TODAY_PRODUCTION, Value: 12.3},
	)
	transport.Feed(0x00, 0x13)
	transport.FeedFrame(frame)
	transport.FeedFrame(frame)

	d.Tick()

	grid := recorders[CHANNEL_GRID_VOLTAGE].values
	assert.Len(grid, 1, "second frame falls inside the publish window")
	assert.InDelta(230.5, grid[0], 1e-9)
	assert.InDelta(12.3, recorders[CHANNEL_TODAY_PRODUCTION].values[0], 1e-9)
	assert.Equal(0, transport.Available())
	assert.Equal(0, d.assembler.Len())

	st := d.Status()
	assert.Equal(uint64(2+2*FrameSize), st.Counters.BytesReceived)
	assert.Equal(uint64(2), st.Counters.BytesDiscarded)
	assert.Equal(uint64(2), st.Counters.FramesCompleted)
	assert.Equal(uint64(1), st.Counters.FramesPublished)
	assert.Equal(uint64(1), st.Counters.FramesThrottled)
	assert.True(st.Receiving)

	clock.Advance(11 * time.Second)
	transport.FeedFrame(frame)
	d.Tick()
	assert.Len(recorders[CHANNEL_GRID_VOLTAGE].values, 2)
	assert.Empty(transport.Writes(), "no reinitialization while bytes flow")
}

func TestTickFrameSplitAcrossTicks(t *testing.T) {

	assert := assert.New(t)

	transport := NewTestTransport()
	d, _, recorders := newTestDriver(t, transport)

	frame := EncodeFrame(Reading{Channel: CHANNEL_PV2_VOLTAGE, Value: 101.1})
	transport.Feed(frame[:10]...)
	d.Tick()
	assert.Equal(10, d.assembler.Len())
	assert.Empty(recorders[CHANNEL_PV2_VOLTAGE].values)

	transport.Feed(frame[10:]...)
	d.Tick()
	assert.Equal(0, d.assembler.Len())
	assert.Len(recorders[CHANNEL_PV2_VOLTAGE].values, 1)
}

func TestTickReceiveTimeoutReinitializesOnce(t *testing.T) {

	assert := assert.New(t)

	transport := NewPresentTestTransport()
	d, clock, _ := newTestDriver(t, transport)

	transport.Feed(StartMarker, 0x01, 0x02)
	d.Tick()
	assert.Equal(3, d.assembler.Len())
	assert.Empty(transport.Writes())

	clock.Advance(50 * time.Second)
	d.Tick()
	assert.Empty(transport.Writes(), "timeout is strictly greater than the limit")

	clock.Advance(time.Millisecond)
	d.Tick()
	assert.Equal([][]byte{InitCommand(), StartCommand()}, transport.Writes())
	assert.Equal(0, d.assembler.Len())
	assert.Equal(uint64(1), d.Status().Counters.ReceiveTimeouts)

	// the init reply is noise on the next drain and keeps the link alive
	transport.ResetWrites()
	d.Tick()
	assert.Empty(transport.Writes())
	assert.True(d.Status().Receiving)
}

func TestTickAbsentInverterIsProbedEveryTick(t *testing.T) {

	assert := assert.New(t)

	transport := NewTestTransport()
	d, clock, _ := newTestDriver(t, transport)

	clock.Advance(51 * time.Second)
	d.Tick()
	d.Tick()
	d.Tick()
	assert.Len(transport.Writes(), 3)
	for _, w := range transport.Writes() {
		assert.Equal(InitCommand(), w)
	}
	assert.False(d.Status().Present)
	assert.False(d.Receiving())
}

func TestDrainContinuesAfterReadFailure(t *testing.T) {

	assert := assert.New(t)

	transport := NewTestTransport()
	instrument := newCountingInstrument()
	clock := newFakeClock()
	sensors, recorders := recordingSensors()
	d, err := NewDriver(transport, testDriverConfig, sensors, zap.NewNop(), WithClock(clock), WithInstrument(instrument))
	assert.NoError(err)

	frame := EncodeFrame(Reading{Channel: CHANNEL_GRID_FREQUENCY, Value: 50.01})
	transport.Feed(0xAA, 0xBB)
	transport.FeedFrame(frame)
	transport.FailNextReads(2)

	d.DrainAvailableBytes()

	assert.Equal(2, instrument.counts["read_failed"])
	assert.Equal(FrameSize, instrument.counts["received"])
	assert.Equal(1, instrument.counts["published"])
	assert.InDelta(50.01, recorders[CHANNEL_GRID_FREQUENCY].values[0], 1e-9)
	assert.Equal(uint64(2), d.Status().Counters.ReadErrors)
}

func TestDrainGivesUpAfterConsecutiveFailures(t *testing.T) {

	assert := assert.New(t)

	transport := NewTestTransport()
	d, _, _ := newTestDriver(t, transport)

	noise := make([]byte, maxConsecutiveReadFailures+10)
	transport.Feed(noise...)
	transport.FailNextReads(len(noise))

	d.DrainAvailableBytes()
	assert.Equal(10, transport.Available())
	assert.Equal(uint64(maxConsecutiveReadFailures), d.Status().Counters.ReadErrors)
}
