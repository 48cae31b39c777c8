package growatt_rs232

import (
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type recordingSensor struct {
	values []float64
}

func (s *recordingSensor) Publish(value float64) {
	s.values = append(s.values, value)
}

func recordingSensors() (SensorMap, map[ChannelId]*recordingSensor) {
	sensors := SensorMap{}
	recorders := map[ChannelId]*recordingSensor{}
	for _, id := range ChannelIds() {
		r := &recordingSensor{}
		sensors[id] = r
		recorders[id] = r
	}
	return sensors, recorders
}

type countingInstrument struct {
	counts map[string]int
}

func newCountingInstrument() *countingInstrument {
	return &countingInstrument{counts: map[string]int{}}
}

func (i *countingInstrument) ByteReceived() { i.counts["received"]++ }
func (i *countingInstrument) ByteDiscarded() { i.counts["discarded"]++ }
func (i *countingInstrument) ReadFailed() { i.counts["read_failed"]++ }
func (i *countingInstrument) FrameCompleted() { i.counts["completed"]++ }
func (i *countingInstrument) FramePublished() { i.counts["published"]++ }
func (i *countingInstrument) FrameThrottled() { i.counts["throttled"]++ }
func (i *countingInstrument) LinkInitiated(present bool) {
	if present {
		i.counts["present"]++
	} else {
		i.counts["absent"]++
	}
}
