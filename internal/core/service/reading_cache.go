package service

import (
	"sync"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/asynkron/protoactor-go/eventstream"
)

type CachedReading struct {
	Channel   growatt_rs232.ChannelId `json:"channel"`
	Value     float64                 `json:"value"`
	Decimals  uint                    `json:"decimals"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// ReadingCache keeps the last value of every channel seen on the event stream.
type ReadingCache struct {
	mu         sync.RWMutex
	readings   map[growatt_rs232.ChannelId]CachedReading
	online     bool
	lastUpdate time.Time
	now        func() time.Time
}

func NewReadingCache() *ReadingCache {
	return &ReadingCache{
		readings: map[growatt_rs232.ChannelId]CachedReading{},
		now:      time.Now,
	}
}

func (c *ReadingCache) Subscribe(eventStream *eventstream.EventStream) *eventstream.Subscription {
	return eventStream.Subscribe(c.Handle)
}

func (c *ReadingCache) Handle(evt any) {
	switch msg := evt.(type) {
	case domain.FloatSensorUpdateEvent:
		binding, ok := msg.Binding()
		if !ok {
			return
		}
		now := c.now()
		c.mu.Lock()
		c.readings[binding.Id] = CachedReading{
			Channel:   binding.Id,
			Value:     msg.Value,
			Decimals:  msg.Decimals,
			UpdatedAt: now,
		}
		c.lastUpdate = now
		c.mu.Unlock()
	case domain.BinarySensorUpdateEvent:
		if !msg.IsInverterOnline() {
			return
		}
		c.mu.Lock()
		c.online = msg.Value
		c.mu.Unlock()
	}
}

func (c *ReadingCache) Get(channel growatt_rs232.ChannelId) (CachedReading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.readings[channel]
	return r, ok
}

// Snapshot returns the cached readings in frame order.
func (c *ReadingCache) Snapshot() []CachedReading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CachedReading, 0, len(c.readings))
	for _, id := range growatt_rs232.ChannelIds() {
		if r, ok := c.readings[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (c *ReadingCache) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// Age is the time since the last published frame, or false when nothing was published yet.
func (c *ReadingCache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastUpdate.IsZero() {
		return 0, false
	}
	return c.now().Sub(c.lastUpdate), true
}
