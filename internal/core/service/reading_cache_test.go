package service

import (
	"testing"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/internal/core/events"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
)

func TestReadingCacheFromEventStream(t *testing.T) {

	assert := assert.New(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := NewReadingCache()
	cache.now = func() time.Time { return now }

	es := &eventstream.EventStream{}
	sub := cache.Subscribe(es)
	defer es.Unsubscribe(sub)

	_, ok := cache.Age()
	assert.False(ok)

	es.Publish(events.ReadingUpdateEvent(growatt_rs232.CHANNEL_TOTAL_ENERGY_PRODUCTION, 25.6))
	es.Publish(events.ReadingUpdateEvent(growatt_rs232.CHANNEL_PV1_VOLTAGE, 310.2))
	es.Publish(events.InverterOnlineUpdateEvent(true))
	// not a channel
	es.Publish(domain.FloatSensorUpdateEvent{SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: "house_power"}, Value: 1})

	snapshot := cache.Snapshot()
	assert.Len(snapshot, 2)
	assert.Equal(growatt_rs232.CHANNEL_PV1_VOLTAGE, snapshot[0].Channel, "frame order")
	assert.Equal(growatt_rs232.CHANNEL_TOTAL_ENERGY_PRODUCTION, snapshot[1].Channel)
	assert.True(cache.Online())

	r, ok := cache.Get(growatt_rs232.CHANNEL_TOTAL_ENERGY_PRODUCTION)
	assert.True(ok)
	assert.Equal(25.6, r.Value)
	assert.Equal(uint(1), r.Decimals)

	now = now.Add(3 * time.Second)
	age, ok := cache.Age()
	assert.True(ok)
	assert.Equal(3*time.Second, age)

	es.Publish(events.InverterOnlineUpdateEvent(false))
	assert.False(cache.Online())
}
