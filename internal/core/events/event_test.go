package events

import (
	"testing"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
)

func TestEventStreamSensors(t *testing.T) {

	assert := assert.New(t)

	es := &eventstream.EventStream{}
	var received []domain.FloatSensorUpdateEvent
	es.Subscribe(func(evt any) {
		if e, ok := evt.(domain.FloatSensorUpdateEvent); ok {
			received = append(received, e)
		}
	})

	sensors := EventStreamSensors(es, []growatt_rs232.ChannelId{growatt_rs232.CHANNEL_GRID_FREQUENCY})
	assert.Len(sensors, 1)

	sensors[growatt_rs232.CHANNEL_GRID_FREQUENCY].Publish(50.02)

	assert.Len(received, 1)
	assert.Equal("grid_frequency", received[0].Id)
	assert.Equal(50.02, received[0].Value)
	assert.Equal(uint(2), received[0].Decimals)
}

func TestReadingsToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	frame := growatt_rs232.EncodeFrame(growatt_rs232.Reading{Channel: growatt_rs232.CHANNEL_PV1_VOLTAGE, Value: 300})
	evs := ReadingsToUpdateEvents(growatt_rs232.Decode(&frame), []growatt_rs232.ChannelId{growatt_rs232.CHANNEL_PV1_VOLTAGE})

	assert.Len(evs, 1)
	ev, ok := evs[0].(domain.FloatSensorUpdateEvent)
	assert.True(ok)
	assert.InDelta(300.0, ev.Value, 1e-9)
}

func TestInverterOnlineUpdateEvent(t *testing.T) {

	assert := assert.New(t)

	ev := InverterOnlineUpdateEvent(true)
	assert.Equal(domain.SENSOR_ID_INVERTER_ONLINE, ev.SensorId())
	assert.True(ev.Value)
}
