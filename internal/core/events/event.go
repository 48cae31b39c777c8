package events

import (
	. "github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/asynkron/protoactor-go/eventstream"
)

func ReadingUpdateEvent(channel growatt_rs232.ChannelId, value float64) FloatSensorUpdateEvent {
	var decimals uint
	if binding, ok := growatt_rs232.BindingFor(channel); ok {
		decimals = binding.Decimals
	}
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: string(channel),
		},
		Value:    value,
		Decimals: decimals,
	}
}

func InverterOnlineUpdateEvent(online bool) BinarySensorUpdateEvent {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_ONLINE,
		},
		Value: online,
	}
}

// ReadingsToUpdateEvents maps a decoded frame to sensor events, keeping only enabled channels.
func ReadingsToUpdateEvents(readings []growatt_rs232.Reading, channels []growatt_rs232.ChannelId) []any {
	enabled := make(map[growatt_rs232.ChannelId]bool, len(channels))
	for _, id := range channels {
		enabled[id] = true
	}
	var events []any
	for _, r := range readings {
		if enabled[r.Channel] {
			events = append(events, ReadingUpdateEvent(r.Channel, r.Value))
		}
	}
	return events
}

// EventStreamSensors binds every enabled channel to the event stream, so driver publishes
// become FloatSensorUpdateEvent messages.
func EventStreamSensors(eventStream *eventstream.EventStream, channels []growatt_rs232.ChannelId) growatt_rs232.SensorMap {
	sensors := make(growatt_rs232.SensorMap, len(channels))
	for _, id := range channels {
		channel := id
		sensors[channel] = growatt_rs232.SensorFunc(func(value float64) {
			eventStream.Publish(ReadingUpdateEvent(channel, value))
		})
	}
	return sensors
}
