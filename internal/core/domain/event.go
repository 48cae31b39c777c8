package domain

import (
	"fmt"
	"strconv"

	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"
)

// SensorUpdateEvent is what travels on the event stream: inverter channel readings,
// the inverter online flag and the bridge state.
type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

type SensorUpdateEventMixIn struct {
	Id string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

// Binding resolves the inverter channel the reading belongs to.
func (e FloatSensorUpdateEvent) Binding() (growatt_rs232.ChannelBinding, bool) {
	return growatt_rs232.BindingFor(growatt_rs232.ChannelId(e.Id))
}

// Payload renders the value with the channel precision.
func (e FloatSensorUpdateEvent) Payload() string {
	return strconv.FormatFloat(e.Value, 'f', int(e.Decimals), 64)
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

func (e BinarySensorUpdateEvent) IsInverterOnline() bool {
	return e.Id == SENSOR_ID_INVERTER_ONLINE
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
