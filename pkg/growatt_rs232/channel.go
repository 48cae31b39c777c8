package growatt_rs232

import (
	"encoding/binary"
	"fmt"
	"math"
)

type ChannelId string

type Unit float64

const (
	UnitOne       Unit = 1
	UnitTenth     Unit = 0.1
	UnitHundredth Unit = 0.01
)

const (
	CHANNEL_PV1_VOLTAGE                 ChannelId = "pv1_voltage"
	CHANNEL_PV2_VOLTAGE                 ChannelId = "pv2_voltage"
	CHANNEL_GRID_VOLTAGE                ChannelId = "grid_voltage"
	CHANNEL_GRID_FREQUENCY              ChannelId = "grid_frequency"
	CHANNEL_PV_ACTIVE_POWER             ChannelId = "pv_active_power"
	CHANNEL_INVERTER_MODULE_TEMPERATURE ChannelId = "inverter_module_temperature"
	CHANNEL_INVERTER_STATUS             ChannelId = "inverter_status"
	CHANNEL_INVERTER_FAULT_CODE         ChannelId = "inverter_fault_code"
	CHANNEL_TODAY_PRODUCTION            ChannelId = "today_production"
	CHANNEL_TOTAL_ENERGY_PRODUCTION     ChannelId = "total_energy_production"
	CHANNEL_TOTAL_GENERATION_TIME       ChannelId = "total_generation_time"
)

// ChannelBinding locates one measurement inside a data-frame.
type ChannelBinding struct {
	Id       ChannelId
	Offset   int
	Width    int
	Unit     Unit
	Decimals uint
}

var bindings = []ChannelBinding{
	{Id: CHANNEL_PV1_VOLTAGE, Offset: 1, Width: 2, Unit: UnitTenth, Decimals: 1},
	{Id: CHANNEL_PV2_VOLTAGE, Offset: 5, Width: 2, Unit: UnitTenth, Decimals: 1},
	{Id: CHANNEL_GRID_VOLTAGE, Offset: 7, Width: 2, Unit: UnitTenth, Decimals: 1},
	{Id: CHANNEL_GRID_FREQUENCY, Offset: 9, Width: 2, Unit: UnitHundredth, Decimals: 2},
	{Id: CHANNEL_PV_ACTIVE_POWER, Offset: 11, Width: 2, Unit: UnitTenth, Decimals: 1},
	{Id: CHANNEL_INVERTER_MODULE_TEMPERATURE, Offset: 13, Width: 2, Unit: UnitTenth, Decimals: 1},
	{Id: CHANNEL_INVERTER_STATUS, Offset: 15, Width: 1, Unit: UnitOne, Decimals: 0},
	{Id: CHANNEL_INVERTER_FAULT_CODE, Offset: 16, Width: 1, Unit: UnitOne, Decimals: 0},
	{Id: CHANNEL_TODAY_PRODUCTION, Offset: 21, Width: 2, Unit: UnitTenth, Decimals: 1},
	{Id: CHANNEL_TOTAL_ENERGY_PRODUCTION, Offset: 23, Width: 4, Unit: UnitTenth, Decimals: 1},
	{Id: CHANNEL_TOTAL_GENERATION_TIME, Offset: 27, Width: 4, Unit: UnitOne, Decimals: 0},
}

// Bindings returns the data-frame layout, in frame order.
func Bindings() []ChannelBinding {
	out := make([]ChannelBinding, len(bindings))
	copy(out, bindings)
	return out
}

func ChannelIds() []ChannelId {
	ids := make([]ChannelId, len(bindings))
	for i := range bindings {
		ids[i] = bindings[i].Id
	}
	return ids
}

func BindingFor(id ChannelId) (ChannelBinding, bool) {
	for _, b := range bindings {
		if b.Id == id {
			return b, true
		}
	}
	return ChannelBinding{}, false
}

func ParseChannelId(name string) (ChannelId, error) {
	if _, ok := BindingFor(ChannelId(name)); !ok {
		return "", fmt.Errorf("unknown channel %q", name)
	}
	return ChannelId(name), nil
}

func DecodeUint8(frame *Frame, offset int) uint32 {
	return uint32(frame[offset])
}

func DecodeUint16BE(frame *Frame, offset int) uint32 {
	return uint32(binary.BigEndian.Uint16(frame[offset:]))
}

func DecodeUint32BE(frame *Frame, offset int) uint32 {
	return binary.BigEndian.Uint32(frame[offset:])
}

// Raw returns the unscaled integer stored at the binding position.
func (b ChannelBinding) Raw(frame *Frame) uint32 {
	switch b.Width {
	case 1:
		return DecodeUint8(frame, b.Offset)
	case 2:
		return DecodeUint16BE(frame, b.Offset)
	case 4:
		return DecodeUint32BE(frame, b.Offset)
	}
	panic(fmt.Sprintf("growatt_rs232: unsupported field width %d", b.Width))
}

func (b ChannelBinding) Value(frame *Frame) float64 {
	raw := b.Raw(frame)
	if b.Width == 1 {
		return float64(raw)
	}
	return float64(raw) * float64(b.Unit)
}

// RawFromValue reverses the unit scaling, rounding to the nearest integer.
func (b ChannelBinding) RawFromValue(value float64) uint32 {
	unit := float64(b.Unit)
	if b.Width == 1 || unit == 0 {
		unit = 1
	}
	scaled := math.Round(value / unit)
	if scaled < 0 {
		return 0
	}
	if scaled > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(scaled)
}

// Sensor receives decoded values of one channel.
type Sensor interface {
	Publish(value float64)
}

type SensorFunc func(value float64)

func (f SensorFunc) Publish(value float64) {
	if f != nil {
		f(value)
	}
}

// SensorMap binds channels to sinks. Missing or nil entries, typed nils included, are not
// published.
type SensorMap map[ChannelId]Sensor

func (m SensorMap) sensor(id ChannelId) Sensor {
	if m == nil {
		return nil
	}
	return m[id]
}

type Reading struct {
	Channel ChannelId `json:"channel"`
	Value   float64   `json:"value"`
}
