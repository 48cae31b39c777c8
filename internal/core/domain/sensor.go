package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE     = "bridge"
	SENSOR_ID_INVERTER_ONLINE  = "inverter_online"
	BUTTON_ID_REINITIALIZE     = "reinitialize_link"
	STATE_CLASS_MEASUREMENT    = "measurement"
	STATE_CLASS_TOTAL_INCREASE = "total_increasing"
	DEVICE_CLASS_CONNECTIVITY  = "connectivity"
	DEVICE_CLASS_DURATION      = "duration"
	DEVICE_CLASS_ENERGY        = "energy"
	DEVICE_CLASS_FREQUENCY     = "frequency"
	DEVICE_CLASS_POWER         = "power"
	DEVICE_CLASS_RESTART       = "restart"
	DEVICE_CLASS_TEMPERATURE   = "temperature"
	DEVICE_CLASS_VOLTAGE       = "voltage"
	ENTITY_CLASS_DIAGNOSTIC    = "diagnostic"
	ENTITY_CLASS_CONFIG        = "config"
	SENSOR_TYPE_SENSOR         = "sensor"
	SENSOR_TYPE_BINARY         = "binary_sensor"
	SENSOR_TYPE_BUTTON         = "button"
)

type channelSensor struct {
	name        string
	unit        string
	deviceClass string
	stateClass  string
	icon        string
	diagnostic  bool
}

var channelSensors = map[growatt_rs232.ChannelId]channelSensor{
	growatt_rs232.CHANNEL_PV1_VOLTAGE: {
		name: "PV1 voltage", unit: "V", deviceClass: DEVICE_CLASS_VOLTAGE, stateClass: STATE_CLASS_MEASUREMENT,
	},
	growatt_rs232.CHANNEL_PV2_VOLTAGE: {
		name: "PV2 voltage", unit: "V", deviceClass: DEVICE_CLASS_VOLTAGE, stateClass: STATE_CLASS_MEASUREMENT,
	},
	growatt_rs232.CHANNEL_GRID_VOLTAGE: {
		name: "Grid voltage", unit: "V", deviceClass: DEVICE_CLASS_VOLTAGE, stateClass: STATE_CLASS_MEASUREMENT,
	},
	growatt_rs232.CHANNEL_GRID_FREQUENCY: {
		name: "Grid frequency", unit: "Hz", deviceClass: DEVICE_CLASS_FREQUENCY, stateClass: STATE_CLASS_MEASUREMENT,
		icon: "mdi:current-ac",
	},
	growatt_rs232.CHANNEL_PV_ACTIVE_POWER: {
		name: "PV active power", unit: "W", deviceClass: DEVICE_CLASS_POWER, stateClass: STATE_CLASS_MEASUREMENT,
	},
	growatt_rs232.CHANNEL_INVERTER_MODULE_TEMPERATURE: {
		name: "Inverter module temperature", unit: "°C", deviceClass: DEVICE_CLASS_TEMPERATURE, stateClass: STATE_CLASS_MEASUREMENT,
	},
	growatt_rs232.CHANNEL_INVERTER_STATUS: {
		name: "Inverter status", icon: "mdi:information-outline", diagnostic: true,
	},
	growatt_rs232.CHANNEL_INVERTER_FAULT_CODE: {
		name: "Inverter fault code", icon: "mdi:alert-circle-outline", diagnostic: true,
	},
	growatt_rs232.CHANNEL_TODAY_PRODUCTION: {
		name: "Energy production today", unit: "kWh", deviceClass: DEVICE_CLASS_ENERGY, stateClass: STATE_CLASS_TOTAL_INCREASE,
	},
	growatt_rs232.CHANNEL_TOTAL_ENERGY_PRODUCTION: {
		name: "Total energy production", unit: "kWh", deviceClass: DEVICE_CLASS_ENERGY, stateClass: STATE_CLASS_TOTAL_INCREASE,
	},
	growatt_rs232.CHANNEL_TOTAL_GENERATION_TIME: {
		name: "Total generation time", unit: "s", deviceClass: DEVICE_CLASS_DURATION, stateClass: STATE_CLASS_TOTAL_INCREASE,
		icon: "mdi:timer-outline",
	},
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("growatt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "growatt2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Growatt bridge %s", md5HashShort(baseTopic)),
	}
}

// InverterDevice identifies the inverter. The RS232 protocol never reports a serial number, so
// the configured one (or the bridge topic) seeds the id.
func InverterDevice(serial, baseTopic string) Device {
	seed := serial
	if seed == "" {
		seed = baseTopic
	}
	return Device{
		Id:           fmt.Sprintf("growatt_inverter_%s", md5HashShort(seed)),
		Manufacturer: "Growatt",
		Model:        "RS232 inverter",
		Name:         fmt.Sprintf("Growatt inverter %s", md5HashShort(seed)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	var sensors []GenericSensor
	sensors = append(sensors, GenericSensor{
		Device:           bridgeDevice,
		Id:               SENSOR_ID_BRIDGE_STATE,
		SensorType:       SENSOR_TYPE_BINARY,
		Name:             "Bridge state",
		DeviceClass:      DEVICE_CLASS_CONNECTIVITY,
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(true),
		UniqueId:         uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})
	return sensors
}

// InverterSensors returns the link state sensor plus one sensor per enabled channel.
func InverterSensors(inverterDevice Device, channels []growatt_rs232.ChannelId) []GenericSensor {

	var sensors []GenericSensor

	// Inverter link
	sensors = append(sensors, GenericSensor{
		Device:         inverterDevice,
		Id:             SENSOR_ID_INVERTER_ONLINE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Inverter online",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_ONLINE),
	})

	for _, id := range channels {
		binding, ok := growatt_rs232.BindingFor(id)
		if !ok {
			continue
		}
		cs := channelSensors[id]
		sensor := GenericSensor{
			Device:            IdDevice(inverterDevice),
			Id:                string(id),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              cs.name,
			UnitOfMeasurement: cs.unit,
			StateClass:        cs.stateClass,
			DeviceClass:       cs.deviceClass,
			Icon:              cs.icon,
			Decimals:          binding.Decimals,
			UniqueId:          uniqueId(inverterDevice.Id, string(id)),
		}
		if cs.diagnostic {
			sensor.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
		}
		sensors = append(sensors, sensor)
	}

	return sensors
}

func InverterButtons(inverterDevice Device) []GenericButton {
	var buttons []GenericButton
	buttons = append(buttons, GenericButton{
		Device:         IdDevice(inverterDevice),
		Id:             BUTTON_ID_REINITIALIZE,
		Name:           "Reinitialize link",
		UniqueId:       uniqueId(inverterDevice.Id, BUTTON_ID_REINITIALIZE),
		Icon:           "mdi:restart",
		EntityCategory: ENTITY_CLASS_CONFIG,
	})
	return buttons
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
