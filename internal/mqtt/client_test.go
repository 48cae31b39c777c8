package mqtt

import (
	"testing"

	"github.com/berfenger/growatt2mqtt/internal/config"
	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/stretchr/testify/assert"
)

func testClient() *MQTTClient {
	cfg := config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "growatt",
			HADiscoveryTopic: "homeassistant",
		},
	}
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestButtonCommandParse(t *testing.T) {

	assert := assert.New(t)

	r := buttonCommandExtractor("growatt")
	cmd, err := parseButtonCommand(r, "growatt/button/reinitialize_link/command", []byte("PRESS"))

	assert.NoError(err)
	assert.Equal("reinitialize_link", cmd.DeviceId)
	assert.Equal(COMMAND_BUTTON, cmd.Command)
	assert.Equal(MQTT_PAYLOAD_PRESS, cmd.Payload)
}

func TestButtonCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	r := buttonCommandExtractor("growatt")

	_, err := parseButtonCommand(r, "growatt/sensor/grid_voltage/state", []byte("230.1"))
	assert.Error(err)

	_, err = parseButtonCommand(r, "other/growatt/button/x/command", []byte("PRESS"))
	assert.Error(err, "base topic must be anchored")
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	assert.Equal("growatt/bridge/state", c.BridgeStateTopic())
	assert.Equal("growatt/sensor/grid_voltage/state", c.SensorStateTopic("grid_voltage"))
	assert.Equal("growatt/binary_sensor/inverter_online/state", c.BinarySensorStateTopic("inverter_online"))
	assert.Equal("growatt/button/+/command", c.commandTopic())
	assert.Equal("homeassistant", c.DiscoveryPrefix())
}

func TestSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	device := domain.InverterDevice("", "growatt")
	sensors := domain.InverterSensors(device, []growatt_rs232.ChannelId{growatt_rs232.CHANNEL_GRID_FREQUENCY})

	online := GenericSensorToHADiscoveryMessage(c, sensors[0])
	assert.Equal(c.BinarySensorStateTopic(domain.SENSOR_ID_INVERTER_ONLINE), online.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, online.PayloadOn)
	assert.Nil(online.Precision)

	freq := GenericSensorToHADiscoveryMessage(c, sensors[1])
	assert.Equal("growatt/sensor/grid_frequency/state", freq.StateTopic)
	assert.Equal("Hz", freq.UnitOfMeasurement)
	assert.Equal(uint(2), *freq.Precision)
	assert.Equal(c.BridgeStateTopic(), freq.AvTopic)
	assert.Equal("homeassistant/sensor/"+device.Id+"/grid_frequency/config", HADiscoverySensorTopic(c.DiscoveryPrefix(), sensors[1]))
}

func TestButtonDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	buttons := domain.InverterButtons(domain.InverterDevice("", "growatt"))
	msg := GenericButtonToHADiscoveryMessage(c, buttons[0])

	assert.Equal("growatt/button/reinitialize_link/command", msg.CommandTopic)
	assert.Equal(MQTT_PAYLOAD_PRESS, msg.PayloadPress)
	assert.Empty(msg.StateTopic)
}
