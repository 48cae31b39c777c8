package config

import (
	"testing"
	"time"

	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"
	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Transport: TransportConfig{
			Type:     TRANSPORT_TYPE_SERIAL,
			Device:   "/dev/ttyUSB0",
			BaudRate: 9600,
		},
		Inverter: InverterConfig{
			UpdateIntervalMillis:  1000,
			RequestIntervalMillis: 10000,
			ReceiveTimeoutMillis:  50000,
			ReplyWaitMillis:       200,
		},
	}
}

func TestValidConfig(t *testing.T) {

	assert := assert.New(t)

	cfg := validConfig()
	assert.NoError(cfg.Validate())

	dc := cfg.Inverter.DriverConfig()
	assert.Equal(10*time.Second, dc.RequestInterval)
	assert.Equal(50*time.Second, dc.ReceiveTimeout)
	assert.Equal(200*time.Millisecond, dc.ReplyWait)
	assert.Equal(time.Second, cfg.Inverter.UpdateInterval())
}

func TestTransportValidation(t *testing.T) {

	assert := assert.New(t)

	cfg := validConfig()
	cfg.Transport.Type = "usb"
	assert.Error(cfg.Validate())

	cfg.Transport.Type = TRANSPORT_TYPE_TCP
	assert.Error(cfg.Validate(), "tcp requires an address")

	cfg.Transport.Address = "ser2net.local:4001"
	assert.NoError(cfg.Validate())
}

func TestIntervalValidation(t *testing.T) {

	assert := assert.New(t)

	cfg := validConfig()
	cfg.Inverter.UpdateIntervalMillis = 50
	assert.Error(cfg.Validate())

	cfg = validConfig()
	cfg.Inverter.ReceiveTimeoutMillis = 0
	assert.ErrorIs(cfg.Validate(), growatt_rs232.ErrInvalidConfig)
}

func TestChannelIds(t *testing.T) {

	assert := assert.New(t)

	cfg := validConfig()
	ids, err := cfg.Inverter.ChannelIds()
	assert.NoError(err)
	assert.Equal(growatt_rs232.ChannelIds(), ids)

	cfg.Inverter.Channels = []string{"Grid_Voltage", " pv1_voltage"}
	ids, err = cfg.Inverter.ChannelIds()
	assert.NoError(err)
	assert.Equal([]growatt_rs232.ChannelId{growatt_rs232.CHANNEL_GRID_VOLTAGE, growatt_rs232.CHANNEL_PV1_VOLTAGE}, ids)

	cfg.Inverter.Channels = []string{"battery_soc"}
	assert.Error(cfg.Validate())
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("Growatt_1")
	assert.NoError(err)
	assert.Equal("growatt_1", topic)

	_, err = CheckMQTTTopic("growatt/home")
	assert.Error(err)
}
