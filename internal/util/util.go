package util

import (
	"github.com/berfenger/growatt2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:  zap.DebugLevel,
		LogFormat: "console",
		Transport: config.TransportConfig{
			Type:              config.TRANSPORT_TYPE_SERIAL,
			Device:            "/dev/null",
			BaudRate:          9600,
			OpenTimeoutMillis: 1000,
		},
		Inverter: config.InverterConfig{
			UpdateIntervalMillis:  100,
			RequestIntervalMillis: 10000,
			ReceiveTimeoutMillis:  50000,
			ReplyWaitMillis:       0,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "growatt",
			HADiscoveryTopic: "homeassistant",
		},
		ModbusServer: config.ModbusServerConfig{
			Port:   5502,
			UnitId: 1,
		},
		Port: 8080,
	}
}
