package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"go.uber.org/zap/zapcore"
)

const (
	TRANSPORT_TYPE_SERIAL = "serial"
	TRANSPORT_TYPE_TCP    = "tcp"
)

type Config struct {
	LogLevel     zapcore.Level
	LogFormat    string             `mapstructure:"log_format"`
	LogFile      LogFileConfig      `mapstructure:"log_file"`
	Transport    TransportConfig    `mapstructure:"transport"`
	Inverter     InverterConfig     `mapstructure:"inverter"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	ModbusServer ModbusServerConfig `mapstructure:"modbus_server"`
	Port         uint               `mapstructure:"port"`
	HttpLog      bool               `mapstructure:"http_log"`
}

type LogFileConfig struct {
	Filename   string
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

type TransportConfig struct {
	Type              string
	Device            string
	BaudRate          int    `mapstructure:"baud_rate"`
	Address           string `mapstructure:"address"`
	OpenTimeoutMillis uint32 `mapstructure:"open_timeout_millis"`
}

type InverterConfig struct {
	UpdateIntervalMillis  uint32   `mapstructure:"update_interval_millis"`
	RequestIntervalMillis uint32   `mapstructure:"request_interval_millis"`
	ReceiveTimeoutMillis  uint32   `mapstructure:"receive_timeout_millis"`
	ReplyWaitMillis       uint32   `mapstructure:"reply_wait_millis"`
	Channels              []string `mapstructure:"channels"`
	Serial                string   `mapstructure:"serial"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
	HADiscoveryCron   string `mapstructure:"ha_discovery_cron"`
}

type ModbusServerConfig struct {
	Enable bool
	Port   uint
	UnitId uint8 `mapstructure:"unit_id"`
}

func (c InverterConfig) DriverConfig() growatt_rs232.DriverConfig {
	return growatt_rs232.DriverConfig{
		RequestInterval: time.Duration(c.RequestIntervalMillis) * time.Millisecond,
		ReceiveTimeout:  time.Duration(c.ReceiveTimeoutMillis) * time.Millisecond,
		ReplyWait:       time.Duration(c.ReplyWaitMillis) * time.Millisecond,
	}
}

func (c InverterConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMillis) * time.Millisecond
}

// ChannelIds returns the enabled channels. No explicit list means every channel.
func (c InverterConfig) ChannelIds() ([]growatt_rs232.ChannelId, error) {
	if len(c.Channels) == 0 {
		return growatt_rs232.ChannelIds(), nil
	}
	ids := make([]growatt_rs232.ChannelId, 0, len(c.Channels))
	for _, name := range c.Channels {
		id, err := growatt_rs232.ParseChannelId(strings.TrimSpace(strings.ToLower(name)))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c TransportConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutMillis) * time.Millisecond
}

// Validate checks bounds that viper cannot express.
func (c *Config) Validate() error {
	switch c.Transport.Type {
	case TRANSPORT_TYPE_SERIAL:
		if c.Transport.Device == "" {
			return errors.New("config param transport.device is required for serial transport")
		}
	case TRANSPORT_TYPE_TCP:
		if c.Transport.Address == "" {
			return errors.New("config param transport.address is required for tcp transport")
		}
	default:
		return fmt.Errorf("config param transport.type must be %s or %s", TRANSPORT_TYPE_SERIAL, TRANSPORT_TYPE_TCP)
	}
	if c.Inverter.UpdateIntervalMillis < 100 {
		return errors.New("config param inverter.update_interval_millis should be >= 100")
	}
	if err := c.Inverter.DriverConfig().Validate(); err != nil {
		return err
	}
	if _, err := c.Inverter.ChannelIds(); err != nil {
		return fmt.Errorf("config param inverter.channels: %w", err)
	}
	if c.ModbusServer.Enable && c.ModbusServer.Port == 0 {
		return errors.New("config param modbus_server.port should be > 0")
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
