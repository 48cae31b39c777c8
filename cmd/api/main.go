package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/adapter/actor"
	"github.com/berfenger/growatt2mqtt/internal/adapter/modbus"
	"github.com/berfenger/growatt2mqtt/internal/config"
	coreactor "github.com/berfenger/growatt2mqtt/internal/core/actor"
	"github.com/berfenger/growatt2mqtt/internal/core/port"
	"github.com/berfenger/growatt2mqtt/internal/core/service"
	"github.com/berfenger/growatt2mqtt/internal/logging"
	"github.com/berfenger/growatt2mqtt/internal/metrics"
	"github.com/berfenger/growatt2mqtt/internal/server"
	"github.com/berfenger/growatt2mqtt/internal/util/actorutil"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}

	// zap logger
	logger, err := logging.NewLogger(*cfg)
	if err != nil {
		slog.Error("logger errors", "error", err)
		os.Exit(1)
	}
	defer logger.Sync()

	safePrintConfig(*cfg, logger)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	eventStream := &eventstream.EventStream{}

	// metrics and last readings are fed by the sensor event stream
	registry := metrics.NewRegistry()
	inverterMetrics := metrics.NewInverterMetrics(registry)
	inverterMetrics.Subscribe(eventStream)

	readings := service.NewReadingCache()
	readings.Subscribe(eventStream)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return coreactor.NewMasterOfPuppetsActor(*cfg, eventStream,
			inverterActorProvider(cfg, inverterMetrics, logger),
			mqttActorProvider(cfg, logger),
			modbusServerActorProvider(cfg, readings, logger),
			logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Error("could not spawn master actor", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid, readings, metrics.Handler(registry), logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, logger, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	logger.Info("graceful shutdown complete")

	if err := ctx.StopFuture(pid).Wait(); err != nil {
		logger.Warn("master actor stop", zap.Error(err))
	}
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => GROWATT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("GROWATT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("growatt")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = logging.ParseLevel(viper.GetString("log_level"))

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func transportProvider(cfg *config.Config, logger *zap.Logger) port.TransportProvider {
	return func() (port.LinkTransport, error) {
		var transport *growatt_rs232.StreamTransport
		var err error
		switch cfg.Transport.Type {
		case config.TRANSPORT_TYPE_TCP:
			transport, err = growatt_rs232.OpenTCPTransport(cfg.Transport.Address, cfg.Transport.OpenTimeout(), logger)
		default:
			transport, err = growatt_rs232.OpenSerialTransport(cfg.Transport.Device, cfg.Transport.BaudRate, logger)
		}
		if err != nil {
			return nil, err
		}
		return transport, nil
	}
}

func inverterActorProvider(cfg *config.Config, instrument growatt_rs232.Instrument, logger *zap.Logger) coreactor.InverterActorProvider {
	provider := transportProvider(cfg, logger)
	return func(es *eventstream.EventStream) *coreactor.InverterActor {
		return coreactor.NewInverterActor(cfg, provider, es, instrument, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) coreactor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *actor.MQTTActor {
		return actor.NewMQTTActor(cfg, es, logger)
	}
}

func modbusServerActorProvider(cfg *config.Config, readings *service.ReadingCache, logger *zap.Logger) coreactor.ModbusServerActorProvider {
	if !cfg.ModbusServer.Enable {
		return nil
	}
	serverLogger := logger.With(zap.String("component", "modbus"))
	return func() *actor.ModbusServerActor {
		return actor.NewModbusServerActor(func() (actor.RegisterServer, error) {
			bank := modbus.NewRegisterBank(readings, cfg.ModbusServer.UnitId, serverLogger)
			return modbus.NewServer(cfg.ModbusServer.Port, bank, serverLogger)
		}, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", logging.FORMAT_JSON)
	viper.SetDefault("log_file.filename", "")
	viper.SetDefault("log_file.max_size_mb", 10)
	viper.SetDefault("log_file.max_backups", 3)
	viper.SetDefault("log_file.max_age_days", 28)
	viper.SetDefault("log_file.compress", false)
	viper.SetDefault("transport.type", config.TRANSPORT_TYPE_SERIAL)
	viper.SetDefault("transport.device", "/dev/ttyUSB0")
	viper.SetDefault("transport.baud_rate", growatt_rs232.DefaultBaudRate)
	viper.SetDefault("transport.address", "")
	viper.SetDefault("transport.open_timeout_millis", 5000)
	viper.SetDefault("inverter.update_interval_millis", 1000)
	viper.SetDefault("inverter.request_interval_millis", 10000)
	viper.SetDefault("inverter.receive_timeout_millis", 50000)
	viper.SetDefault("inverter.reply_wait_millis", 200)
	viper.SetDefault("inverter.channels", []string{})
	viper.SetDefault("inverter.serial", "")
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.base_topic", "growatt")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.ha_discovery_cron", "")
	viper.SetDefault("modbus_server.enable", false)
	viper.SetDefault("modbus_server.port", 5502)
	viper.SetDefault("modbus_server.unit_id", 1)
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config, logger *zap.Logger) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	logger.Info("using config", zap.Any("config", cfg))
}
