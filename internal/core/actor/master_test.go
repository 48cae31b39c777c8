package actor

import (
	"fmt"
	"slices"
	"testing"
	"time"

	adactor "github.com/berfenger/growatt2mqtt/internal/adapter/actor"
	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/internal/core/port"
	"github.com/berfenger/growatt2mqtt/internal/mqtt"
	"github.com/berfenger/growatt2mqtt/internal/util"
	"github.com/berfenger/growatt2mqtt/internal/util/actorutil"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopRegisterServer struct{}

func (nopRegisterServer) Start() error { return nil }

func (nopRegisterServer) Stop() error { return nil }

func TestMasterActor(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = true
	cfg.ModbusServer.Enable = true

	es := &eventstream.EventStream{}
	transport := growatt_rs232.NewPresentTestTransport()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, es, func(es *eventstream.EventStream) *InverterActor {
			return NewInverterActor(&cfg, func() (port.LinkTransport, error) { return transport, nil }, es, nil, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, func() *adactor.ModbusServerActor {
			return adactor.NewModbusServerActor(func() (adactor.RegisterServer, error) { return nopRegisterServer{}, nil }, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(err)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(ok)
	assert.True(healthResp.Healthy, "healthy is true")

	// status requests are routed to the inverter actor
	res, err = context.RequestFuture(pid, domain.GetInverterStatusRequest{}, 2*time.Second).Result()
	require.NoError(err)
	status, ok := res.(domain.GetInverterStatusResponse)
	assert.True(ok)
	assert.True(status.Status.Present)

	// the scheduler drives the poll loop
	transport.FeedFrame(growatt_rs232.EncodeFrame(
		growatt_rs232.Reading{Channel: growatt_rs232.CHANNEL_PV_ACTIVE_POWER, Value: 1520.5},
	))
	mqttPID := actor.NewPID(as.Address(), fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MQTT))
	assert.Eventually(func() bool {
		res, err := context.RequestFuture(mqttPID, adactor.PublishedTopicsRequest{}, time.Second).Result()
		if err != nil {
			return false
		}
		topics := res.(adactor.PublishedTopicsResponse).Topics
		return slices.Contains(topics, "growatt/sensor/pv_active_power/state 1520.5") &&
			slices.Contains(topics, "homeassistant/button/"+domain.InverterDevice("", "growatt").Id+"/reinitialize_link/config")
	}, 5*time.Second, 50*time.Millisecond)

	// the reinitialize button reaches the inverter
	context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.BUTTON_ID_REINITIALIZE,
		Command:  mqtt.COMMAND_BUTTON,
		Payload:  mqtt.MQTT_PAYLOAD_PRESS,
	}})
	assert.Eventually(func() bool {
		res, err := context.RequestFuture(pid, domain.GetInverterStatusRequest{}, time.Second).Result()
		return err == nil && res.(domain.GetInverterStatusResponse).Status.Counters.LinkInitiations == 2
	}, 3*time.Second, 50*time.Millisecond)

	err = context.StopFuture(pid).Wait()
	assert.NoError(err)
}
