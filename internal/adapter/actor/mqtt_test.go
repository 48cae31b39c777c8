package actor

import (
	"slices"
	"testing"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/internal/core/events"
	"github.com/berfenger/growatt2mqtt/internal/util"
	"github.com/berfenger/growatt2mqtt/internal/util/actorutil"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(ok)
	assert.True(resp.Healthy)

	es.Publish(events.ReadingUpdateEvent(growatt_rs232.CHANNEL_PV_ACTIVE_POWER, 245))
	es.Publish(events.ReadingUpdateEvent(growatt_rs232.CHANNEL_GRID_FREQUENCY, 50.016))
	es.Publish(events.InverterOnlineUpdateEvent(false))
	// not a sensor update, ignored
	es.Publish("noise")

	expected := []string{
		"growatt/sensor/pv_active_power/state 245.0",
		"growatt/sensor/grid_frequency/state 50.02",
		"growatt/binary_sensor/inverter_online/state off",
	}
	assert.Eventually(func() bool {
		res, err := context.RequestFuture(pid, PublishedTopicsRequest{}, time.Second).Result()
		return err == nil && slices.Equal(expected, res.(PublishedTopicsResponse).Topics)
	}, 2*time.Second, 20*time.Millisecond)

	err = context.StopFuture(pid).Wait()
	assert.NoError(err)

	// unsubscribed on stop
	assert.EqualValues(0, es.Length())
}

func TestRetainEvent(t *testing.T) {

	assert := assert.New(t)

	assert.True(retainEvent(events.InverterOnlineUpdateEvent(true)))
	assert.False(retainEvent(events.ReadingUpdateEvent(growatt_rs232.CHANNEL_GRID_VOLTAGE, 230)))
}
