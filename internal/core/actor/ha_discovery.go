package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/config"
	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	stash     *actorutil.Stash
	mqttActor *actor.PID
	published int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if msg.Id != domain.ACTOR_ID_MQTT {
			return
		}
		if !msg.Healthy {
			panic(errors.New("MQTT Actor is not healthy"))
		}
		state.publish(ctx)
		state.behavior.Become(state.ReadyReceive)
		state.stash.UnstashAll(ctx)
	case domain.RepublishDiscoveryRequest:
		// the first publish is pending
	default:
		state.logger.Debug("hadiscovery@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) ReadyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.RepublishDiscoveryRequest:
		state.logger.Debug("hadiscovery@ready RepublishDiscoveryRequest")
		state.publish(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: state.published > 0,
			State:   fmt.Sprintf("published %d", state.published),
		})
	default:
		state.logger.Debug("hadiscovery@ready default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) publish(ctx actor.Context) {
	sensors, buttons, err := DiscoveryComponents(state.config)
	if err != nil {
		state.logger.Error("hadiscovery: invalid channel configuration", zap.Error(err))
		panic(err)
	}
	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: sensors,
		Buttons: buttons,
	})
	state.published++
	state.logger.Info("hadiscovery: discovery published", zap.Int("sensors", len(sensors)), zap.Int("buttons", len(buttons)))
}

// DiscoveryComponents lists every entity announced to Home Assistant: the bridge state, the
// inverter link state, one sensor per enabled channel and the reinitialize button.
func DiscoveryComponents(cfg *config.Config) ([]domain.GenericSensor, []domain.GenericButton, error) {
	channels, err := cfg.Inverter.ChannelIds()
	if err != nil {
		return nil, nil, err
	}

	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(cfg.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	inverterDevice := domain.InverterDevice(cfg.Inverter.Serial, cfg.MQTT.BaseTopic)
	inverterDevice.ViaDevice = bridgeDevice.Id
	sensors = append(sensors, domain.InverterSensors(inverterDevice, channels)...)

	return sensors, domain.InverterButtons(inverterDevice), nil
}
