package actor

import (
	"errors"
	"fmt"
	"time"

	adactor "github.com/berfenger/growatt2mqtt/internal/adapter/actor"
	"github.com/berfenger/growatt2mqtt/internal/adapter/scheduler"
	"github.com/berfenger/growatt2mqtt/internal/config"
	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	. "github.com/berfenger/growatt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type InverterActorProvider func(*eventstream.EventStream) *InverterActor

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ModbusServerActorProvider func() *adactor.ModbusServerActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck        healthCheckResult
	eventStream               *eventstream.EventStream
	scheduler                 *scheduler.Scheduler
	inverterActor             *actor.PID
	mqttActor                 *actor.PID
	modbusActor               *actor.PID
	haDiscoveryActor          *actor.PID
	inverterActorProvider     InverterActorProvider
	mqttActorProvider         MQTTActorProvider
	modbusServerActorProvider ModbusServerActorProvider
	stopping                  bool
	logger                    *zap.Logger
}

type healthCheckResult struct {
	expected       map[string]bool
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

// NewMasterOfPuppetsActor builds the root of the actor tree. modbusServerActorProvider may be
// nil when the register export is disabled.
func NewMasterOfPuppetsActor(config config.Config, eventStream *eventstream.EventStream, inverterActorProvider InverterActorProvider,
	mqttActorProvider MQTTActorProvider, modbusServerActorProvider ModbusServerActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	if eventStream == nil {
		eventStream = &eventstream.EventStream{}
	}
	act := &MasterOfPuppetsActor{
		config:                    config,
		behavior:                  actor.NewBehavior(),
		stash:                     &Stash{},
		logger:                    ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:               eventStream,
		inverterActorProvider:     inverterActorProvider,
		mqttActorProvider:         mqttActorProvider,
		modbusServerActorProvider: modbusServerActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.stopping = false
		state.currentHealthCheck = healthCheckResult{}

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID
		state.currentHealthCheck.expect(domain.ACTOR_ID_MQTT)

		// start Inverter child
		inverterActorPID, err := state.startInverterActor(ctx)
		if err != nil {
			panic(err)
		}
		state.inverterActor = inverterActorPID
		state.currentHealthCheck.expect(domain.ACTOR_ID_INVERTER)

		// start Modbus server child
		if state.config.ModbusServer.Enable && state.modbusServerActorProvider != nil {
			modbusActorPID, err := state.startModbusServerActor(ctx)
			if err != nil {
				panic(err)
			}
			state.modbusActor = modbusActorPID
			state.currentHealthCheck.expect(domain.ACTOR_ID_MODBUS)
		}

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			haDiscPID, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
			state.haDiscoveryActor = haDiscPID
		}

		if err := state.startScheduler(ctx); err != nil {
			state.logger.Error("master@starting scheduler error", zap.Error(err))
			panic(err)
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.healthCheckTargets() {
			actorId := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      actorId,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.InverterRequest:
		// inverter requests keep their original sender
		state.logger.Debug("master@default InverterRequest", zap.String("command", msg.InverterCommand()))
		ctx.Forward(state.inverterActor)
	case domain.RepublishDiscoveryRequest:
		if state.haDiscoveryActor != nil {
			ctx.Forward(state.haDiscoveryActor)
		}
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default invalid command", zap.Error(err))
				return
			}
			if invCmd, ok := cmd.(domain.InverterRequest); ok {
				ctx.Send(state.inverterActor, invCmd)
			}
		}
	case *actor.Stopping:
		state.stopping = true
		state.stopScheduler()
	case *actor.Restarting:
		state.stopScheduler()
	case *actor.Terminated:
		// a child stopped for good (supervisor gave up)
		if !state.stopping {
			state.logger.Error("master@default child terminated", zap.String("who", msg.Who.Id))
			panic(errors.New(msg.Who.Id + " terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.finishHealthCheck(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.received(msg)
		if state.currentHealthCheck.allReceived() {
			state.finishHealthCheck(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	case *actor.Stopping:
		state.stopping = true
		state.stopScheduler()
	case *actor.Restarting:
		state.stopScheduler()
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) finishHealthCheck(ctx actor.Context) {
	ctx.CancelReceiveTimeout()
	state.currentHealthCheck.respond(ctx)
	state.behavior.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

func (state *MasterOfPuppetsActor) healthCheckTargets() map[string]*actor.PID {
	targets := map[string]*actor.PID{
		domain.ACTOR_ID_INVERTER: state.inverterActor,
		domain.ACTOR_ID_MQTT:     state.mqttActor,
	}
	if state.modbusActor != nil {
		targets[domain.ACTOR_ID_MODBUS] = state.modbusActor
	}
	return targets
}

func (state *MasterOfPuppetsActor) startScheduler(ctx actor.Context) error {
	sched := scheduler.NewScheduler(ctx.ActorSystem().Root, state.logger)
	if err := sched.SchedulePoll(state.inverterActor, state.config.Inverter.UpdateInterval()); err != nil {
		return err
	}
	if state.haDiscoveryActor != nil && state.config.MQTT.HADiscoveryCron != "" {
		if err := sched.ScheduleDiscovery(state.haDiscoveryActor, state.config.MQTT.HADiscoveryCron); err != nil {
			return err
		}
	}
	sched.Start()
	state.scheduler = sched
	return nil
}

func (state *MasterOfPuppetsActor) stopScheduler() {
	if state.scheduler != nil {
		state.scheduler.Stop()
		state.scheduler = nil
	}
}

func (state *MasterOfPuppetsActor) startInverterActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	inverterProps := actor.PropsFromProducer(func() actor.Actor {
		return state.inverterActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	inverterActorPID, err := ctx.SpawnNamed(inverterProps, domain.ACTOR_ID_INVERTER)
	if err != nil {
		return nil, err
	}

	return inverterActorPID, nil
}

func (state *MasterOfPuppetsActor) startModbusServerActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.modbusServerActorProvider()
	}, actor.WithSupervisor(supervisor))
	modbusActorPID, err := ctx.SpawnNamed(modbusProps, domain.ACTOR_ID_MODBUS)
	if err != nil {
		return nil, err
	}

	return modbusActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		state.logger.Warn("handling failure for child", zap.Any("reason", reason))
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *healthCheckResult) expect(id string) {
	if state.expected == nil {
		state.expected = map[string]bool{}
	}
	state.expected[id] = true
}

func (state *healthCheckResult) reset() {
	state.healthy = map[string]bool{}
	state.checksReceived = 0
	state.respondTo = nil
}

func (state *healthCheckResult) received(resp domain.ActorHealthResponse) {
	if !state.expected[resp.Id] {
		return
	}
	state.checksReceived++
	if resp.Healthy {
		state.healthy[resp.Id] = true
	}
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for id := range state.expected {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
