package actor

import (
	"fmt"

	"github.com/berfenger/growatt2mqtt/internal/config"
	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/internal/core/events"
	"github.com/berfenger/growatt2mqtt/internal/core/port"
	. "github.com/berfenger/growatt2mqtt/internal/util/actorutil"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// InverterActor owns the transport and the polling driver. Its mailbox serializes ticks,
// status queries and link re-initialization, so the driver never sees concurrent calls.
type InverterActor struct {
	ActorWithStates
	config            *config.Config
	stash             *Stash
	eventStream       *eventstream.EventStream
	transportProvider port.TransportProvider
	instrument        growatt_rs232.Instrument
	driverOpts        []growatt_rs232.DriverOption

	transport port.LinkTransport
	driver    *growatt_rs232.Driver
	// last inverter_online value published, nil before the first one
	online *bool

	logger *zap.Logger
}

type transportOpened struct {
	transport port.LinkTransport
	err       error
}

func NewInverterActor(config *config.Config, transportProvider port.TransportProvider, eventStream *eventstream.EventStream,
	instrument growatt_rs232.Instrument, logger *zap.Logger, driverOpts ...growatt_rs232.DriverOption) *InverterActor {
	act := &InverterActor{
		config:            config,
		stash:             &Stash{},
		eventStream:       eventStream,
		transportProvider: transportProvider,
		instrument:        instrument,
		driverOpts:        driverOpts,
		logger:            ActorLogger(domain.ACTOR_ID_INVERTER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(InverterStartingState{
		actor: act,
	})
	return act
}

func (state *InverterActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type InverterStartingState struct {
	ActorState
	actor *InverterActor
}

func (state InverterStartingState) Name() string {
	return "starting"
}

func (state InverterStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("inverter@starting started")

		task := NewBackgroundTask(ctx, func() (*transportOpened, error) {
			transport, err := state.actor.transportProvider()
			if err != nil {
				return nil, err
			}
			return &transportOpened{transport: transport}, nil
		}).Recover(func(err error) transportOpened {
			return transportOpened{err: err}
		}).Discard(func(late transportOpened) {
			// opened after the timeout, nobody owns it
			_ = late.transport.Close()
		})
		if timeout := state.actor.config.Transport.OpenTimeout(); timeout > 0 {
			task = task.WithTimeout(timeout)
		}
		task.PipeTo(ctx.Self())
	case transportOpened:
		if msg.err != nil {
			state.actor.logger.Error("inverter@starting could not open transport", zap.Error(msg.err))
			panic(msg.err)
		}
		state.actor.transport = msg.transport

		if err := state.actor.createDriver(); err != nil {
			state.actor.logger.Error("inverter@starting could not create driver", zap.Error(err))
			panic(err)
		}
		present := state.actor.driver.Initiate()
		state.actor.logger.Info("inverter@starting link initiated", zap.Bool("present", present))
		state.actor.publishOnline()

		state.actor.Become(InverterRunningState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case domain.InverterPollTick:
		// ticks while the transport is opening are dropped, the next one will come
	case *actor.Restarting:
		state.actor.closeTransport()
	case *actor.Stopping:
		state.actor.closeTransport()
	default:
		state.actor.logger.Debug("inverter@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type InverterRunningState struct {
	ActorState
	actor *InverterActor
}

func (state InverterRunningState) Name() string {
	return "running"
}

func (state InverterRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.InverterPollTick:
		state.actor.driver.Tick()
		if health, ok := state.actor.transport.(port.LinkHealth); ok {
			if err := health.Err(); err != nil {
				state.actor.logger.Error("inverter@running transport failed", zap.Error(err))
				panic(err)
			}
		}
		state.actor.publishOnline()
	case domain.ReinitializeLinkRequest:
		state.actor.logger.Info("inverter@running reinitialize link requested")
		present := state.actor.driver.Initiate()
		state.actor.publishOnline()
		RespondIfWaiting(ctx, msg, domain.ReinitializeLinkResponse{
			Present: present,
		})
	case domain.GetInverterStatusRequest:
		state.actor.logger.Debug("inverter@running GetInverterStatusRequest")
		RespondIfWaiting(ctx, msg, domain.GetInverterStatusResponse{
			Status: state.actor.driver.Status(),
			Config: state.actor.driver.Config(),
		})
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("inverter@running ActorHealthRequest")
		inverterState := "waiting"
		if state.actor.driver.Receiving() {
			inverterState = "receiving"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: true,
			State:   inverterState,
		})
	case *actor.Restarting:
		state.actor.closeTransport()
	case *actor.Stopping:
		state.actor.closeTransport()
	default:
		state.actor.logger.Debug("inverter@running unhandled", zap.String("state", state.actor.StateName()),
			zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (a *InverterActor) createDriver() error {
	channels, err := a.config.Inverter.ChannelIds()
	if err != nil {
		return err
	}
	opts := a.driverOpts
	if a.instrument != nil {
		opts = append([]growatt_rs232.DriverOption{growatt_rs232.WithInstrument(a.instrument)}, opts...)
	}
	driver, err := growatt_rs232.NewDriver(a.transport, a.config.Inverter.DriverConfig(),
		events.EventStreamSensors(a.eventStream, channels), a.logger, opts...)
	if err != nil {
		return err
	}
	a.driver = driver
	return nil
}

// publishOnline emits inverter_online when the receiving state changes.
func (a *InverterActor) publishOnline() {
	receiving := a.driver.Receiving()
	if a.online != nil && *a.online == receiving {
		return
	}
	a.online = &receiving
	a.logger.Info("inverter online state", zap.Bool("online", receiving))
	a.eventStream.Publish(events.InverterOnlineUpdateEvent(receiving))
}

func (a *InverterActor) closeTransport() {
	if a.transport == nil {
		return
	}
	if err := a.transport.Close(); err != nil {
		a.logger.Warn("inverter: close transport", zap.Error(err))
	}
	a.transport = nil
	a.driver = nil
}
