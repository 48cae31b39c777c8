package actor

import (
	"fmt"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// RegisterServer is the modbus TCP listener exporting the register bank.
type RegisterServer interface {
	Start() error
	Stop() error
}

type RegisterServerProvider func() (RegisterServer, error)

// ModbusServerActor owns the lifecycle of the register export. A failed listen panics
// and leaves the retry to the supervisor.
type ModbusServerActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	provider RegisterServerProvider
	server   RegisterServer
	logger   *zap.Logger
}

func NewModbusServerActor(provider RegisterServerProvider, logger *zap.Logger) *ModbusServerActor {
	act := &ModbusServerActor{
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		provider: provider,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MODBUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusServerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusServerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		server, err := state.provider()
		if err != nil {
			state.logger.Error("modbus@starting could not create server", zap.Error(err))
			panic(err)
		}
		if err := server.Start(); err != nil {
			state.logger.Error("modbus@starting could not start server", zap.Error(err))
			panic(err)
		}
		state.server = server
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("modbus@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusServerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: state.server != nil,
			State:   "serving",
		})
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("modbus@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusServerActor) stop() {
	if state.server == nil {
		return
	}
	if err := state.server.Stop(); err != nil {
		state.logger.Warn("modbus: stop server", zap.Error(err))
	}
	state.server = nil
}
