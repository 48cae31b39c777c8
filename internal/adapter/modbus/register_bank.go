package modbus

import (
	"math"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/core/service"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

const (
	REGISTERS_PER_CHANNEL = 2
	// register value when no frame was published yet
	AGE_NEVER = 0xFFFF
)

// RegisterSource is the read side of the reading cache.
type RegisterSource interface {
	Get(channel growatt_rs232.ChannelId) (service.CachedReading, bool)
	Online() bool
	Age() (time.Duration, bool)
}

// RegisterBank serves the last readings as read-only registers. Every channel takes two
// registers holding the big-endian uint32 raw value, in frame order from address 0. The
// online flag and the age of the last frame (seconds) follow the channel block.
type RegisterBank struct {
	source   RegisterSource
	unitId   uint8
	bindings []growatt_rs232.ChannelBinding
	logger   *zap.Logger
}

var _ modbus.RequestHandler = (*RegisterBank)(nil)

func NewRegisterBank(source RegisterSource, unitId uint8, logger *zap.Logger) *RegisterBank {
	return &RegisterBank{
		source:   source,
		unitId:   unitId,
		bindings: growatt_rs232.Bindings(),
		logger:   logger,
	}
}

func (b *RegisterBank) OnlineAddr() uint16 {
	return uint16(len(b.bindings) * REGISTERS_PER_CHANNEL)
}

func (b *RegisterBank) AgeAddr() uint16 {
	return b.OnlineAddr() + 1
}

func (b *RegisterBank) Size() uint16 {
	return b.AgeAddr() + 1
}

// ChannelAddr returns the first register of a channel.
func (b *RegisterBank) ChannelAddr(id growatt_rs232.ChannelId) (uint16, bool) {
	for i, binding := range b.bindings {
		if binding.Id == id {
			return uint16(i * REGISTERS_PER_CHANNEL), true
		}
	}
	return 0, false
}

func (b *RegisterBank) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (b *RegisterBank) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (b *RegisterBank) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		b.logger.Debug("modbus: write rejected", zap.Uint16("addr", req.Addr), zap.String("client", req.ClientAddr))
		return nil, modbus.ErrIllegalFunction
	}
	return b.read(req.UnitId, req.Addr, req.Quantity)
}

func (b *RegisterBank) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return b.read(req.UnitId, req.Addr, req.Quantity)
}

func (b *RegisterBank) read(unitId uint8, addr, quantity uint16) ([]uint16, error) {
	if unitId != 0 && unitId != b.unitId {
		return nil, modbus.ErrGWTargetFailedToRespond
	}
	if quantity == 0 || uint32(addr)+uint32(quantity) > uint32(b.Size()) {
		return nil, modbus.ErrIllegalDataAddress
	}
	regs := b.Registers()
	return regs[addr : addr+quantity], nil
}

// Registers renders the whole bank from the current cache state.
func (b *RegisterBank) Registers() []uint16 {
	regs := make([]uint16, b.Size())
	for i, binding := range b.bindings {
		reading, ok := b.source.Get(binding.Id)
		if !ok {
			continue
		}
		raw := binding.RawFromValue(reading.Value)
		regs[i*REGISTERS_PER_CHANNEL] = uint16(raw >> 16)
		regs[i*REGISTERS_PER_CHANNEL+1] = uint16(raw)
	}
	if b.source.Online() {
		regs[b.OnlineAddr()] = 1
	}
	regs[b.AgeAddr()] = ageRegister(b.source.Age())
	return regs
}

func ageRegister(age time.Duration, ok bool) uint16 {
	if !ok {
		return AGE_NEVER
	}
	seconds := math.Floor(age.Seconds())
	if seconds >= AGE_NEVER-1 {
		return AGE_NEVER - 1
	}
	if seconds < 0 {
		return 0
	}
	return uint16(seconds)
}
