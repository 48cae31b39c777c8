package modbus

import (
	"fmt"
	"math"
	"time"

	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/simonvetter/modbus"
)

// RegisterClient reads a register bank exported by another bridge instance.
type RegisterClient struct {
	client     *modbus.ModbusClient
	bank       *RegisterBank
	instrument []ClientInstrument
}

type ClientInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

type ClientReading struct {
	Channel growatt_rs232.ChannelId
	Value   float64
}

func NewRegisterClient(host string, port uint, unitId uint8, timeout time.Duration, instrument ...ClientInstrument) (*RegisterClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if unitId > 0 {
		if err := client.SetUnitId(unitId); err != nil {
			return nil, err
		}
	}
	return &RegisterClient{
		client:     client,
		bank:       &RegisterBank{bindings: growatt_rs232.Bindings()},
		instrument: instrument,
	}, nil
}

func (c *RegisterClient) Open() error {
	return c.client.Open()
}

func (c *RegisterClient) Close() error {
	return c.client.Close()
}

func (c *RegisterClient) readRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	defer recordTimer("ReadRegisters", c.instrument)()
	return c.client.ReadRegisters(addr, quantity, regType)
}

// Readings fetches the channel block and scales every raw value back to its unit.
func (c *RegisterClient) Readings() ([]ClientReading, error) {
	regs, err := c.readRegisters(0, c.bank.OnlineAddr(), modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	readings := make([]ClientReading, 0, len(c.bank.bindings))
	for i, binding := range c.bank.bindings {
		raw := uint32(regs[i*REGISTERS_PER_CHANNEL])<<16 | uint32(regs[i*REGISTERS_PER_CHANNEL+1])
		readings = append(readings, ClientReading{
			Channel: binding.Id,
			Value:   applyUnit(raw, binding),
		})
	}
	return readings, nil
}

// Status returns the online flag and the age register.
func (c *RegisterClient) Status() (bool, uint16, error) {
	regs, err := c.readRegisters(c.bank.OnlineAddr(), 2, modbus.INPUT_REGISTER)
	if err != nil {
		return false, 0, err
	}
	return regs[0] == 1, regs[1], nil
}

func applyUnit(raw uint32, binding growatt_rs232.ChannelBinding) float64 {
	scale := math.Pow(10, float64(binding.Decimals))
	return math.Round(float64(raw)*float64(binding.Unit)*scale) / scale
}

func recordTimer(name string, instrument []ClientInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}
