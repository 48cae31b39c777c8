package domain

import "fmt"

// InverterRequest

type InverterRequest interface {
	ActorRequest
	InverterCommand() string
}

type InverterRequestMixIn struct {
	ActorRequestMixIn
}

func (r InverterRequestMixIn) InverterCommand() string {
	return fmt.Sprintf("%T", r)
}

// Inverter commands

type GetInverterStatusRequest struct {
	InverterRequestMixIn
}

// ReinitializeLinkRequest restarts the init sequence now instead of waiting for the receive timeout.
type ReinitializeLinkRequest struct {
	InverterRequestMixIn
}

// ensure interface compliance
var _ InverterRequest = (*GetInverterStatusRequest)(nil)
var _ InverterRequest = (*ReinitializeLinkRequest)(nil)
