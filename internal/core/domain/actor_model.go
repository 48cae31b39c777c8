package domain

import "github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_INVERTER     = "inverter"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_MODBUS       = "modbus"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// InverterPollTick drives Driver.Tick. Sent by the scheduler every update interval.
type InverterPollTick struct {
}

type GetInverterStatusResponse struct {
	ActorResponseMixIn
	Status growatt_rs232.Status
	Config growatt_rs232.DriverConfig
}

type ReinitializeLinkResponse struct {
	ActorResponseMixIn
	Present bool
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
	Buttons []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type RepublishDiscoveryRequest struct {
	ActorRequestMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
