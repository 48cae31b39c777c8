package actor

import (
	"testing"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/internal/util"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryComponents(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.Inverter.Channels = []string{"grid_voltage", " PV_ACTIVE_POWER "}

	sensors, buttons, err := DiscoveryComponents(&cfg)
	assert.NoError(err)

	var ids []string
	for _, s := range sensors {
		ids = append(ids, s.Id)
	}
	assert.Equal([]string{
		domain.SENSOR_ID_BRIDGE_STATE,
		domain.SENSOR_ID_INVERTER_ONLINE,
		string(growatt_rs232.CHANNEL_GRID_VOLTAGE),
		string(growatt_rs232.CHANNEL_PV_ACTIVE_POWER),
	}, ids)

	bridge := domain.BridgeDevice(cfg.MQTT.BaseTopic)
	assert.Equal(bridge.Id, sensors[1].Device.ViaDevice, "inverter is reached through the bridge")

	assert.Len(buttons, 1)
	assert.Equal(domain.BUTTON_ID_REINITIALIZE, buttons[0].Id)
}

func TestDiscoveryComponentsInvalidChannel(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.Inverter.Channels = []string{"battery_soc"}

	_, _, err := DiscoveryComponents(&cfg)
	assert.Error(t, err)
}
