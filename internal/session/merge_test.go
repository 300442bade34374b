package session

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestMergeDevices_AddsDevicesMissedByEvents(t *testing.T) {
	// GOAL: Verify devices whose events were dropped still reach the list from the scan result
	//
	// TEST SCENARIO: list holds Thermo → merge {Thermo, Watch, Band} → Band and Watch appended by address → only they are logged

	logger := logrus.New()
	thermo := testutils.CreateMockAdvertisement("Thermo", "AA:BB:CC:DD:EE:FF", -50).BuildDevice(logger)
	band := testutils.CreateMockAdvertisement("Band", "11:22:33:44:55:66", -70).BuildDevice(logger)
	watch := testutils.CreateMockAdvertisement("Watch", "33:44:55:66:77:88", -60).BuildDevice(logger)

	c := &Controller{
		devices:  orderedmap.New[string, device.DeviceInfo](),
		activity: newActivityLog(8),
	}
	c.devices.Set(thermo.Address(), thermo)

	c.mergeDevices(map[string]device.DeviceInfo{
		thermo.Address(): thermo,
		watch.Address():  watch,
		band.Address():   band,
	})

	var order []string
	for pair := c.devices.Oldest(); pair != nil; pair = pair.Next() {
		order = append(order, pair.Key)
	}
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66", "33:44:55:66:77:88"}, order,
		"known devices MUST keep their place and missed ones MUST follow in address order")
	v, _ := c.devices.Get(thermo.Address())
	assert.Same(t, thermo, v, "known device MUST NOT be replaced")

	events := c.activity.drain()
	require.Len(t, events, 2, "only missed devices MUST be logged")
	assert.Equal(t, "Found Band (11:22:33:44:55:66)", events[0].Message)
	assert.Equal(t, "Found Watch (33:44:55:66:77:88)", events[1].Message)
}

func TestMergeDevices_NilResult(t *testing.T) {
	c := &Controller{
		devices:  orderedmap.New[string, device.DeviceInfo](),
		activity: newActivityLog(8),
	}

	c.mergeDevices(nil)

	assert.Zero(t, c.devices.Len(), "a failed scan MUST NOT add devices")
	assert.Empty(t, c.activity.drain())
}
