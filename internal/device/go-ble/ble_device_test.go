package goble_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	goble "github.com/srg/blesend/internal/device/go-ble"
	"github.com/srg/blesend/internal/testutils"
	"github.com/stretchr/testify/assert"
)

func TestNewBLEDeviceFromAdvertisement(t *testing.T) {
	ja := testutils.NewJSONAsserter(t).WithOptions(testutils.WithIgnoredFields("last_seen"))

	t.Run("creates device with all advertisement data", func(t *testing.T) {
		dev := testutils.CreateMockAdvertisementFromJSON(`{
			"name": "Test Device",
			"address": "AA:BB:CC:DD:EE:FF",
			"rssi": -45,
			"services": ["180F", "180A"],
			"manufacturerData": [76,0,1,2],
			"serviceData": {"180F":[100]},
			"txPower": 4,
			"connectable": true
		}`).BuildDevice(logrus.New())

		ja.AssertDevice(dev, `{
			"id": "AA:BB:CC:DD:EE:FF",
			"name": "Test Device",
			"address": "AA:BB:CC:DD:EE:FF",
			"rssi": -45,
			"tx_power": 4,
			"connectable": true,
			"manufacturer_data": [76,0,1,2],
			"service_data": {"180f": [100]},
			"services": ["180f", "180a"]
		}`)
	})

	t.Run("handles missing optional data", func(t *testing.T) {
		dev := testutils.CreateMockAdvertisementFromJSON(`{
			"name": null,
			"address": "11:22:33:44:55:66",
			"rssi": -70,
			"manufacturerData": null,
			"serviceData": null,
			"services": null,
			"txPower": null,
			"connectable": false
		}`).BuildDevice(logrus.New())

		ja.AssertDevice(dev, `{
			"id": "11:22:33:44:55:66",
			"name": "11:22:33:44:55:66",
			"address": "11:22:33:44:55:66",
			"rssi": -70,
			"tx_power": null,
			"connectable": false,
			"manufacturer_data": null,
			"service_data": null,
			"services": []
		}`)
	})
}

func TestBLEDevice_Update(t *testing.T) {
	ja := testutils.NewJSONAsserter(t).WithOptions(testutils.WithIgnoredFields("last_seen"))

	initialAdv := testutils.CreateMockAdvertisementFromJSON(`{
		"name": "Initial Name",
		"address": "AA:BB:CC:DD:EE:FF",
		"rssi": -50,
		"manufacturerData": [1],
		"serviceData": {},
		"services": ["180D"],
		"txPower": 0,
		"connectable": true
	}`).Build()

	dev := goble.NewBLEDeviceFromAdvertisement(goble.NewBLEAdvertisement(initialAdv), logrus.New())
	initialAdv.AssertExpectations(t)
	firstSeen := dev.LastSeen()

	updateAdv := testutils.CreateMockAdvertisementFromJSON(`{
		"name": "Updated Name",
		"rssi": -40,
		"manufacturerData": [2, 3],
		"services": ["180F", "180D"],
		"serviceData": {"180F": [80]},
		"txPower": 8
	}`).Build()

	dev.Update(goble.NewBLEAdvertisement(updateAdv))

	ja.AssertDevice(dev, `{
		"id": "AA:BB:CC:DD:EE:FF",
		"name": "Updated Name",
		"address": "AA:BB:CC:DD:EE:FF",
		"rssi": -40,
		"manufacturer_data": [2, 3],
		"service_data": {"180f": [80]},
		"services": ["180d", "180f"],
		"tx_power": 8,
		"connectable": true
	}`)
	assert.False(t, dev.LastSeen().Before(firstSeen), "LastSeen MUST move forward on update")
	updateAdv.AssertExpectations(t)
}

func TestBLEDevice_ExtractNameFromManufacturerData(t *testing.T) {
	tests := []struct {
		name         string
		manufData    []byte
		expectedName string
	}{
		{
			name:         "extracts simple ASCII device name",
			manufData:    []byte{0x4C, 0x00, 'T', 'e', 's', 't', 'D', 'e', 'v', 'i', 'c', 'e'},
			expectedName: "TestDevice",
		},
		{
			name:         "extracts name with spaces",
			manufData:    []byte{0x00, 0x01, 'M', 'y', ' ', 'D', 'e', 'v', 'i', 'c', 'e'},
			expectedName: "My Device",
		},
		{
			name:         "ignores short strings",
			manufData:    []byte{0x00, 0x01, 'A', 'B'},
			expectedName: "AA:BB:CC:DD:EE:FF",
		},
		{
			name:         "ignores data without letters",
			manufData:    []byte{0x00, 0x01, '1', '2', '3', '4', '5'},
			expectedName: "AA:BB:CC:DD:EE:FF",
		},
		{
			name:         "extracts name from middle of data",
			manufData:    []byte{0x4C, 0x00, 0x01, 0x02, 'D', 'e', 'v', 'i', 'c', 'e', 'X', 0x00},
			expectedName: "DeviceX",
		},
		{
			name:         "handles empty manufacturer data",
			manufData:    []byte{},
			expectedName: "AA:BB:CC:DD:EE:FF",
		},
		{
			name:         "does not read the company identifier as text",
			manufData:    []byte{'A', 'B', 'C'},
			expectedName: "AA:BB:CC:DD:EE:FF",
		},
		{
			name:         "limits name length",
			manufData:    append([]byte{0x00, 0x01}, []byte("VeryLongDeviceNameThatShouldBeLimited1234567890")...),
			expectedName: "VeryLongDeviceNameThatShouldBeLi",
		},
		{
			name:         "stops at non-printable characters",
			manufData:    []byte{0x00, 0x01, 'T', 'e', 's', 't', 0x00, 0x01, 'D', 'e', 'v'},
			expectedName: "Test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testutils.CreateMockAdvertisementFromJSON(`{
				"name": null,
				"address": "AA:BB:CC:DD:EE:FF",
				"manufacturerData": %s
			}`, testutils.MustJSON(intSlice(tt.manufData))).BuildDevice(logrus.New())

			assert.Equal(t, tt.expectedName, dev.Name())
		})
	}
}

func TestBLEDevice_NameUpdateBehavior(t *testing.T) {
	dev := testutils.CreateMockAdvertisementFromJSON(`{
		"name": "",
		"address": "AA:BB:CC:DD:EE:FF",
		"manufacturerData": %s
	}`, testutils.MustJSON(intSlice([]byte{0x00, 0x01, 'E', 'x', 't', 'r', 'a', 'c', 't', 'e', 'd'}))).BuildDevice(logrus.New())
	assert.Equal(t, "Extracted", dev.Name(), "name MUST be extracted from manufacturer data initially")

	dev.Update(testutils.CreateMockAdvertisementFromJSON(`{"name": "OfficialName", "rssi": -45}`).BuildAdvertisement())
	assert.Equal(t, "OfficialName", dev.Name(), "local name MUST take precedence")

	dev.Update(testutils.CreateMockAdvertisementFromJSON(`{
		"name": "",
		"rssi": -40,
		"manufacturerData": %s
	}`, testutils.MustJSON(intSlice([]byte{0x00, 0x01, 'N', 'e', 'w', 'N', 'a', 'm', 'e'}))).BuildAdvertisement())
	assert.Equal(t, "OfficialName", dev.Name(), "a known name MUST NOT be replaced by manufacturer data")
	assert.Equal(t, -40, dev.RSSI())
}

func TestBLEDevice_NotConnected(t *testing.T) {
	dev := goble.NewBLEDevice("AA:BB:CC:DD:EE:FF", nil)

	assert.False(t, dev.IsConnected())
	assert.NoError(t, dev.Disconnect(), "disconnecting an idle device MUST be a no-op")
	assert.Empty(t, dev.GetConnection().Services())
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", dev.Name(), "name MUST fall back to the address")
}

func intSlice(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
