package testutils

import (
	"time"

	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	goble "github.com/srg/blesend/internal/device/go-ble"
	"github.com/stretchr/testify/suite"
)

// MockBLEPeripheralSuite is a testify suite that routes the go-ble backend to a mocked peripheral.
//
// Configure the peripheral before calling the parent SetupTest:
//
//	type SendSuite struct {
//	    testutils.MockBLEPeripheralSuite
//	}
//
//	func (s *SendSuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithService("180D").
//	        WithCharacteristic("2A39", "write", nil)
//	    s.MockBLEPeripheralSuite.SetupTest()
//	}
//
// Without configuration the peripheral exposes a Battery Service (180F) with a
// readable Battery Level (2A19) and the Nordic UART service.
type MockBLEPeripheralSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	OriginalDeviceFactory func() (blelib.Device, error)
	TestTimeout           time.Duration

	PeripheralBuilder *PeripheralDeviceBuilder
}

func (s *MockBLEPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 5 * time.Second
	s.OriginalDeviceFactory = goble.DeviceFactory
}

// SetupTest installs the mocked peripheral as the go-ble device factory.
func (s *MockBLEPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = DefaultPeripheralBuilder()
	}

	// The shared manager caches the device, a leftover from a previous test must not leak in
	_ = goble.Release()

	builder := s.PeripheralBuilder
	goble.DeviceFactory = func() (blelib.Device, error) {
		return builder.Build(), nil
	}
}

func (s *MockBLEPeripheralSuite) TearDownTest() {
	_ = goble.Release()
	if s.OriginalDeviceFactory != nil {
		goble.DeviceFactory = s.OriginalDeviceFactory
	}
	s.PeripheralBuilder = nil
}

// WithPeripheral returns the peripheral builder for configuration in SetupTest or in a test body.
// Changes made after SetupTest apply to the next created device.
func (s *MockBLEPeripheralSuite) WithPeripheral() *PeripheralDeviceBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder()
	}
	return s.PeripheralBuilder
}

// DefaultPeripheralBuilder is a peripheral with a battery service and a Nordic UART service
func DefaultPeripheralBuilder() *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().FromJSON(`
		{
			"services": [
				{
					"uuid": "180F",
					"characteristics": [
						{ "uuid": "2A19", "properties": "read,notify", "value": [50] }
					]
				},
				{
					"uuid": "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
					"characteristics": [
						{ "uuid": "6e400002-b5a3-f393-e0a9-e50e24dcca9e", "properties": "write,write-without-response" },
						{ "uuid": "6e400003-b5a3-f393-e0a9-e50e24dcca9e", "properties": "notify" }
					]
				}
			]
		}`)
}
